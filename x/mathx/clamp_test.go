package mathx

import (
	"math"
	"testing"
)

func TestClamp(t *testing.T) {
	cases := []struct{ v, want int }{{5, 3}, {-1, 0}, {2, 2}, {0, 0}, {3, 3}}
	for _, c := range cases {
		if got := Clamp(c.v, 0, 3); got != c.want {
			t.Errorf("Clamp(%d, 0, 3) = %d, want %d", c.v, got, c.want)
		}
	}
}

func TestBetween(t *testing.T) {
	if !Between(1, 1, 126) || !Between(126, 1, 126) || Between(127, 1, 126) || Between(0, 1, 126) {
		t.Fatalf("address bounds wrong")
	}
}

func TestSatU32(t *testing.T) {
	if SatU32(int64(-5)) != 0 || SatU32(int64(1500)) != 1500 {
		t.Fatalf("small values")
	}
	if SatU32(uint64(math.MaxUint32)+1) != math.MaxUint32 || SatU32(uint64(7)) != 7 {
		t.Fatalf("unsigned saturation wrong")
	}
	if SatU32(int64(math.MaxInt64)) != math.MaxUint32 {
		t.Fatalf("large values should saturate")
	}
}
