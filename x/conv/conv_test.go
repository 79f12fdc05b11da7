package conv

import "testing"

func TestAppendUint(t *testing.T) {
	cases := map[uint64]string{0: "0", 7: "7", 1500: "1500", 18446744073709551615: "18446744073709551615"}
	for n, want := range cases {
		if got := string(AppendUint(nil, n)); got != want {
			t.Errorf("AppendUint(%d) = %q, want %q", n, got, want)
		}
	}
	if got := string(AppendUint([]byte("up "), 42)); got != "up 42" {
		t.Fatalf("prefix lost: %q", got)
	}
}

func TestAppendAddr(t *testing.T) {
	if got := string(AppendAddr(nil, 0x3C)); got != "0x3C" {
		t.Fatalf("AppendAddr = %q", got)
	}
	if got := string(AppendAddr([]byte("@"), 0x05)); got != "@0x05" {
		t.Fatalf("AppendAddr = %q", got)
	}
}
