package platform

import (
	"math/rand/v2"

	"vcore-bridge/i2c"
)

// Simulated target addresses.
const (
	SimVRAddr   = 0x25
	SimOLEDAddr = 0x3C
)

// NewSimBus returns an in-memory bus with a uP9512 regulator and an OLED,
// the regulator's telemetry registers jittering around nominal readings.
func NewSimBus(seed uint64) *i2c.Sim {
	sim := i2c.NewSim()
	vr := sim.Attach(SimVRAddr, map[byte]byte{
		0x07: 0x77, 0x08: 0x77, 0x09: 0x77, // OCP thresholds
		0x23: 0x00,
		0x25: 0xFE, // VR_SHDN default
		0x35: 0x00,
		0x3B: 0x04,
		0x3C: 0x0F, // protection enables
	})
	rng := rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
	jitter := func(base, spread int) byte {
		v := base + rng.IntN(2*spread+1) - spread
		return byte(max(0, min(0xFF, v)))
	}
	vr.Live = func(reg byte) (byte, bool) {
		switch reg {
		case 0x2D: // VOUT
			return jitter(120, 2), true
		case 0x2C: // IOUT
			return jitter(9, 2), true
		case 0x2E: // temperature
			return jitter(79, 1), true
		case 0x3D: // phase current
			return jitter(9, 1), true
		}
		return 0, false
	}
	sim.Attach(SimOLEDAddr, nil)
	return sim
}
