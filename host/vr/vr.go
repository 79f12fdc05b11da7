// Package vr decodes telemetry and protection state of the supported
// voltage regulators from raw register reads.
package vr

import (
	"errors"
	"fmt"
)

// Bus is register access to the selected device.
type Bus interface {
	ReadRegs(regs ...byte) ([]byte, error)
	WriteRegister(reg, value byte) error
}

// Measurements are the decoded telemetry values. Fields a chip does not
// report stay zero.
type Measurements struct {
	Voltage         float64 `json:"voltage"`
	Current         float64 `json:"current"`
	Power           float64 `json:"power"`
	Temperature     float64 `json:"temperature"`
	AvgCurrent      float64 `json:"avg_current,omitempty"`
	VRShutdown      float64 `json:"vr_shutdown,omitempty"`
	OperatingPhases int     `json:"operating_phases,omitempty"`
	// Protections holds the flags the chip reports (only enabled ones for
	// chips with per-protection enables).
	Protections map[string]bool `json:"protections,omitempty"`
	// PhaseOCL is the per-phase over-current latch, phase 1 first.
	PhaseOCL []bool `json:"phase_ocl,omitempty"`
}

// Device is a supported regulator.
type Device interface {
	Name() string
	Measure() (Measurements, error)
	Protections() (map[string]bool, error)
}

var ErrUnsupported = errors.New("unsupported device")

// New returns the decoder for a device name reported by the bridge.
func New(name string, bus Bus) (Device, error) {
	switch name {
	case "uP9512":
		return &UP9512{bus: bus}, nil
	case "NCP4206":
		return &NCP4206{bus: bus}, nil
	case "IR35201":
		return &IR35201{bus: bus}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupported, name)
}

func bit(v byte, n uint) bool { return v&(1<<n) != 0 }

func bits8(v byte) []bool {
	out := make([]bool, 8)
	for i := range out {
		out[i] = bit(v, uint(i))
	}
	return out
}
