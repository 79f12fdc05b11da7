package vr

import "fmt"

// uP9512 registers.
const (
	up9512IICP01  = 0x07 // LCS0 (high nibble), LCS1 (low nibble) phase count
	up9512IICP23  = 0x08 // LCS2, LCS3
	up9512IICP4   = 0x09 // LCS4 (high nibble)
	up9512CBCtrl  = 0x12
	up9512TotOCP  = 0x23
	up9512VRShdn  = 0x25
	up9512IOUT    = 0x2C
	up9512VOUT    = 0x2D
	up9512Temp    = 0x2E
	up9512ProtIn2 = 0x35 // per-phase OCL
	up9512ProtInd = 0x3B // protection flags [7:3], operating phases [2:0]
	up9512Misc1   = 0x3C // protection enables
	up9512IOUTAvg = 0x3D
)

// uP9512 conversion constants.
const (
	up9512VLSB   = 0.01   // V per step
	up9512ILSB   = 0.01   // V across the shunt per step
	up9512TLSB   = 0.008  // V per step
	up9512RShunt = 0.003  // ohm
	up9512TSens  = 0.0127 // V per degree C
)

// LCS is a load-current state of the uP9512 phase shedding table.
type LCS int

const (
	LCS0 LCS = iota
	LCS1
	LCS2
	LCS3
	LCS4
)

func (l LCS) String() string { return fmt.Sprintf("LCS%d", int(l)) }

// phase field location per LCS: register and whether it is the high nibble.
var up9512PhaseField = [...]struct {
	reg  byte
	high bool
}{
	LCS0: {up9512IICP01, true},
	LCS1: {up9512IICP01, false},
	LCS2: {up9512IICP23, true},
	LCS3: {up9512IICP23, false},
	LCS4: {up9512IICP4, true},
}

// Protection thresholds.
type UP9512Thresholds struct {
	TotalOCPPercent   int `json:"total_ocp_percent"`
	ThermalShutdownMV int `json:"thermal_shutdown_mv"`
}

// UP9512 decodes a uPI uP9512 multiphase controller.
type UP9512 struct {
	bus Bus
}

func NewUP9512(bus Bus) *UP9512 { return &UP9512{bus: bus} }

func (d *UP9512) Name() string { return "uP9512" }

// Measure reads all telemetry in one bulk transaction.
func (d *UP9512) Measure() (Measurements, error) {
	v, err := d.bus.ReadRegs(
		up9512ProtIn2, up9512ProtInd, up9512VOUT, up9512IOUT,
		up9512Temp, up9512VRShdn, up9512IOUTAvg, up9512Misc1,
	)
	if err != nil {
		return Measurements{}, err
	}
	prot2, prot, vout, iout, temp, shdn, iavg, misc1 := v[0], v[1], v[2], v[3], v[4], v[5], v[6], v[7]

	voltage := float64(vout) * up9512VLSB
	m := Measurements{
		Voltage:         voltage,
		Current:         float64(iout) * up9512ILSB / up9512RShunt,
		Temperature:     float64(temp) * up9512TLSB / up9512TSens,
		VRShutdown:      float64(shdn) * 0.008,
		Power:           float64(iavg) * up9512ILSB / up9512RShunt * voltage,
		OperatingPhases: int(prot&0x07) + 1,
		Protections:     map[string]bool{"otp": bit(prot, 7)},
	}
	if bit(misc1, 3) {
		m.Protections["total_ocp"] = bit(prot, 6)
	}
	if bit(misc1, 2) {
		m.Protections["channel_ocl"] = bit(prot, 5)
		m.PhaseOCL = bits8(prot2)
	}
	if bit(misc1, 1) {
		m.Protections["ovp"] = bit(prot, 4)
	}
	if bit(misc1, 0) {
		m.Protections["uvp"] = bit(prot, 3)
	}
	return m, nil
}

// Protections returns every protection flag regardless of enables.
func (d *UP9512) Protections() (map[string]bool, error) {
	v, err := d.bus.ReadRegs(up9512ProtInd)
	if err != nil {
		return nil, err
	}
	p := v[0]
	return map[string]bool{
		"otp":         bit(p, 7),
		"total_ocp":   bit(p, 6),
		"channel_ocl": bit(p, 5),
		"ovp":         bit(p, 4),
		"uvp":         bit(p, 3),
	}, nil
}

// ProtectionEnables decodes MISC1.
func (d *UP9512) ProtectionEnables() (map[string]bool, error) {
	v, err := d.bus.ReadRegs(up9512Misc1)
	if err != nil {
		return nil, err
	}
	return map[string]bool{
		"total_ocp":   bit(v[0], 3),
		"channel_ocl": bit(v[0], 2),
		"ovp":         bit(v[0], 1),
		"uvp":         bit(v[0], 0),
	}, nil
}

// CurrentBalance reports whether current balance control is enabled.
func (d *UP9512) CurrentBalance() (bool, error) {
	v, err := d.bus.ReadRegs(up9512CBCtrl)
	if err != nil {
		return false, err
	}
	return bit(v[0], 7), nil
}

// PhaseConfig returns the configured phase count per LCS.
func (d *UP9512) PhaseConfig() (map[LCS]int, error) {
	v, err := d.bus.ReadRegs(up9512IICP01, up9512IICP23, up9512IICP4)
	if err != nil {
		return nil, err
	}
	regs := map[byte]byte{up9512IICP01: v[0], up9512IICP23: v[1], up9512IICP4: v[2]}
	out := make(map[LCS]int, len(up9512PhaseField))
	for l, f := range up9512PhaseField {
		out[LCS(l)] = int(nibble(regs[f.reg], f.high)&0x07) + 1
	}
	return out, nil
}

// SetPhases sets the phase count (1..8) for one LCS, preserving the other
// field sharing the register.
func (d *UP9512) SetPhases(l LCS, phases int) error {
	if l < LCS0 || int(l) >= len(up9512PhaseField) {
		return fmt.Errorf("invalid load-current state %d", int(l))
	}
	if phases < 1 || phases > 8 {
		return fmt.Errorf("phase count %d out of range 1..8", phases)
	}
	f := up9512PhaseField[l]
	v, err := d.bus.ReadRegs(f.reg)
	if err != nil {
		return err
	}
	code := byte(phases - 1)
	cur := v[0]
	if f.high {
		cur = cur&^0x70 | code<<4
	} else {
		cur = cur&^0x07 | code
	}
	return d.bus.WriteRegister(f.reg, cur)
}

// Thresholds returns the total OCP threshold and thermal shutdown level.
func (d *UP9512) Thresholds() (UP9512Thresholds, error) {
	v, err := d.bus.ReadRegs(up9512TotOCP, up9512VRShdn)
	if err != nil {
		return UP9512Thresholds{}, err
	}
	return UP9512Thresholds{
		TotalOCPPercent:   100 + 10*int(v[0]&0x07),
		ThermalShutdownMV: int(v[1]) * 8,
	}, nil
}

func nibble(v byte, high bool) byte {
	if high {
		return v >> 4
	}
	return v & 0x0F
}
