package vr

// IR35201 PMBus commands.
const (
	ir35201StatusByte = 0x78
	ir35201StatusWord = 0x79
	ir35201StatusVout = 0x7A
	ir35201StatusIout = 0x7B
	ir35201StatusTemp = 0x7D
	ir35201StatusMfr  = 0x80
	ir35201ReadVout   = 0x8B
	ir35201ReadIout   = 0x8C
	ir35201ReadTemp1  = 0x8D
	ir35201ReadPout   = 0x96
)

// IR35201 decodes an Infineon IR35201 PMBus controller using its
// single-byte I2C telemetry resolution.
type IR35201 struct {
	bus Bus
}

func (d *IR35201) Name() string { return "IR35201" }

func (d *IR35201) Measure() (Measurements, error) {
	v, err := d.bus.ReadRegs(ir35201ReadVout, ir35201ReadIout, ir35201ReadPout, ir35201ReadTemp1)
	if err != nil {
		return Measurements{}, err
	}
	return Measurements{
		Voltage:     float64(v[0]) * 0.0156,
		Current:     float64(v[1]),
		Power:       float64(v[2]) * 0.5,
		Temperature: float64(v[3]),
	}, nil
}

// Protections decodes the PMBus status registers. A one-byte read of
// STATUS_WORD returns its high byte, where bit 3 is POWER_GOOD#.
func (d *IR35201) Protections() (map[string]bool, error) {
	v, err := d.bus.ReadRegs(
		ir35201StatusByte, ir35201StatusWord, ir35201StatusVout,
		ir35201StatusIout, ir35201StatusTemp, ir35201StatusMfr,
	)
	if err != nil {
		return nil, err
	}
	sb, swHigh, sv, si, st, sm := v[0], v[1], v[2], v[3], v[4], v[5]
	return map[string]bool{
		"ovp_fault":               bit(sv, 7) || bit(sb, 5),
		"ovp_warning":             bit(sv, 6),
		"uvp_warning":             bit(sv, 5),
		"uvp_fault":               bit(sv, 4),
		"ocp_fault":               bit(si, 7) || bit(sb, 4),
		"ocp_warning":             bit(si, 5),
		"otp_fault":               bit(st, 7) || bit(sb, 2),
		"otp_warning":             bit(st, 6),
		"vin_uvlo":                bit(sb, 3),
		"power_good_neg":          bit(swHigh, 3),
		"driver_fault":            bit(sm, 2),
		"unpopulated_phase_fault": bit(sm, 1),
		"external_otp_fault":      bit(sm, 0),
	}, nil
}
