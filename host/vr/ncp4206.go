package vr

// NCP4206 registers.
const (
	ncp4206IOUT     = 0x2C
	ncp4206VOUT     = 0x2D
	ncp4206Temp     = 0x2E
	ncp4206ProtInd2 = 0x35
	ncp4206ProtInd  = 0x3B
	ncp4206IOUTAvg  = 0x3D
	ncp4206PhaseSt  = 0xFC // bits 0..5: phase enabled
)

// NCP4206 decodes an onsemi NCP4206 controller.
type NCP4206 struct {
	bus Bus
}

func (d *NCP4206) Name() string { return "NCP4206" }

func (d *NCP4206) Measure() (Measurements, error) {
	v, err := d.bus.ReadRegs(ncp4206VOUT, ncp4206IOUT, ncp4206IOUTAvg, ncp4206Temp)
	if err != nil {
		return Measurements{}, err
	}
	voltage := float64(v[0]) * 0.01
	current := float64(v[1]) * 0.01
	return Measurements{
		Voltage:     voltage,
		Current:     current,
		Power:       voltage * current,
		AvgCurrent:  float64(v[2]) * 0.01,
		Temperature: float64(v[3]) * 0.008,
	}, nil
}

// PhaseCount returns how many of the six phases are enabled.
func (d *NCP4206) PhaseCount() (int, error) {
	v, err := d.bus.ReadRegs(ncp4206PhaseSt)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := uint(0); i < 6; i++ {
		if bit(v[0], i) {
			n++
		}
	}
	return n, nil
}

func (d *NCP4206) Protections() (map[string]bool, error) {
	v, err := d.bus.ReadRegs(ncp4206ProtInd, ncp4206ProtInd2)
	if err != nil {
		return nil, err
	}
	p, p2 := v[0], v[1]
	out := map[string]bool{
		"otp":         bit(p, 7),
		"total_ocp":   bit(p, 6),
		"channel_ocl": bit(p, 5),
		"ovp":         bit(p, 4),
		"uvp":         bit(p, 3),
	}
	for i := uint(0); i < 8; i++ {
		out[phaseKey(i)] = bit(p2, i)
	}
	return out, nil
}

func phaseKey(i uint) string { return "phase" + string(rune('1'+i)) + "_ocl" }
