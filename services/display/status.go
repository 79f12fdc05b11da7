// Package display renders the bridge status on a small text surface: the
// OLED on the board, or the console when running on a host.
package display

import (
	"vcore-bridge/devices"
	"vcore-bridge/metrics"
	"vcore-bridge/x/conv"
)

// Mode selects the screen layout.
type Mode uint8

const (
	ModeBoot Mode = iota
	ModeNoDevice
	ModePaused
	ModeActive
)

func (m Mode) String() string {
	switch m {
	case ModeBoot:
		return "boot"
	case ModeNoDevice:
		return "no_device"
	case ModePaused:
		return "paused"
	case ModeActive:
		return "active"
	}
	return "unknown"
}

// Status is everything a frame is drawn from.
type Status struct {
	Mode      Mode
	Device    devices.Device
	HasDevice bool
	Devices   int
	Paused    bool
	Metrics   metrics.Snapshot
	Uptime    uint32 // seconds
}

// Rows and Cols describe the text grid for a 128x32 panel with an 8px font.
const (
	Rows = 4
	Cols = 21
)

// Frame is one screenful of text.
type Frame [Rows]string

// Lines lays out st as text. It is pure so layouts can be tested without
// a panel.
func Lines(st Status) Frame {
	var f Frame
	up := "up " + num(st.Uptime) + "s"

	switch st.Mode {
	case ModeBoot:
		f[0] = "vcore-bridge"
		f[1] = "starting"
	case ModeNoDevice:
		f[0] = "No device"
		f[1] = "found " + num(uint32(st.Devices))
		f[2] = pauseWord(st.Paused)
		f[3] = up
	default:
		f[0] = deviceLine(st)
		if st.Mode == ModePaused {
			f[1] = "PAUSED"
			f[2] = "ops " + num(st.Metrics.TotalOps)
		} else {
			f[1] = "R/s " + num(st.Metrics.ReadsPerSecond) +
				" W/s " + num(st.Metrics.WritesPerSecond)
			f[2] = "avg " + num(st.Metrics.AvgTimeUs) + "us"
		}
		f[3] = up
	}
	for i := range f {
		f[i] = clip(f[i], Cols)
	}
	return f
}

func num(n uint32) string {
	var b [10]byte
	return string(conv.AppendUint(b[:0], uint64(n)))
}

func deviceLine(st Status) string {
	if !st.HasDevice {
		return "--"
	}
	var b [Cols]byte
	line := append(conv.AppendAddr(b[:0], st.Device.Addr), ' ')
	return string(append(line, st.Device.Name...))
}

func pauseWord(p bool) string {
	if p {
		return "PAUSED"
	}
	return "RUN"
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 2 {
		return s[:n]
	}
	return s[:n-2] + ".."
}
