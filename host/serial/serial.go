// Package serial opens the link to the bridge firmware: a real serial port,
// or an in-process simulator for development without hardware.
package serial

import (
	"io"
)

// Port is the host end of the bridge link.
type Port interface {
	io.ReadWriteCloser

	// Flush drops buffered data where the backend supports it.
	Flush() error
}

// Config holds serial port configuration.
type Config struct {
	// Device path (e.g. "/dev/ttyACM0", "COM3"), or "sim".
	Device string

	Baud int

	// Read timeout in milliseconds (0 = blocking).
	ReadTimeout int
}

// SimDevice selects the in-process simulator instead of a port.
const SimDevice = "sim"

// DefaultConfig returns the bridge defaults for device.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 1000,
	}
}
