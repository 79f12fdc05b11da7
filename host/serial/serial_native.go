package serial

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/tarm/serial"
)

// NativePort wraps the tarm/serial implementation.
//
// With a read timeout set, tarm/serial returns (0, io.EOF) on Linux and
// (0, nil) on Windows when the line is idle. Read hides both until the port
// is closed, so a bufio.Scanner on top only ends when the port does.
type NativePort struct {
	port   *serial.Port
	rd     io.Reader
	cfg    *Config
	closed atomic.Bool
}

// Open opens cfg.Device, or starts the simulator when it is SimDevice.
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Device == SimDevice {
		return OpenSim(uint64(time.Now().UnixNano()))
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	return &NativePort{port: port, rd: port, cfg: cfg}, nil
}

func (p *NativePort) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	for {
		n, err := p.rd.Read(b)
		if n == 0 && (err == nil || err == io.EOF) {
			if p.closed.Load() {
				return 0, io.EOF
			}
			continue
		}
		return n, err
	}
}

func (p *NativePort) Write(b []byte) (int, error) { return p.port.Write(b) }

func (p *NativePort) Close() error {
	p.closed.Store(true)
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

func (p *NativePort) Flush() error { return p.port.Flush() }
