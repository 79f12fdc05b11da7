// Package config resolves the embedded per-board configuration.
package config

import (
	"encoding/json"
	"errors"
	"time"

	"vcore-bridge/x/mathx"
)

// -----------------------------------------------------------------------------
// String constants (live in flash, not RAM)
// -----------------------------------------------------------------------------

const (
	DefaultBoard = "pico"
)

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(board string) ([]byte, bool) {
	b, ok := embeddedConfigs[board]
	return b, ok
}

// -----------------------------------------------------------------------------
// Board
// -----------------------------------------------------------------------------

type Board struct {
	Name    string  `json:"name"`
	I2C     I2C     `json:"i2c"`
	UART    UART    `json:"uart"`
	Display Display `json:"display"`
	Bridge  Bridge  `json:"bridge"`
}

type I2C struct {
	ID            string `json:"id"` // "i2c0" | "i2c1"
	SDA           int    `json:"sda"`
	SCL           int    `json:"scl"`
	Hz            uint32 `json:"hz"`
	TimeoutMS     int    `json:"timeout_ms"`
	ProbeRead     bool   `json:"probe_read"`
	ResetAttempts int    `json:"reset_attempts"`
}

type UART struct {
	ID   string `json:"id"` // "uart0" | "uart1"
	Baud uint32 `json:"baud"`
	TX   int    `json:"tx"`
	RX   int    `json:"rx"`
}

type Display struct {
	Enabled   bool  `json:"enabled"`
	Addr      uint8 `json:"addr"`
	Width     int16 `json:"width"`
	Height    int16 `json:"height"`
	RefreshMS int   `json:"refresh_ms"`
}

type Bridge struct {
	StartPaused *bool `json:"start_paused,omitempty"`
	LineMax     int   `json:"line_max"`
	PollMS      int   `json:"poll_ms"`
}

// Timeout returns the I2C transaction bound.
func (c I2C) Timeout() time.Duration { return time.Duration(c.TimeoutMS) * time.Millisecond }

// Refresh returns the minimum display refresh spacing.
func (c Display) Refresh() time.Duration { return time.Duration(c.RefreshMS) * time.Millisecond }

// Poll returns the link poll bound.
func (c Bridge) Poll() time.Duration { return time.Duration(c.PollMS) * time.Millisecond }

// Paused reports whether the session starts paused (default true).
func (c Bridge) Paused() bool { return c.StartPaused == nil || *c.StartPaused }

var (
	errNoConfig  = errors.New("no embedded config for board")
	errBadI2C    = errors.New("config: i2c id must be i2c0 or i2c1")
	errBadUART   = errors.New("config: uart id must be uart0 or uart1")
	errBadDispAd = errors.New("config: display addr must be 0x3C or 0x3D")
)

// Load decodes the embedded config for board, applies defaults and validates.
func Load(board string) (Board, error) {
	if board == "" {
		board = DefaultBoard
	}
	raw, ok := EmbeddedConfigLookup(board)
	if !ok || len(raw) == 0 {
		return Board{}, errors.New(errNoConfig.Error() + ": " + board)
	}
	return Parse(raw)
}

// Parse decodes raw, applies defaults and validates.
func Parse(raw []byte) (Board, error) {
	var b Board
	if err := json.Unmarshal(raw, &b); err != nil {
		return Board{}, err
	}
	b.applyDefaults()
	if err := b.validate(); err != nil {
		return Board{}, err
	}
	return b, nil
}

func (b *Board) applyDefaults() {
	if b.I2C.ID == "" {
		b.I2C.ID = "i2c0"
	}
	if b.I2C.Hz == 0 {
		b.I2C.Hz = 400_000
	}
	if b.I2C.TimeoutMS <= 0 {
		b.I2C.TimeoutMS = 250
	}
	if b.I2C.ResetAttempts <= 0 {
		b.I2C.ResetAttempts = 3
	}
	if b.UART.ID == "" {
		b.UART.ID = "uart0"
	}
	if b.UART.Baud == 0 {
		b.UART.Baud = 115200
	}
	if b.Display.Addr == 0 {
		b.Display.Addr = 0x3C
	}
	if b.Display.Width == 0 {
		b.Display.Width = 128
	}
	if b.Display.Height == 0 {
		b.Display.Height = 32
	}
	b.Display.RefreshMS = max(b.Display.RefreshMS, 200)
	if b.Bridge.LineMax <= 0 {
		b.Bridge.LineMax = 512
	}
	b.Bridge.LineMax = mathx.Clamp(b.Bridge.LineMax, 64, 4096)
	if b.Bridge.PollMS <= 0 {
		b.Bridge.PollMS = 20
	}
	b.Bridge.PollMS = mathx.Clamp(b.Bridge.PollMS, 1, 1000)
}

func (b *Board) validate() error {
	switch b.I2C.ID {
	case "i2c0", "i2c1":
	default:
		return errBadI2C
	}
	switch b.UART.ID {
	case "uart0", "uart1":
	default:
		return errBadUART
	}
	if b.Display.Enabled && b.Display.Addr != 0x3C && b.Display.Addr != 0x3D {
		return errBadDispAd
	}
	return nil
}
