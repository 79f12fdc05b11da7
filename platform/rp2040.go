//go:build rp2040

package platform

import (
	"errors"
	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/ssd1306"

	"vcore-bridge/i2c"
	"vcore-bridge/services/config"
	"vcore-bridge/services/display"
)

// rp2Pin drives one bus line as GPIO during recovery.
type rp2Pin struct{ p machine.Pin }

func (r rp2Pin) ConfigureOutput(initial bool) error {
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.p.Set(initial)
	return nil
}

func (r rp2Pin) ConfigureInput() error {
	r.p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return nil
}

func (r rp2Pin) Get() bool { return r.p.Get() }

// Setup configures the I2C controller, its recovery pins and the host UART.
func Setup(cfg config.Board) (*Board, error) {
	var hw *machine.I2C
	switch cfg.I2C.ID {
	case "i2c0":
		hw = machine.I2C0
	case "i2c1":
		hw = machine.I2C1
	default:
		return nil, errors.New("unknown i2c id: " + cfg.I2C.ID)
	}
	sda := machine.Pin(cfg.I2C.SDA)
	scl := machine.Pin(cfg.I2C.SCL)
	reinit := func(hz uint32) error {
		sda.Configure(machine.PinConfig{Mode: machine.PinI2C})
		scl.Configure(machine.PinConfig{Mode: machine.PinI2C})
		return hw.Configure(machine.I2CConfig{SCL: scl, SDA: sda, Frequency: hz})
	}
	if err := reinit(cfg.I2C.Hz); err != nil {
		return nil, err
	}

	var u *uartx.UART
	switch cfg.UART.ID {
	case "uart0":
		u = uartx.UART0
	case "uart1":
		u = uartx.UART1
	default:
		return nil, errors.New("unknown uart id: " + cfg.UART.ID)
	}
	if err := u.Configure(uartx.UARTConfig{
		BaudRate: cfg.UART.Baud,
		TX:       machine.Pin(cfg.UART.TX),
		RX:       machine.Pin(cfg.UART.RX),
	}); err != nil {
		return nil, err
	}

	return &Board{
		I2C: hw,
		Recovery: &i2c.Recovery{
			SDA:    rp2Pin{sda},
			SCL:    rp2Pin{scl},
			Hz:     cfg.I2C.Hz,
			Reinit: reinit,
		},
		Link:        u,
		OpenDisplay: openSSD1306,
	}, nil
}

func openSSD1306(bus drivers.I2C, cfg config.Display) (display.Sink, error) {
	dev := ssd1306.NewI2C(bus)
	dev.Configure(ssd1306.Config{
		Address: uint16(cfg.Addr),
		Width:   cfg.Width,
		Height:  cfg.Height,
	})
	dev.ClearDisplay()
	return display.NewPixelSink(dev), nil
}
