// Package platform binds the bridge to concrete hardware: the RP2040 board
// under TinyGo, or an in-memory bus and stdio when run on a host.
package platform

import (
	"context"

	"tinygo.org/x/drivers"

	"vcore-bridge/bulk"
	"vcore-bridge/bus"
	"vcore-bridge/devices"
	"vcore-bridge/i2c"
	"vcore-bridge/metrics"
	"vcore-bridge/services/bridge"
	"vcore-bridge/services/config"
	"vcore-bridge/services/display"
)

// Board is the hardware handed to Wire.
type Board struct {
	I2C drivers.I2C
	// Recovery is nil when the board cannot drive its bus lines as GPIO.
	Recovery *i2c.Recovery
	Link     bridge.Link
	// OpenDisplay binds a panel on bus. Nil when the board has none.
	OpenDisplay func(bus drivers.I2C, cfg config.Display) (display.Sink, error)
	// FallbackSink is used when no panel is available (console boards).
	FallbackSink display.Sink
}

// Stack is the assembled runtime.
type Stack struct {
	Owner      *i2c.Owner
	Transport  *i2c.Transport
	Registry   *devices.Registry
	Metrics    *metrics.Tracker
	Dispatcher *bridge.Dispatcher
	Reporter   *display.Reporter
	Display    *display.Service
	Bus        *bus.Bus
	Service    *bridge.Service
}

// Close stops the bus owner.
func (s *Stack) Close() { s.Owner.Close() }

// Run starts the display service and serves the link until ctx ends.
func (s *Stack) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !s.Display.Start(ctx, s.Bus.NewConnection("display")) {
		println("[display] not started")
	}
	return s.Service.Run(ctx)
}

// Wire builds the runtime on b: recover the bus, bring up the display,
// run the boot scan and create the service loop.
func Wire(cfg config.Board, b *Board) *Stack {
	s := &Stack{Owner: i2c.NewOwner(b.I2C), Metrics: metrics.New()}
	s.Transport = i2c.New(s.Owner, i2c.Config{
		Timeout:   cfg.I2C.Timeout(),
		ProbeRead: cfg.I2C.ProbeRead,
	}, b.Recovery)

	if b.Recovery != nil {
		if n, err := b.Recovery.ResetWithRetry(cfg.I2C.ResetAttempts); err != nil {
			println("[main] bus still stuck after", n, "reset(s); continuing degraded")
		}
	}

	sink := b.FallbackSink
	if cfg.Display.Enabled && b.OpenDisplay != nil {
		if err := s.Transport.Probe(uint16(cfg.Display.Addr)); err != nil {
			println("[display] panel not responding:", err.Error())
		} else if ds, err := b.OpenDisplay(s.Transport.Bus(), cfg.Display); err != nil {
			println("[display] init failed:", err.Error())
		} else {
			sink = ds
		}
	}
	if sink == nil {
		println("[display] unavailable")
	}
	s.Reporter = display.NewReporter(sink, cfg.Display.Refresh())
	s.Display = display.NewService(s.Reporter)
	s.Bus = bus.NewBus(2)

	s.Registry = devices.NewRegistry(s.Transport)
	s.Dispatcher = bridge.NewDispatcher(
		s.Registry,
		bulk.NewEngine(s.Transport, s.Metrics),
		s.Metrics,
		bridge.Options{StartPaused: cfg.Bridge.Paused()},
	)
	s.Dispatcher.Boot()

	feed := display.NewFeed(s.Bus.NewConnection("bridge"))
	s.Service = bridge.NewService(b.Link, s.Dispatcher, s.Metrics, feed, bridge.Config{
		LineMax: cfg.Bridge.LineMax,
		Poll:    cfg.Bridge.Poll(),
	})
	return s
}
