// Command vcore-sim runs the bridge firmware on a simulated I2C bus, speaking
// the line protocol on stdin/stdout. Status frames go to stderr.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"vcore-bridge/platform"
	"vcore-bridge/services/bridge"
	"vcore-bridge/services/config"
	"vcore-bridge/services/display"
)

var (
	seed  = flag.Uint64("seed", 0, "Telemetry jitter seed (0 = time based)")
	delay = flag.Duration("delay", 0, "Added latency per I2C transaction")
	run   = flag.Bool("run", false, "Start unpaused")
	quiet = flag.Bool("quiet", false, "Do not print status frames")
)

func main() {
	flag.Parse()

	cfg, err := config.Load("sim")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *run {
		paused := false
		cfg.Bridge.StartPaused = &paused
	}

	s := *seed
	if s == 0 {
		s = uint64(time.Now().UnixNano())
	}
	bus := platform.NewSimBus(s)
	bus.SetDelay(*delay)

	var sink display.Sink = display.LogSink{}
	if *quiet {
		sink = nil
	}

	st := platform.Wire(cfg, &platform.Board{
		I2C:          bus,
		Link:         bridge.NewStreamLink(os.Stdin, os.Stdout),
		FallbackSink: sink,
	})
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	// End of stdin is a normal exit.
	if err := st.Run(ctx); err != nil && ctx.Err() == nil && !errors.Is(err, io.EOF) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
