// Command vcore-host is the interactive host tool for the bridge firmware.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"vcore-bridge/host/client"
	"vcore-bridge/host/config"
	"vcore-bridge/host/serial"
	"vcore-bridge/host/session"
)

var (
	cfgPath = flag.String("config", "", "YAML config file")
	device  = flag.String("device", "", "Serial device path, or \"sim\" (overrides config)")
	logDir  = flag.String("log", "", "Session log directory (overrides config)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *device != "" {
		cfg.Serial.Device = *device
	}
	if *logDir != "" {
		cfg.Log.Dir = *logDir
	}

	log, err := session.Open(cfg.Log.Dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: session log: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	fmt.Printf("Connecting to bridge on %s...\n", cfg.Serial.Device)
	port, err := serial.Open(&serial.Config{
		Device:      cfg.Serial.Device,
		Baud:        cfg.Serial.Baud,
		ReadTimeout: cfg.Serial.ReadTimeoutMs,
	})
	if err != nil {
		log.Error("failed to open serial port", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer port.Close()
	_ = port.Flush()
	log.System("serial port opened", zap.String("device", cfg.Serial.Device), zap.Int("baud", cfg.Serial.Baud))

	c := client.New(port, client.Options{
		Timeout:       cfg.Client.Timeout(),
		DetectRetries: cfg.Client.DetectRetries,
		RetryBackoff:  cfg.Client.RetryBackoff(),
		Log:           log,
	})
	defer c.Close()

	sh := newShell(c, os.Stdout, cfg.Monitor.Interval())
	if err := sh.init(cfg.Client.InitAttempts, cfg.Client.InitialDelay(), time.Sleep); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	if err := sh.run(os.Stdin, true); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}
