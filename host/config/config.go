// Package config loads the host tool settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Serial  SerialConfig  `yaml:"serial"`
	Client  ClientConfig  `yaml:"client"`
	Log     LogConfig     `yaml:"log"`
	Monitor MonitorConfig `yaml:"monitor"`
}

// ---- SERIAL ----

type SerialConfig struct {
	Device        string `yaml:"device"` // path or "sim"
	Baud          int    `yaml:"baud"`
	ReadTimeoutMs int    `yaml:"read_timeout_ms"`
}

// ---- CLIENT ----

type ClientConfig struct {
	TimeoutMs      int `yaml:"timeout_ms"`
	DetectRetries  int `yaml:"detect_retries"`
	RetryBackoffMs int `yaml:"retry_backoff_ms"`
	InitialDelayMs int `yaml:"initial_delay_ms"`
	InitAttempts   int `yaml:"init_attempts"`
}

// ---- LOG ----

type LogConfig struct {
	Dir string `yaml:"dir"`
}

// ---- MONITOR ----

type MonitorConfig struct {
	IntervalMs int `yaml:"interval_ms"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Serial:  SerialConfig{Device: "/dev/ttyACM0", Baud: 115200, ReadTimeoutMs: 1000},
		Client:  ClientConfig{TimeoutMs: 1000, DetectRetries: 5, RetryBackoffMs: 500, InitialDelayMs: 500, InitAttempts: 2},
		Log:     LogConfig{Dir: "logs"},
		Monitor: MonitorConfig{IntervalMs: 500},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if err := Validate(&cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the client cannot work with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if cfg.Serial.Device == "" {
		return errors.New("serial.device is required")
	}
	if cfg.Serial.Baud <= 0 {
		return errors.New("serial.baud must be positive")
	}
	if cfg.Client.TimeoutMs <= 0 {
		return errors.New("client.timeout_ms must be positive")
	}
	if cfg.Client.DetectRetries < 1 {
		return errors.New("client.detect_retries must be at least 1")
	}
	if cfg.Monitor.IntervalMs < 50 {
		return errors.New("monitor.interval_ms must be at least 50")
	}
	return nil
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func (c ClientConfig) Timeout() time.Duration      { return ms(c.TimeoutMs) }
func (c ClientConfig) RetryBackoff() time.Duration { return ms(c.RetryBackoffMs) }
func (c ClientConfig) InitialDelay() time.Duration { return ms(c.InitialDelayMs) }
func (c MonitorConfig) Interval() time.Duration    { return ms(c.IntervalMs) }
