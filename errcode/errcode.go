package errcode

import (
	"context"
	"errors"
	"strings"
)

// Code is a stable, wire-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK Code = "ok"

	// Bus level
	Timeout  Code = "timeout"
	Nack     Code = "nack"
	BusError Code = "bus_error"
	Busy     Code = "busy"

	// Protocol level
	InvalidJSON      Code = "invalid_json"
	UnknownCommand   Code = "unknown_command"
	InvalidParams    Code = "invalid_params"
	LineTooLong      Code = "line_too_long"
	DeviceNotFound   Code = "device_not_found"
	NoDevices        Code = "no_devices"
	NoDeviceSelected Code = "no_device_selected"
	Paused           Code = "paused"

	// Soft; reported alongside a successful result.
	BatchTruncated Code = "batch_truncated"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Wrap attaches op context to a code while keeping the original cause.
func Wrap(c Code, op string, cause error) *E {
	return &E{C: c, Op: op, Err: cause}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Error
}

// MapDriverErr maps low-level driver errors to a bus Code.
// Codes pass through untouched; anything else is classified by its text,
// since machine-level I2C errors are not exported types.
func MapDriverErr(err error) Code {
	if err == nil {
		return OK
	}
	if c := Of(err); c != Error {
		return c
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "timeout"), strings.Contains(s, "timed out"):
		return Timeout
	case strings.Contains(s, "nack"), strings.Contains(s, "no ack"),
		strings.Contains(s, "ack expected"), strings.Contains(s, "abort"):
		return Nack
	default:
		return BusError
	}
}

// WireStatus returns the numeric transmission status reported to the host
// (Wire endTransmission numbering).
func WireStatus(c Code) uint8 {
	switch c {
	case OK:
		return 0
	case Nack:
		return 2
	case Timeout:
		return 5
	default:
		return 4
	}
}

// Message is the human string carried in a response "error" field.
func Message(c Code) string {
	switch c {
	case InvalidJSON:
		return "Invalid JSON"
	case UnknownCommand:
		return "Unknown command"
	case InvalidParams:
		return "Invalid parameters"
	case LineTooLong:
		return "Line too long"
	case DeviceNotFound:
		return "Device not found"
	case NoDevices:
		return "No devices"
	case NoDeviceSelected:
		return "No device selected"
	case Paused:
		return "Paused"
	case Timeout:
		return "I2C timeout"
	case Nack:
		return "I2C NACK"
	case BusError:
		return "I2C bus error"
	case Busy:
		return "I2C busy"
	case OK:
		return ""
	default:
		return "Internal error"
	}
}
