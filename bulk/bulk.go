// Package bulk runs batches of register reads and writes against one device.
//
// Reads run first, in order, and abort on the first failure with no partial
// values. Writes run only after every read succeeded and also stop at the
// first failure. Batches longer than MaxReads/MaxWrites are truncated.
package bulk

import (
	"time"

	"vcore-bridge/errcode"
	"vcore-bridge/metrics"
)

// Per-request caps, applied independently.
const (
	MaxReads  = 32
	MaxWrites = 32
)

// Bus is the part of the transport the engine needs.
type Bus interface {
	ReadRegister(addr uint16, reg byte) (byte, error)
	WriteRegister(addr uint16, reg, value byte) error
}

// Write is one (register, value) pair.
type Write struct {
	Reg   byte
	Value byte
}

type Request struct {
	Reads  []byte
	Writes []Write
}

// Status is the overall outcome.
type Status uint8

const (
	StatusOK Status = iota
	StatusError
	StatusPaused
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusPaused:
		return "PAUSED"
	default:
		return "ERROR"
	}
}

type Result struct {
	Status Status
	// Values parallels the (truncated) reads; nil unless every read succeeded.
	Values []byte
	// WriteStatus is the outcome of the write phase; OK when no writes ran.
	WriteStatus errcode.Code
	WroteAny    bool
	OpCount     int
	Elapsed     time.Duration
	Truncated   bool
	// Err is the first failure, nil on success.
	Err error
}

// Engine executes requests and feeds the metrics tracker.
type Engine struct {
	bus Bus
	m   *metrics.Tracker
	now func() time.Time
}

func NewEngine(bus Bus, m *metrics.Tracker) *Engine {
	return &Engine{bus: bus, m: m, now: time.Now}
}

// Truncate applies the caps, reporting whether anything was dropped.
func Truncate(req Request) (Request, bool) {
	cut := false
	if len(req.Reads) > MaxReads {
		req.Reads = req.Reads[:MaxReads]
		cut = true
	}
	if len(req.Writes) > MaxWrites {
		req.Writes = req.Writes[:MaxWrites]
		cut = true
	}
	return req, cut
}

// Run executes req against addr. A paused engine returns immediately with no
// bus activity and no metrics update.
func (e *Engine) Run(paused bool, addr uint8, req Request) Result {
	if paused {
		return Result{Status: StatusPaused, WriteStatus: errcode.OK, Err: errcode.Paused}
	}

	req, cut := Truncate(req)
	res := Result{Status: StatusOK, WriteStatus: errcode.OK, Truncated: cut}
	nReads, nWrites := 0, 0
	start := e.now()

	if len(req.Reads) > 0 {
		vals := make([]byte, len(req.Reads))
		for i, reg := range req.Reads {
			nReads++
			v, err := e.bus.ReadRegister(uint16(addr), reg)
			if err != nil {
				res.Status = StatusError
				res.Err = err
				vals = nil
				break
			}
			vals[i] = v
		}
		res.Values = vals
	}

	if res.Err == nil {
		for _, w := range req.Writes {
			nWrites++
			res.WroteAny = true
			if err := e.bus.WriteRegister(uint16(addr), w.Reg, w.Value); err != nil {
				res.Status = StatusError
				res.Err = err
				res.WriteStatus = errcode.MapDriverErr(err)
				break
			}
		}
	}

	res.Elapsed = e.now().Sub(start)
	if res.Elapsed < 0 {
		res.Elapsed = 0
	}
	res.OpCount = nReads + nWrites
	if e.m != nil {
		e.m.Record(nReads, nWrites, res.Elapsed)
	}
	return res
}
