// Package i2c provides the register-level transport used by the bridge:
// single-byte register reads and writes with a bounded wait, address probing,
// and bus recovery. Nothing here retries; retry policy belongs to callers.
package i2c

import (
	"time"

	"vcore-bridge/errcode"

	"tinygo.org/x/drivers"
)

// DefaultTimeout bounds every register transaction.
const DefaultTimeout = 250 * time.Millisecond

// Config tunes a Transport.
type Config struct {
	Timeout time.Duration
	// ProbeRead probes with a one-byte read instead of a zero-length write,
	// for controllers that cannot emit an address-only frame.
	ProbeRead bool
}

// Transport performs register transactions through an Owner.
type Transport struct {
	owner     *Owner
	timeout   time.Duration
	probeRead bool
	rec       *Recovery

	// Fixed buffers to avoid per-call heap allocations.
	w [2]byte
	r [1]byte
}

// New binds a Transport to owner. rec may be nil when the board has no
// recovery pins; Reset is then a no-op.
func New(owner *Owner, cfg Config, rec *Recovery) *Transport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Transport{
		owner:     owner,
		timeout:   cfg.Timeout,
		probeRead: cfg.ProbeRead,
		rec:       rec,
	}
}

// ReadRegister writes reg with the transmission kept open (repeated start)
// and reads exactly one byte back.
func (t *Transport) ReadRegister(addr uint16, reg byte) (byte, error) {
	t.w[0] = reg
	if err := t.owner.Tx(addr, t.w[:1], t.r[:1], t.timeout); err != nil {
		return 0, errcode.Wrap(errcode.MapDriverErr(err), "read_register", err)
	}
	return t.r[0], nil
}

// WriteRegister writes (reg, value) in a single transaction.
func (t *Transport) WriteRegister(addr uint16, reg, value byte) error {
	t.w[0] = reg
	t.w[1] = value
	if err := t.owner.Tx(addr, t.w[:2], nil, t.timeout); err != nil {
		return errcode.Wrap(errcode.MapDriverErr(err), "write_register", err)
	}
	return nil
}

// Probe reports whether a device acknowledges addr.
func (t *Transport) Probe(addr uint16) error {
	var err error
	if t.probeRead {
		err = t.owner.Tx(addr, nil, t.r[:1], t.timeout)
	} else {
		err = t.owner.Tx(addr, nil, nil, t.timeout)
	}
	if err != nil {
		return errcode.Wrap(errcode.MapDriverErr(err), "probe", err)
	}
	return nil
}

// Reset runs the bus recovery sequence once.
func (t *Transport) Reset() error {
	if t.rec == nil {
		return nil
	}
	return t.rec.Reset()
}

// Bus exposes the owner as a drivers.I2C bounded by the transport timeout.
func (t *Transport) Bus() drivers.I2C { return t.owner.Bus(t.timeout) }
