package i2c

import (
	"sync"
	"time"

	"vcore-bridge/errcode"

	"tinygo.org/x/drivers"
)

// SimDevice is one register-mapped target on a Sim bus.
type SimDevice struct {
	Regs [256]byte
	// Live, when set, supplies read values (e.g. noisy ADC registers).
	// Returning ok=false falls back to Regs.
	Live func(reg byte) (byte, bool)
	// Per-register failures.
	FailRead  map[byte]errcode.Code
	FailWrite map[byte]errcode.Code
}

// Sim is an in-memory I2C bus implementing drivers.I2C. It counts every
// transaction so callers can assert on bus activity.
type Sim struct {
	mu    sync.Mutex
	devs  map[uint16]*SimDevice
	delay time.Duration

	Txs    int
	Reads  int
	Writes int
	Probes int
}

var _ drivers.I2C = (*Sim)(nil)

func NewSim() *Sim {
	return &Sim{devs: make(map[uint16]*SimDevice)}
}

// Attach adds a device at addr preloaded with regs and returns it.
func (s *Sim) Attach(addr uint16, regs map[byte]byte) *SimDevice {
	d := &SimDevice{
		FailRead:  map[byte]errcode.Code{},
		FailWrite: map[byte]errcode.Code{},
	}
	for k, v := range regs {
		d.Regs[k] = v
	}
	s.mu.Lock()
	s.devs[addr] = d
	s.mu.Unlock()
	return d
}

// Detach removes the device at addr.
func (s *Sim) Detach(addr uint16) {
	s.mu.Lock()
	delete(s.devs, addr)
	s.mu.Unlock()
}

// SetDelay makes every transaction take d (for timeout tests).
func (s *Sim) SetDelay(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

// Count returns the total number of transactions seen.
func (s *Sim) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Txs
}

// Reg returns the stored value of reg on addr.
func (s *Sim) Reg(addr uint16, reg byte) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.devs[addr]; d != nil {
		return d.Regs[reg]
	}
	return 0
}

func (s *Sim) Tx(addr uint16, w, r []byte) error {
	s.mu.Lock()
	s.Txs++
	delay := s.delay
	d := s.devs[addr]
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if d == nil {
		return errcode.Nack
	}
	if len(w) == 0 {
		// Address-only frame or bare read: a probe.
		s.Probes++
		for i := range r {
			r[i] = 0xFF
		}
		return nil
	}

	reg := w[0]
	if len(r) > 0 {
		s.Reads++
		if c, ok := d.FailRead[reg]; ok {
			return c
		}
		for i := range r {
			rr := reg + byte(i)
			if d.Live != nil {
				if v, ok := d.Live(rr); ok {
					r[i] = v
					continue
				}
			}
			r[i] = d.Regs[rr]
		}
		return nil
	}

	if len(w) > 1 {
		s.Writes++
		if c, ok := d.FailWrite[reg]; ok {
			return c
		}
		for i, v := range w[1:] {
			d.Regs[reg+byte(i)] = v
		}
	}
	return nil
}

// FakePin implements Pin for host builds and tests. A line can be forced
// low to model a peer holding the bus.
type FakePin struct {
	mu      sync.Mutex
	level   bool
	held    bool
	Drives  int
	Release int
}

func NewFakePin() *FakePin { return &FakePin{level: true} }

// Hold forces the line low regardless of our own drive.
func (p *FakePin) Hold(on bool) {
	p.mu.Lock()
	p.held = on
	p.mu.Unlock()
}

func (p *FakePin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.level = initial
	p.Drives++
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ConfigureInput() error {
	p.mu.Lock()
	p.level = true // pull-up
	p.Release++
	p.mu.Unlock()
	return nil
}

func (p *FakePin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.held {
		return false
	}
	return p.level
}
