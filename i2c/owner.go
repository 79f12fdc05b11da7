// i2c/owner.go
package i2c

import (
	"sync"
	"time"

	"vcore-bridge/errcode"

	"tinygo.org/x/drivers"
)

// request posted to the bus worker
type request struct {
	addr uint16
	w, r []byte
	done chan reply // buffered(1); worker replies best-effort
}

type reply struct {
	err  error
	data []byte
}

// Owner hosts a single worker goroutine that serialises all hardware access
// for one bus. Every transaction on the bus, including display traffic,
// passes through it.
type Owner struct {
	hw   drivers.I2C
	reqs chan request
	quit chan struct{}
	once sync.Once
}

func NewOwner(hw drivers.I2C) *Owner {
	o := &Owner{
		hw:   hw,
		reqs: make(chan request, 4),
		quit: make(chan struct{}),
	}
	go o.loop()
	return o
}

func (o *Owner) loop() {
	for {
		select {
		case req := <-o.reqs:
			// The worker owns its read buffer so a caller that gave up on a
			// slow transaction never sees its slice written late.
			var buf []byte
			if len(req.r) > 0 {
				buf = make([]byte, len(req.r))
			}
			err := o.hw.Tx(req.addr, req.w, buf)
			select {
			case req.done <- reply{err: err, data: buf}:
			default:
			}
		case <-o.quit:
			return
		}
	}
}

// Close stops the worker. Pending callers time out.
func (o *Owner) Close() { o.once.Do(func() { close(o.quit) }) }

// Tx posts one transaction and waits for it.
// timeout <= 0 waits without a deadline.
func (o *Owner) Tx(addr uint16, w, r []byte, timeout time.Duration) error {
	req := request{
		addr: addr,
		w:    append([]byte(nil), w...),
		r:    r,
		done: make(chan reply, 1),
	}

	if timeout <= 0 {
		o.reqs <- req
		rep := <-req.done
		copy(r, rep.data)
		return rep.err
	}

	t := time.NewTimer(timeout)
	defer t.Stop()

	// Bounded enqueue
	select {
	case o.reqs <- req:
	case <-t.C:
		return errcode.Busy
	}

	// Completion, within the same overall budget.
	select {
	case rep := <-req.done:
		copy(r, rep.data)
		return rep.err
	case <-t.C:
		return errcode.Timeout
	}
}

// driversI2C adapts the owner to tinygo.org/x/drivers.I2C with a fixed
// per-call timeout, for drivers that only speak Tx (e.g. the OLED).
type driversI2C struct {
	o       *Owner
	timeout time.Duration
}

// Ensure compile-time conformance with drivers.I2C
var _ drivers.I2C = (*driversI2C)(nil)

func (d *driversI2C) Tx(addr uint16, w, r []byte) error {
	return d.o.Tx(addr, w, r, d.timeout)
}

// Bus returns a drivers.I2C view of the owner bounded by timeout.
func (o *Owner) Bus(timeout time.Duration) drivers.I2C {
	return &driversI2C{o: o, timeout: timeout}
}
