package i2c

import (
	"time"

	"vcore-bridge/errcode"
)

// Pin is the open-drain view of one bus line used during recovery.
type Pin interface {
	ConfigureOutput(initial bool) error
	// ConfigureInput releases the line (input with pull-up).
	ConfigureInput() error
	Get() bool
}

// Recovery frees a bus held by a peer: both lines are driven low, released,
// and the controller is reinitialised at the board clock rate.
type Recovery struct {
	SDA, SCL Pin
	Hz       uint32
	// Reinit reconfigures the controller (and the pin functions) after
	// the lines were used as GPIO.
	Reinit func(hz uint32) error
	Hold   time.Duration

	sleep func(time.Duration)
}

const defaultHold = 10 * time.Microsecond

// Reset performs one recovery sequence. It returns errcode.BusError if a
// line is still held low after release; the controller is reinitialised
// either way.
func (rc *Recovery) Reset() error {
	sleep := rc.sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	hold := rc.Hold
	if hold <= 0 {
		hold = defaultHold
	}

	if err := rc.SDA.ConfigureOutput(false); err != nil {
		return err
	}
	if err := rc.SCL.ConfigureOutput(false); err != nil {
		return err
	}
	sleep(hold)

	// Release SCL first so the SDA rise reads as a STOP.
	if err := rc.SCL.ConfigureInput(); err != nil {
		return err
	}
	sleep(hold)
	if err := rc.SDA.ConfigureInput(); err != nil {
		return err
	}
	sleep(hold)

	stuck := !rc.SDA.Get() || !rc.SCL.Get()

	if rc.Reinit != nil {
		if err := rc.Reinit(rc.Hz); err != nil {
			return err
		}
	}
	if stuck {
		return errcode.BusError
	}
	return nil
}

// ResetWithRetry runs Reset up to attempts times, stopping at the first
// success. It returns the number of attempts used and the last error.
func (rc *Recovery) ResetWithRetry(attempts int) (int, error) {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		if err = rc.Reset(); err == nil {
			return i, nil
		}
		println("[i2c] bus reset attempt", i, "failed:", err.Error())
	}
	return attempts, err
}
