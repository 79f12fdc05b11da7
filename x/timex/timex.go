// Package timex converts durations into the unsigned counters reported on
// the wire.
package timex

import (
	"time"

	"vcore-bridge/x/mathx"
)

// Micros returns d in whole microseconds, saturating at the uint32 range.
func Micros(d time.Duration) uint32 { return mathx.SatU32(d.Microseconds()) }

// Seconds returns whole seconds elapsed between start and now, never negative.
func Seconds(start, now time.Time) uint32 {
	return mathx.SatU32(int64(now.Sub(start) / time.Second))
}
