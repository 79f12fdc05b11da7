// Package metrics keeps process-lifetime transaction counters and the
// one-second read/write rate window shown on the display and in get_status.
package metrics

import (
	"time"

	"vcore-bridge/x/mathx"
)

// Window is the minimum spacing between rate snapshots.
const Window = time.Second

// Snapshot is a read-only view of the tracker.
type Snapshot struct {
	TotalOps        uint32
	TotalReads      uint32
	TotalWrites     uint32
	TotalTimeUs     uint32
	AvgTimeUs       uint32
	ReadsPerSecond  uint32
	WritesPerSecond uint32
}

// Tracker is not safe for concurrent use; the bridge loop owns it.
// Totals are kept in 64 bits and saturate at the uint32 wire limit only in
// snapshots.
type Tracker struct {
	ops, reads, writes uint64
	timeUs             uint64

	baseReads, baseWrites uint64
	rps, wps              uint64
	lastTick              time.Time
	started               bool
}

func New() *Tracker { return &Tracker{} }

// Record adds one completed (or aborted) batch to the totals.
func (t *Tracker) Record(reads, writes int, elapsed time.Duration) {
	if reads < 0 {
		reads = 0
	}
	if writes < 0 {
		writes = 0
	}
	t.reads += uint64(reads)
	t.writes += uint64(writes)
	t.ops += uint64(reads) + uint64(writes)
	t.timeUs += uint64(max(elapsed.Microseconds(), 0))
}

// Tick re-bases the rate window once at least Window has passed since the
// previous re-base. The first call only sets the baseline.
func (t *Tracker) Tick(now time.Time) {
	if !t.started {
		t.started = true
		t.lastTick = now
		t.baseReads, t.baseWrites = t.reads, t.writes
		return
	}
	if now.Sub(t.lastTick) < Window {
		return
	}
	t.rps = t.reads - t.baseReads
	t.wps = t.writes - t.baseWrites
	t.baseReads, t.baseWrites = t.reads, t.writes
	t.lastTick = now
}

// AvgTimeUs is total time over total ops, 0 before the first op.
func (t *Tracker) AvgTimeUs() uint32 {
	if t.ops == 0 {
		return 0
	}
	return mathx.SatU32(t.timeUs / t.ops)
}

func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		TotalOps:        mathx.SatU32(t.ops),
		TotalReads:      mathx.SatU32(t.reads),
		TotalWrites:     mathx.SatU32(t.writes),
		TotalTimeUs:     mathx.SatU32(t.timeUs),
		AvgTimeUs:       t.AvgTimeUs(),
		ReadsPerSecond:  mathx.SatU32(t.rps),
		WritesPerSecond: mathx.SatU32(t.wps),
	}
}
