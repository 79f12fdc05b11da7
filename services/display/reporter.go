package display

import (
	"time"
)

// MinInterval is the minimum spacing between two pushes to the sink.
const MinInterval = 200 * time.Millisecond

// maxFailures after which a sink is considered gone.
const maxFailures = 3

// Sink draws one frame.
type Sink interface {
	Show(f Frame) error
}

// Reporter rate-limits rendering and skips frames identical to the last one
// shown. A nil sink or a sink that keeps failing leaves the reporter in
// degraded mode where Render does nothing.
type Reporter struct {
	sink     Sink
	interval time.Duration
	last     time.Time
	shown    Frame
	hasShown bool
	fails    int
	Renders  int
}

func NewReporter(sink Sink, interval time.Duration) *Reporter {
	if interval < MinInterval {
		interval = MinInterval
	}
	return &Reporter{sink: sink, interval: interval}
}

// Degraded reports whether the display is unavailable.
func (r *Reporter) Degraded() bool { return r.sink == nil || r.fails >= maxFailures }

// Render draws st unless the last render was less than the interval ago or
// the frame would not change.
func (r *Reporter) Render(now time.Time, st Status) {
	if r.Degraded() {
		return
	}
	if r.hasShown && now.Sub(r.last) < r.interval {
		return
	}
	f := Lines(st)
	if r.hasShown && f == r.shown {
		return
	}
	r.last = now
	if err := r.sink.Show(f); err != nil {
		r.fails++
		println("[display] show failed:", err.Error())
		if r.fails >= maxFailures {
			println("[display] unavailable, giving up")
		}
		return
	}
	r.fails = 0
	r.shown = f
	r.hasShown = true
	r.Renders++
}
