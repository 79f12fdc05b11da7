package display

import (
	"context"
	"time"

	"vcore-bridge/bus"
)

// TopicStatus carries the latest Status as a retained message.
const TopicStatus bus.Topic = "display/status"

// Feed publishes status snapshots on TopicStatus, skipping unchanged ones.
// It is what the command loop renders into.
type Feed struct {
	conn *bus.Connection
	last Status
	sent bool
}

func NewFeed(conn *bus.Connection) *Feed { return &Feed{conn: conn} }

func (f *Feed) Render(_ time.Time, st Status) {
	if f.sent && st == f.last {
		return
	}
	f.last, f.sent = st, true
	f.conn.Publish(&bus.Message{Topic: TopicStatus, Payload: st, Retained: true})
}

// Service draws published status through a Reporter, off the command loop
// so slow panel writes never delay responses.
type Service struct {
	rep *Reporter
	now func() time.Time
}

func NewService(rep *Reporter) *Service {
	return &Service{rep: rep, now: time.Now}
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	sub := conn.Subscribe(TopicStatus)
	defer conn.Unsubscribe(sub)

	tick := time.NewTicker(s.rep.interval)
	defer tick.Stop()

	var (
		latest Status
		have   bool
	)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			if st, ok := msg.Payload.(Status); ok {
				latest, have = st, true
				s.rep.Render(s.now(), latest)
			}
		case <-tick.C:
			// Catch up on a change the rate limit held back.
			if have {
				s.rep.Render(s.now(), latest)
			}
		}
		if s.rep.Degraded() {
			println("[display] service stopping")
			return
		}
	}
}

// Start runs the service until ctx ends or the reporter degrades. It returns
// false when there is nothing to draw on.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) bool {
	if s.rep.Degraded() {
		return false
	}
	go s.serviceLoop(ctx, conn)
	return true
}
