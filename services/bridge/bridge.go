// Package bridge serves the line-delimited JSON command protocol that
// exposes the I2C bus to a host.
package bridge

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"vcore-bridge/metrics"
	"vcore-bridge/services/display"
)

// -----------------------------------------------------------------------------
// Link
// -----------------------------------------------------------------------------

// Link is the host byte stream. uartx.UART satisfies it directly.
type Link interface {
	Write(p []byte) (int, error)
	// RecvSomeContext blocks until at least one byte is available or ctx ends.
	RecvSomeContext(ctx context.Context, p []byte) (int, error)
}

// StreamLink adapts a plain reader/writer pair (stdio, a pipe) to Link.
// A single reader goroutine feeds chunks to RecvSomeContext.
type StreamLink struct {
	w     io.Writer
	in    chan []byte
	err   chan error
	carry []byte
}

func NewStreamLink(r io.Reader, w io.Writer) *StreamLink {
	l := &StreamLink{w: w, in: make(chan []byte, 4), err: make(chan error, 1)}
	go func() {
		for {
			buf := make([]byte, 128)
			n, err := r.Read(buf)
			if n > 0 {
				l.in <- buf[:n]
			}
			if err != nil {
				l.err <- err
				return
			}
		}
	}()
	return l
}

func (l *StreamLink) Write(p []byte) (int, error) { return l.w.Write(p) }

func (l *StreamLink) RecvSomeContext(ctx context.Context, p []byte) (int, error) {
	if len(l.carry) == 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case b := <-l.in:
			l.carry = b
		case err := <-l.err:
			l.err <- err // sticky
			// Chunks read before the error are queued ahead of it.
			select {
			case b := <-l.in:
				l.carry = b
			default:
				return 0, err
			}
		}
	}
	n := copy(p, l.carry)
	l.carry = l.carry[n:]
	return n, nil
}

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

// Renderer receives the session status once per loop iteration.
type Renderer interface {
	Render(now time.Time, st display.Status)
}

// Config tunes the service loop.
type Config struct {
	LineMax int
	// Poll bounds how long one iteration waits for link input.
	Poll time.Duration
}

const defaultPoll = 20 * time.Millisecond

// Service is the single cooperative loop: drain the link, dispatch complete
// lines, advance the metrics window, refresh the display.
type Service struct {
	link  Link
	d     *Dispatcher
	met   *metrics.Tracker
	rep   Renderer
	lines *LineBuffer
	poll  time.Duration
	buf   []byte
	now   func() time.Time

	backoff func() time.Duration

	// Handled counts response lines written.
	Handled int
}

func NewService(link Link, d *Dispatcher, met *metrics.Tracker, rep Renderer, cfg Config) *Service {
	if cfg.Poll <= 0 {
		cfg.Poll = defaultPoll
	}
	return &Service{
		link:    link,
		d:       d,
		met:     met,
		rep:     rep,
		lines:   NewLineBuffer(cfg.LineMax),
		poll:    cfg.Poll,
		buf:     make([]byte, 64),
		now:     time.Now,
		backoff: backoffSeq(50*time.Millisecond, time.Second),
	}
}

// Run loops until ctx is cancelled or the link is closed.
func (s *Service) Run(ctx context.Context) error {
	println("[bridge] serving")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Step(ctx); err != nil {
			println("[bridge] link closed:", err.Error())
			return err
		}
	}
}

// Step performs one loop iteration. It returns an error only when the link
// is closed for good; other read errors are retried with backoff.
func (s *Service) Step(ctx context.Context) error {
	rctx, cancel := context.WithTimeout(ctx, s.poll)
	n, err := s.link.RecvSomeContext(rctx, s.buf)
	cancel()
	if n > 0 {
		s.backoff = backoffSeq(50*time.Millisecond, time.Second)
		s.lines.Feed(s.buf[:n], s.handleLine)
	}
	if err != nil && n == 0 && ctx.Err() == nil && !errors.Is(err, context.DeadlineExceeded) {
		if linkClosed(err) {
			return err
		}
		delay := s.backoff()
		println("[bridge] link read failed:", err.Error())
		sleep(ctx, delay)
	}

	now := s.now()
	s.met.Tick(now)
	if s.rep != nil {
		s.rep.Render(now, s.d.DisplayStatus(now))
	}
	return nil
}

func (s *Service) handleLine(line []byte, err error) {
	var resp []byte
	if err != nil {
		resp = s.d.Reject(err)
	} else {
		resp = s.d.Handle(line)
	}
	if _, werr := s.link.Write(resp); werr != nil {
		println("[bridge] link write failed:", werr.Error())
		return
	}
	s.Handled++
}

// -----------------------------------------------------------------------------
// Utilities
// -----------------------------------------------------------------------------

// linkClosed reports read errors after which no more input can arrive.
func linkClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, os.ErrClosed)
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	var cur = min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
