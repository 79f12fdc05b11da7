package bridge

import (
	"bytes"

	"vcore-bridge/errcode"
)

// DefaultLineMax bounds one inbound command line.
const DefaultLineMax = 512

// LineBuffer accumulates link bytes into newline-terminated lines.
// CR is ignored. Lines whose first non-blank byte is not '{' are dropped.
type LineBuffer struct {
	buf      []byte
	max      int
	overflow bool
	first    byte // first non-blank byte of the current line
}

func NewLineBuffer(max int) *LineBuffer {
	if max <= 0 {
		max = DefaultLineMax
	}
	return &LineBuffer{buf: make([]byte, 0, max), max: max}
}

// Feed consumes p and calls fn once per complete object line. line aliases
// the internal buffer and is only valid during the call. An object line
// longer than the limit is reported with errcode.LineTooLong.
func (b *LineBuffer) Feed(p []byte, fn func(line []byte, err error)) {
	for _, c := range p {
		switch c {
		case '\r':
		case '\n':
			b.finish(fn)
		default:
			if b.first == 0 && c != ' ' && c != '\t' {
				b.first = c
			}
			if len(b.buf) < b.max {
				b.buf = append(b.buf, c)
			} else {
				b.overflow = true
			}
		}
	}
}

// Pending reports how many bytes of an unterminated line are held.
func (b *LineBuffer) Pending() int { return len(b.buf) }

func (b *LineBuffer) finish(fn func([]byte, error)) {
	defer b.reset()
	if b.first != '{' {
		return
	}
	if b.overflow {
		fn(nil, errcode.LineTooLong)
		return
	}
	fn(bytes.TrimSpace(b.buf), nil)
}

func (b *LineBuffer) reset() {
	b.buf = b.buf[:0]
	b.overflow = false
	b.first = 0
}
