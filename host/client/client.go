// Package client talks to the bridge firmware: it sends one JSON command per
// line and matches responses to requests by their echoed action.
package client

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"vcore-bridge/host/session"
)

var (
	ErrTimeout  = errors.New("timeout waiting for response")
	ErrPaused   = errors.New("bridge is paused")
	ErrClosed   = errors.New("client closed")
	ErrNoDevice = errors.New("no device found")
)

// RemoteError is an ERROR response from the bridge.
type RemoteError struct {
	Action string
	Msg    string
}

func (e *RemoteError) Error() string { return e.Action + ": " + e.Msg }

// Options tune a Client.
type Options struct {
	Timeout       time.Duration
	DetectRetries int
	RetryBackoff  time.Duration
	Log           *session.Logger
}

func (o *Options) defaults() {
	if o.Timeout <= 0 {
		o.Timeout = time.Second
	}
	if o.DetectRetries <= 0 {
		o.DetectRetries = 5
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 500 * time.Millisecond
	}
	if o.Log == nil {
		o.Log = session.Nop()
	}
}

// Client is safe for concurrent use; requests are serialised.
type Client struct {
	rw   io.ReadWriter
	opts Options
	log  *session.Logger

	mu     sync.Mutex // one request in flight
	stash  []Response // responses received while waiting for another action
	in     chan Response
	done   chan struct{}
	closer sync.Once

	paused bool
	sleep  func(time.Duration)
}

// New starts the background reader on rw.
func New(rw io.ReadWriter, opts Options) *Client {
	opts.defaults()
	c := &Client{
		rw:     rw,
		opts:   opts,
		log:    opts.Log,
		in:     make(chan Response, 64),
		done:   make(chan struct{}),
		paused: true,
		sleep:  time.Sleep,
	}
	go c.readLoop()
	return c
}

func (c *Client) readLoop() {
	sc := bufio.NewScanner(c.rw)
	sc.Buffer(make([]byte, 0, 1024), 64*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var r Response
		if err := json.Unmarshal(line, &r); err != nil {
			c.log.Error("undecodable response", err, zap.ByteString("line", line))
			continue
		}
		r.Raw = append(json.RawMessage(nil), line...)
		c.log.Response(r.Raw)
		select {
		case c.in <- r:
		case <-c.done:
			return
		}
	}
	if err := sc.Err(); err != nil {
		select {
		case <-c.done:
		default:
			c.log.Error("serial read failed", err)
		}
	}
}

// Send writes cmd without waiting for a response.
func (c *Client) Send(cmd map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(cmd)
}

func (c *Client) send(cmd map[string]any) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	switch cmd["action"] {
	case "pause":
		c.paused = true
	case "resume":
		c.paused = false
	}
	c.log.Command(cmd)
	b, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	_, err = c.rw.Write(append(b, '\n'))
	return err
}

// Wait returns the next response whose action matches. Responses for other
// actions are kept and handed to later waits, in arrival order.
func (c *Client) Wait(action string, timeout time.Duration) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wait(action, timeout)
}

func (c *Client) wait(action string, timeout time.Duration) (*Response, error) {
	for i, r := range c.stash {
		if r.Action == action {
			c.stash = append(c.stash[:i], c.stash[i+1:]...)
			return &r, nil
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	var held []Response
	defer func() { c.stash = append(c.stash, held...) }()
	for {
		select {
		case r := <-c.in:
			if r.Action == action {
				return &r, nil
			}
			c.log.System("unexpected response",
				zap.String("expected_action", action),
				zap.String("received_action", r.Action))
			held = append(held, r)
		case <-timer.C:
			c.log.Error("timeout waiting for response", ErrTimeout,
				zap.String("action", action),
				zap.Duration("elapsed", timeout),
				zap.Int("unrelated", len(held)))
			return nil, ErrTimeout
		case <-c.done:
			return nil, ErrClosed
		}
	}
}

// Do sends cmd and waits for its response.
func (c *Client) Do(cmd map[string]any, timeout time.Duration) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.do(cmd, timeout)
}

func (c *Client) do(cmd map[string]any, timeout time.Duration) (*Response, error) {
	action, _ := cmd["action"].(string)
	if err := c.send(cmd); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = c.opts.Timeout
	}
	r, err := c.wait(action, timeout)
	if err != nil {
		return nil, err
	}
	if r.Status == StatusError {
		return r, &RemoteError{Action: action, Msg: r.Error}
	}
	return r, nil
}

func (c *Client) simple(action string) (*Response, error) {
	return c.Do(map[string]any{"action": action}, 0)
}

// Pause stops bulk transactions on the bridge.
func (c *Client) Pause() error { _, err := c.simple("pause"); return err }

// Resume re-enables bulk transactions.
func (c *Client) Resume() error { _, err := c.simple("resume"); return err }

// Paused is the pause state as last commanded by this client.
func (c *Client) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Scan asks the bridge to rescan the bus.
func (c *Client) Scan() ([]Device, error) {
	r, err := c.simple("scan")
	if err != nil {
		return nil, err
	}
	return devicesOf(r), nil
}

// GetDevices fetches the device list, retrying with a growing timeout and
// backoff. Stale responses are discarded first.
func (c *Client) GetDevices() ([]Device, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drain()

	var lastErr error
	for attempt := 1; attempt <= c.opts.DetectRetries; attempt++ {
		c.log.System("device detection attempt",
			zap.Int("attempt", attempt), zap.Int("max_retries", c.opts.DetectRetries))
		r, err := c.do(map[string]any{"action": "get_devices"}, c.opts.Timeout*time.Duration(attempt))
		if err == nil && r.Devices != nil {
			devs := devicesOf(r)
			c.log.System("device detection success", zap.Int("devices_found", len(devs)))
			return devs, nil
		}
		lastErr = err
		if attempt < c.opts.DetectRetries {
			c.sleep(c.opts.RetryBackoff * time.Duration(attempt))
		}
	}
	c.log.System("device detection failed after all attempts")
	if lastErr == nil {
		lastErr = ErrNoDevice
	}
	return nil, lastErr
}

func (c *Client) drain() {
	for _, r := range c.stash {
		c.log.System("discarding pending response", zap.String("action", r.Action))
	}
	c.stash = nil
	for {
		select {
		case r := <-c.in:
			c.log.System("discarding pending response", zap.String("action", r.Action))
		default:
			return
		}
	}
}

// Select resumes the bridge if needed, then selects addr.
func (c *Client) Select(addr uint8) (Device, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		if _, err := c.do(map[string]any{"action": "resume"}, 0); err != nil {
			return Device{}, err
		}
	}
	r, err := c.do(map[string]any{"action": "select", "addr": int(addr)}, 0)
	if err != nil {
		c.log.System("failed to select device", zap.Uint8("addr", addr), zap.Error(err))
		return Device{}, err
	}
	d := Device{Addr: addr, Name: r.Name}
	c.log.System("device selected", zap.String("name", d.Name), zap.String("address", fmt.Sprintf("0x%02X", addr)))
	return d, nil
}

// Switch advances the bridge to the next device.
func (c *Client) Switch() (Device, error) {
	r, err := c.simple("switch")
	if err != nil {
		return Device{}, err
	}
	var addr uint8
	if r.Selected != nil {
		addr = uint8(*r.Selected)
	}
	return Device{Addr: addr, Name: r.Name}, nil
}

// Status fetches the bridge status.
func (c *Client) Status() (*Response, error) { return c.simple("get_status") }

// BulkRW runs one bulk transaction. A PAUSED answer is ErrPaused.
func (c *Client) BulkRW(reads []int, writes []Write) (*Response, error) {
	cmd := map[string]any{"action": "bulk_rw"}
	if len(reads) > 0 {
		cmd["reads"] = reads
	}
	if len(writes) > 0 {
		cmd["writes"] = writes
	}
	r, err := c.Do(cmd, 0)
	if err != nil {
		return r, err
	}
	if r.Status == StatusPaused {
		return r, ErrPaused
	}
	return r, nil
}

// ReadRegs reads regs from the selected device.
func (c *Client) ReadRegs(regs ...byte) ([]byte, error) {
	ints := make([]int, len(regs))
	for i, r := range regs {
		ints[i] = int(r)
	}
	r, err := c.BulkRW(ints, nil)
	if err != nil {
		return nil, err
	}
	if len(r.Values) != len(regs) {
		return nil, fmt.Errorf("bulk_rw returned %d values for %d reads", len(r.Values), len(regs))
	}
	out := make([]byte, len(r.Values))
	for i, v := range r.Values {
		out[i] = byte(v)
	}
	return out, nil
}

// ReadRegister reads one register.
func (c *Client) ReadRegister(reg byte) (byte, error) {
	v, err := c.ReadRegs(reg)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// WriteRegister writes one register.
func (c *Client) WriteRegister(reg, value byte) error {
	_, err := c.BulkRW(nil, []Write{{Reg: int(reg), Value: int(value)}})
	return err
}

// Close pauses the bridge (best effort) and stops the reader. It does not
// close the underlying port.
func (c *Client) Close() {
	c.closer.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.log.System("closing client")
		_ = c.send(map[string]any{"action": "pause"})
		close(c.done)
	})
}

func devicesOf(r *Response) []Device {
	n := min(len(r.Devices), len(r.Names))
	out := make([]Device, n)
	for i := 0; i < n; i++ {
		out[i] = Device{Addr: uint8(r.Devices[i]), Name: r.Names[i]}
	}
	return out
}
