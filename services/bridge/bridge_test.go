package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"vcore-bridge/bulk"
	"vcore-bridge/devices"
	"vcore-bridge/errcode"
	"vcore-bridge/i2c"
	"vcore-bridge/metrics"
	"vcore-bridge/services/display"
)

type rig struct {
	sim *i2c.Sim
	reg *devices.Registry
	met *metrics.Tracker
	d   *Dispatcher
}

func newRig(t *testing.T, paused bool) *rig {
	t.Helper()
	sim := i2c.NewSim()
	sim.Attach(0x25, map[byte]byte{0x3C: 0x0F, 0x25: 0xFE, 0x2D: 120, 0x2C: 9})
	sim.Attach(0x3C, nil)
	own := i2c.NewOwner(sim)
	t.Cleanup(own.Close)
	tr := i2c.New(own, i2c.Config{}, nil)
	reg := devices.NewRegistry(tr)
	met := metrics.New()
	d := NewDispatcher(reg, bulk.NewEngine(tr, met), met, Options{StartPaused: paused})
	return &rig{sim: sim, reg: reg, met: met, d: d}
}

func (r *rig) do(t *testing.T, line string) map[string]any {
	t.Helper()
	out := r.d.Handle([]byte(line))
	if len(out) == 0 || out[len(out)-1] != '\n' || strings.Count(string(out), "\n") != 1 {
		t.Fatalf("response must be exactly one line, got %q", out)
	}
	var m map[string]any
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("response not JSON: %q", out)
	}
	return m
}

func wantStatus(t *testing.T, m map[string]any, status, errMsg string) {
	t.Helper()
	if m["status"] != status {
		t.Fatalf("status = %v, want %s (%v)", m["status"], status, m)
	}
	if errMsg != "" && m["error"] != errMsg {
		t.Fatalf("error = %v, want %q", m["error"], errMsg)
	}
}

func TestMalformedInput(t *testing.T) {
	r := newRig(t, false)
	cases := []struct {
		line, err string
	}{
		{`{"action":`, "Invalid JSON"},
		{`{]`, "Invalid JSON"},
		{`{"addr":1}`, "Unknown command"},
		{`{"action":5}`, "Unknown command"},
		{`{"action":"reboot"}`, "Unknown command"},
		{`{"action":"select","addr":"0x25"}`, "Invalid parameters"},
		{`{"action":"select","addr":200}`, "Invalid parameters"},
		{`{"action":"select"}`, "Invalid parameters"},
	}
	for _, tc := range cases {
		m := r.do(t, tc.line)
		wantStatus(t, m, "ERROR", tc.err)
	}
}

func TestActionIsEchoed(t *testing.T) {
	r := newRig(t, true)
	for _, a := range []string{"scan", "get_devices", "pause", "resume", "get_status", "reboot"} {
		m := r.do(t, `{"action":"`+a+`"}`)
		if m["action"] != a {
			t.Fatalf("action %q echoed as %v", a, m["action"])
		}
	}
}

func TestScanThenGetDevicesIdentical(t *testing.T) {
	r := newRig(t, true)
	scan := r.d.Handle([]byte(`{"action":"scan"}`))
	get := r.d.Handle([]byte(`{"action":"get_devices"}`))
	trim := func(b []byte) string {
		s := string(b)
		return s[strings.Index(s, `"devices"`):]
	}
	if trim(scan) != trim(get) {
		t.Fatalf("scan and get_devices differ:\n%s\n%s", scan, get)
	}
	if !strings.Contains(string(get), `"devices":[37,60]`) || !strings.Contains(string(get), `"names":["uP9512","SSD1306"]`) {
		t.Fatalf("unexpected device list: %s", get)
	}
}

func TestGetDevicesScansOnce(t *testing.T) {
	r := newRig(t, true)
	m := r.do(t, `{"action":"get_devices"}`)
	if len(m["devices"].([]any)) != 2 {
		t.Fatalf("first get_devices should scan: %v", m)
	}
	before := r.sim.Count()
	r.do(t, `{"action":"get_devices"}`)
	if r.sim.Count() != before {
		t.Fatalf("second get_devices touched the bus")
	}
}

func TestEmptyBusListsAreArrays(t *testing.T) {
	r := newRig(t, true)
	r.sim.Detach(0x25)
	r.sim.Detach(0x3C)
	out := string(r.d.Handle([]byte(`{"action":"scan"}`)))
	if !strings.Contains(out, `"devices":[]`) || !strings.Contains(out, `"names":[]`) {
		t.Fatalf("empty scan should use empty arrays: %s", out)
	}
}

func TestSelectAndSwitch(t *testing.T) {
	r := newRig(t, true)
	wantStatus(t, r.do(t, `{"action":"switch"}`), "ERROR", "No devices")

	r.do(t, `{"action":"scan"}`)
	m := r.do(t, `{"action":"select","addr":60}`)
	wantStatus(t, m, "OK", "")
	if m["selected"] != float64(0x3C) || m["name"] != "SSD1306" {
		t.Fatalf("select: %v", m)
	}

	wantStatus(t, r.do(t, `{"action":"select","addr":16}`), "ERROR", "Device not found")
	if dev, _ := r.reg.Selected(); dev.Addr != 0x3C {
		t.Fatalf("failed select moved selection to %#x", dev.Addr)
	}

	m = r.do(t, `{"action":"switch"}`)
	if m["selected"] != float64(0x25) || m["name"] != "uP9512" {
		t.Fatalf("switch should wrap to first device: %v", m)
	}
}

func TestBulkPausedNoBusActivity(t *testing.T) {
	r := newRig(t, true)
	r.d.Boot()
	before := r.sim.Count()
	m := r.do(t, `{"action":"bulk_rw","reads":[45,44],"writes":[{"reg":53,"value":1}]}`)
	wantStatus(t, m, "PAUSED", "")
	if _, ok := m["values"]; ok {
		t.Fatalf("paused response carries values")
	}
	if r.sim.Count() != before {
		t.Fatalf("paused bulk_rw issued %d transactions", r.sim.Count()-before)
	}
	if r.met.Snapshot().TotalOps != 0 {
		t.Fatalf("paused bulk_rw recorded metrics")
	}
}

func TestBulkPausedAnsweredBeforeParams(t *testing.T) {
	r := newRig(t, true)
	before := r.sim.Count()
	for _, line := range []string{
		`{"action":"bulk_rw","reads":["x"]}`,
		`{"action":"bulk_rw","writes":[{"reg":1}]}`,
		`{"action":"bulk_rw"}`,
	} {
		m := r.do(t, line)
		wantStatus(t, m, "PAUSED", "")
		for _, k := range []string{"values", "op_count", "timing_us", "error"} {
			if _, ok := m[k]; ok {
				t.Fatalf("%s: paused response carries %q: %v", line, k, m)
			}
		}
	}
	if r.sim.Count() != before {
		t.Fatalf("paused bulk_rw touched the bus")
	}
}

func TestBulkReadWrite(t *testing.T) {
	r := newRig(t, false)
	r.d.Boot()
	m := r.do(t, `{"action":"bulk_rw","reads":[45,44],"writes":[{"reg":53,"value":7}]}`)
	wantStatus(t, m, "OK", "")
	vals := m["values"].([]any)
	if len(vals) != 2 || vals[0] != float64(120) || vals[1] != float64(9) {
		t.Fatalf("values: %v", vals)
	}
	if m["op_count"] != float64(3) || m["write_status"] != float64(0) {
		t.Fatalf("bulk accounting: %v", m)
	}
	if _, ok := m["timing_us"]; !ok {
		t.Fatalf("timing_us missing")
	}
	if r.sim.Reg(0x25, 53) != 7 {
		t.Fatalf("write not applied")
	}
}

func TestBulkReadFailure(t *testing.T) {
	r := newRig(t, false)
	r.d.Boot()
	r.sim.Detach(0x25)
	m := r.do(t, `{"action":"bulk_rw","reads":[45,44],"writes":[{"reg":53,"value":7}]}`)
	wantStatus(t, m, "ERROR", "I2C NACK")
	if _, ok := m["values"]; ok {
		t.Fatalf("values present after read failure: %v", m)
	}
	if _, ok := m["write_status"]; ok {
		t.Fatalf("writes attempted after read failure: %v", m)
	}
	if m["op_count"] != float64(1) {
		t.Fatalf("op_count %v", m["op_count"])
	}
}

func TestBulkWithoutSelection(t *testing.T) {
	r := newRig(t, false)
	before := r.sim.Count()
	wantStatus(t, r.do(t, `{"action":"bulk_rw","reads":[1]}`), "ERROR", "No device selected")
	if r.sim.Count() != before {
		t.Fatalf("bus touched without a selection")
	}
}

func TestBulkTruncates(t *testing.T) {
	r := newRig(t, false)
	r.d.Boot()
	regs := make([]string, bulk.MaxReads+5)
	for i := range regs {
		regs[i] = "45"
	}
	m := r.do(t, `{"action":"bulk_rw","reads":[`+strings.Join(regs, ",")+`]}`)
	wantStatus(t, m, "OK", "")
	if len(m["values"].([]any)) != bulk.MaxReads || m["truncated"] != true {
		t.Fatalf("truncation: %v", m)
	}
}

func TestBulkBadParams(t *testing.T) {
	r := newRig(t, false)
	r.d.Boot()
	for _, line := range []string{
		`{"action":"bulk_rw","reads":[300]}`,
		`{"action":"bulk_rw","reads":"45"}`,
		`{"action":"bulk_rw","writes":[{"reg":1}]}`,
	} {
		wantStatus(t, r.do(t, line), "ERROR", "Invalid parameters")
	}
}

func TestPauseResumeAndStatus(t *testing.T) {
	r := newRig(t, true)
	m := r.do(t, `{"action":"get_status"}`)
	if m["is_paused"] != true || m["current_device"] != nil {
		t.Fatalf("boot status: %v", m)
	}
	r.d.Boot()
	wantStatus(t, r.do(t, `{"action":"resume"}`), "OK", "")
	m = r.do(t, `{"action":"get_status"}`)
	if m["is_paused"] != false || m["current_device"] != float64(0x25) || m["device_name"] != "uP9512" {
		t.Fatalf("status after resume: %v", m)
	}
	for _, k := range []string{"reads_per_second", "writes_per_second", "total_ops", "avg_time_us", "uptime"} {
		if _, ok := m[k]; !ok {
			t.Fatalf("get_status missing %q", k)
		}
	}
	wantStatus(t, r.do(t, `{"action":"pause"}`), "OK", "")
	if !r.d.Paused() {
		t.Fatalf("pause not applied")
	}
}

func TestDisplayStatusModes(t *testing.T) {
	r := newRig(t, true)
	now := time.Now()
	if st := r.d.DisplayStatus(now); st.Mode != display.ModeBoot {
		t.Fatalf("want boot, got %v", st.Mode)
	}
	r.d.Boot()
	if st := r.d.DisplayStatus(now); st.Mode != display.ModePaused || st.Devices != 2 {
		t.Fatalf("want paused, got %+v", st)
	}
	r.do(t, `{"action":"resume"}`)
	if st := r.d.DisplayStatus(now); st.Mode != display.ModeActive {
		t.Fatalf("want active, got %v", st.Mode)
	}
	r.sim.Detach(0x25)
	r.sim.Detach(0x3C)
	r.do(t, `{"action":"scan"}`)
	if st := r.d.DisplayStatus(now); st.Mode != display.ModeNoDevice {
		t.Fatalf("want no device, got %v", st.Mode)
	}
}

func TestLineBuffer(t *testing.T) {
	lb := NewLineBuffer(16)
	var lines []string
	var errs []error
	fn := func(line []byte, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		lines = append(lines, string(line))
	}
	lb.Feed([]byte("noise\n{\"a\":1}\r\n  {\"b\""), fn)
	lb.Feed([]byte(":2}\n\n"), fn)
	lb.Feed([]byte(`{"long":"xxxxxxxxxxxxxxxx"}`+"\n"), fn)
	lb.Feed([]byte(`garbage that is far too long for the buffer`+"\n"), fn)

	if len(lines) != 2 || lines[0] != `{"a":1}` || lines[1] != `{"b":2}` {
		t.Fatalf("lines: %q", lines)
	}
	if len(errs) != 1 || errs[0] != errcode.LineTooLong {
		t.Fatalf("errs: %v", errs)
	}
	if lb.Pending() != 0 {
		t.Fatalf("buffer not reset")
	}
}

type countRenderer struct{ n int }

func (c *countRenderer) Render(time.Time, display.Status) { c.n++ }

func TestServiceOverPipe(t *testing.T) {
	r := newRig(t, true)
	r.d.Boot()

	local, remote := net.Pipe()
	t.Cleanup(func() { local.Close(); remote.Close() })

	rend := &countRenderer{}
	svc := NewService(NewStreamLink(local, local), r.d, r.met, rend, Config{Poll: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	rd := bufio.NewReader(remote)
	send := func(s string) map[string]any {
		t.Helper()
		remote.SetDeadline(time.Now().Add(2 * time.Second))
		if _, err := remote.Write([]byte(s)); err != nil {
			t.Fatalf("write: %v", err)
		}
		line, err := rd.ReadBytes('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var m map[string]any
		if err := json.Unmarshal(line, &m); err != nil {
			t.Fatalf("bad response %q", line)
		}
		return m
	}

	wantStatus(t, send("{\"action\":\"resume\"}\n"), "OK", "")
	m := send("junk\r\n{\"action\":\"bulk_rw\",\"reads\":[45]}\n")
	wantStatus(t, m, "OK", "")
	wantStatus(t, send("{\"action\":\n"), "ERROR", "Invalid JSON")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("service did not stop")
	}
	if rend.n == 0 {
		t.Fatalf("renderer never called")
	}
}

func TestServiceStopsAtEndOfInput(t *testing.T) {
	r := newRig(t, true)
	r.d.Boot()

	var out strings.Builder
	link := NewStreamLink(strings.NewReader("{\"action\":\"pause\"}\n"), &out)
	svc := NewService(link, r.d, r.met, nil, Config{Poll: 5 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	start := time.Now()
	err := svc.Run(ctx)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("Run = %v, want EOF", err)
	}
	if d := time.Since(start); d > time.Second {
		t.Fatalf("Run took %v after end of input", d)
	}
	if svc.Handled != 1 || !strings.Contains(out.String(), `"action":"pause"`) {
		t.Fatalf("handled %d, out %q", svc.Handled, out.String())
	}
}

type flakyLink struct {
	fails int
	calls int
}

func (l *flakyLink) Write(p []byte) (int, error) { return len(p), nil }

func (l *flakyLink) RecvSomeContext(ctx context.Context, p []byte) (int, error) {
	l.calls++
	if l.calls <= l.fails {
		return 0, errors.New("uart overrun")
	}
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestServiceRetriesTransientLinkErrors(t *testing.T) {
	r := newRig(t, true)
	link := &flakyLink{fails: 2}
	svc := NewService(link, r.d, r.met, nil, Config{Poll: time.Millisecond})
	svc.backoff = func() time.Duration { return 0 }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := svc.Step(ctx); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if link.calls != 3 {
		t.Fatalf("calls = %d", link.calls)
	}
}
