package bridge

import (
	"encoding/json"
	"time"

	"vcore-bridge/bulk"
	"vcore-bridge/devices"
	"vcore-bridge/errcode"
	"vcore-bridge/metrics"
	"vcore-bridge/services/display"
	"vcore-bridge/x/timex"
)

// Wire status words.
const (
	statusOK     = "OK"
	statusError  = "ERROR"
	statusPaused = "PAUSED"
)

type header struct {
	Action string `json:"action,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type devicesResp struct {
	header
	Devices []int    `json:"devices"`
	Names   []string `json:"names"`
}

type selectResp struct {
	header
	Selected int    `json:"selected"`
	Name     string `json:"name"`
}

type bulkResp struct {
	header
	Values      []int  `json:"values,omitempty"`
	WriteStatus *uint8 `json:"write_status,omitempty"`
	TimingUs    uint32 `json:"timing_us"`
	OpCount     int    `json:"op_count"`
	Truncated   bool   `json:"truncated,omitempty"`
}

type statusResp struct {
	header
	IsPaused        bool   `json:"is_paused"`
	CurrentDevice   *int   `json:"current_device"`
	DeviceName      string `json:"device_name"`
	ReadsPerSecond  uint32 `json:"reads_per_second"`
	WritesPerSecond uint32 `json:"writes_per_second"`
	TotalOps        uint32 `json:"total_ops"`
	AvgTimeUs       uint32 `json:"avg_time_us"`
	Uptime          uint32 `json:"uptime"`
}

// Options tune a Dispatcher.
type Options struct {
	StartPaused bool
}

// Dispatcher owns the session: registry, pause flag, metrics and uptime.
// Handle is its only entry point from the link.
type Dispatcher struct {
	reg    *devices.Registry
	engine *bulk.Engine
	met    *metrics.Tracker

	paused bool
	booted bool
	start  time.Time
	now    func() time.Time
}

func NewDispatcher(reg *devices.Registry, engine *bulk.Engine, met *metrics.Tracker, opts Options) *Dispatcher {
	d := &Dispatcher{
		reg:    reg,
		engine: engine,
		met:    met,
		paused: opts.StartPaused,
		now:    time.Now,
	}
	d.start = d.now()
	return d
}

// Boot runs the initial scan and selects the first device found.
func (d *Dispatcher) Boot() []devices.Device {
	devs := d.reg.Scan()
	if dev, ok := d.reg.SelectFirst(); ok {
		println("[bridge] selected", dev.Name, "at", int(dev.Addr))
	}
	d.booted = true
	println("[bridge] boot scan found", len(devs), "device(s)")
	return devs
}

// Paused reports the session pause flag.
func (d *Dispatcher) Paused() bool { return d.paused }

// Handle processes one request line and returns exactly one response line,
// newline included.
func (d *Dispatcher) Handle(line []byte) (out []byte) {
	defer func() {
		if r := recover(); r != nil {
			println("[bridge] handler panic")
			out = encode(header{Status: statusError, Error: errcode.Message(errcode.Error)})
		}
	}()

	cmd, err := ParseCommand(line)
	if err != nil {
		return d.fail(cmd.Name, err)
	}

	switch cmd.Action {
	case ActScan:
		return encode(d.devicesResponse(cmd.Name, d.reg.Scan()))
	case ActGetDevices:
		if !d.reg.Scanned() {
			d.reg.Scan()
		}
		return encode(d.devicesResponse(cmd.Name, d.reg.Devices()))
	case ActSelect:
		return d.handleSelect(cmd)
	case ActSwitch:
		dev, err := d.reg.Cycle()
		if err != nil {
			return d.fail(cmd.Name, err)
		}
		return encode(selectResp{header: ok(cmd.Name), Selected: int(dev.Addr), Name: dev.Name})
	case ActBulkRW:
		return d.handleBulk(cmd)
	case ActPause:
		d.paused = true
		return encode(ok(cmd.Name))
	case ActResume:
		d.paused = false
		return encode(ok(cmd.Name))
	case ActGetStatus:
		return encode(d.statusResponse(cmd.Name))
	}
	return d.fail(cmd.Name, errcode.UnknownCommand)
}

func (d *Dispatcher) handleSelect(cmd Command) []byte {
	addr, err := cmd.Addr()
	if err != nil {
		return d.fail(cmd.Name, err)
	}
	dev, err := d.reg.Select(addr)
	if err != nil {
		return d.fail(cmd.Name, err)
	}
	return encode(selectResp{header: ok(cmd.Name), Selected: int(dev.Addr), Name: dev.Name})
}

func (d *Dispatcher) handleBulk(cmd Command) []byte {
	// Paused sessions are answered by the engine before parameters or the
	// selection are looked at.
	if d.paused {
		return d.bulkResponse(cmd.Name, d.engine.Run(true, 0, bulk.Request{}))
	}
	req, err := cmd.BulkRequest()
	if err != nil {
		return d.fail(cmd.Name, err)
	}
	dev, sel := d.reg.Selected()
	if !sel {
		return d.fail(cmd.Name, errcode.NoDeviceSelected)
	}
	return d.bulkResponse(cmd.Name, d.engine.Run(false, dev.Addr, req))
}

func (d *Dispatcher) bulkResponse(action string, res bulk.Result) []byte {
	if res.Status == bulk.StatusPaused {
		return encode(header{Action: action, Status: statusPaused})
	}
	resp := bulkResp{
		header:    header{Action: action, Status: res.Status.String()},
		TimingUs:  timex.Micros(res.Elapsed),
		OpCount:   res.OpCount,
		Truncated: res.Truncated,
	}
	if res.Err != nil {
		resp.Error = errcode.Message(errcode.Of(res.Err))
	}
	if res.Values != nil {
		resp.Values = make([]int, len(res.Values))
		for i, v := range res.Values {
			resp.Values[i] = int(v)
		}
	}
	if res.WroteAny {
		ws := errcode.WireStatus(res.WriteStatus)
		resp.WriteStatus = &ws
	}
	return encode(resp)
}

func (d *Dispatcher) devicesResponse(action string, devs []devices.Device) devicesResp {
	r := devicesResp{
		header:  ok(action),
		Devices: make([]int, 0, len(devs)),
		Names:   make([]string, 0, len(devs)),
	}
	for _, dev := range devs {
		r.Devices = append(r.Devices, int(dev.Addr))
		r.Names = append(r.Names, dev.Name)
	}
	return r
}

func (d *Dispatcher) statusResponse(action string) statusResp {
	snap := d.met.Snapshot()
	r := statusResp{
		header:          ok(action),
		IsPaused:        d.paused,
		ReadsPerSecond:  snap.ReadsPerSecond,
		WritesPerSecond: snap.WritesPerSecond,
		TotalOps:        snap.TotalOps,
		AvgTimeUs:       snap.AvgTimeUs,
		Uptime:          timex.Seconds(d.start, d.now()),
	}
	if dev, sel := d.reg.Selected(); sel {
		addr := int(dev.Addr)
		r.CurrentDevice = &addr
		r.DeviceName = dev.Name
	}
	return r
}

// DisplayStatus summarises the session for the status display.
func (d *Dispatcher) DisplayStatus(now time.Time) display.Status {
	dev, sel := d.reg.Selected()
	st := display.Status{
		Device:    dev,
		HasDevice: sel,
		Devices:   len(d.reg.Devices()),
		Paused:    d.paused,
		Metrics:   d.met.Snapshot(),
		Uptime:    timex.Seconds(d.start, now),
	}
	switch {
	case !d.booted && !d.reg.Scanned():
		st.Mode = display.ModeBoot
	case !sel:
		st.Mode = display.ModeNoDevice
	case d.paused:
		st.Mode = display.ModePaused
	default:
		st.Mode = display.ModeActive
	}
	return st
}

// Reject answers a line that never reached parsing (e.g. too long).
func (d *Dispatcher) Reject(err error) []byte { return d.fail("", err) }

func (d *Dispatcher) fail(action string, err error) []byte {
	return encode(header{Action: action, Status: statusError, Error: errcode.Message(errcode.Of(err))})
}

func ok(action string) header { return header{Action: action, Status: statusOK} }

func encode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		println("[bridge] encode failed:", err.Error())
		b = []byte(`{"status":"ERROR","error":"Internal error"}`)
	}
	return append(b, '\n')
}
