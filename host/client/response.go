package client

import "encoding/json"

// Status words sent by the bridge.
const (
	StatusOK     = "OK"
	StatusError  = "ERROR"
	StatusPaused = "PAUSED"
)

// Response is the union of every bridge response shape.
type Response struct {
	Action string `json:"action"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`

	// scan / get_devices
	Devices []int    `json:"devices,omitempty"`
	Names   []string `json:"names,omitempty"`

	// select / switch
	Selected *int   `json:"selected,omitempty"`
	Name     string `json:"name,omitempty"`

	// bulk_rw
	Values      []int `json:"values,omitempty"`
	WriteStatus *int  `json:"write_status,omitempty"`
	TimingUs    int   `json:"timing_us,omitempty"`
	OpCount     int   `json:"op_count,omitempty"`
	Truncated   bool  `json:"truncated,omitempty"`

	// get_status
	IsPaused        bool   `json:"is_paused,omitempty"`
	CurrentDevice   *int   `json:"current_device,omitempty"`
	DeviceName      string `json:"device_name,omitempty"`
	ReadsPerSecond  int    `json:"reads_per_second,omitempty"`
	WritesPerSecond int    `json:"writes_per_second,omitempty"`
	TotalOps        int    `json:"total_ops,omitempty"`
	AvgTimeUs       int    `json:"avg_time_us,omitempty"`
	Uptime          int    `json:"uptime,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// OK reports a successful response.
func (r *Response) OK() bool { return r != nil && r.Status == StatusOK }

// Device is one entry of a device listing.
type Device struct {
	Addr uint8  `json:"addr7"`
	Name string `json:"name"`
}

// Write is one register write of a bulk request.
type Write struct {
	Reg   int `json:"reg"`
	Value int `json:"value"`
}
