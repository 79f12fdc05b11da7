package bridge

import (
	"bytes"
	"encoding/json"

	"vcore-bridge/bulk"
	"vcore-bridge/devices"
	"vcore-bridge/errcode"
	"vcore-bridge/x/mathx"
)

// Action is a recognised protocol verb.
type Action uint8

const (
	ActUnknown Action = iota
	ActScan
	ActGetDevices
	ActSelect
	ActBulkRW
	ActPause
	ActResume
	ActSwitch
	ActGetStatus
)

var actionNames = [...]string{
	ActUnknown:    "",
	ActScan:       "scan",
	ActGetDevices: "get_devices",
	ActSelect:     "select",
	ActBulkRW:     "bulk_rw",
	ActPause:      "pause",
	ActResume:     "resume",
	ActSwitch:     "switch",
	ActGetStatus:  "get_status",
}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return ""
}

// ParseAction maps a wire name to an Action; unrecognised names give ActUnknown.
func ParseAction(s string) Action {
	for i := 1; i < len(actionNames); i++ {
		if actionNames[i] == s {
			return Action(i)
		}
	}
	return ActUnknown
}

// Command is one decoded request line.
type Command struct {
	Action Action
	// Name is the action string as sent (echoed back even when unknown).
	Name   string
	fields map[string]json.RawMessage
}

// ParseCommand decodes line. Syntax errors and non-object values give
// InvalidJSON; a missing or non-string action gives UnknownCommand.
func ParseCommand(line []byte) (Command, error) {
	var cmd Command
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return cmd, errcode.InvalidJSON
	}
	if err := json.Unmarshal(line, &cmd.fields); err != nil {
		return cmd, errcode.InvalidJSON
	}
	raw, ok := cmd.fields["action"]
	if !ok {
		return cmd, errcode.UnknownCommand
	}
	if err := json.Unmarshal(raw, &cmd.Name); err != nil {
		return cmd, errcode.UnknownCommand
	}
	cmd.Action = ParseAction(cmd.Name)
	if cmd.Action == ActUnknown {
		return cmd, errcode.UnknownCommand
	}
	return cmd, nil
}

func (c Command) has(key string) bool {
	raw, ok := c.fields[key]
	return ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Addr decodes the "addr" field as a 7-bit address.
func (c Command) Addr() (uint8, error) {
	if !c.has("addr") {
		return 0, errcode.InvalidParams
	}
	var n int
	if err := json.Unmarshal(c.fields["addr"], &n); err != nil {
		return 0, errcode.InvalidParams
	}
	if !mathx.Between(n, devices.MinAddr, devices.MaxAddr) {
		return 0, errcode.InvalidParams
	}
	return uint8(n), nil
}

type wireWrite struct {
	Reg   *int `json:"reg"`
	Value *int `json:"value"`
}

// BulkRequest decodes "reads" and "writes". Either may be absent.
func (c Command) BulkRequest() (bulk.Request, error) {
	var req bulk.Request
	if c.has("reads") {
		var regs []int
		if err := json.Unmarshal(c.fields["reads"], &regs); err != nil {
			return req, errcode.InvalidParams
		}
		req.Reads = make([]byte, len(regs))
		for i, r := range regs {
			if !isByte(r) {
				return req, errcode.InvalidParams
			}
			req.Reads[i] = byte(r)
		}
	}
	if c.has("writes") {
		var ws []wireWrite
		if err := json.Unmarshal(c.fields["writes"], &ws); err != nil {
			return req, errcode.InvalidParams
		}
		req.Writes = make([]bulk.Write, len(ws))
		for i, w := range ws {
			if w.Reg == nil || w.Value == nil || !isByte(*w.Reg) || !isByte(*w.Value) {
				return req, errcode.InvalidParams
			}
			req.Writes[i] = bulk.Write{Reg: byte(*w.Reg), Value: byte(*w.Value)}
		}
	}
	return req, nil
}

func isByte(n int) bool { return n >= 0 && n <= 0xFF }
