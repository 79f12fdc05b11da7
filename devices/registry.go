// Package devices discovers and identifies targets on the I2C bus and keeps
// track of the one currently selected for bulk transactions.
package devices

import (
	"vcore-bridge/errcode"
)

// Probe range for 7-bit addresses; 0 and 127 are reserved.
const (
	MinAddr = 1
	MaxAddr = 126
)

// Bus is the part of the transport the registry needs.
type Bus interface {
	Probe(addr uint16) error
	ReadRegister(addr uint16, reg byte) (byte, error)
}

// Device is one acknowledged address from the most recent scan.
type Device struct {
	Addr    uint8  `json:"addr"`
	Name    string `json:"name"`
	Present bool   `json:"present"`
}

// Registry holds the last scan result and the selected device.
// It is not safe for concurrent use; the bridge loop owns it.
type Registry struct {
	bus     Bus
	devs    []Device
	sel     int // -1 => none
	scanned bool
}

func NewRegistry(bus Bus) *Registry {
	return &Registry{bus: bus, sel: -1}
}

// Scan probes every address in ascending order and replaces the device set.
// The selection follows its address when still present; otherwise the index
// is clamped to the new set.
func (r *Registry) Scan() []Device {
	found := make([]Device, 0, 4)
	for a := MinAddr; a <= MaxAddr; a++ {
		if err := r.bus.Probe(uint16(a)); err != nil {
			continue
		}
		found = append(found, Device{Addr: uint8(a), Name: r.Identify(uint8(a)), Present: true})
	}

	prev, hadSel := r.Selected()
	r.devs = found
	r.scanned = true

	switch {
	case len(found) == 0:
		r.sel = -1
	case hadSel:
		r.sel = min(r.sel, len(found)-1)
		for i, d := range found {
			if d.Addr == prev.Addr {
				r.sel = i
				break
			}
		}
	}
	return r.Devices()
}

// Identify names the device at addr: address table first, then signatures.
// A failed identification read counts as a non-match for that signature.
func (r *Registry) Identify(addr uint8) string {
	if name, ok := ByAddress(addr); ok {
		return name
	}
	for _, sig := range Signatures {
		if r.matches(addr, sig) {
			return sig.Name
		}
	}
	return Unknown
}

func (r *Registry) matches(addr uint8, sig Signature) bool {
	if len(sig.Regs) == 0 || len(sig.Regs) != len(sig.Expect) {
		return false
	}
	for i, reg := range sig.Regs {
		v, err := r.bus.ReadRegister(uint16(addr), reg)
		if err != nil || v != sig.Expect[i] {
			return false
		}
	}
	return true
}

// Select makes addr the active device. The selection is unchanged on error.
func (r *Registry) Select(addr uint8) (Device, error) {
	for i, d := range r.devs {
		if d.Addr == addr {
			r.sel = i
			return d, nil
		}
	}
	return Device{}, errcode.DeviceNotFound
}

// Cycle advances the selection modulo the registry size.
func (r *Registry) Cycle() (Device, error) {
	if len(r.devs) == 0 {
		return Device{}, errcode.NoDevices
	}
	r.sel = (r.sel + 1) % len(r.devs)
	return r.devs[r.sel], nil
}

// SelectFirst selects index 0 if nothing is selected yet.
func (r *Registry) SelectFirst() (Device, bool) {
	if len(r.devs) == 0 {
		return Device{}, false
	}
	if r.sel < 0 {
		r.sel = 0
	}
	return r.devs[r.sel], true
}

// Selected returns the active device, if any.
func (r *Registry) Selected() (Device, bool) {
	if r.sel < 0 || r.sel >= len(r.devs) {
		return Device{}, false
	}
	return r.devs[r.sel], true
}

// Index returns the selected index, -1 when none.
func (r *Registry) Index() int { return r.sel }

// Devices returns a copy of the last scan result.
func (r *Registry) Devices() []Device {
	out := make([]Device, len(r.devs))
	copy(out, r.devs)
	return out
}

// Scanned reports whether at least one scan completed.
func (r *Registry) Scanned() bool { return r.scanned }
