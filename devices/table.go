package devices

// Name reported when neither table identifies a device.
const Unknown = "Unknown"

// AddressEntry names a device purely by its 7-bit address.
type AddressEntry struct {
	Addr uint8
	Name string
}

// Signature identifies a device type by register contents: every register in
// Regs must read back the value at the same index in Expect.
type Signature struct {
	Name   string
	Regs   []byte
	Expect []byte
}

// Addresses is consulted first. Entries here are never probed further, which
// keeps identification reads away from parts (like the OLED) that do not
// have a readable register map.
var Addresses = []AddressEntry{
	{Addr: 0x3C, Name: "SSD1306"},
	{Addr: 0x3D, Name: "SSD1306"},
	{Addr: 0x68, Name: "LTC4015"},
}

// Signatures are tried in order; the first full match wins.
var Signatures = []Signature{
	// MISC1 (protection enables) and VR_SHDN power-on defaults.
	{Name: "uP9512", Regs: []byte{0x3C, 0x25}, Expect: []byte{0x0F, 0xFE}},
	// PMBUS_REVISION, VOUT_MODE (VR12 VID mode).
	{Name: "NCP4206", Regs: []byte{0x98, 0x20}, Expect: []byte{0x22, 0x21}},
	// PMBUS_REVISION, VOUT_MODE (linear, exponent -7).
	{Name: "IR35201", Regs: []byte{0x98, 0x20}, Expect: []byte{0x22, 0x19}},
}

// ByAddress looks addr up in the address table.
func ByAddress(addr uint8) (string, bool) {
	for _, e := range Addresses {
		if e.Addr == addr {
			return e.Name, true
		}
	}
	return "", false
}
