package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: board name
// Val: raw JSON bytes for that board
// -----------------------------------------------------------------------------

const cfgPico = `{
  "name": "pico",
  "i2c": {"id": "i2c0", "sda": 4, "scl": 5, "hz": 400000, "timeout_ms": 250, "reset_attempts": 3},
  "uart": {"id": "uart0", "baud": 115200, "tx": 0, "rx": 1},
  "display": {"enabled": true, "addr": 60, "width": 128, "height": 32, "refresh_ms": 200},
  "bridge": {"start_paused": true, "line_max": 512, "poll_ms": 20}
}`

// Host simulator: no pins, no panel.
const cfgSim = `{
  "name": "sim",
  "i2c": {"id": "i2c0", "timeout_ms": 250},
  "display": {"enabled": false},
  "bridge": {"start_paused": true}
}`

var embeddedConfigs = map[string][]byte{
	"pico": []byte(cfgPico),
	"sim":  []byte(cfgSim),
}
