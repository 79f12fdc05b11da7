package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vcore-bridge/host/client"
	"vcore-bridge/host/serial"
)

func newSimShell(t *testing.T) (*shell, *bytes.Buffer) {
	t.Helper()
	port, err := serial.OpenSim(7)
	require.NoError(t, err)
	t.Cleanup(func() { port.Close() })

	c := client.New(port, client.Options{Timeout: time.Second})
	t.Cleanup(c.Close)

	var out bytes.Buffer
	sh := newShell(c, &out, 0)
	sh.sleep = func(time.Duration) {}
	return sh, &out
}

func TestInitSelectsFirstDevice(t *testing.T) {
	sh, out := newSimShell(t)
	require.NoError(t, sh.init(2, 0, func(time.Duration) {}))

	require.NotNil(t, sh.selected)
	assert.Equal(t, uint8(0x25), sh.selected.Addr)
	assert.Equal(t, "uP9512", sh.selected.Name)
	assert.NotNil(t, sh.chip)
	assert.Contains(t, out.String(), "Selected 0x25 uP9512")
}

func TestShellSession(t *testing.T) {
	sh, out := newSimShell(t)
	require.NoError(t, sh.init(1, 0, func(time.Duration) {}))
	out.Reset()

	script := strings.Join([]string{
		"devices",
		"read 0x25 0x3C",
		"write 0x23 3",
		"read 0x23",
		"measure",
		"monitor 2",
		"select 1",
		"bogus",
		"quit",
		"read 0x25", // never reached
	}, "\n")
	require.NoError(t, sh.run(strings.NewReader(script), false))

	got := out.String()
	assert.Contains(t, got, "[0] 0x25 uP9512")
	assert.Contains(t, got, "[1] 0x3C SSD1306")
	assert.Contains(t, got, "0x25 = 0xFE")
	assert.Contains(t, got, "0x3C = 0x0F")
	assert.Contains(t, got, "0x23 <- 0x03")
	assert.Contains(t, got, "0x23 = 0x03")
	assert.Equal(t, 3, strings.Count(got, `"voltage"`), "measure plus two monitor samples")
	assert.Contains(t, got, "Selected 0x3C SSD1306")
	assert.Contains(t, got, "Error: unknown command: bogus")
	assert.True(t, strings.HasSuffix(got, "Goodbye!\n"))
}

func TestMeasureNeedsSupportedDevice(t *testing.T) {
	sh, _ := newSimShell(t)
	assert.ErrorIs(t, sh.exec("measure"), client.ErrNoDevice)

	require.NoError(t, sh.init(1, 0, func(time.Duration) {}))
	require.NoError(t, sh.exec("switch"))
	assert.Error(t, sh.exec("measure"), "SSD1306 has no decoder")
}

func TestParseArgs(t *testing.T) {
	v, err := parseByte("0x3c")
	require.NoError(t, err)
	assert.Equal(t, byte(0x3C), v)

	v, err = parseByte("17")
	require.NoError(t, err)
	assert.Equal(t, byte(17), v)

	_, err = parseByte("0x100")
	assert.Error(t, err)

	sh := &shell{devices: []client.Device{{Addr: 0x25, Name: "uP9512"}}}
	d, err := sh.lookup("up9512")
	require.NoError(t, err)
	assert.Equal(t, uint8(0x25), d.Addr)

	d, err = sh.lookup("0")
	require.NoError(t, err)
	assert.Equal(t, uint8(0x25), d.Addr)

	d, err = sh.lookup("0x68")
	require.NoError(t, err)
	assert.Equal(t, uint8(0x68), d.Addr)

	_, err = sh.lookup("nope")
	assert.Error(t, err)
}

func TestQuotedArgsAreSplit(t *testing.T) {
	sh := &shell{out: &bytes.Buffer{}}
	err := sh.exec(`select "two words"`)
	assert.EqualError(t, err, `unknown device "two words"`)
}
