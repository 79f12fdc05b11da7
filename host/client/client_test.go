package client

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vcore-bridge/host/serial"
	"vcore-bridge/host/session"
)

// scripted answers each command line with whatever reply returns.
func scripted(t *testing.T, reply func(cmd map[string]any) []string) net.Conn {
	t.Helper()
	host, dev := net.Pipe()
	t.Cleanup(func() { host.Close(); dev.Close() })
	go func() {
		sc := bufio.NewScanner(dev)
		for sc.Scan() {
			var cmd map[string]any
			if json.Unmarshal(sc.Bytes(), &cmd) != nil {
				continue
			}
			for _, line := range reply(cmd) {
				if _, err := dev.Write([]byte(line + "\n")); err != nil {
					return
				}
			}
		}
	}()
	return host
}

func newClient(t *testing.T, rw net.Conn, opts Options) *Client {
	t.Helper()
	c := New(rw, opts)
	c.sleep = func(time.Duration) {}
	t.Cleanup(c.Close)
	return c
}

func TestUnrelatedResponsesAreStashed(t *testing.T) {
	conn := scripted(t, func(cmd map[string]any) []string {
		if cmd["action"] == "get_status" {
			return []string{
				`{"action":"pause","status":"OK"}`,
				`{"action":"get_status","status":"OK","is_paused":true,"uptime":3}`,
			}
		}
		return nil
	})
	c := newClient(t, conn, Options{Timeout: time.Second})

	st, err := c.Status()
	require.NoError(t, err)
	assert.True(t, st.IsPaused)
	assert.Equal(t, 3, st.Uptime)

	r, err := c.Wait("pause", 10*time.Millisecond)
	require.NoError(t, err, "stashed response must be handed to a later wait")
	assert.Equal(t, StatusOK, r.Status)
}

func TestGetDevicesRetries(t *testing.T) {
	calls := 0
	conn := scripted(t, func(cmd map[string]any) []string {
		if cmd["action"] != "get_devices" {
			return nil
		}
		calls++
		if calls < 3 {
			return nil // lost
		}
		return []string{`{"action":"get_devices","status":"OK","devices":[37,60],"names":["uP9512","SSD1306"]}`}
	})
	log := session.Nop()
	c := newClient(t, conn, Options{Timeout: 20 * time.Millisecond, DetectRetries: 5, Log: log})

	devs, err := c.GetDevices()
	require.NoError(t, err)
	assert.Equal(t, []Device{{0x25, "uP9512"}, {0x3C, "SSD1306"}}, devs)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, log.Summary().Errors, "two timeouts logged")
}

func TestGetDevicesGivesUp(t *testing.T) {
	conn := scripted(t, func(map[string]any) []string { return nil })
	c := newClient(t, conn, Options{Timeout: 5 * time.Millisecond, DetectRetries: 2})
	_, err := c.GetDevices()
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestRemoteErrorAndPaused(t *testing.T) {
	conn := scripted(t, func(cmd map[string]any) []string {
		switch cmd["action"] {
		case "select":
			return []string{`{"action":"select","status":"ERROR","error":"Device not found"}`}
		case "bulk_rw":
			return []string{`{"action":"bulk_rw","status":"PAUSED"}`}
		case "resume":
			return []string{`{"action":"resume","status":"OK"}`}
		}
		return nil
	})
	c := newClient(t, conn, Options{Timeout: time.Second})

	_, err := c.Select(0x10)
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "Device not found", re.Msg)
	assert.False(t, c.Paused(), "select resumes first")

	_, err = c.ReadRegister(0x2D)
	assert.ErrorIs(t, err, ErrPaused)
}

func TestAgainstSimulator(t *testing.T) {
	port, err := serial.OpenSim(42)
	require.NoError(t, err)
	t.Cleanup(func() { port.Close() })

	c := newClient(t, port, Options{Timeout: 2 * time.Second})

	devs, err := c.GetDevices()
	require.NoError(t, err)
	require.Len(t, devs, 2)
	assert.Equal(t, "uP9512", devs[0].Name)

	// Session starts paused.
	_, err = c.ReadRegister(0x25)
	assert.ErrorIs(t, err, ErrPaused)

	d, err := c.Select(0x25)
	require.NoError(t, err)
	assert.Equal(t, "uP9512", d.Name)

	v, err := c.ReadRegister(0x25)
	require.NoError(t, err)
	assert.Equal(t, byte(0xFE), v)

	require.NoError(t, c.WriteRegister(0x23, 0x02))
	v, err = c.ReadRegister(0x23)
	require.NoError(t, err)
	assert.Equal(t, byte(0x02), v)

	st, err := c.Status()
	require.NoError(t, err)
	assert.False(t, st.IsPaused)
	assert.Equal(t, "uP9512", st.DeviceName)
	assert.GreaterOrEqual(t, st.TotalOps, 3)

	sw, err := c.Switch()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x3C), sw.Addr)
}
