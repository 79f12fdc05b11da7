//go:build !rp2040

package platform

import (
	"os"
	"time"

	"vcore-bridge/services/bridge"
	"vcore-bridge/services/config"
	"vcore-bridge/services/display"
)

// Setup builds a host board: simulated bus, stdio as link and the console
// (stderr) as display.
func Setup(cfg config.Board) (*Board, error) {
	return &Board{
		I2C:          NewSimBus(uint64(time.Now().UnixNano())),
		Link:         bridge.NewStreamLink(os.Stdin, os.Stdout),
		FallbackSink: display.LogSink{},
	}, nil
}
