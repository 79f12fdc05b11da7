package serial

import (
	"context"
	"net"
	"sync"

	"vcore-bridge/platform"
	"vcore-bridge/services/bridge"
	"vcore-bridge/services/config"
)

// SimPort runs the bridge firmware stack in-process on a simulated bus and
// talks to it over a pipe.
type SimPort struct {
	net.Conn
	stack  *platform.Stack
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// OpenSim starts a simulator seeded with seed.
func OpenSim(seed uint64) (*SimPort, error) {
	cfg, err := config.Load("sim")
	if err != nil {
		return nil, err
	}
	host, dev := net.Pipe()
	st := platform.Wire(cfg, &platform.Board{
		I2C:  platform.NewSimBus(seed),
		Link: bridge.NewStreamLink(dev, dev),
	})

	ctx, cancel := context.WithCancel(context.Background())
	p := &SimPort{Conn: host, stack: st, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		_ = st.Run(ctx)
		dev.Close()
	}()
	return p, nil
}

func (p *SimPort) Flush() error { return nil }

// Close stops the simulator and closes both pipe ends.
func (p *SimPort) Close() error {
	var err error
	p.once.Do(func() {
		p.cancel()
		err = p.Conn.Close()
		<-p.done
		p.stack.Close()
	})
	return err
}
