package serial

import (
	"bufio"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ttyReader behaves like a tty opened with VMIN=0/VTIME>0: an idle read
// waits briefly and then returns (0, io.EOF).
type ttyReader struct {
	mu    sync.Mutex
	data  []byte
	idles int
}

func (r *ttyReader) push(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = append(r.data, s...)
}

func (r *ttyReader) Read(b []byte) (int, error) {
	r.mu.Lock()
	if len(r.data) > 0 {
		n := copy(b, r.data)
		r.data = r.data[n:]
		r.mu.Unlock()
		return n, nil
	}
	r.idles++
	idle := r.idles
	r.mu.Unlock()
	time.Sleep(time.Millisecond)
	if idle%2 == 0 {
		return 0, nil
	}
	return 0, io.EOF
}

func (r *ttyReader) idleCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.idles
}

func TestNativeReadSurvivesIdleTimeouts(t *testing.T) {
	tty := &ttyReader{}
	p := &NativePort{rd: tty}

	lines := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(p)
		for sc.Scan() {
			lines <- sc.Text()
		}
		done <- sc.Err()
	}()

	require.Eventually(t, func() bool { return tty.idleCount() > 150 }, 2*time.Second, time.Millisecond)
	tty.push("{\"action\":\"get_status\",\"status\":\"OK\"}\n")

	select {
	case l := <-lines:
		assert.Equal(t, `{"action":"get_status","status":"OK"}`, l)
	case err := <-done:
		t.Fatalf("scanner stopped while idle: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("line never delivered")
	}

	require.NoError(t, p.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scanner did not stop after Close")
	}
}

func TestNativeReadPassesData(t *testing.T) {
	tty := &ttyReader{}
	tty.push("ab")
	p := &NativePort{rd: tty}

	buf := make([]byte, 8)
	n, err := p.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ab", string(buf[:n]))

	n, err = p.Read(nil)
	assert.Zero(t, n)
	assert.NoError(t, err)
}
