package ec200u

import (
	"sync"
	"time"
)

// scriptTransport is an in-memory Transport for tests. Each Write releases
// the next queued reply into the read buffer, simulating the modem answering
// a command; feed injects bytes directly, simulating unsolicited or
// transparent-mode traffic.
type scriptTransport struct {
	mu      sync.Mutex
	buf     []byte
	writes  []string
	replies []string
}

func newScriptTransport(replies ...string) *scriptTransport {
	return &scriptTransport{replies: replies}
}

func (t *scriptTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes = append(t.writes, string(p))
	if len(t.replies) > 0 {
		t.buf = append(t.buf, t.replies[0]...)
		t.replies = t.replies[1:]
	}
	return len(p), nil
}

func (t *scriptTransport) Available() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buf)
}

func (t *scriptTransport) ReadByte() (byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.buf) == 0 {
		return 0, false
	}
	b := t.buf[0]
	t.buf = t.buf[1:]
	return b, true
}

func (t *scriptTransport) Close() error { return nil }

func (t *scriptTransport) feed(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, data...)
}

func (t *scriptTransport) sentCommands() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.writes))
	copy(out, t.writes)
	return out
}

// testConfig keeps every delay short enough for unit tests.
func testConfig() Config {
	return Config{
		Name:            "test",
		CommandTimeout:  200 * time.Millisecond,
		NegotiateTime:   50 * time.Millisecond,
		ConnectCeiling:  50 * time.Millisecond,
		GNSSSettleDelay: time.Millisecond,
		QuietPeriod:     time.Millisecond,
	}
}
