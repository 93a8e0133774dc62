package ec200u

import (
	"sync"
	"time"

	"github.com/pccr10001/quectrack/pkg/logger"
	"go.bug.st/serial"
)

// Transport is the byte-level channel to the modem. None of its methods may
// block: Available reports buffered input and ReadByte pops a single byte,
// returning false when nothing is buffered. The driver owns all pacing via
// its own poll loops.
type Transport interface {
	Write(p []byte) (int, error)
	Available() int
	ReadByte() (byte, bool)
	Close() error
}

// SerialTransport adapts a serial port to the Transport contract. A pump
// goroutine reads the port with a short timeout and appends into an internal
// buffer so Available/ReadByte never block the caller.
type SerialTransport struct {
	portName string
	port     serial.Port

	mu  sync.Mutex
	buf []byte

	stop     chan struct{}
	stopOnce sync.Once
}

func OpenSerial(portName string, baudRate int) (*SerialTransport, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, err
	}

	// Short read timeout so the pump wakes up and can notice Close.
	port.SetReadTimeout(100 * time.Millisecond)

	t := &SerialTransport{
		portName: portName,
		port:     port,
		stop:     make(chan struct{}),
	}
	go t.pump()
	return t, nil
}

func (t *SerialTransport) pump() {
	chunk := make([]byte, 256)
	for {
		select {
		case <-t.stop:
			return
		default:
		}

		n, err := t.port.Read(chunk)
		if n > 0 {
			t.mu.Lock()
			t.buf = append(t.buf, chunk[:n]...)
			t.mu.Unlock()
		}
		if err != nil {
			select {
			case <-t.stop:
			default:
				logger.Log.Errorf("[%s] serial read error: %v", t.portName, err)
			}
			return
		}
	}
}

func (t *SerialTransport) Write(p []byte) (int, error) {
	return t.port.Write(p)
}

func (t *SerialTransport) Available() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buf)
}

func (t *SerialTransport) ReadByte() (byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.buf) == 0 {
		return 0, false
	}
	b := t.buf[0]
	t.buf = t.buf[1:]
	return b, true
}

func (t *SerialTransport) Close() error {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
	return t.port.Close()
}
