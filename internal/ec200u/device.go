package ec200u

import (
	"fmt"
	"strings"
	"time"

	"github.com/pccr10001/quectrack/pkg/logger"
)

// pollInterval paces the accumulator loop so it never busy-spins between
// transport polls.
const pollInterval = 10 * time.Millisecond

type Config struct {
	// Name labels the device in log output, usually the port name.
	Name string
	// CommandTimeout bounds an ordinary command transaction.
	CommandTimeout time.Duration
	// NegotiateTime is the configured SSL negotiation budget; the connect
	// timeout is derived from it.
	NegotiateTime time.Duration
	// ConnectCeiling is the firmware's fixed connection-attempt bound added
	// on top of NegotiateTime.
	ConnectCeiling time.Duration
	// GNSSSettleDelay is how long to wait after re-enabling the GNSS
	// subsystem before requesting a fix again.
	GNSSSettleDelay time.Duration
	// QuietPeriod is the silence required around the transparent-mode escape
	// sequence.
	QuietPeriod time.Duration
}

func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = "ec200u"
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 5 * time.Second
	}
	if c.NegotiateTime <= 0 {
		c.NegotiateTime = 300 * time.Second
	}
	if c.ConnectCeiling <= 0 {
		c.ConnectCeiling = 150 * time.Second
	}
	if c.GNSSSettleDelay <= 0 {
		c.GNSSSettleDelay = 2 * time.Second
	}
	if c.QuietPeriod <= 0 {
		c.QuietPeriod = time.Second
	}
}

// Device drives a Quectel EC200U modem over a Transport. One transaction may
// be outstanding at a time; callers sharing a Device across goroutines must
// serialize access themselves.
type Device struct {
	tr  Transport
	cfg Config

	// transparent session bookkeeping, owned by this instance
	transparent   bool
	currentClient int
}

func New(tr Transport, cfg Config) *Device {
	cfg.setDefaults()
	return &Device{
		tr:            tr,
		cfg:           cfg,
		currentClient: -1,
	}
}

// Begin probes the modem, disables command echo and enables verbose coded
// errors. It must succeed before any other operation is attempted.
func (d *Device) Begin() error {
	d.DrainInput()

	alive := false
	for i := 0; i < 3; i++ {
		if d.sendOK("AT", 0) {
			alive = true
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if !alive {
		return ErrNotResponding
	}

	if !d.sendOK("ATE0", 0) {
		return fmt.Errorf("disable echo: unexpected response")
	}
	if !d.sendOK("AT+CMEE=2", 0) {
		return fmt.Errorf("enable verbose errors: unexpected response")
	}
	return nil
}

// Reset performs a full functional restart (AT+CFUN=1,1). The modem drops off
// the bus for several seconds afterwards; callers should re-run Begin.
func (d *Device) Reset() error {
	if !d.sendOK("AT+CFUN=1,1", 10*time.Second) {
		return fmt.Errorf("reset rejected")
	}
	return nil
}

// SignalQuality returns the +CSQ rssi/ber pair.
func (d *Device) SignalQuality() (rssi, ber int, err error) {
	res, raw := d.send("AT+CSQ", 0)
	if res.Outcome != ResultOK {
		return 0, 0, outcomeError(res)
	}
	val := valueAfter(raw, "+CSQ: ")
	parts := strings.SplitN(val, ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed +CSQ response: %q", val)
	}
	return toInt(parts[0]), toInt(parts[1]), nil
}

// IMEI queries the serial number via AT+GSN.
func (d *Device) IMEI() (string, error) {
	res, raw := d.send("AT+GSN", 0)
	if res.Outcome != ResultOK {
		return "", outcomeError(res)
	}
	for _, line := range strings.Split(raw, "\r\n") {
		line = strings.TrimSpace(line)
		if line != "" && line != "OK" {
			return line, nil
		}
	}
	return "", fmt.Errorf("no IMEI in response")
}

// RegistrationStatus returns the <stat> field of +CREG?.
func (d *Device) RegistrationStatus() (int, error) {
	res, raw := d.send("AT+CREG?", 0)
	if res.Outcome != ResultOK {
		return 0, outcomeError(res)
	}
	val := valueAfter(raw, "+CREG: ")
	parts := strings.Split(val, ",")
	if len(parts) < 2 {
		return 0, fmt.Errorf("malformed +CREG response: %q", val)
	}
	return toInt(parts[1]), nil
}

// Raw sends an arbitrary command line and returns its classified result plus
// the raw response text. Escape hatch for callers needing commands the driver
// does not wrap.
func (d *Device) Raw(cmd string, timeout time.Duration) (Result, string) {
	return d.send(cmd, timeout)
}

// DrainInput discards any unread transport bytes, protecting the next
// transaction from responses left over by an abandoned one.
func (d *Device) DrainInput() {
	for {
		if _, ok := d.tr.ReadByte(); !ok {
			return
		}
	}
}

// send runs one command/response transaction: drain stale input, write the
// command line, accumulate until a terminal marker or the deadline, classify.
func (d *Device) send(cmd string, timeout time.Duration) (Result, string) {
	d.DrainInput()

	logger.Log.Debugf("[%s] TX: %s", d.cfg.Name, cmd)
	if _, err := d.tr.Write([]byte(cmd + "\r\n")); err != nil {
		logger.Log.Errorf("[%s] write failed: %v", d.cfg.Name, err)
		return Result{Outcome: ResultTimeout}, ""
	}

	if timeout <= 0 {
		timeout = d.cfg.CommandTimeout
	}
	raw := d.readResponse(timeout)
	logger.Log.Debugf("[%s] RX: %s", d.cfg.Name, strings.TrimSpace(raw))

	return Classify(raw), raw
}

// sendOK is the convenience boolean form: only a plain OK counts as success.
func (d *Device) sendOK(cmd string, timeout time.Duration) bool {
	res, _ := d.send(cmd, timeout)
	return res.Outcome == ResultOK
}

// readResponse accumulates transport bytes until the buffer is recognizably
// complete or the deadline elapses. The buffer is returned either way; the
// classifier decides what a deadline expiry means.
func (d *Device) readResponse(timeout time.Duration) string {
	deadline := time.Now().Add(timeout)
	var buf []byte

	for time.Now().Before(deadline) {
		for d.tr.Available() > 0 {
			b, ok := d.tr.ReadByte()
			if !ok {
				break
			}
			buf = append(buf, b)
			if responseComplete(string(buf)) {
				return string(buf)
			}
		}
		time.Sleep(pollInterval)
	}
	return string(buf)
}

// outcomeError converts a non-OK result into an error for operations that
// have nothing else to report.
func outcomeError(res Result) error {
	if res.Outcome == ResultCodedError {
		return codedError(res.Code)
	}
	return fmt.Errorf("command failed: %s", res.Outcome)
}
