package ec200u

import (
	"fmt"
	"strings"
	"time"

	"github.com/pccr10001/quectrack/pkg/logger"
)

// AccessMode is the QSSLOPEN data access mode. The driver only ever opens
// transparent sessions; buffer mode remains as the receive fallback.
type AccessMode int

const (
	ModeBuffer      AccessMode = 0
	ModeDirectPush  AccessMode = 1
	ModeTransparent AccessMode = 2
)

// SessionState describes one SSL session. At most one session can hold
// transparent mode; the Device tracks that single handle.
type SessionState struct {
	Connected  bool       `json:"connected"`
	ClientID   int        `json:"client_id"`
	Mode       AccessMode `json:"mode"`
	ServerAddr string     `json:"server_addr"`
	ServerPort int        `json:"server_port"`
	LastError  int        `json:"last_error,omitempty"`
}

// ReceiveData is the transient result of one receive call. The buffered-mode
// counters are only populated by Unread.
type ReceiveData struct {
	Available bool
	Data      []byte
	Length    int
}

// SSLBegin activates the PDP context and configures the SSL context:
// protocol version, permissive cipher suite and the negotiation budget.
func (d *Device) SSLBegin(contextID, sslContextID, sslVersion int) error {
	// Network activation can take a while on a cold attach.
	if !d.sendOK(fmt.Sprintf("AT+QIACT=%d", contextID), 30*time.Second) {
		return fmt.Errorf("activate pdp context %d: unexpected response", contextID)
	}
	if !d.sendOK(fmt.Sprintf(`AT+QSSLCFG="sslversion",%d,%d`, sslContextID, sslVersion), 0) {
		return fmt.Errorf("configure ssl version: unexpected response")
	}
	if !d.sendOK(fmt.Sprintf(`AT+QSSLCFG="ciphersuite",%d,0xFFFF`, sslContextID), 0) {
		return fmt.Errorf("configure cipher suite: unexpected response")
	}
	negotiate := int(d.cfg.NegotiateTime / time.Second)
	if !d.sendOK(fmt.Sprintf(`AT+QSSLCFG="negotiatetime",%d,%d`, sslContextID, negotiate), 0) {
		return fmt.Errorf("configure negotiate time: unexpected response")
	}
	return nil
}

// SSLConfigure adjusts the negotiation time and optionally the cipher suite
// of an already-prepared SSL context.
func (d *Device) SSLConfigure(sslContextID int, cipherSuite string, negotiateTime int) error {
	if !d.sendOK(fmt.Sprintf(`AT+QSSLCFG="negotiatetime",%d,%d`, sslContextID, negotiateTime), 0) {
		return fmt.Errorf("configure negotiate time: unexpected response")
	}
	if cipherSuite != "" {
		if !d.sendOK(fmt.Sprintf(`AT+QSSLCFG="ciphersuite",%d,%s`, sslContextID, cipherSuite), 0) {
			return fmt.Errorf("configure cipher suite: unexpected response")
		}
	}
	return nil
}

// Connect opens an SSL session in transparent mode. Unlike an ordinary
// transaction, the incoming stream is inspected incrementally for one of
// three outcomes: CONNECT (success), ERROR, or a +QSSLOPEN report carrying a
// coded SSL error. The deadline is the configured negotiation budget plus the
// firmware's fixed connection-attempt ceiling. While a transparent session is
// active no second Connect is allowed; exit or disconnect first.
func (d *Device) Connect(serverAddr string, port, contextID, sslContextID, clientID int) (SessionState, error) {
	state := SessionState{
		ClientID:   clientID,
		Mode:       ModeTransparent,
		ServerAddr: serverAddr,
		ServerPort: port,
	}

	if d.transparent {
		return state, ErrTransparentActive
	}

	d.DrainInput()
	cmd := fmt.Sprintf(`AT+QSSLOPEN=%d,%d,%d,"%s",%d,%d`,
		contextID, sslContextID, clientID, serverAddr, port, ModeTransparent)
	logger.Log.Debugf("[%s] TX: %s", d.cfg.Name, cmd)
	if _, err := d.tr.Write([]byte(cmd + "\r\n")); err != nil {
		return state, fmt.Errorf("write connect command: %w", err)
	}

	deadline := time.Now().Add(d.cfg.NegotiateTime + d.cfg.ConnectCeiling)
	var buf []byte

	for time.Now().Before(deadline) {
		for d.tr.Available() > 0 {
			b, ok := d.tr.ReadByte()
			if !ok {
				break
			}
			buf = append(buf, b)
			s := string(buf)

			if strings.Contains(s, "CONNECT") {
				logger.Log.Debugf("[%s] RX: CONNECT", d.cfg.Name)
				state.Connected = true
				d.transparent = true
				d.currentClient = clientID
				return state, nil
			}
			if i := strings.Index(s, "+QSSLOPEN:"); i >= 0 {
				line := s[i:]
				if j := strings.Index(line, ","); j >= 0 && strings.ContainsAny(line[j:], "\r\n") {
					state.LastError = codeAfter(line, ",")
					logger.Log.Warnf("[%s] ssl open error %d: %s",
						d.cfg.Name, state.LastError, DescribeError(state.LastError))
					return state, fmt.Errorf("%w: %s", ErrConnectFailed, DescribeError(state.LastError))
				}
				continue
			}
			if strings.Contains(s, "ERROR") {
				logger.Log.Debugf("[%s] RX: %s", d.cfg.Name, strings.TrimSpace(s))
				return state, ErrConnectFailed
			}
		}
		time.Sleep(pollInterval)
	}

	return state, ErrConnectTimeout
}

// SendString writes payload text straight to the peer. Only valid while the
// transparent session is up.
func (d *Device) SendString(data string) error {
	return d.SendBytes([]byte(data))
}

// SendBytes writes raw payload bytes straight to the peer.
func (d *Device) SendBytes(data []byte) error {
	if !d.transparent {
		return ErrNotTransparent
	}
	if _, err := d.tr.Write(data); err != nil {
		return fmt.Errorf("transparent write: %w", err)
	}
	return nil
}

// Receive reads up to maxLength payload bytes. In transparent mode bytes are
// drained directly from the transport; a NO CARRIER tail means the peer
// dropped the session, which clears the transparent state and reports
// ErrConnectionClosed. Otherwise the buffered AT+QSSLRECV fallback is used,
// with the declared length clamped to the bytes actually present.
func (d *Device) Receive(maxLength int) (ReceiveData, error) {
	var rd ReceiveData

	if d.transparent {
		for d.tr.Available() > 0 && rd.Length < maxLength {
			b, ok := d.tr.ReadByte()
			if !ok {
				break
			}
			rd.Data = append(rd.Data, b)
			rd.Length++

			if strings.HasSuffix(string(rd.Data), "NO CARRIER") {
				d.transparent = false
				d.currentClient = -1
				logger.Log.Warnf("[%s] transparent session dropped by peer", d.cfg.Name)
				return rd, ErrConnectionClosed
			}
		}
		rd.Available = rd.Length > 0
		return rd, nil
	}

	res, raw := d.send(fmt.Sprintf("AT+QSSLRECV=%d,%d", d.currentClient, maxLength), 0)
	if res.Outcome != ResultOK {
		return rd, outcomeError(res)
	}

	i := strings.Index(raw, "+QSSLRECV: ")
	if i < 0 {
		return rd, nil
	}
	rest := raw[i+len("+QSSLRECV: "):]
	j := strings.Index(rest, "\r\n")
	if j < 0 {
		return rd, nil
	}
	declared := toInt(rest[:j])
	if declared <= 0 {
		return rd, nil
	}
	payload := rest[j+2:]
	// The declared length is not defended by the firmware; clamp it.
	if declared > len(payload) {
		declared = len(payload)
	}
	rd.Data = []byte(payload[:declared])
	rd.Length = declared
	rd.Available = true
	return rd, nil
}

// Unread reports how many payload bytes are waiting: the transport buffer in
// transparent mode, or the firmware's unread counter via a zero-length
// QSSLRECV query in buffered mode.
func (d *Device) Unread(clientID int) (int, error) {
	if d.transparent {
		return d.tr.Available(), nil
	}

	res, raw := d.send(fmt.Sprintf("AT+QSSLRECV=%d,0", clientID), 0)
	if res.Outcome != ResultOK {
		return 0, outcomeError(res)
	}

	// +QSSLRECV: <total>,<read>,<unread>
	val := valueAfter(raw, "+QSSLRECV: ")
	parts := strings.Split(val, ",")
	if len(parts) < 3 {
		return 0, fmt.Errorf("malformed +QSSLRECV status: %q", val)
	}
	return toInt(parts[2]), nil
}

// ExitTransparent drops back to command mode: a quiet period, the +++ escape
// token, another quiet period, then an ordinary OK within a short timeout.
func (d *Device) ExitTransparent() error {
	if !d.transparent {
		return nil
	}

	time.Sleep(d.cfg.QuietPeriod)
	if _, err := d.tr.Write([]byte("+++")); err != nil {
		return fmt.Errorf("write escape sequence: %w", err)
	}
	time.Sleep(d.cfg.QuietPeriod)

	raw := d.readResponse(2 * time.Second)
	if !strings.Contains(raw, "OK") {
		return ErrExitTransparent
	}
	d.transparent = false
	return nil
}

// Disconnect closes an SSL session. When the handle being closed owns the
// transparent session, command mode is restored first; failure to escape is
// logged but the close is still attempted.
func (d *Device) Disconnect(clientID int) error {
	if d.transparent && clientID == d.currentClient {
		if err := d.ExitTransparent(); err != nil {
			logger.Log.Warnf("[%s] exit transparent before close: %v", d.cfg.Name, err)
		}
	}

	if !d.sendOK(fmt.Sprintf("AT+QSSLCLOSE=%d", clientID), 10*time.Second) {
		return fmt.Errorf("close ssl session %d: unexpected response", clientID)
	}
	if clientID == d.currentClient {
		d.currentClient = -1
	}
	return nil
}

// LastSSLError queries the most recent transport-layer error code.
func (d *Device) LastSSLError() int {
	res, raw := d.send("AT+QIGETERROR", 0)
	if res.Outcome != ResultOK {
		return 0
	}
	val := valueAfter(raw, "+QIGETERROR: ")
	if val == "" {
		return 0
	}
	if i := strings.Index(val, ","); i >= 0 {
		val = val[:i]
	}
	return toInt(val)
}

// Transparent reports whether the device currently holds a transparent
// session, and for which client handle.
func (d *Device) Transparent() (bool, int) {
	return d.transparent, d.currentClient
}
