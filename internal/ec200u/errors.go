package ec200u

import (
	"errors"
	"fmt"
)

var (
	ErrNotResponding     = errors.New("modem not responding to AT commands")
	ErrNotTransparent    = errors.New("not in transparent mode")
	ErrTransparentActive = errors.New("transparent session already active")
	ErrExitTransparent   = errors.New("failed to exit transparent mode")
	ErrConnectionClosed  = errors.New("connection closed by peer")
	ErrConnectFailed     = errors.New("ssl connect failed")
	ErrConnectTimeout    = errors.New("ssl connect timed out")
	ErrNoFix             = errors.New("no gnss fix acquired")
	ErrTimeNotSynced     = errors.New("network time never synchronized")
	ErrMalformedTime     = errors.New("malformed time response")
	ErrEmptyResponse     = errors.New("no response received")
)

// CME error codes (AT+CMEE=2 numeric range). 501-517 are the EC200U's
// GNSS-specific extensions.
const (
	CMEPhoneFailure     = 0
	CMENoConnection     = 1
	CMENotAllowed       = 3
	CMENotSupported     = 4
	CMESIMNotInserted   = 10
	CMESIMPinRequired   = 11
	CMESIMPukRequired   = 12
	CMESIMFailure       = 13
	CMESIMBusy          = 14
	CMEMemoryFull       = 20
	CMEInvalidParams    = 501
	CMEGNSSBusy         = 503
	CMESessionOngoing   = 504
	CMESessionNotActive = 505
	CMEOpTimeout        = 506
	CMENotFixedNow      = 516
)

// SSL error codes reported via +QSSLOPEN and AT+QIGETERROR.
const (
	SSLUnknownError       = 550
	SSLOpBlocked          = 551
	SSLInvalidParam       = 552
	SSLMemoryNotEnough    = 553
	SSLCreateSocketFailed = 554
	SSLDNSBusy            = 564
	SSLDNSParseFailed     = 565
	SSLSocketConnFailed   = 566
	SSLSocketClosed       = 567
	SSLOpTimeout          = 569
	SSLHandshakeFail      = 579
)

// DescribeError renders a coded subsystem error for logs and API responses.
// The CME and SSL ranges are disjoint, so the value alone selects the table.
func DescribeError(code int) string {
	switch code {
	case CMEPhoneFailure:
		return "phone failure"
	case CMENoConnection:
		return "no connection to phone"
	case CMENotAllowed:
		return "operation not allowed"
	case CMENotSupported:
		return "operation not supported"
	case CMESIMNotInserted:
		return "SIM not inserted"
	case CMESIMPinRequired:
		return "SIM PIN required"
	case CMESIMFailure:
		return "SIM failure"
	case CMESIMBusy:
		return "SIM busy"
	case CMEMemoryFull:
		return "memory full"
	case CMEInvalidParams:
		return "invalid parameters"
	case CMEGNSSBusy:
		return "GNSS subsystem busy"
	case CMESessionNotActive:
		return "GNSS session not active"
	case CMEOpTimeout:
		return "operation timeout"
	case CMENotFixedNow:
		return "GNSS not fixed now"
	case SSLUnknownError:
		return "SSL unknown error"
	case SSLOpBlocked:
		return "SSL operation blocked"
	case SSLInvalidParam:
		return "SSL invalid parameter"
	case SSLMemoryNotEnough:
		return "SSL memory not enough"
	case SSLCreateSocketFailed:
		return "SSL create socket failed"
	case SSLDNSParseFailed:
		return "SSL DNS parse failed"
	case SSLSocketConnFailed:
		return "SSL connection failed"
	case SSLSocketClosed:
		return "SSL socket closed"
	case SSLOpTimeout:
		return "SSL operation timeout"
	case SSLHandshakeFail:
		return "SSL handshake failed"
	default:
		return fmt.Sprintf("error %d", code)
	}
}

// codedError turns a coded Result into a Go error carrying the description.
func codedError(code int) error {
	return fmt.Errorf("modem error %d: %s", code, DescribeError(code))
}
