package ec200u

import (
	"strconv"
	"strings"
)

// Outcome classifies a completed (or timed-out) response buffer.
type Outcome int

const (
	ResultTimeout Outcome = iota
	ResultOK
	ResultError
	ResultConnect
	ResultNoCarrier
	ResultSendOK
	ResultSendFail
	ResultCodedError
)

func (o Outcome) String() string {
	switch o {
	case ResultOK:
		return "OK"
	case ResultError:
		return "ERROR"
	case ResultConnect:
		return "CONNECT"
	case ResultNoCarrier:
		return "NO CARRIER"
	case ResultSendOK:
		return "SEND OK"
	case ResultSendFail:
		return "SEND FAIL"
	case ResultCodedError:
		return "CODED ERROR"
	default:
		return "TIMEOUT"
	}
}

// CodeInvalid is reported when a coded-error marker is present but no integer
// could be parsed after it.
const CodeInvalid = -1

// Result is the typed outcome of one command transaction. Code is only
// meaningful for ResultCodedError: values up to 517 are CME (general/SIM and
// GNSS) errors, 550-579 are SSL errors. The two ranges are disjoint so the
// value alone identifies the subsystem.
type Result struct {
	Outcome Outcome
	Code    int
}

const (
	markerOK        = "OK\r\n"
	markerError     = "ERROR\r\n"
	markerConnect   = "CONNECT\r\n"
	markerNoCarrier = "NO CARRIER\r\n"
	markerSendOK    = "SEND OK\r\n"
	markerSendFail  = "SEND FAIL\r\n"

	markerCMEError = "+CME ERROR:"
)

var terminalMarkers = []string{
	markerOK,
	markerError,
	markerConnect,
	markerNoCarrier,
	markerSendOK,
	markerSendFail,
}

// responseComplete reports whether the accumulated buffer needs no further
// reads. The six literal terminals must appear at the tail; a coded-error
// marker terminates the response anywhere, but only once its line is complete
// so the trailing code is actually in the buffer.
func responseComplete(buf string) bool {
	for _, m := range terminalMarkers {
		if strings.HasSuffix(buf, m) {
			return true
		}
	}
	if i := strings.Index(buf, markerCMEError); i >= 0 {
		return strings.Contains(buf[i+len(markerCMEError):], "\r")
	}
	return false
}

// Classify maps a response buffer to its single outcome. A coded-error marker
// takes precedence over the plain OK/ERROR markers; the literal terminals are
// checked most-specific first so that SEND OK is never mistaken for OK. An
// empty or unrecognized buffer classifies as timeout.
func Classify(buf string) Result {
	if strings.Contains(buf, markerCMEError) {
		return Result{Outcome: ResultCodedError, Code: codeAfter(buf, markerCMEError)}
	}
	switch {
	case strings.Contains(buf, "SEND OK"):
		return Result{Outcome: ResultSendOK}
	case strings.Contains(buf, "SEND FAIL"):
		return Result{Outcome: ResultSendFail}
	case strings.Contains(buf, "NO CARRIER"):
		return Result{Outcome: ResultNoCarrier}
	case strings.Contains(buf, "CONNECT"):
		return Result{Outcome: ResultConnect}
	case strings.Contains(buf, "OK"):
		return Result{Outcome: ResultOK}
	case strings.Contains(buf, "ERROR"):
		return Result{Outcome: ResultError}
	default:
		return Result{Outcome: ResultTimeout}
	}
}

// codeAfter extracts the integer following marker, up to the next line
// terminator. Returns CodeInvalid when no integer can be parsed.
func codeAfter(buf, marker string) int {
	i := strings.Index(buf, marker)
	if i < 0 {
		return CodeInvalid
	}
	rest := buf[i+len(marker):]
	if j := strings.IndexAny(rest, "\r\n"); j >= 0 {
		rest = rest[:j]
	}
	code, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return CodeInvalid
	}
	return code
}

// valueAfter returns the remainder of the line following the first occurrence
// of prefix, trimmed. Empty string when the prefix is absent.
func valueAfter(buf, prefix string) string {
	i := strings.Index(buf, prefix)
	if i < 0 {
		return ""
	}
	rest := buf[i+len(prefix):]
	if j := strings.IndexAny(rest, "\r\n"); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest)
}

// toInt is the best-effort numeric conversion used for response fields:
// malformed input yields zero, matching the firmware's loose field contract.
func toInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func toFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
