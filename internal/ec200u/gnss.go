package ec200u

import (
	"fmt"
	"strings"
	"time"
)

// CoordFormat selects the coordinate encoding of AT+QGPSLOC. The values are
// protocol constants.
type CoordFormat int

const (
	// FormatDegreesMinutes: ddmm.mmmmN/S, dddmm.mmmmE/W
	FormatDegreesMinutes CoordFormat = 0
	// FormatDegreesMinutesEx: ddmm.mmmmmm,N/S, dddmm.mmmmmm,E/W
	FormatDegreesMinutesEx CoordFormat = 1
	// FormatDecimalDegrees: (-)dd.ddddd, (-)ddd.ddddd
	FormatDecimalDegrees CoordFormat = 2
)

// Fix quality reported in the QGPSLOC fix-mode field.
const (
	FixNone = 0
	Fix2D   = 2
	Fix3D   = 3
)

// Position is one GNSS fix. Valid implies Latitude/Longitude are populated
// and FixMode is not FixNone. LastError holds the last coded error observed
// while acquiring, whether or not the fix eventually succeeded.
type Position struct {
	Valid        bool    `json:"valid"`
	UTCTime      string  `json:"utc_time"` // hhmmss.sss
	Latitude     float64 `json:"latitude"` // decimal degrees, signed
	Longitude    float64 `json:"longitude"`
	LatitudeRaw  string  `json:"latitude_raw"` // as reported, format dependent
	LongitudeRaw string  `json:"longitude_raw"`
	HDOP         float64 `json:"hdop"`
	Altitude     float64 `json:"altitude"`
	FixMode      int     `json:"fix_mode"`
	Course       float64 `json:"course"`
	SpeedKmh     float64 `json:"speed_kmh"`
	SpeedKnots   float64 `json:"speed_knots"`
	Date         string  `json:"date"` // ddmmyy
	Satellites   int     `json:"satellites"`
	LastError    int     `json:"last_error,omitempty"`
}

// GNSSBegin enables NMEA sentence sourcing. Run once before turning GNSS on.
func (d *Device) GNSSBegin() error {
	if !d.sendOK(`AT+QGPSCFG="nmeasrc",1`, 0) {
		return fmt.Errorf("configure nmea source: unexpected response")
	}
	return nil
}

// GNSSOn starts the positioning session. fixMaxTime is the firmware's
// per-fix bound in seconds; 30 is its own default and is omitted from the
// command line in that case.
func (d *Device) GNSSOn(mode, fixMaxTime int) error {
	cmd := fmt.Sprintf("AT+QGPS=%d", mode)
	if fixMaxTime != 30 {
		cmd = fmt.Sprintf("%s,%d", cmd, fixMaxTime)
	}
	if !d.sendOK(cmd, 0) {
		return fmt.Errorf("gnss on: unexpected response")
	}
	return nil
}

// GNSSOff ends the positioning session.
func (d *Device) GNSSOff() error {
	if !d.sendOK("AT+QGPSEND", 0) {
		return fmt.Errorf("gnss off: unexpected response")
	}
	return nil
}

// AcquirePosition requests a fix, retrying while the modem reports the
// acquisition-in-progress condition and recovering once from an inactive
// session. Cold starts commonly take tens of seconds, so "not fixed now"
// (CME 516) waits retryDelay and tries again within the maxRetries budget.
// "Session not active" (CME 505) re-enables the subsystem, waits for it to
// settle and retries, still counted against the budget. Any other failure
// aborts immediately. The returned Position carries the last error code on
// failure.
func (d *Device) AcquirePosition(format CoordFormat, maxRetries int, retryDelay time.Duration) (Position, error) {
	var pos Position

	for attempt := 0; attempt < maxRetries; attempt++ {
		res, raw := d.send(fmt.Sprintf("AT+QGPSLOC=%d", format), 0)

		switch res.Outcome {
		case ResultOK:
			if parsePosition(raw, format, &pos) {
				pos.Valid = true
				return pos, nil
			}
			// Fix line present but malformed; treat like a miss.
			time.Sleep(retryDelay)

		case ResultCodedError:
			pos.LastError = res.Code
			switch res.Code {
			case CMENotFixedNow:
				time.Sleep(retryDelay)
			case CMESessionNotActive:
				if err := d.GNSSOn(1, 30); err != nil {
					return pos, fmt.Errorf("reactivate gnss session: %w", err)
				}
				time.Sleep(d.cfg.GNSSSettleDelay)
			default:
				return pos, codedError(res.Code)
			}

		default:
			// Generic failure or timeout is not worth retrying.
			return pos, outcomeError(res)
		}
	}

	return pos, fmt.Errorf("%w after %d attempts", ErrNoFix, maxRetries)
}

// Coordinates is the minimal form: one decimal-degrees acquisition with the
// standard retry budget.
func (d *Device) Coordinates(maxRetries int, retryDelay time.Duration) (lat, lon float64, err error) {
	pos, err := d.AcquirePosition(FormatDecimalDegrees, maxRetries, retryDelay)
	if err != nil {
		return 0, 0, err
	}
	return pos.Latitude, pos.Longitude, nil
}

// Fixed answers "is a fix currently available" with a single short attempt.
func (d *Device) Fixed() bool {
	_, err := d.AcquirePosition(FormatDecimalDegrees, 1, 100*time.Millisecond)
	return err == nil
}

// parsePosition extracts the comma-delimited QGPSLOC fields. Everything
// through the date is required; the trailing satellite count is
// newline-delimited and defaults to zero when absent. Numeric fields are
// best-effort with zero as the failure value.
func parsePosition(raw string, format CoordFormat, pos *Position) bool {
	line := valueAfter(raw, "+QGPSLOC: ")
	if line == "" {
		return false
	}

	fields := strings.Split(line, ",")
	if len(fields) < 10 {
		return false
	}

	pos.UTCTime = fields[0]
	pos.LatitudeRaw = fields[1]
	pos.LongitudeRaw = fields[2]
	pos.Latitude = convertCoordinate(fields[1], format)
	pos.Longitude = convertCoordinate(fields[2], format)
	pos.HDOP = toFloat(fields[3])
	pos.Altitude = toFloat(fields[4])
	pos.FixMode = toInt(fields[5])
	pos.Course = toFloat(fields[6])
	pos.SpeedKmh = toFloat(fields[7])
	pos.SpeedKnots = toFloat(fields[8])
	pos.Date = fields[9]
	if len(fields) >= 11 {
		pos.Satellites = toInt(fields[10])
	}

	return true
}

// convertCoordinate turns a coordinate string into signed decimal degrees.
// Decimal format parses directly. The degrees-minutes formats pack degrees
// into all but the last two integer digits and minutes into the rest; the
// hemisphere is a suffix letter (format 0) or a comma-separated field
// (format 1), with S/W negating the value.
func convertCoordinate(coord string, format CoordFormat) float64 {
	if format == FormatDecimalDegrees {
		return toFloat(coord)
	}

	s := coord
	negative := false
	if format == FormatDegreesMinutes {
		if len(s) > 0 {
			hemi := s[len(s)-1]
			s = s[:len(s)-1]
			negative = hemi == 'S' || hemi == 'W'
		}
	} else {
		if i := strings.Index(s, ","); i >= 0 {
			hemi := s[i+1:]
			s = s[:i]
			negative = hemi == "S" || hemi == "W"
		}
	}

	dot := strings.Index(s, ".")
	if dot <= 0 {
		return 0
	}
	degMin := s[:dot]
	minFrac := s[dot+1:]
	if len(degMin) < 3 {
		return 0
	}

	degrees := toInt(degMin[:len(degMin)-2])
	minutes := float64(toInt(degMin[len(degMin)-2:])) + toFloat("0."+minFrac)
	result := float64(degrees) + minutes/60.0
	if negative {
		result = -result
	}
	return result
}
