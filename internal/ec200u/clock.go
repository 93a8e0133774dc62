package ec200u

import (
	"fmt"
	"strings"
)

// ClockMode selects which time source AT+QLTS reports.
type ClockMode int

const (
	ModeLastSync ClockMode = 0 // last network-synchronized time
	ModeGMT      ClockMode = 1 // current GMT time
	ModeLocal    ClockMode = 2 // current local time
)

// Clock is a decomposed modem timestamp from either the network (+QLTS) or
// the RTC (+CCLK). The decomposed fields are only trustworthy when Valid is
// set; Timezone counts quarter hours from GMT.
type Clock struct {
	Valid          bool   `json:"valid"`
	DateTime       string `json:"date_time"`
	Year           int    `json:"year"`
	Month          int    `json:"month"`
	Day            int    `json:"day"`
	Hour           int    `json:"hour"`
	Minute         int    `json:"minute"`
	Second         int    `json:"second"`
	Timezone       int    `json:"timezone"` // quarter hours from GMT
	TimezoneHours  int    `json:"timezone_hours"`
	DaylightSaving bool   `json:"daylight_saving"`
	LastError      int    `json:"last_error,omitempty"`
}

// NetworkTime queries the network-synchronized time. A modem that has never
// synchronized reports an empty quoted payload, which yields an invalid Clock
// and ErrTimeNotSynced rather than a parse attempt.
func (d *Device) NetworkTime(mode ClockMode) (Clock, error) {
	var clk Clock

	res, raw := d.send(fmt.Sprintf("AT+QLTS=%d", mode), 0)
	if res.Outcome != ResultOK {
		if res.Outcome == ResultCodedError {
			clk.LastError = res.Code
		}
		return clk, outcomeError(res)
	}

	return parseNetworkTime(raw)
}

// CurrentTime returns the composite date-time string for the given mode.
func (d *Device) CurrentTime(mode ClockMode) (string, error) {
	clk, err := d.NetworkTime(mode)
	if err != nil {
		return "", err
	}
	return clk.DateTime, nil
}

// RTC reads the real-time clock (AT+CCLK?). The two-digit year is reported
// relative to 2000.
func (d *Device) RTC() (Clock, error) {
	var clk Clock

	res, raw := d.send("AT+CCLK?", 0)
	if res.Outcome != ResultOK {
		if res.Outcome == ResultCodedError {
			clk.LastError = res.Code
		}
		return clk, outcomeError(res)
	}

	s := quoted(raw, `+CCLK: "`)
	if len(s) < 17 {
		return clk, ErrMalformedTime
	}

	// yy/MM/dd,hh:mm:ss±zz
	clk.DateTime = s
	clk.Year = 2000 + toInt(s[0:2])
	clk.Month = toInt(s[3:5])
	clk.Day = toInt(s[6:8])
	clk.Hour = toInt(s[9:11])
	clk.Minute = toInt(s[12:14])
	clk.Second = toInt(s[15:17])
	if len(s) >= 20 {
		clk.Timezone = toInt(s[17:])
		clk.TimezoneHours = clk.Timezone / 4
	}
	clk.Valid = true
	return clk, nil
}

// SetRTC writes the real-time clock. year is the full year; timezone is in
// quarter hours from GMT (-48..+56).
func (d *Device) SetRTC(year, month, day, hour, minute, second, timezone int) error {
	stamp := fmt.Sprintf("%02d/%02d/%02d,%02d:%02d:%02d%+03d",
		year%100, month, day, hour, minute, second, timezone)
	if !d.sendOK(fmt.Sprintf(`AT+CCLK="%s"`, stamp), 0) {
		return fmt.Errorf("set rtc: unexpected response")
	}
	return nil
}

// SyncClock copies the current network local time into the RTC.
func (d *Device) SyncClock() error {
	clk, err := d.NetworkTime(ModeLocal)
	if err != nil {
		return fmt.Errorf("query network time: %w", err)
	}
	return d.SetRTC(clk.Year, clk.Month, clk.Day, clk.Hour, clk.Minute, clk.Second, clk.Timezone)
}

// parseNetworkTime decodes the quoted +QLTS payload:
// "YYYY/MM/dd,hh:mm:ss±zz[,d]" where zz is the quarter-hour offset and the
// optional trailing d flags daylight saving.
func parseNetworkTime(raw string) (Clock, error) {
	var clk Clock

	if !strings.Contains(raw, `+QLTS: "`) {
		return clk, ErrMalformedTime
	}
	s := quoted(raw, `+QLTS: "`)
	if s == "" {
		// Never synchronized.
		return clk, ErrTimeNotSynced
	}
	if len(s) < 22 {
		return clk, ErrMalformedTime
	}

	clk.DateTime = s
	clk.Year = toInt(s[0:4])
	clk.Month = toInt(s[5:7])
	clk.Day = toInt(s[8:10])
	clk.Hour = toInt(s[11:13])
	clk.Minute = toInt(s[14:16])
	clk.Second = toInt(s[17:19])
	clk.Timezone = toInt(s[19:22])
	clk.TimezoneHours = clk.Timezone / 4
	if len(s) >= 24 {
		clk.DaylightSaving = s[23] == '1'
	}
	clk.Valid = true
	return clk, nil
}

// quoted returns the text between prefix and the next double quote, or ""
// when either is missing.
func quoted(raw, prefix string) string {
	i := strings.Index(raw, prefix)
	if i < 0 {
		return ""
	}
	rest := raw[i+len(prefix):]
	j := strings.Index(rest, `"`)
	if j < 0 {
		return ""
	}
	return rest[:j]
}
