package ec200u

import (
	"math"
	"strings"
	"testing"
	"time"
)

const coordTolerance = 1e-6

func TestConvertCoordinate(t *testing.T) {
	tests := []struct {
		name   string
		coord  string
		format CoordFormat
		want   float64
	}{
		{"decimal degrees", "12.345678", FormatDecimalDegrees, 12.345678},
		{"negative decimal degrees", "-121.123456", FormatDecimalDegrees, -121.123456},
		{"degrees minutes north", "1234.5678N", FormatDegreesMinutes, 12 + 34.5678/60},
		{"degrees minutes south", "1234.5678S", FormatDegreesMinutes, -(12 + 34.5678/60)},
		{"degrees minutes west", "12134.5678W", FormatDegreesMinutes, -(121 + 34.5678/60)},
		{"extended format east", "08034.1234,E", FormatDegreesMinutesEx, 80 + 34.1234/60},
		{"extended format south", "3150.7223,S", FormatDegreesMinutesEx, -(31 + 50.7223/60)},
		{"malformed without dot", "1234N", FormatDegreesMinutes, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := convertCoordinate(tt.coord, tt.format)
			if math.Abs(got-tt.want) > coordTolerance {
				t.Errorf("convertCoordinate(%q, %d) = %f, want %f", tt.coord, tt.format, got, tt.want)
			}
		})
	}
}

const fixResponse = "\r\n+QGPSLOC: 061951.000,3150.7223N,11711.9293E,0.7,62.2,2,143.21,32.5,17.6,110524,09\r\n\r\nOK\r\n"

func TestParsePosition(t *testing.T) {
	var pos Position
	if !parsePosition(fixResponse, FormatDegreesMinutes, &pos) {
		t.Fatal("parsePosition rejected a complete fix")
	}

	if pos.UTCTime != "061951.000" {
		t.Errorf("UTCTime = %q", pos.UTCTime)
	}
	if pos.LatitudeRaw != "3150.7223N" || pos.LongitudeRaw != "11711.9293E" {
		t.Errorf("raw coords = %q / %q", pos.LatitudeRaw, pos.LongitudeRaw)
	}
	wantLat := 31 + 50.7223/60
	wantLon := 117 + 11.9293/60
	if math.Abs(pos.Latitude-wantLat) > coordTolerance {
		t.Errorf("Latitude = %f, want %f", pos.Latitude, wantLat)
	}
	if math.Abs(pos.Longitude-wantLon) > coordTolerance {
		t.Errorf("Longitude = %f, want %f", pos.Longitude, wantLon)
	}
	if pos.HDOP != 0.7 || pos.Altitude != 62.2 {
		t.Errorf("HDOP/Altitude = %f/%f", pos.HDOP, pos.Altitude)
	}
	if pos.FixMode != Fix2D {
		t.Errorf("FixMode = %d, want %d", pos.FixMode, Fix2D)
	}
	if pos.Course != 143.21 || pos.SpeedKmh != 32.5 || pos.SpeedKnots != 17.6 {
		t.Errorf("course/speed = %f/%f/%f", pos.Course, pos.SpeedKmh, pos.SpeedKnots)
	}
	if pos.Date != "110524" {
		t.Errorf("Date = %q", pos.Date)
	}
	if pos.Satellites != 9 {
		t.Errorf("Satellites = %d, want 9", pos.Satellites)
	}
}

func TestParsePositionTruncated(t *testing.T) {
	t.Run("missing satellite count still parses", func(t *testing.T) {
		resp := "\r\n+QGPSLOC: 061951.000,3150.7223N,11711.9293E,0.7,62.2,2,143.21,32.5,17.6,110524\r\n\r\nOK\r\n"
		var pos Position
		if !parsePosition(resp, FormatDegreesMinutes, &pos) {
			t.Fatal("fix without satellite count should parse")
		}
		if pos.Satellites != 0 {
			t.Errorf("Satellites = %d, want default 0", pos.Satellites)
		}
		if pos.Date != "110524" {
			t.Errorf("Date = %q", pos.Date)
		}
	})

	t.Run("missing course rejects fix", func(t *testing.T) {
		resp := "\r\n+QGPSLOC: 061951.000,3150.7223N,11711.9293E,0.7,62.2,2\r\n\r\nOK\r\n"
		var pos Position
		if parsePosition(resp, FormatDegreesMinutes, &pos) {
			t.Error("fix truncated before course must be rejected")
		}
	})

	t.Run("no marker", func(t *testing.T) {
		var pos Position
		if parsePosition("\r\nOK\r\n", FormatDegreesMinutes, &pos) {
			t.Error("response without +QGPSLOC marker must be rejected")
		}
	})
}

func TestAcquirePositionRecovers(t *testing.T) {
	// Two acquisition misses, then an inactive session that has to be
	// re-enabled, then a fix.
	tr := newScriptTransport(
		"\r\n+CME ERROR: 516\r\n",
		"\r\n+CME ERROR: 516\r\n",
		"\r\n+CME ERROR: 505\r\n",
		"\r\nOK\r\n", // AT+QGPS=1
		fixResponse,
	)
	d := New(tr, testConfig())

	pos, err := d.AcquirePosition(FormatDegreesMinutes, 10, time.Millisecond)
	if err != nil {
		t.Fatalf("AcquirePosition() failed: %v", err)
	}
	if !pos.Valid {
		t.Error("expected a valid fix")
	}

	enables := 0
	for _, cmd := range tr.sentCommands() {
		if cmd == "AT+QGPS=1\r\n" {
			enables++
		}
	}
	if enables != 1 {
		t.Errorf("GNSS re-enabled %d times, want exactly 1", enables)
	}
}

func TestAcquirePositionBudgetExhausted(t *testing.T) {
	tr := newScriptTransport(
		"\r\n+CME ERROR: 516\r\n",
		"\r\n+CME ERROR: 516\r\n",
		"\r\n+CME ERROR: 516\r\n",
	)
	d := New(tr, testConfig())

	pos, err := d.AcquirePosition(FormatDecimalDegrees, 3, time.Millisecond)
	if err == nil {
		t.Fatal("expected failure after exhausting the retry budget")
	}
	if pos.Valid {
		t.Error("position must not be valid")
	}
	if pos.LastError != CMENotFixedNow {
		t.Errorf("LastError = %d, want %d", pos.LastError, CMENotFixedNow)
	}
}

func TestAcquirePositionAbortsOnHardError(t *testing.T) {
	tr := newScriptTransport("\r\n+CME ERROR: 501\r\n")
	d := New(tr, testConfig())

	pos, err := d.AcquirePosition(FormatDecimalDegrees, 10, time.Millisecond)
	if err == nil {
		t.Fatal("expected immediate failure on a non-recoverable code")
	}
	if pos.LastError != CMEInvalidParams {
		t.Errorf("LastError = %d, want %d", pos.LastError, CMEInvalidParams)
	}

	queries := 0
	for _, cmd := range tr.sentCommands() {
		if strings.HasPrefix(cmd, "AT+QGPSLOC=") {
			queries++
		}
	}
	if queries != 1 {
		t.Errorf("fix queried %d times, want 1 (no retries)", queries)
	}
}

func TestAcquirePositionAbortsOnGenericFailure(t *testing.T) {
	tr := newScriptTransport("\r\nERROR\r\n")
	d := New(tr, testConfig())

	if _, err := d.AcquirePosition(FormatDecimalDegrees, 10, time.Millisecond); err == nil {
		t.Fatal("expected immediate failure on a generic error")
	}
	if n := len(tr.sentCommands()); n != 1 {
		t.Errorf("sent %d commands, want 1", n)
	}
}
