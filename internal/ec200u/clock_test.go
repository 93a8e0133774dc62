package ec200u

import (
	"errors"
	"strings"
	"testing"
)

func TestParseNetworkTime(t *testing.T) {
	raw := "\r\n+QLTS: \"2024/06/15,10:30:00+08,0\"\r\n\r\nOK\r\n"

	clk, err := parseNetworkTime(raw)
	if err != nil {
		t.Fatalf("parseNetworkTime() failed: %v", err)
	}
	if !clk.Valid {
		t.Fatal("expected a valid clock")
	}
	if clk.Year != 2024 || clk.Month != 6 || clk.Day != 15 {
		t.Errorf("date = %d-%d-%d, want 2024-6-15", clk.Year, clk.Month, clk.Day)
	}
	if clk.Hour != 10 || clk.Minute != 30 || clk.Second != 0 {
		t.Errorf("time = %d:%d:%d, want 10:30:00", clk.Hour, clk.Minute, clk.Second)
	}
	if clk.Timezone != 8 {
		t.Errorf("Timezone = %d quarter hours, want 8", clk.Timezone)
	}
	if clk.TimezoneHours != 2 {
		t.Errorf("TimezoneHours = %d, want 2", clk.TimezoneHours)
	}
	if clk.DaylightSaving {
		t.Error("DaylightSaving = true, want false")
	}
}

func TestParseNetworkTimeVariants(t *testing.T) {
	t.Run("never synchronized", func(t *testing.T) {
		clk, err := parseNetworkTime("\r\n+QLTS: \"\"\r\n\r\nOK\r\n")
		if !errors.Is(err, ErrTimeNotSynced) {
			t.Errorf("err = %v, want ErrTimeNotSynced", err)
		}
		if clk.Valid {
			t.Error("clock must not be valid")
		}
	})

	t.Run("daylight saving flag", func(t *testing.T) {
		clk, err := parseNetworkTime("\r\n+QLTS: \"2024/10/27,01:00:00+04,1\"\r\n\r\nOK\r\n")
		if err != nil {
			t.Fatalf("parseNetworkTime() failed: %v", err)
		}
		if !clk.DaylightSaving {
			t.Error("DaylightSaving = false, want true")
		}
	})

	t.Run("negative offset", func(t *testing.T) {
		clk, err := parseNetworkTime("\r\n+QLTS: \"2024/06/15,10:30:00-20,0\"\r\n\r\nOK\r\n")
		if err != nil {
			t.Fatalf("parseNetworkTime() failed: %v", err)
		}
		if clk.Timezone != -20 || clk.TimezoneHours != -5 {
			t.Errorf("tz = %d (%d h), want -20 (-5 h)", clk.Timezone, clk.TimezoneHours)
		}
	})

	t.Run("truncated payload", func(t *testing.T) {
		if _, err := parseNetworkTime("\r\n+QLTS: \"2024/06/15\"\r\n\r\nOK\r\n"); err == nil {
			t.Error("truncated payload must not parse")
		}
	})
}

func TestRTC(t *testing.T) {
	tr := newScriptTransport("\r\n+CCLK: \"24/06/15,10:30:00+32\"\r\n\r\nOK\r\n")
	d := New(tr, testConfig())

	clk, err := d.RTC()
	if err != nil {
		t.Fatalf("RTC() failed: %v", err)
	}
	if clk.Year != 2024 || clk.Month != 6 || clk.Day != 15 {
		t.Errorf("date = %d-%d-%d, want 2024-6-15", clk.Year, clk.Month, clk.Day)
	}
	if clk.Timezone != 32 || clk.TimezoneHours != 8 {
		t.Errorf("tz = %d (%d h), want 32 (8 h)", clk.Timezone, clk.TimezoneHours)
	}
}

func TestSetRTC(t *testing.T) {
	tests := []struct {
		name     string
		timezone int
		want     string
	}{
		{"positive offset", 8, `AT+CCLK="24/06/15,10:30:05+08"` + "\r\n"},
		{"negative offset", -8, `AT+CCLK="24/06/15,10:30:05-08"` + "\r\n"},
		{"wide offset", 32, `AT+CCLK="24/06/15,10:30:05+32"` + "\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newScriptTransport("\r\nOK\r\n")
			d := New(tr, testConfig())

			if err := d.SetRTC(2024, 6, 15, 10, 30, 5, tt.timezone); err != nil {
				t.Fatalf("SetRTC() failed: %v", err)
			}
			cmds := tr.sentCommands()
			if len(cmds) != 1 || cmds[0] != tt.want {
				t.Errorf("sent %q, want %q", cmds, tt.want)
			}
		})
	}
}

func TestSyncClock(t *testing.T) {
	tr := newScriptTransport(
		"\r\n+QLTS: \"2024/06/15,10:30:00+08,0\"\r\n\r\nOK\r\n",
		"\r\nOK\r\n",
	)
	d := New(tr, testConfig())

	if err := d.SyncClock(); err != nil {
		t.Fatalf("SyncClock() failed: %v", err)
	}

	cmds := tr.sentCommands()
	if len(cmds) != 2 {
		t.Fatalf("sent %d commands, want 2: %v", len(cmds), cmds)
	}
	if cmds[0] != "AT+QLTS=2\r\n" {
		t.Errorf("first command %q, want AT+QLTS=2", cmds[0])
	}
	if !strings.Contains(cmds[1], `AT+CCLK="24/06/15,10:30:00+08"`) {
		t.Errorf("RTC write %q does not carry the network time", cmds[1])
	}
}

func TestSyncClockNotSynced(t *testing.T) {
	tr := newScriptTransport("\r\n+QLTS: \"\"\r\n\r\nOK\r\n")
	d := New(tr, testConfig())

	if err := d.SyncClock(); !errors.Is(err, ErrTimeNotSynced) {
		t.Errorf("SyncClock() = %v, want ErrTimeNotSynced", err)
	}
}
