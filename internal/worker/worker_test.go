package worker

import (
	"testing"
	"time"
)

func TestSignalPercent(t *testing.T) {
	tests := []struct {
		rssi int
		want int
	}{
		{0, 0},
		{31, 100},
		{15, 48},
		{99, 0}, // unknown
		{-1, 0},
	}
	for _, tt := range tests {
		if got := signalPercent(tt.rssi); got != tt.want {
			t.Errorf("signalPercent(%d) = %d, want %d", tt.rssi, got, tt.want)
		}
	}
}

func TestRegistrationText(t *testing.T) {
	if got := registrationText(5); got != "Roaming" {
		t.Errorf("registrationText(5) = %q", got)
	}
	if got := registrationText(0); got != "Not Registered" {
		t.Errorf("registrationText(0) = %q", got)
	}
}

func TestParseDuration(t *testing.T) {
	if d := parseDuration("90s", time.Minute); d != 90*time.Second {
		t.Errorf("parseDuration(90s) = %v", d)
	}
	if d := parseDuration("", time.Minute); d != time.Minute {
		t.Errorf("empty string must fall back, got %v", d)
	}
	if d := parseDuration("-5s", time.Minute); d != time.Minute {
		t.Errorf("negative duration must fall back, got %v", d)
	}
}

func TestUploadAccepted(t *testing.T) {
	tests := []struct {
		resp string
		want bool
	}{
		{"HTTP/1.1 200 OK\r\n\r\n", true},
		{"HTTP/1.1 201 Created\r\n\r\n", true},
		{"HTTP/1.1 401 Unauthorized\r\n\r\n", false},
		{"HTTP/1.1 500 Internal Server Error\r\n\r\n", false},
		{"garbage", false},
	}
	for _, tt := range tests {
		if got := uploadAccepted(tt.resp); got != tt.want {
			t.Errorf("uploadAccepted(%q) = %v, want %v", tt.resp, got, tt.want)
		}
	}
}
