package ec200u

import "testing"

func TestClassifyTerminals(t *testing.T) {
	tests := []struct {
		name    string
		buf     string
		outcome Outcome
	}{
		{"plain OK", "\r\nOK\r\n", ResultOK},
		{"data lines before OK", "+CSQ: 15,99\r\n\r\nOK\r\n", ResultOK},
		{"plain ERROR", "\r\nERROR\r\n", ResultError},
		{"CONNECT", "\r\nCONNECT\r\n", ResultConnect},
		{"NO CARRIER", "\r\nNO CARRIER\r\n", ResultNoCarrier},
		{"SEND OK is not plain OK", "\r\nSEND OK\r\n", ResultSendOK},
		{"SEND FAIL", "\r\nSEND FAIL\r\n", ResultSendFail},
		{"empty buffer times out", "", ResultTimeout},
		{"unterminated data times out", "+QGPSLOC: 061951.000", ResultTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Classify(tt.buf)
			if res.Outcome != tt.outcome {
				t.Errorf("Classify(%q).Outcome = %v, want %v", tt.buf, res.Outcome, tt.outcome)
			}
		})
	}
}

func TestClassifyCodedError(t *testing.T) {
	tests := []struct {
		name string
		buf  string
		code int
	}{
		{"gnss not fixed", "\r\n+CME ERROR: 516\r\n", 516},
		{"sim related", "\r\n+CME ERROR: 10\r\n", 10},
		{"marker mid-buffer", "garbage\r\n+CME ERROR: 505\r\ntrailing", 505},
		{"unparsable code", "\r\n+CME ERROR: busy\r\n", CodeInvalid},
		{"missing code", "\r\n+CME ERROR:\r\n", CodeInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Classify(tt.buf)
			if res.Outcome != ResultCodedError {
				t.Fatalf("Classify(%q).Outcome = %v, want ResultCodedError", tt.buf, res.Outcome)
			}
			if res.Code != tt.code {
				t.Errorf("Classify(%q).Code = %d, want %d", tt.buf, res.Code, tt.code)
			}
		})
	}
}

// A coded-error line contains the ERROR substring; the coded outcome must win.
func TestClassifyCodedErrorPrecedence(t *testing.T) {
	res := Classify("\r\n+CME ERROR: 501\r\nOK\r\n")
	if res.Outcome != ResultCodedError || res.Code != 501 {
		t.Errorf("got %v code %d, want ResultCodedError code 501", res.Outcome, res.Code)
	}
}

func TestResponseComplete(t *testing.T) {
	tests := []struct {
		name     string
		buf      string
		complete bool
	}{
		{"OK at tail", "+CSQ: 15,99\r\n\r\nOK\r\n", true},
		{"ERROR at tail", "\r\nERROR\r\n", true},
		{"NO CARRIER at tail", "\r\nNO CARRIER\r\n", true},
		{"OK mid-buffer is not terminal", "\r\nOK\r\ntrailing", false},
		{"coded error with complete line", "\r\n+CME ERROR: 516\r\n", true},
		{"coded error awaiting its code", "\r\n+CME ERROR:", false},
		{"coded error code without terminator", "\r\n+CME ERROR: 51", false},
		{"partial data", "+QGPSLOC: 0619", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := responseComplete(tt.buf); got != tt.complete {
				t.Errorf("responseComplete(%q) = %v, want %v", tt.buf, got, tt.complete)
			}
		})
	}
}
