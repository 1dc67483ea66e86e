package security

import (
	"testing"
	"time"
)

func TestParseTTL(t *testing.T) {
	testCases := []struct {
		in   string
		want time.Duration
		err  bool
	}{
		{"30s", 30 * time.Second, false},
		{"15m", 15 * time.Minute, false},
		{"12h", 12 * time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"3600", time.Hour, false},
		{" 15M ", 15 * time.Minute, false},
		{"", 0, true},
		{"m", 0, true},
		{"-5m", 0, true},
		{"0s", 0, true},
		{"1w", 0, true},
		{"1.5h", 0, true},
		{"9999999999999d", 0, true},
		{"9223372036854775807s", 0, true},
		{"106751d", 106751 * 24 * time.Hour, false},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseTTL(tc.in)
			if tc.err {
				if err == nil {
					t.Fatalf("ParseTTL(%q) should fail, got %v", tc.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTTL(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("ParseTTL(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
