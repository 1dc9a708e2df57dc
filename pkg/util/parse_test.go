package util

import (
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
		ok   bool
	}{
		{"rfc3339", "2025-06-01T12:00:00Z", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), true},
		{"rfc3339 nano", "2025-06-01T12:00:00.5Z", time.Date(2025, 6, 1, 12, 0, 0, 5e8, time.UTC), true},
		{"unix seconds", "1700000000", time.Unix(1700000000, 0), true},
		{"empty", "", time.Time{}, false},
		{"garbage", "yesterday", time.Time{}, false},
		{"negative unix", "-5", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTime(tt.in)
			if ok != tt.ok {
				t.Fatalf("ParseTime(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ParseTime(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := ParseTimeDefault("", def); !got.Equal(def) {
		t.Errorf("empty input: got %v, want default", got)
	}
	if got := ParseTimeDefault("2025-06-01T00:00:00Z", def); got.Equal(def) {
		t.Error("valid input should override default")
	}
}
