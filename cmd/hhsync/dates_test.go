package main

import (
	"testing"
	"time"
)

func TestParseDateFlag(t *testing.T) {
	// Saturday
	now := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"2024-01-31", "2024-01-31"},
		{"  2024-01-31 ", "2024-01-31"},
		{"2024-01-31T08:30:00Z", "2024-01-31"},
		{"today", "2024-06-15"},
		{"yesterday", "2024-06-14"},
		{"tomorrow", "2024-06-16"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDateFlag(tt.in, now)
			if err != nil {
				t.Fatalf("parseDateFlag(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseDateFlag(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDateFlag_Unrecognized(t *testing.T) {
	if _, err := parseDateFlag("purple", time.Now()); err == nil {
		t.Error("expected error for unrecognized date")
	}
}
