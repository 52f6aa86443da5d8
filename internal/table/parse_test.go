package table

import (
	"testing"
	"time"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		input  string
		want   float64
		wantOK bool
	}{
		{"10", 10, true},
		{" 1,200 ", 1200, true},
		{"₹ 450", 450, true},
		{"Rs. 2,000/-", 2000, true},
		{"$12.50", 12.5, true},
		{"(30)", -30, true},
		{"-4", -4, true},
		{".5", 0.5, true},
		{"", 0, false},
		{"n/a", 0, false},
		{"12abc", 0, false},
		{"1.2.3", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseNumber(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseNumber(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParseNumber(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	tests := []struct {
		input  string
		want   time.Time
		wantOK bool
	}{
		{"2024-01-15", day(2024, 1, 15), true},
		{"2024/01/15", day(2024, 1, 15), true},
		{"1/15/2024", day(2024, 1, 15), true},
		{"01/15/2024", day(2024, 1, 15), true},
		{"Jan 15, 2024", day(2024, 1, 15), true},
		{"15 January 2024", day(2024, 1, 15), true},
		{"2024-01-15T18:30:00Z", day(2024, 1, 15), true},
		{"2024-01-15 23:59:59", day(2024, 1, 15), true},
		{"1/15/24", day(2024, 1, 15), true},
		{"", time.Time{}, false},
		{"yesterday", time.Time{}, false},
		{"2024-13-01", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseDate(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseDate(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
