package core

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-03-15", "2024-03-15"},
		{"2024/03/15", "2024-03-15"},
		{"3/15/2024", "2024-03-15"},
		{"03-15-2024", "2024-03-15"},
		{"Mar 15, 2024", "2024-03-15"},
		{"20240315", "2024-03-15"},
		{" 2024-03-15 ", "2024-03-15"},
	}

	for _, tt := range tests {
		got, err := parseDate(tt.in)
		if err != nil {
			t.Errorf("parseDate(%q) error: %v", tt.in, err)
			continue
		}
		if got.Format("2006-01-02") != tt.want {
			t.Errorf("parseDate(%q) = %s, want %s", tt.in, got.Format("2006-01-02"), tt.want)
		}
	}
}

func TestParseDate_TwoDigitYearPivot(t *testing.T) {
	got, err := parseDate("3/15/99")
	if err != nil {
		t.Fatalf("parseDate error: %v", err)
	}
	if got.Year() != 1999 {
		t.Errorf("year = %d, want 1999", got.Year())
	}

	recent, err := parseDate("3/15/24")
	if err != nil {
		t.Fatalf("parseDate error: %v", err)
	}
	if recent.Year() >= time.Now().Year()+TwoDigitYearPivot {
		t.Errorf("year = %d, should not be far future", recent.Year())
	}
}

func TestParseDate_Invalid(t *testing.T) {
	for _, in := range []string{"", "yesterday", "15/33/2024"} {
		if _, err := parseDate(in); err == nil {
			t.Errorf("parseDate(%q) expected error", in)
		}
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"3", 3},
		{" 12 ", 12},
		{"1,200", 1200},
		{"3.0", 3},
		{"-2", -2},
	}
	for _, tt := range tests {
		got, err := parseQuantity(tt.in)
		if err != nil {
			t.Errorf("parseQuantity(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseQuantity(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}

	for _, in := range []string{"", "many", "2.5"} {
		if _, err := parseQuantity(in); err == nil {
			t.Errorf("parseQuantity(%q) expected error", in)
		}
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"19.99", 19.99},
		{"$1,299.00", 1299.00},
		{"€45.50", 45.50},
		{"(12.50)", -12.50},
		{"-3.25", -3.25},
	}
	for _, tt := range tests {
		got, err := parsePrice(tt.in)
		if err != nil {
			t.Errorf("parsePrice(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parsePrice(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for _, in := range []string{"", "free", "12.3.4"} {
		if _, err := parsePrice(in); err == nil {
			t.Errorf("parsePrice(%q) expected error", in)
		}
	}
}
