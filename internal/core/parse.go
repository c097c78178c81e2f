package core

// parse.go converts raw cells into typed values. Sales exports come
// from several storefronts, so dates arrive in a handful of layouts and
// prices may carry currency symbols, thousands separators, or the
// accounting-style parentheses negative.

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TwoDigitYearPivot defines how 2-digit years are interpreted. Parsed
// years more than this many years in the future are pushed back a
// century.
const TwoDigitYearPivot = 20

var (
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
	}
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06",
	}
)

// parseDate parses a sales date cell. ISO and slash formats are tried
// first; 2-digit years go through the pivot adjustment.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	pivot := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivot {
				t = t.AddDate(-100, 0, 0)
			}
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// parseQuantity parses an integer quantity. Thousands separators are
// tolerated; "3.0"-style exports are accepted when the fraction is zero.
func parseQuantity(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty quantity")
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unrecognized quantity %q", s)
	}
	n := int64(f)
	if float64(n) != f {
		return 0, fmt.Errorf("quantity %q is not a whole number", s)
	}
	return n, nil
}

// parsePrice parses a numeric price, stripping currency symbols and
// thousands separators. "(12.50)" is accounting notation for -12.50.
func parsePrice(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty price")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	var cleaned strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-', r == '+', r == 'e', r == 'E':
			cleaned.WriteRune(r)
		case r == ',', r == '$', r == '€', r == '£', r == '₹', r == ' ':
			// currency symbols and separators are dropped
		default:
			return 0, fmt.Errorf("unrecognized price %q", s)
		}
	}

	f, err := strconv.ParseFloat(cleaned.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("unrecognized price %q", s)
	}
	if negative {
		f = -f
	}
	return f, nil
}
