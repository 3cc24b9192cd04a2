package core

// convert.go holds the cell parsing rules shared by validation and
// transformation, so a value that validates is a value that converts.
//
// Dates are accepted in the formats users actually export (US, EU, ISO,
// month names). Datetimes without a zone are read as UTC.

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	intPattern     = regexp.MustCompile(`^-?\d+$`)
	decimalPattern = regexp.MustCompile(`^-?\d*\.?\d+$`)
)

// Output layouts for coerced values.
const (
	DateLayout     = "2006-01-02"
	DatetimeLayout = "2006-01-02T15:04:05.000Z07:00"
)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would land more than this many years in the future are moved
// back a century.
var TwoDigitYearPivot = 20

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "January 2, 2006", "2 Jan 2006", "2 January 2006",
		"20060102",
	}
	datetimeLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"1/2/2006 15:04:05",
		"1/2/2006 15:04",
		"1/2/2006 3:04 PM",
		time.RFC1123Z,
		time.RFC1123,
		"Mon Jan 2 2006 15:04:05",
		"Jan 2, 2006 15:04:05",
	}
	booleanTokens = map[string]bool{
		"true": true, "yes": true, "1": true, "y": true,
		"false": false, "no": false, "0": false, "n": false,
	}
)

// cellString renders a cell as text. Numeric cells use the shortest
// representation that round-trips.
func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// isEmpty reports whether a cell is nil or blank after trimming.
func isEmpty(v any) bool {
	return strings.TrimSpace(cellString(v)) == ""
}

// ParseInt parses a base-10 integer.
func ParseInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if !intPattern.MatchString(s) {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseDecimal parses a plain decimal number with an optional leading minus.
func ParseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !decimalPattern.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseBool parses a boolean token. ok is false for unknown tokens.
func ParseBool(s string) (value, ok bool) {
	value, ok = booleanTokens[strings.ToLower(strings.TrimSpace(s))]
	return value, ok
}

// ParseDate parses a calendar date. Full timestamps are accepted and
// truncated to their date.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	if t, ok := ParseDatetime(s); ok {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// ParseDatetime parses an instant. Values without a zone are read as UTC;
// bare dates are midnight UTC.
func ParseDatetime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatDatetime renders t as an ISO-8601 UTC instant with milliseconds.
func FormatDatetime(t time.Time) string {
	return t.UTC().Format(DatetimeLayout)
}
