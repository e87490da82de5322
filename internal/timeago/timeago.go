// Package timeago renders timestamps as short relative phrases ("3 hours ago")
// and parses the loosely typed timestamp values clients and stored documents carry.
package timeago

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// secondsCutoff separates unix seconds from unix milliseconds in numeric input.
const secondsCutoff = 1e12

type division struct {
	amount float64
	unit   string
}

var divisions = []division{
	{60, "second"},
	{60, "minute"},
	{24, "hour"},
	{7, "day"},
	{4.34524, "week"},
	{12, "month"},
	{10, "year"},
}

// Parse converts input into a time. Supported inputs are time.Time, *time.Time,
// unix numbers (seconds below 1e12, milliseconds otherwise), numeric strings with the
// same rule, and RFC 3339 strings. ok is false for nil, empty or unparseable input.
func Parse(input any) (t time.Time, ok bool) {
	switch v := input.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return v, !v.IsZero()
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false
		}
		return *v, true
	case int:
		return fromUnix(float64(v)), true
	case int64:
		return fromUnix(float64(v)), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return time.Time{}, false
		}
		return fromUnix(v), true
	case string:
		return parseString(v)
	default:
		return time.Time{}, false
	}
}

func parseString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if isDigits(s) {
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, false
		}
		return fromUnix(n), true
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func fromUnix(n float64) time.Time {
	if n < secondsCutoff {
		return time.UnixMilli(int64(n * 1000))
	}
	return time.UnixMilli(int64(n))
}

// Since formats input relative to the current time. Invalid input yields "".
func Since(input any) string {
	return Format(input, time.Now())
}

// Format formats input relative to now. Invalid input yields "".
func Format(input any, now time.Time) string {
	t, ok := Parse(input)
	if !ok {
		return ""
	}
	duration := roundHalfUp(float64(now.Sub(t).Milliseconds()) / 1000)
	for _, d := range divisions {
		if math.Abs(duration) < d.amount {
			return phrase(-duration, d.unit)
		}
		duration = roundHalfUp(duration / d.amount)
	}
	return phrase(-duration, "year")
}

// roundHalfUp rounds half toward positive infinity.
func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}

// phrase renders value in unit using idiomatic words for -1, 0 and 1 where English has them.
func phrase(value float64, unit string) string {
	v := int64(value)
	switch v {
	case 0:
		if unit == "second" {
			return "now"
		}
		if unit == "day" {
			return "today"
		}
		return "this " + unit
	case -1:
		switch unit {
		case "day":
			return "yesterday"
		case "week", "month", "year":
			return "last " + unit
		}
	case 1:
		switch unit {
		case "day":
			return "tomorrow"
		case "week", "month", "year":
			return "next " + unit
		}
	}

	n := v
	if n < 0 {
		n = -n
	}
	label := unit
	if n != 1 {
		label += "s"
	}
	if v < 0 {
		return fmt.Sprintf("%d %s ago", n, label)
	}
	return fmt.Sprintf("in %d %s", n, label)
}
