package domain

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FormatHours renders decimal hours as "Xh Ym" (minutes floored); zero renders as "-".
func FormatHours(hours float64) string {
	if hours == 0 || math.IsNaN(hours) {
		return "-"
	}
	totalMinutes := math.Floor(hours * 60)
	h := math.Floor(totalMinutes / 60)
	m := math.Mod(totalMinutes, 60)
	return fmt.Sprintf("%.0fh %.0fm", h, m)
}

// FormatDifference renders |diff| as hours, or "-" when there is no difference.
func FormatDifference(diff float64) string {
	if diff == 0 {
		return "-"
	}
	return FormatHours(math.Abs(diff))
}

var (
	hoursPart   = regexp.MustCompile(`(\d+)h`)
	minutesPart = regexp.MustCompile(`(\d+)m`)
)

// ParseHours reads user input for an hour value: a decimal number of hours or the
// "Xh Ym" form. Anything unreadable is 0.
func ParseHours(s string) float64 {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	}
	var h, m float64
	if g := hoursPart.FindStringSubmatch(s); g != nil {
		h, _ = strconv.ParseFloat(g[1], 64)
	}
	if g := minutesPart.FindStringSubmatch(s); g != nil {
		m, _ = strconv.ParseFloat(g[1], 64)
	}
	return h + m/60
}

// ParseNumber coerces user input to a number; malformed input is 0.
func ParseNumber(s string) float64 {
	f, _ := LeadingNumber(s)
	return f
}

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// LeadingNumber reads the decimal number at the start of s, so "5 SP" is 5. ok is false
// when s does not start with one.
func LeadingNumber(s string) (float64, bool) {
	m := leadingNumber.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Utilization is logged hours over planned hours in percent, 0 when nothing was planned.
func Utilization(totalHours, ownStoryPoints, hoursPerStoryPoint float64) float64 {
	planned := ownStoryPoints * hoursPerStoryPoint
	if planned <= 0 {
		return 0
	}
	return totalHours / planned * 100
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime accepts the timestamp shapes the tracker emits; values without a zone are UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
