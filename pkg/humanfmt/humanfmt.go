// Package humanfmt formats counts, rates, and durations for run summaries.
package humanfmt

import (
	"fmt"
	"strconv"
	"time"
)

const (
	thousand = 1000
	million  = 1000 * thousand
	billion  = 1000 * million
)

// Count formats a record count with a metric suffix.
// Examples: "1.23M", "456.00K", "789".
func Count(n int64) string {
	if n < 0 {
		return strconv.FormatInt(n, 10)
	}
	switch {
	case n >= billion:
		return fmt.Sprintf("%.2fB", float64(n)/billion)
	case n >= million:
		return fmt.Sprintf("%.2fM", float64(n)/million)
	case n >= thousand:
		return fmt.Sprintf("%.2fK", float64(n)/thousand)
	default:
		return strconv.FormatInt(n, 10)
	}
}

// Rate formats n records over d as records per second, e.g. "12.50K/s".
func Rate(n int64, d time.Duration) string {
	if d <= 0 {
		return "∞"
	}
	perSec := float64(n) / d.Seconds()
	switch {
	case perSec >= million:
		return fmt.Sprintf("%.2fM/s", perSec/million)
	case perSec >= thousand:
		return fmt.Sprintf("%.2fK/s", perSec/thousand)
	default:
		return fmt.Sprintf("%.0f/s", perSec)
	}
}

// Duration rounds d for display.
// Examples: "1.23s", "45.6ms", "1m30s".
func Duration(d time.Duration) string {
	switch {
	case d < 0:
		return d.String()
	case d >= time.Minute:
		return d.Round(time.Second).String()
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	case d >= time.Microsecond:
		return fmt.Sprintf("%.1fµs", float64(d)/float64(time.Microsecond))
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}
