// Package units renders byte counts and transfer speeds the way the CLI and
// operation logs present them, on top of dustin/go-humanize.
package units

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// BytesString renders n bytes as a decimal (base-10) human string, e.g. "12 MB".
func BytesString(n int64) string {
	if n < 0 {
		return "0 B"
	}

	return humanize.Bytes(uint64(n))
}

// SpeedString renders a bytes-per-second rate, e.g. "12 MB/s".
func SpeedString(bytesPerSecond float64) string {
	if bytesPerSecond < 0 || bytesPerSecond != bytesPerSecond { // NaN guard
		bytesPerSecond = 0
	}

	return fmt.Sprintf("%s/s", humanize.Bytes(uint64(bytesPerSecond)))
}

// Percent renders a 0-100 percentage to one decimal place.
func Percent(p float64) string {
	if p < 0 {
		p = 0
	}

	if p > 100 { //nolint:mnd
		p = 100
	}

	return fmt.Sprintf("%.1f%%", p)
}
