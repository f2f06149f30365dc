package report

import "fmt"

// FormatDurationMs renders a millisecond duration as whole hours and
// minutes, rounding to the nearest minute. Under one hour the hour
// component is omitted: "12m", "1h 0m", "1h 30m".
func FormatDurationMs(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	minutes := (ms + 30_000) / 60_000
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}
