package format

import (
	"fmt"
	"math"
	"time"
)

// Duration renders seconds using only the coarsest unit that applies:
// whole hours ("2h"), whole minutes ("1m") or rounded seconds ("45s").
// Negative and non-finite input renders as "0s".
func Duration(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
	}
	switch {
	case seconds >= 3600:
		return fmt.Sprintf("%dh", int64(math.Floor(seconds/3600)))
	case seconds >= 60:
		return fmt.Sprintf("%dm", int64(math.Floor(seconds/60)))
	default:
		return fmt.Sprintf("%ds", int64(math.Round(seconds)))
	}
}

// Since is Duration for a time.Duration value.
func Since(d time.Duration) string { return Duration(d.Seconds()) }
