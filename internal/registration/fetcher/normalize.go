package fetcher

import (
	"math"
	"time"

	"registrar/internal/registration/models"
)

const (
	day = 24 * time.Hour

	minExpiry                   = 1 * day
	maxExpiry                   = 30 * day
	minReportWindow             = 1 * day
	minInstallAttributionWindow = 1 * day
	maxInstallAttributionWindow = 30 * day
	minPostInstallExclusivity   = 0
	maxPostInstallExclusivity   = 30 * day
	minFlexWindowEnd            = time.Hour
	maxFlexWindows              = 5
	maxEventLevelReports        = 20
	maxTriggerSpecs             = 32
	maxTriggerDataCardinality   = 32
)

// clampSeconds clamps in the seconds domain so oversized inputs cannot
// overflow a Duration.
func clampSeconds(seconds int64, lo, hi time.Duration) time.Duration {
	s := min(max(seconds, int64(lo/time.Second)), int64(hi/time.Second))
	return time.Duration(s) * time.Second
}

// roundSecondsToWholeDays rounds to the nearest day, half a day rounding up.
// Results past the largest whole day an int64 can hold saturate there.
func roundSecondsToWholeDays(seconds int64) int64 {
	const (
		daySeconds = int64(day / time.Second)
		maxDays    = math.MaxInt64 / daySeconds
	)
	days := seconds / daySeconds
	if rem := seconds % daySeconds; rem*2 >= daySeconds {
		days++
	}
	if days > maxDays {
		days = maxDays
	}
	return days * daySeconds
}

// normalizeExpiry rounds Event-type expiries to whole days, then clamps.
func normalizeExpiry(seconds int64, sourceType models.SourceType) time.Duration {
	if sourceType == models.SourceTypeEvent {
		seconds = roundSecondsToWholeDays(seconds)
	}
	return clampSeconds(seconds, minExpiry, maxExpiry)
}

// normalizeReportWindow defaults an absent or zero window to the expiry and
// clamps the rest to [1 day, expiry].
func normalizeReportWindow(seconds int64, present bool, expiry time.Duration) time.Duration {
	if !present || seconds == 0 {
		return expiry
	}
	return clampSeconds(seconds, minReportWindow, expiry)
}
