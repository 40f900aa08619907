package main

// HalfDayMs is the accrual bucket: claimable income piles up once per 12 hours.
const HalfDayMs int64 = 12 * 60 * 60 * 1000

// claimBins returns the number of whole 12h buckets elapsed between lastMs and
// nowMs, capped at maxStreak. lastMs == 0 means the holding was never claimed.
func claimBins(nowMs, lastMs, maxStreak int64) int64 {
	if nowMs <= lastMs {
		return 0
	}
	bins := (nowMs - lastMs) / HalfDayMs
	if bins > maxStreak {
		bins = maxStreak
	}
	return bins
}

func claimableCents(bins, quantity, rate int64) int64 {
	return bins * quantity * rate
}
