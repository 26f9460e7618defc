// Package scoring computes the hot/warm/cold lead temperature from
// engagement counters. Score is a pure function; the clock is a parameter so
// the same counters always produce the same level for the same instant.
package scoring

import "time"

// Level is the lead temperature.
type Level string

const (
	LevelHot  Level = "hot"
	LevelWarm Level = "warm"
	LevelCold Level = "cold"
)

// Input is the counter snapshot a score is computed from.
type Input struct {
	Sent           int64
	Opened         int64
	Clicked        int64
	LastEngagement *time.Time
}

// Thresholds hold the tunable scoring boundaries.
type Thresholds struct {
	// HotWindow is how recent the last engagement must be for hot.
	HotWindow time.Duration
	// WarmWindow is how recent the last engagement must be for warm.
	WarmWindow time.Duration
	// HotClickRate is the clicked/sent ratio hot leads must exceed.
	HotClickRate float64
	// WarmMinOpens is the minimum opens for warm.
	WarmMinOpens int64
}

// Score classifies the counters. A lead that was never sent anything has
// zero rates and scores cold regardless of thresholds.
func Score(in Input, th Thresholds, now time.Time) Level {
	if in.Sent == 0 || in.LastEngagement == nil {
		return LevelCold
	}

	age := now.Sub(*in.LastEngagement)
	clickRate := float64(in.Clicked) / float64(in.Sent)

	if age <= th.HotWindow && clickRate > th.HotClickRate {
		return LevelHot
	}
	if age <= th.WarmWindow && in.Opened >= th.WarmMinOpens {
		return LevelWarm
	}
	return LevelCold
}
