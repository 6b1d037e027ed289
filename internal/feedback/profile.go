package feedback

import (
	"time"
)

const (
	// smoothing is the weight of the newest suggestion in the multiplier's moving average.
	smoothing           = 0.3
	initialConfidence   = 0.25
	confidencePerSample = 0.1
)

// Profile is the learned weight multiplier of one user and movement.
type Profile struct {
	UserID       int
	MovementID   int
	Multiplier   float64
	Pattern      Pattern
	Confidence   float64
	DataPoints   int
	LastAnalyzed time.Time
}

// NextProfile folds a new suggestion into prev, which is nil for the first observation.
//
// The first observation adopts the suggestion with confidence 0.25. Later ones move the multiplier 30%
// towards the suggestion, and confidence grows by 0.1 per data point up to 1.
func NextProfile(prev *Profile, pattern Pattern, suggested float64, now time.Time) Profile {
	if prev == nil {
		return Profile{
			UserID:       0,
			MovementID:   0,
			Multiplier:   suggested,
			Pattern:      pattern,
			Confidence:   initialConfidence,
			DataPoints:   1,
			LastAnalyzed: now,
		}
	}
	next := *prev
	next.Multiplier = round(smoothing*suggested+(1-smoothing)*prev.Multiplier, 3) //nolint:mnd // decimals
	next.Pattern = pattern
	next.DataPoints++
	next.Confidence = round(min(1, float64(next.DataPoints)*confidencePerSample), 2) //nolint:mnd // decimals
	next.LastAnalyzed = now
	return next
}
