// Package feedback analyzes how completed workouts went and learns per-movement weight multipliers.
//
// A movement's rep decline from its first to its last entry is compared with the tolerance of the
// user's training goal. The resulting suggestion is smoothed into a per-user, per-movement profile that
// later scales planned weights.
package feedback

import (
	"math"

	"github.com/myrjola/liftscore/internal/ptr"
	"github.com/myrjola/liftscore/internal/workout"
)

// Pattern classifies a movement's rep decline.
type Pattern string

const (
	PatternInsufficientData  Pattern = "insufficient_data"
	PatternWeightTooHeavy    Pattern = "weight_too_heavy"
	PatternWeightAppropriate Pattern = "weight_appropriate"
	PatternWeightTooLight    Pattern = "weight_too_light"
)

const (
	maxDecrease  = 0.15
	maxIncrease  = 0.15
	increaseRate = 0.5
)

const (
	recommendReduce   = "Consider reducing weights across multiple exercises. Your rep counts declined significantly."
	recommendIncrease = "Consider increasing weights. You maintained or increased reps across sets."
	recommendGood     = "Good workout! Weights were appropriate for your goals."
	recommendMixed    = "Mixed performance. Review individual movements for specific adjustments."
)

// RepAnalysis is the outcome of [Rules.AnalyzeRepPattern]. DeclineRatio is nil for insufficient data.
type RepAnalysis struct {
	Pattern             Pattern  `json:"pattern"`
	DeclineRatio        *float64 `json:"decline_ratio"`
	SuggestedMultiplier float64  `json:"suggested_multiplier"`
	FirstSetReps        int      `json:"first_set_reps"`
	LastSetReps         int      `json:"last_set_reps"`
}

// MovementAnalysis is the rep analysis of one movement of a workout.
type MovementAnalysis struct {
	RepAnalysis

	MovementID   int    `json:"movement_id"`
	MovementName string `json:"movement_name"`
}

// WorkoutAnalysis is the outcome of [Rules.AnalyzeWorkout].
type WorkoutAnalysis struct {
	Movements      []MovementAnalysis
	OverallQuality float64
	Recommendation string
}

// AnalyzeRepPattern classifies the decline from the first to the last entry.
//
// At least two entries with a positive first rep count are needed. Below the goal's tolerance the weight
// was too heavy and the suggestion shrinks with severity down to 0.85. Above the too-light ratio the
// suggestion grows by half the excess up to 1.15.
func (r Rules) AnalyzeRepPattern(entries []workout.Entry, goal workout.Goal) RepAnalysis {
	a := RepAnalysis{
		Pattern:             PatternInsufficientData,
		DeclineRatio:        nil,
		SuggestedMultiplier: 1.0,
		FirstSetReps:        0,
		LastSetReps:         0,
	}
	if len(entries) > 0 {
		a.FirstSetReps = entries[0].Reps
		a.LastSetReps = entries[len(entries)-1].Reps
	}
	if len(entries) < 2 || a.FirstSetReps <= 0 { //nolint:mnd // first and last entry
		return a
	}

	ratio := float64(a.LastSetReps) / float64(a.FirstSetReps)
	tolerance := r.Threshold(goal).DeclineTolerance
	switch {
	case ratio < tolerance:
		a.Pattern = PatternWeightTooHeavy
		severity := (tolerance - ratio) / tolerance
		a.SuggestedMultiplier = max(1-maxDecrease, 1-severity*maxDecrease)
	case ratio > r.TooLightRatio:
		a.Pattern = PatternWeightTooLight
		a.SuggestedMultiplier = min(1+maxIncrease, 1+(ratio-1)*increaseRate)
	default:
		a.Pattern = PatternWeightAppropriate
	}
	a.DeclineRatio = ptr.Ref(round(ratio, 3)) //nolint:mnd // decimals
	a.SuggestedMultiplier = round(a.SuggestedMultiplier, 3) //nolint:mnd // decimals
	return a
}

// MovementEntries flattens the reconciled entries of every set of a movement in set order.
func MovementEntries(wm workout.WorkoutMovement) []workout.Entry {
	var entries []workout.Entry
	for _, s := range wm.Sets {
		entries = append(entries, workout.ReconcileEntries(s)...)
	}
	return entries
}

func quality(p Pattern) (float64, bool) {
	switch p {
	case PatternWeightAppropriate:
		return 1.0, true
	case PatternWeightTooLight:
		return 0.7, true //nolint:mnd // suboptimal
	case PatternWeightTooHeavy:
		return 0.5, true //nolint:mnd // problematic
	case PatternInsufficientData:
	}
	return 0, false
}

// AnalyzeWorkout analyzes every movement of a completed workout that has entries.
//
// Overall quality averages 1.0 for appropriate, 0.7 for too light and 0.5 for too heavy movements.
// It is 0.5 when no movement could be classified and 0 for workouts that are not completed.
func (r Rules) AnalyzeWorkout(w workout.Workout, goal workout.Goal) WorkoutAnalysis {
	if !w.Completed {
		return WorkoutAnalysis{Movements: nil, OverallQuality: 0, Recommendation: ""}
	}

	var (
		movements    []MovementAnalysis
		scores       []float64
		heavy, light int
	)
	for _, wm := range w.Movements {
		entries := MovementEntries(wm)
		if len(entries) == 0 {
			continue
		}
		a := MovementAnalysis{
			RepAnalysis:  r.AnalyzeRepPattern(entries, goal),
			MovementID:   wm.Movement.ID,
			MovementName: wm.Movement.Name,
		}
		if q, ok := quality(a.Pattern); ok {
			scores = append(scores, q)
		}
		switch a.Pattern {
		case PatternWeightTooHeavy:
			heavy++
		case PatternWeightTooLight:
			light++
		case PatternWeightAppropriate, PatternInsufficientData:
		}
		movements = append(movements, a)
	}

	overall := 0.5
	if len(scores) > 0 {
		var sum float64
		for _, q := range scores {
			sum += q
		}
		overall = sum / float64(len(scores))
	}
	total := float64(len(movements))

	var recommendation string
	switch {
	case float64(heavy) > total/2:
		recommendation = recommendReduce
	case float64(light) > total/2:
		recommendation = recommendIncrease
	case overall >= 0.8: //nolint:mnd // good quality
		recommendation = recommendGood
	default:
		recommendation = recommendMixed
	}

	return WorkoutAnalysis{
		Movements:      movements,
		OverallQuality: round(overall, 2), //nolint:mnd // decimals
		Recommendation: recommendation,
	}
}

func round(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}
