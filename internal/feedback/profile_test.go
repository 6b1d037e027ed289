package feedback_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/myrjola/liftscore/internal/feedback"
	"github.com/myrjola/liftscore/internal/workout"
)

func TestNextProfile(t *testing.T) {
	t.Parallel()
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	first := feedback.NextProfile(nil, feedback.PatternWeightTooHeavy, 0.9, t0)
	want := feedback.Profile{
		Multiplier:   0.9,
		Pattern:      feedback.PatternWeightTooHeavy,
		Confidence:   0.25,
		DataPoints:   1,
		LastAnalyzed: t0,
	}
	if diff := cmp.Diff(want, first); diff != "" {
		t.Fatalf("first NextProfile() mismatch (-want +got):\n%s", diff)
	}

	first.UserID, first.MovementID = 3, 7
	t1 := t0.Add(48 * time.Hour)
	second := feedback.NextProfile(&first, feedback.PatternWeightAppropriate, 1.0, t1)
	want = feedback.Profile{
		UserID:       3,
		MovementID:   7,
		Multiplier:   0.93,
		Pattern:      feedback.PatternWeightAppropriate,
		Confidence:   0.2,
		DataPoints:   2,
		LastAnalyzed: t1,
	}
	if diff := cmp.Diff(want, second, approx()); diff != "" {
		t.Errorf("second NextProfile() mismatch (-want +got):\n%s", diff)
	}
	if first.DataPoints != 1 {
		t.Errorf("NextProfile modified its input: data points %d", first.DataPoints)
	}
}

func TestNextProfile_converges(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	p := feedback.NextProfile(nil, feedback.PatternWeightAppropriate, 1.0, now)
	for i := range 30 {
		prev := p
		p = feedback.NextProfile(&prev, feedback.PatternWeightTooLight, 1.1, now)
		if p.Multiplier < prev.Multiplier {
			t.Fatalf("step %d: multiplier decreased from %v to %v", i, prev.Multiplier, p.Multiplier)
		}
		if p.Multiplier > 1.1 {
			t.Fatalf("step %d: multiplier %v overshot the suggestion", i, p.Multiplier)
		}
		if p.Confidence > 1 {
			t.Fatalf("step %d: confidence %v above 1", i, p.Confidence)
		}
	}
	if math.Abs(p.Multiplier-1.1) > 0.005 {
		t.Errorf("multiplier = %v, want close to 1.1", p.Multiplier)
	}
	if p.Confidence != 1 || p.DataPoints != 31 {
		t.Errorf("confidence %v with %d data points, want 1 with 31", p.Confidence, p.DataPoints)
	}
}

func TestNextProfile_confidence(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	p := feedback.NextProfile(nil, feedback.PatternWeightAppropriate, 1.0, now)
	got := []float64{p.Confidence}
	for range 11 {
		prev := p
		p = feedback.NextProfile(&prev, feedback.PatternWeightAppropriate, 1.0, now)
		got = append(got, p.Confidence)
	}
	// The second data point resets confidence to the per-sample rate; from then on it only grows.
	want := []float64{0.25, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1, 1, 1}
	if diff := cmp.Diff(want, got, approx()); diff != "" {
		t.Errorf("confidence sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRules(t *testing.T) {
	t.Parallel()

	t.Run("default", func(t *testing.T) {
		t.Parallel()
		rules, err := feedback.LoadRules("")
		if err != nil {
			t.Fatalf("LoadRules: %v", err)
		}
		if diff := cmp.Diff(feedback.DefaultRules(), rules); diff != "" {
			t.Errorf("LoadRules(\"\") mismatch (-want +got):\n%s", diff)
		}
		want := feedback.GoalThreshold{IdealRepsMin: 3, IdealRepsMax: 6, DeclineTolerance: 0.6}
		if diff := cmp.Diff(want, rules.Threshold(workout.GoalStrength)); diff != "" {
			t.Errorf("strength threshold mismatch (-want +got):\n%s", diff)
		}
		if got := rules.Threshold("unknown").DeclineTolerance; got != 0.7 {
			t.Errorf("unknown goal tolerance = %v, want general fitness 0.7", got)
		}
		if len(rules.Imbalance.Pairs) != 4 {
			t.Errorf("got %d antagonist pairs, want 4", len(rules.Imbalance.Pairs))
		}
	})

	t.Run("override file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "rules.yaml")
		data := `
goals:
  strength: {ideal_reps_min: 1, ideal_reps_max: 5, decline_tolerance: 0.5}
default_goal: strength
too_light_ratio: 1.2
imbalance: {lower: 0.4, upper: 0.6, lookback_days: 14, pairs: [[Chest, Back]]}
plan: {min_confidence: 0.5, weight_increment: 2.5}
`
		if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
			t.Fatalf("write rules: %v", err)
		}
		rules, err := feedback.LoadRules(path)
		if err != nil {
			t.Fatalf("LoadRules: %v", err)
		}
		a := rules.AnalyzeRepPattern(entries(10, 6), workout.GoalMuscleGrowth)
		if a.Pattern != feedback.PatternWeightAppropriate {
			t.Errorf("pattern with tolerance 0.5 = %s, want appropriate", a.Pattern)
		}
		if rules.Imbalance.LookbackDays != 14 || rules.Plan.WeightIncrement != 2.5 {
			t.Errorf("rules = %+v, want overridden lookback and increment", rules)
		}
	})

	invalid := map[string]string{
		"malformed yaml":        "goals: [",
		"no goals":              "default_goal: strength",
		"unknown default goal":  "goals: {strength: {decline_tolerance: 0.6}}\ndefault_goal: cardio",
		"tolerance above one":   "goals: {strength: {decline_tolerance: 1.5}}\ndefault_goal: strength",
		"inverted balance band": "goals: {strength: {decline_tolerance: 0.6}}\ndefault_goal: strength\ntoo_light_ratio: 1.1\nimbalance: {lower: 0.7, upper: 0.3, lookback_days: 30}",
	}
	for name, data := range invalid {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := feedback.ParseRules([]byte(data)); err == nil {
				t.Errorf("ParseRules() succeeded, want error")
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		if _, err := feedback.LoadRules(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Errorf("LoadRules() succeeded, want error")
		}
	})
}
