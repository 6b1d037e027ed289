package feedback

import (
	"context"
	"fmt"
	"math"
	"slices"
)

// PlannedMovement is a movement of a generated workout plan.
type PlannedMovement struct {
	Name         string  `json:"name"`
	Sets         int     `json:"sets,omitempty"`
	Reps         int     `json:"reps,omitempty"`
	Weight       float64 `json:"weight"`
	IsBodyweight bool    `json:"is_bodyweight,omitempty"`
}

// Adjustment records a planned weight that feedback changed. Day is only set for weekly plans.
type Adjustment struct {
	Day        string  `json:"day,omitempty"`
	Movement   string  `json:"movement"`
	Original   float64 `json:"original"`
	Adjusted   float64 `json:"adjusted"`
	Multiplier float64 `json:"multiplier"`
}

// Plan is a single generated workout.
type Plan struct {
	Movements   []PlannedMovement `json:"movements"`
	Adjustments []Adjustment      `json:"_feedback_adjustments,omitempty"`
}

// DayPlan is one day of a weekly plan.
type DayPlan struct {
	Day       string            `json:"day"`
	Movements []PlannedMovement `json:"movements"`
}

// WeeklyPlan is a generated week of workouts.
type WeeklyPlan struct {
	Days        []DayPlan    `json:"weekly_plan"`
	Adjustments []Adjustment `json:"_feedback_adjustments,omitempty"`
}

// multiplierLookup caches [Service.MultiplierForMovement] per movement name for one plan.
type multiplierLookup struct {
	s      *Service
	userID int
	cache  map[string]*float64
}

func (l *multiplierLookup) multiplier(ctx context.Context, name string) (float64, bool, error) {
	if m, ok := l.cache[name]; ok {
		if m == nil {
			return 0, false, nil
		}
		return *m, true, nil
	}
	m, ok, err := l.s.MultiplierForMovement(ctx, l.userID, name)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		l.cache[name] = nil
		return 0, false, nil
	}
	l.cache[name] = &m
	return m, true, nil
}

// adjust scales the weights of movements in place and returns what changed. Bodyweight movements,
// movements without weight and multipliers of exactly 1 are left alone.
func (l *multiplierLookup) adjust(ctx context.Context, day string, movements []PlannedMovement) ([]Adjustment, error) {
	var adjustments []Adjustment
	for i, m := range movements {
		if m.IsBodyweight || m.Weight == 0 {
			continue
		}
		multiplier, ok, err := l.multiplier(ctx, m.Name)
		if err != nil {
			return nil, err
		}
		if !ok || multiplier == 1.0 {
			continue
		}
		adjusted := roundToIncrement(m.Weight*multiplier, l.s.rules.Plan.WeightIncrement)
		movements[i].Weight = adjusted
		adjustments = append(adjustments, Adjustment{
			Day:        day,
			Movement:   m.Name,
			Original:   m.Weight,
			Adjusted:   adjusted,
			Multiplier: multiplier,
		})
	}
	return adjustments, nil
}

// roundToIncrement rounds to the nearest multiple of increment, halves to even.
func roundToIncrement(v, increment float64) float64 {
	return math.RoundToEven(v/increment) * increment
}

func (s *Service) lookup(userID int) *multiplierLookup {
	return &multiplierLookup{s: s, userID: userID, cache: make(map[string]*float64)}
}

// ApplyToPlan scales the planned weights with the user's confident multipliers and records every
// adjustment in the returned plan. The input plan is not modified.
func (s *Service) ApplyToPlan(ctx context.Context, userID int, plan Plan) (Plan, error) {
	out := Plan{Movements: slices.Clone(plan.Movements), Adjustments: nil}
	adjustments, err := s.lookup(userID).adjust(ctx, "", out.Movements)
	if err != nil {
		return Plan{}, fmt.Errorf("apply feedback to plan: %w", err)
	}
	out.Adjustments = adjustments
	return out, nil
}

// ApplyToWeeklyPlan is [Service.ApplyToPlan] for every day of a weekly plan.
func (s *Service) ApplyToWeeklyPlan(ctx context.Context, userID int, plan WeeklyPlan) (WeeklyPlan, error) {
	out := WeeklyPlan{Days: make([]DayPlan, len(plan.Days)), Adjustments: nil}
	lookup := s.lookup(userID)
	for i, day := range plan.Days {
		out.Days[i] = DayPlan{Day: day.Day, Movements: slices.Clone(day.Movements)}
		adjustments, err := lookup.adjust(ctx, day.Day, out.Days[i].Movements)
		if err != nil {
			return WeeklyPlan{}, fmt.Errorf("apply feedback to %s: %w", day.Day, err)
		}
		out.Adjustments = append(out.Adjustments, adjustments...)
	}
	return out, nil
}
