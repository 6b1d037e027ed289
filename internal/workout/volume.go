package workout

import (
	"cmp"
	"slices"
)

// MuscleTotal is the work attributed to one muscle group. Reps and Sets are fractional because a
// movement's work is split across its muscle groups.
type MuscleTotal struct {
	Name   string
	Volume float64
	Reps   float64
	Sets   float64
}

// Totals accumulates work per muscle group.
type Totals map[MuscleGroupID]MuscleTotal

func (t Totals) add(other Totals) {
	for id, o := range other {
		cur, ok := t[id]
		if !ok {
			cur.Name = o.Name
		}
		cur.Volume += o.Volume
		cur.Reps += o.Reps
		cur.Sets += o.Sets
		t[id] = cur
	}
}

// ByName returns the volume per muscle group name.
func (t Totals) ByName() map[string]float64 {
	out := make(map[string]float64, len(t))
	for _, m := range t {
		out[m.Name] += m.Volume
	}
	return out
}

// Sorted returns the IDs in descending volume order, ties broken by name.
func (t Totals) Sorted() []MuscleGroupID {
	ids := make([]MuscleGroupID, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b MuscleGroupID) int {
		return cmp.Or(cmp.Compare(t[b].Volume, t[a].Volume), cmp.Compare(t[a].Name, t[b].Name))
	})
	return ids
}

// MovementTotals computes the work a workout movement puts on each of its muscle groups.
//
// Every muscle group of the normalized distribution gets a bucket, even when no work was recorded.
// A set counts once, scaled by the muscle's fraction, if any of its entries has positive reps.
func (c LoadConfig) MovementTotals(wm WorkoutMovement, userBodyweight float64) Totals {
	distribution := NormalizeDistribution(wm.Movement.Targets)
	if len(distribution) == 0 {
		return Totals{}
	}
	totals := make(Totals, len(distribution))
	for _, m := range distribution {
		totals[m.MuscleGroup.ID] = MuscleTotal{Name: m.MuscleGroup.Name, Volume: 0, Reps: 0, Sets: 0}
	}

	for _, s := range wm.Sets {
		var setVolume, setReps float64
		hasReps := false
		for _, e := range ReconcileEntries(s) {
			if e.Reps <= 0 {
				continue
			}
			hasReps = true
			setReps += float64(e.Reps)
			setVolume += float64(e.Reps) * c.EffectiveLoad(e.Weight, e.IsBodyweight, userBodyweight)
		}
		if !hasReps {
			continue
		}
		for _, m := range distribution {
			t := totals[m.MuscleGroup.ID]
			t.Volume += setVolume * m.Fraction
			t.Reps += setReps * m.Fraction
			t.Sets += m.Fraction
			totals[m.MuscleGroup.ID] = t
		}
	}
	return totals
}

// WorkoutTotals sums [LoadConfig.MovementTotals] over the workout's movements.
func (c LoadConfig) WorkoutTotals(w Workout) Totals {
	totals := make(Totals)
	for _, wm := range w.Movements {
		totals.add(c.MovementTotals(wm, w.UserBodyweight))
	}
	return totals
}
