package stats

import (
	"cmp"
	"math"
	"slices"
)

// Status classifies how a muscle's volume moved between two periods.
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
	StatusFlat Status = "flat"
	StatusNew  Status = "new"
)

// Change compares a muscle's volume in the current period with the previous one. Values are rounded to
// two decimals.
type Change struct {
	Muscle   string
	Current  float64
	Previous float64
	Delta    float64
	Percent  float64
	Status   Status
}

// BuildChanges compares current and previous per-muscle volumes.
//
// A muscle trained only in the current period reports +100% with [StatusNew]. A muscle absent from both
// reports 0% with [StatusFlat]. The result is ordered by absolute delta, largest first, ties by name.
func BuildChanges(current, previous map[string]float64) []Change {
	muscles := make(map[string]struct{}, len(current)+len(previous))
	for m := range current {
		muscles[m] = struct{}{}
	}
	for m := range previous {
		muscles[m] = struct{}{}
	}

	changes := make([]Change, 0, len(muscles))
	for m := range muscles {
		cur, prev := current[m], previous[m]
		delta := cur - prev
		c := Change{Muscle: m, Current: round2(cur), Previous: round2(prev), Delta: round2(delta)}
		switch {
		case prev > 0:
			c.Percent = round2(delta / prev * 100) //nolint:mnd // percent
			c.Status = StatusFlat
			if delta > 0 {
				c.Status = StatusUp
			} else if delta < 0 {
				c.Status = StatusDown
			}
		case cur > 0:
			c.Percent = 100
			c.Status = StatusNew
		default:
			c.Percent = 0
			c.Status = StatusFlat
		}
		changes = append(changes, c)
	}
	slices.SortFunc(changes, func(a, b Change) int {
		return cmp.Or(cmp.Compare(math.Abs(b.Delta), math.Abs(a.Delta)), cmp.Compare(a.Muscle, b.Muscle))
	})
	return changes
}

// TopChanges returns at most n of the ranked changes.
func TopChanges(changes []Change, n int) []Change {
	return changes[:max(0, min(n, len(changes)))]
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100 //nolint:mnd // two decimals
}
