package workout

import (
	"cmp"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Entry is the canonical form of work performed in a set: reps at a weight.
type Entry struct {
	Reps         int
	Weight       float64
	IsBodyweight bool
}

// ReconcileEntries resolves a set into its entry sequence.
//
// Paired entries win when present and are ordered by (Order, ID). Otherwise legacy reps and weights are
// zipped by position and the shorter list is padded by repeating its last element. A missing list counts
// as a single zero rep or a single zero non-bodyweight weight. Negative reps become 0.
//
// The positional pairing of legacy lists is a heuristic: nothing guarantees that reps and weights were
// recorded in matching order.
func ReconcileEntries(s Set) []Entry {
	if len(s.Entries) > 0 {
		sorted := slices.Clone(s.Entries)
		slices.SortStableFunc(sorted, func(a, b SetEntry) int {
			return cmp.Or(cmp.Compare(a.Order, b.Order), cmp.Compare(a.ID, b.ID))
		})
		entries := make([]Entry, len(sorted))
		for i, e := range sorted {
			entries[i] = Entry{Reps: max(0, e.Reps), Weight: e.Weight, IsBodyweight: e.IsBodyweight}
		}
		return entries
	}

	if len(s.Reps) == 0 && len(s.Weights) == 0 {
		return nil
	}
	reps := s.Reps
	if len(reps) == 0 {
		reps = []Rep{{ID: 0, Count: 0}}
	}
	weights := s.Weights
	if len(weights) == 0 {
		weights = []Weight{{ID: 0, Value: 0, IsBodyweight: false}}
	}

	n := max(len(reps), len(weights))
	entries := make([]Entry, n)
	for i := range n {
		r := reps[min(i, len(reps)-1)]
		w := weights[min(i, len(weights)-1)]
		entries[i] = Entry{Reps: max(0, r.Count), Weight: w.Value, IsBodyweight: w.IsBodyweight}
	}
	return entries
}

// safeFloat coerces a dynamically typed column value to float64. Anything that is not a finite number
// or a numeric string yields 0.
func safeFloat(v any) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int64:
		f = float64(x)
	case int:
		f = float64(x)
	case bool:
		if x {
			f = 1
		}
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		f = parsed
	case []byte:
		return safeFloat(string(x))
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
