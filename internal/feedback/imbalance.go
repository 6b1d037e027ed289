package feedback

import "fmt"

// Imbalance reports an antagonist pair whose volume share left the balanced band. Ratio is the first
// muscle's share of the pair's combined volume.
type Imbalance struct {
	Pair           [2]string `json:"pair"`
	Ratio          float64   `json:"ratio"`
	Dominant       string    `json:"dominant"`
	Recommendation string    `json:"recommendation"`
}

// DetectImbalances checks every configured pair against volumes keyed by muscle group name. Pairs
// without any volume are skipped.
func (r Rules) DetectImbalances(volumes map[string]float64) []Imbalance {
	var imbalances []Imbalance
	for _, pair := range r.Imbalance.Pairs {
		a, b := pair[0], pair[1]
		total := volumes[a] + volumes[b]
		if total <= 0 {
			continue
		}
		ratio := volumes[a] / total
		switch {
		case ratio > r.Imbalance.Upper:
			imbalances = append(imbalances, Imbalance{
				Pair:           pair,
				Ratio:          round(ratio, 2), //nolint:mnd // decimals
				Dominant:       a,
				Recommendation: fmt.Sprintf("Consider adding more %s exercises to balance with %s.", b, a),
			})
		case ratio < r.Imbalance.Lower:
			imbalances = append(imbalances, Imbalance{
				Pair:           pair,
				Ratio:          round(ratio, 2), //nolint:mnd // decimals
				Dominant:       b,
				Recommendation: fmt.Sprintf("Consider adding more %s exercises to balance with %s.", a, b),
			})
		}
	}
	return imbalances
}
