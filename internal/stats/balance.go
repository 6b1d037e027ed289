package stats

import "math"

// BalanceScore measures how evenly volume is spread over the trained muscles.
//
// It is the Shannon entropy of the positive volumes divided by ln(n), n being the number of positive
// volumes. 1 means perfectly even and 0 means everything on one muscle. Fewer than two positive volumes
// score 0.
func BalanceScore(volumes []float64) float64 {
	var (
		total    float64
		positive []float64
	)
	for _, v := range volumes {
		if v > 0 {
			positive = append(positive, v)
			total += v
		}
	}
	if len(positive) < 2 { //nolint:mnd // entropy needs two outcomes
		return 0
	}
	var entropy float64
	for _, v := range positive {
		p := v / total
		entropy -= p * math.Log(p)
	}
	return min(1, max(0, entropy/math.Log(float64(len(positive)))))
}

// RelativeVolume scales total volume by bodyweight. Unknown bodyweight (≤ 0) counts as 1.
func RelativeVolume(total, bodyweight float64) float64 {
	if bodyweight <= 0 {
		bodyweight = 1
	}
	return total / bodyweight
}

func values(m map[string]float64) []float64 {
	out := make([]float64, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func sum(m map[string]float64) float64 {
	var total float64
	for _, v := range m {
		total += v
	}
	return total
}
