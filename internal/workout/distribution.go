package workout

// WeightedMuscle is a muscle group with its share of a movement's volume.
type WeightedMuscle struct {
	MuscleGroup MuscleGroup
	Fraction    float64
}

// NormalizeDistribution turns declared target percentages into fractions that sum to 1.
//
// Non-positive percentages are dropped. The result is empty when nothing positive remains.
func NormalizeDistribution(targets []MuscleTarget) []WeightedMuscle {
	var total float64
	weighted := make([]WeightedMuscle, 0, len(targets))
	for _, t := range targets {
		if !(t.Percentage > 0) { // also drops NaN
			continue
		}
		weighted = append(weighted, WeightedMuscle{MuscleGroup: t.MuscleGroup, Fraction: t.Percentage})
		total += t.Percentage
	}
	if total <= 0 {
		return nil
	}
	for i := range weighted {
		weighted[i].Fraction /= total
	}
	return weighted
}
