package stats

import (
	"cmp"
	"context"
	"fmt"
	"slices"
)

// Ranking is a leaderboard row.
//
// Leaderboards are computed over the week ending today for the given users, or every user when no user
// IDs are given. Users without completed workouts rank with 0.
type Ranking struct {
	UserID   int
	Username string
	Value    float64
}

// MuscleRow is a user's row of the per-muscle leaderboard. Every catalog muscle has an entry.
type MuscleRow struct {
	UserID   int
	Username string
	Volumes  map[string]float64
}

// MuscleBoard pivots the volume of each user per muscle group.
type MuscleBoard struct {
	Muscles []string
	Rows    []MuscleRow
}

// weekVolumes loads the completed workout count, per-muscle volumes and bodyweight of each user over
// the week range ending today.
func (s *Service) weekVolumes(ctx context.Context, userIDs []int) ([]userVolume, error) {
	r := RangeFor(PeriodWeek, s.Today())
	volumes, err := s.repo.userVolumes(ctx, userIDs, r.Start, r.End)
	if err != nil {
		return nil, fmt.Errorf("weekly volumes: %w", err)
	}
	return volumes, nil
}

func (s *Service) rank(
	ctx context.Context, userIDs []int, value func(userVolume) float64,
) ([]Ranking, error) {
	volumes, err := s.weekVolumes(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	rankings := make([]Ranking, len(volumes))
	for i, uv := range volumes {
		rankings[i] = Ranking{UserID: uv.UserID, Username: uv.Username, Value: value(uv)}
	}
	slices.SortFunc(rankings, func(a, b Ranking) int {
		return cmp.Or(cmp.Compare(b.Value, a.Value), cmp.Compare(a.Username, b.Username))
	})
	return rankings, nil
}

// WorkoutCounts ranks users by completed workouts.
func (s *Service) WorkoutCounts(ctx context.Context, userIDs []int) ([]Ranking, error) {
	return s.rank(ctx, userIDs, func(uv userVolume) float64 { return float64(uv.Workouts) })
}

// TotalImpact ranks users by total volume.
func (s *Service) TotalImpact(ctx context.Context, userIDs []int) ([]Ranking, error) {
	return s.rank(ctx, userIDs, func(uv userVolume) float64 { return sum(uv.Muscles) })
}

// RelativeImpact ranks users by total volume per kg of bodyweight.
func (s *Service) RelativeImpact(ctx context.Context, userIDs []int) ([]Ranking, error) {
	return s.rank(ctx, userIDs, func(uv userVolume) float64 {
		return RelativeVolume(sum(uv.Muscles), uv.Bodyweight)
	})
}

// Balance ranks users by [BalanceScore].
func (s *Service) Balance(ctx context.Context, userIDs []int) ([]Ranking, error) {
	return s.rank(ctx, userIDs, func(uv userVolume) float64 { return BalanceScore(values(uv.Muscles)) })
}

// ImpactPerMuscle pivots each user's volume per catalog muscle group. Rows are ordered by username.
func (s *Service) ImpactPerMuscle(ctx context.Context, userIDs []int) (MuscleBoard, error) {
	muscles, err := s.repo.muscleNames(ctx)
	if err != nil {
		return MuscleBoard{}, fmt.Errorf("impact per muscle: %w", err)
	}
	volumes, err := s.weekVolumes(ctx, userIDs)
	if err != nil {
		return MuscleBoard{}, err
	}
	board := MuscleBoard{Muscles: muscles, Rows: make([]MuscleRow, len(volumes))}
	for i, uv := range volumes {
		row := MuscleRow{UserID: uv.UserID, Username: uv.Username, Volumes: make(map[string]float64, len(muscles))}
		for _, m := range muscles {
			row.Volumes[m] = uv.Muscles[m]
		}
		board.Rows[i] = row
	}
	slices.SortFunc(board.Rows, func(a, b MuscleRow) int { return cmp.Compare(a.Username, b.Username) })
	return board, nil
}
