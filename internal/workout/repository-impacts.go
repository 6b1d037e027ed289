package workout

import (
	"context"
	"database/sql"
	"fmt"
)

// ReplaceImpacts replaces the cached impact rows of a workout with totals. Run it inside a transaction
// so that readers never observe the workout without impacts.
func (s Store) ReplaceImpacts(ctx context.Context, workoutID int, totals Totals) error {
	if _, err := s.q.ExecContext(ctx,
		"DELETE FROM workout_muscle_group_impacts WHERE workout_id = ?", workoutID); err != nil {
		return fmt.Errorf("delete impacts: %w", err)
	}
	for _, id := range totals.Sorted() {
		t := totals[id]
		if _, err := s.q.ExecContext(ctx, `
			INSERT INTO workout_muscle_group_impacts (workout_id, muscle_group_id, total_volume, total_reps, total_sets)
			VALUES (?, ?, ?, ?, ?)`, workoutID, id, t.Volume, t.Reps, t.Sets); err != nil {
			return fmt.Errorf("insert impact for muscle group %d: %w", id, err)
		}
	}
	return nil
}

// GetImpacts returns the cached impact rows of a workout.
func (s Store) GetImpacts(ctx context.Context, workoutID int) (Totals, error) {
	type impact struct {
		id MuscleGroupID
		MuscleTotal
	}
	rows, err := queryAll(ctx, s.q, func(rows *sql.Rows) (impact, error) {
		var i impact
		err := rows.Scan(&i.id, &i.Name, &i.Volume, &i.Reps, &i.Sets)
		return i, err //nolint:wrapcheck // wrapped by queryAll
	}, `
		SELECT mg.id, mg.name, i.total_volume, i.total_reps, i.total_sets
		FROM workout_muscle_group_impacts i
		JOIN muscle_groups mg ON mg.id = i.muscle_group_id
		WHERE i.workout_id = ?`, workoutID)
	if err != nil {
		return nil, fmt.Errorf("query impacts: %w", err)
	}
	totals := make(Totals, len(rows))
	for _, r := range rows {
		totals[r.id] = r.MuscleTotal
	}
	return totals, nil
}
