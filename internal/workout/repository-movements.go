package workout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// loadTargets returns the muscle targets of the movement_muscle_groups rows (aliased mmg) matched by
// filter, keyed by movement ID.
func (s Store) loadTargets(ctx context.Context, filter string, args ...any) (map[int][]MuscleTarget, error) {
	type movementTarget struct {
		movementID int
		MuscleTarget
	}
	rows, err := queryAll(ctx, s.q, func(rows *sql.Rows) (movementTarget, error) {
		var (
			t   movementTarget
			pct any
		)
		err := rows.Scan(&t.movementID, &t.MuscleGroup.ID, &t.MuscleGroup.Name, &pct)
		t.Percentage = safeFloat(pct)
		return t, err //nolint:wrapcheck // wrapped by queryAll
	}, `
		SELECT mmg.movement_id, mg.id, mg.name, mmg.target_percentage
		FROM movement_muscle_groups mmg
		JOIN muscle_groups mg ON mg.id = mmg.muscle_group_id `+filter+`
		ORDER BY mmg.movement_id, mg.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query muscle targets: %w", err)
	}
	targets := make(map[int][]MuscleTarget)
	for _, t := range rows {
		targets[t.movementID] = append(targets[t.movementID], t.MuscleTarget)
	}
	return targets, nil
}

// GetMovement retrieves a movement with its muscle targets.
func (s Store) GetMovement(ctx context.Context, id int) (Movement, error) {
	return s.getMovement(ctx, "id = ?", id)
}

// FindMovement retrieves a movement by its normalized name, see [NormalizeMovementName].
func (s Store) FindMovement(ctx context.Context, normalizedName string) (Movement, error) {
	return s.getMovement(ctx, "normalized_name = ?", normalizedName)
}

func (s Store) getMovement(ctx context.Context, where string, arg any) (Movement, error) {
	var m Movement
	err := s.q.QueryRowContext(ctx, `
		SELECT id, name, normalized_name, description
		FROM movements
		WHERE `+where, arg).Scan(&m.ID, &m.Name, &m.NormalizedName, &m.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return Movement{}, fmt.Errorf("movement %v: %w", arg, ErrNotFound)
	}
	if err != nil {
		return Movement{}, fmt.Errorf("query movement: %w", err)
	}
	targets, err := s.loadTargets(ctx, "WHERE mmg.movement_id = ?", m.ID)
	if err != nil {
		return Movement{}, err
	}
	m.Targets = targets[m.ID]
	return m, nil
}

// InsertMovement stores a movement without muscle targets.
func (s Store) InsertMovement(ctx context.Context, name, normalizedName, description string) (int, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO movements (name, normalized_name, description)
		VALUES (?, ?, ?)`, name, normalizedName, description)
	if err != nil {
		return 0, fmt.Errorf("insert movement: %w", err)
	}
	return lastInsertID(res)
}

// EnsureMuscleGroup returns the muscle group called name, creating it when it is not in the catalog.
func (s Store) EnsureMuscleGroup(ctx context.Context, name string) (MuscleGroup, error) {
	mg := MuscleGroup{ID: 0, Name: name}
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO muscle_groups (name) VALUES (?)
		ON CONFLICT (name) DO UPDATE SET name = excluded.name
		RETURNING id`, name).Scan(&mg.ID)
	if err != nil {
		return MuscleGroup{}, fmt.Errorf("upsert muscle group %q: %w", name, err)
	}
	return mg, nil
}

// LinkMuscleGroup records a movement's contribution to a muscle group. Existing links are kept as is.
func (s Store) LinkMuscleGroup(ctx context.Context, movementID int, muscleGroupID MuscleGroupID, pct float64) error {
	if _, err := s.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO movement_muscle_groups (movement_id, muscle_group_id, target_percentage)
		VALUES (?, ?, ?)`, movementID, muscleGroupID, pct); err != nil {
		return fmt.Errorf("link muscle group: %w", err)
	}
	return nil
}

// ListMuscleGroups returns the muscle group catalog ordered by ID.
func (s Store) ListMuscleGroups(ctx context.Context) ([]MuscleGroup, error) {
	groups, err := queryAll(ctx, s.q, func(rows *sql.Rows) (MuscleGroup, error) {
		var mg MuscleGroup
		err := rows.Scan(&mg.ID, &mg.Name)
		return mg, err //nolint:wrapcheck // wrapped by queryAll
	}, "SELECT id, name FROM muscle_groups ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list muscle groups: %w", err)
	}
	return groups, nil
}
