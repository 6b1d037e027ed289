package workout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetUser retrieves a user by ID.
func (s Store) GetUser(ctx context.Context, id int) (User, error) {
	var (
		u          User
		bodyweight sql.NullFloat64
		goal       string
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT id, username, bodyweight_kg, workout_goal
		FROM users
		WHERE id = ?`, id).Scan(&u.ID, &u.Username, &bodyweight, &goal)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("query user: %w", err)
	}
	u.BodyweightKg = bodyweight.Float64
	u.Goal = Goal(goal)
	return u, nil
}

// CreateUser inserts u and returns it with its ID set.
func (s Store) CreateUser(ctx context.Context, u User) (User, error) {
	var bodyweight sql.NullFloat64
	if u.BodyweightKg > 0 {
		bodyweight = sql.NullFloat64{Float64: u.BodyweightKg, Valid: true}
	}
	goal := u.Goal
	if goal == "" {
		goal = GoalGeneralFitness
	}
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO users (username, bodyweight_kg, workout_goal)
		VALUES (?, ?, ?)`, u.Username, bodyweight, string(goal))
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	if u.ID, err = lastInsertID(res); err != nil {
		return User{}, err
	}
	u.Goal = goal
	return u, nil
}

// ListUserIDs returns the IDs of all users.
func (s Store) ListUserIDs(ctx context.Context) ([]int, error) {
	ids, err := queryAll(ctx, s.q, scanInt, "SELECT id FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return ids, nil
}

// CreateWorkout inserts an empty, not yet completed workout.
func (s Store) CreateWorkout(ctx context.Context, userID int, name string, date time.Time) (Workout, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO workouts (user_id, name, workout_date)
		VALUES (?, ?, ?)`, userID, name, formatDate(date))
	if err != nil {
		return Workout{}, fmt.Errorf("insert workout: %w", err)
	}
	id, err := lastInsertID(res)
	if err != nil {
		return Workout{}, err
	}
	return s.GetWorkout(ctx, id)
}

// GetWorkout loads a workout with its movements, muscle targets and sets.
func (s Store) GetWorkout(ctx context.Context, id int) (Workout, error) {
	var (
		w         Workout
		date      string
		completed bool
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT w.id, w.user_id, w.name, w.workout_date, w.is_completed, COALESCE(u.bodyweight_kg, 0)
		FROM workouts w
		JOIN users u ON u.id = w.user_id
		WHERE w.id = ?`, id).Scan(&w.ID, &w.UserID, &w.Name, &date, &completed, &w.UserBodyweight)
	if errors.Is(err, sql.ErrNoRows) {
		return Workout{}, fmt.Errorf("workout %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Workout{}, fmt.Errorf("query workout: %w", err)
	}
	w.Completed = completed
	if w.Date, err = parseDate(date); err != nil {
		return Workout{}, err
	}

	if w.Movements, err = s.loadWorkoutMovements(ctx, id); err != nil {
		return Workout{}, fmt.Errorf("load movements of workout %d: %w", id, err)
	}
	return w, nil
}

func (s Store) loadWorkoutMovements(ctx context.Context, workoutID int) ([]WorkoutMovement, error) {
	movements, err := queryAll(ctx, s.q, func(rows *sql.Rows) (WorkoutMovement, error) {
		var wm WorkoutMovement
		err := rows.Scan(&wm.ID, &wm.Position, &wm.Movement.ID, &wm.Movement.Name,
			&wm.Movement.NormalizedName, &wm.Movement.Description)
		return wm, err //nolint:wrapcheck // wrapped by queryAll
	}, `
		SELECT wm.id, wm.position, m.id, m.name, m.normalized_name, m.description
		FROM workout_movements wm
		JOIN movements m ON m.id = wm.movement_id
		WHERE wm.workout_id = ?
		ORDER BY wm.position, wm.id`, workoutID)
	if err != nil {
		return nil, fmt.Errorf("query workout movements: %w", err)
	}
	if len(movements) == 0 {
		return nil, nil
	}

	targets, err := s.loadTargets(ctx, `
		WHERE mmg.movement_id IN (SELECT movement_id FROM workout_movements WHERE workout_id = ?)`, workoutID)
	if err != nil {
		return nil, err
	}
	sets, err := s.loadSets(ctx, `
		WHERE s.workout_movement_id IN (SELECT id FROM workout_movements WHERE workout_id = ?)`, workoutID)
	if err != nil {
		return nil, err
	}
	setsByMovement := make(map[int][]Set)
	for _, ls := range sets {
		setsByMovement[ls.workoutMovementID] = append(setsByMovement[ls.workoutMovementID], ls.Set)
	}
	for i := range movements {
		movements[i].Movement.Targets = targets[movements[i].Movement.ID]
		movements[i].Sets = setsByMovement[movements[i].ID]
	}
	return movements, nil
}

type loadedSet struct {
	Set
	workoutMovementID int
}

// loadSets loads the sets matched by filter, which is appended to a query over sets aliased s, together
// with their legacy rows and paired entries.
func (s Store) loadSets(ctx context.Context, filter string, args ...any) ([]loadedSet, error) {
	sets, err := queryAll(ctx, s.q, func(rows *sql.Rows) (loadedSet, error) {
		var ls loadedSet
		err := rows.Scan(&ls.ID, &ls.workoutMovementID, &ls.Order)
		return ls, err //nolint:wrapcheck // wrapped by queryAll
	}, `
		SELECT s.id, s.workout_movement_id, s.set_order
		FROM sets s `+filter+`
		ORDER BY s.workout_movement_id, s.set_order, s.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query sets: %w", err)
	}
	if len(sets) == 0 {
		return nil, nil
	}
	index := make(map[int]int, len(sets))
	for i, ls := range sets {
		index[ls.ID] = i
	}
	setFilter := "WHERE set_id IN (SELECT s.id FROM sets s " + filter + ")"

	type setRep struct {
		setID int
		Rep
	}
	reps, err := queryAll(ctx, s.q, func(rows *sql.Rows) (setRep, error) {
		var r setRep
		err := rows.Scan(&r.ID, &r.setID, &r.Count)
		return r, err //nolint:wrapcheck // wrapped by queryAll
	}, "SELECT id, set_id, rep_count FROM reps "+setFilter+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("query reps: %w", err)
	}
	for _, r := range reps {
		sets[index[r.setID]].Reps = append(sets[index[r.setID]].Reps, r.Rep)
	}

	type setWeight struct {
		setID int
		Weight
	}
	weights, err := queryAll(ctx, s.q, func(rows *sql.Rows) (setWeight, error) {
		var (
			w     setWeight
			value any
		)
		err := rows.Scan(&w.ID, &w.setID, &value, &w.IsBodyweight)
		w.Value = safeFloat(value)
		return w, err //nolint:wrapcheck // wrapped by queryAll
	}, "SELECT id, set_id, weight_value, is_bodyweight FROM weights "+setFilter+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("query weights: %w", err)
	}
	for _, w := range weights {
		sets[index[w.setID]].Weights = append(sets[index[w.setID]].Weights, w.Weight)
	}

	type setEntry struct {
		setID int
		SetEntry
	}
	entries, err := queryAll(ctx, s.q, func(rows *sql.Rows) (setEntry, error) {
		var (
			e     setEntry
			value any
		)
		err := rows.Scan(&e.ID, &e.setID, &e.Order, &e.Reps, &value, &e.IsBodyweight)
		e.Weight = safeFloat(value)
		return e, err //nolint:wrapcheck // wrapped by queryAll
	}, `SELECT id, set_id, entry_order, reps, weight_value, is_bodyweight
		FROM set_entries `+setFilter+" ORDER BY entry_order, id", args...)
	if err != nil {
		return nil, fmt.Errorf("query set entries: %w", err)
	}
	for _, e := range entries {
		sets[index[e.setID]].Entries = append(sets[index[e.setID]].Entries, e.SetEntry)
	}
	return sets, nil
}

// SetCompleted marks a workout completed on date.
func (s Store) SetCompleted(ctx context.Context, workoutID int, date time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE workouts
		SET is_completed = 1, workout_date = ?
		WHERE id = ?`, formatDate(date), workoutID)
	if err != nil {
		return fmt.Errorf("update workout: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("workout %d: %w", workoutID, ErrNotFound)
	}
	return nil
}

// ListCompletedWorkoutIDs returns the IDs of all completed workouts.
func (s Store) ListCompletedWorkoutIDs(ctx context.Context) ([]int, error) {
	ids, err := queryAll(ctx, s.q, scanInt, "SELECT id FROM workouts WHERE is_completed = 1 ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list completed workouts: %w", err)
	}
	return ids, nil
}

// AddWorkoutMovement appends a movement to a workout.
func (s Store) AddWorkoutMovement(ctx context.Context, workoutID, movementID int) (int, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO workout_movements (workout_id, movement_id, position)
		VALUES (?1, ?2, (SELECT COALESCE(MAX(position), 0) + 1 FROM workout_movements WHERE workout_id = ?1))`,
		workoutID, movementID)
	if err != nil {
		return 0, fmt.Errorf("insert workout movement: %w", err)
	}
	return lastInsertID(res)
}

// AddSet appends a set to a workout movement together with whatever legacy rows and paired entries it
// carries.
func (s Store) AddSet(ctx context.Context, workoutMovementID int, set Set) (int, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO sets (workout_movement_id, set_order)
		VALUES (?1, (SELECT COALESCE(MAX(set_order), 0) + 1 FROM sets WHERE workout_movement_id = ?1))`,
		workoutMovementID)
	if err != nil {
		return 0, fmt.Errorf("insert set: %w", err)
	}
	setID, err := lastInsertID(res)
	if err != nil {
		return 0, err
	}
	for _, r := range set.Reps {
		if _, err = s.q.ExecContext(ctx, "INSERT INTO reps (set_id, rep_count) VALUES (?, ?)",
			setID, r.Count); err != nil {
			return 0, fmt.Errorf("insert rep: %w", err)
		}
	}
	for _, w := range set.Weights {
		if _, err = s.q.ExecContext(ctx,
			"INSERT INTO weights (set_id, weight_value, is_bodyweight) VALUES (?, ?, ?)",
			setID, w.Value, w.IsBodyweight); err != nil {
			return 0, fmt.Errorf("insert weight: %w", err)
		}
	}
	for _, e := range set.Entries {
		if err = s.insertEntry(ctx, setID, e); err != nil {
			return 0, err
		}
	}
	return setID, nil
}

func (s Store) insertEntry(ctx context.Context, setID int, e SetEntry) error {
	if _, err := s.q.ExecContext(ctx, `
		INSERT INTO set_entries (set_id, entry_order, reps, weight_value, is_bodyweight)
		VALUES (?, ?, ?, ?, ?)`, setID, e.Order, e.Reps, e.Weight, e.IsBodyweight); err != nil {
		return fmt.Errorf("insert set entry: %w", err)
	}
	return nil
}

// SyncFirstEntry makes the first paired entry of a set mirror its legacy rows: the rep total and the first
// weight. The entry is created when the set has none.
func (s Store) SyncFirstEntry(ctx context.Context, set Set) error {
	total := 0
	for _, r := range set.Reps {
		total += r.Count
	}
	entry := SetEntry{ID: 0, Order: 1, Reps: max(0, total), Weight: 0, IsBodyweight: false}
	if len(set.Weights) > 0 {
		entry.Weight = set.Weights[0].Value
		entry.IsBodyweight = set.Weights[0].IsBodyweight
	}
	if len(set.Entries) == 0 {
		return s.insertEntry(ctx, set.ID, entry)
	}
	first := set.Entries[0]
	for _, e := range set.Entries[1:] {
		if e.Order < first.Order || (e.Order == first.Order && e.ID < first.ID) {
			first = e
		}
	}
	if _, err := s.q.ExecContext(ctx, `
		UPDATE set_entries
		SET reps = ?, weight_value = ?, is_bodyweight = ?
		WHERE id = ?`, entry.Reps, entry.Weight, entry.IsBodyweight, first.ID); err != nil {
		return fmt.Errorf("update set entry: %w", err)
	}
	return nil
}

// ListLegacyOnlySets returns the sets that have legacy rows but no paired entries.
func (s Store) ListLegacyOnlySets(ctx context.Context) ([]Set, error) {
	loaded, err := s.loadSets(ctx, `
		WHERE NOT EXISTS (SELECT 1 FROM set_entries se WHERE se.set_id = s.id)
		  AND (EXISTS (SELECT 1 FROM reps r WHERE r.set_id = s.id)
		   OR EXISTS (SELECT 1 FROM weights w WHERE w.set_id = s.id))`)
	if err != nil {
		return nil, err
	}
	sets := make([]Set, len(loaded))
	for i, ls := range loaded {
		sets[i] = ls.Set
	}
	return sets, nil
}

// InsertEntries stores entries as the paired entries of a set, numbered from 1.
func (s Store) InsertEntries(ctx context.Context, setID int, entries []Entry) error {
	for i, e := range entries {
		err := s.insertEntry(ctx, setID, SetEntry{
			ID:           0,
			Order:        i + 1,
			Reps:         e.Reps,
			Weight:       e.Weight,
			IsBodyweight: e.IsBodyweight,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
