package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/myrjola/liftscore/internal/workout"
)

const timestampFormat = time.RFC3339

// repository persists summaries and profiles through a [workout.Querier], usually a transaction.
type repository struct {
	q workout.Querier
}

func newRepository(q workout.Querier) repository {
	return repository{q: q}
}

// getSummary returns the summary of a workout or [workout.ErrNotFound].
func (r repository) getSummary(ctx context.Context, workoutID int) (Summary, error) {
	var (
		s          Summary
		movements  string
		imbalances sql.NullString
		createdAt  string
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, workout_id, completion_quality, overall_recommendation, movement_feedback_json,
		       imbalance_feedback_json, created_at
		FROM workout_feedback_summaries
		WHERE workout_id = ?`, workoutID).
		Scan(&s.ID, &s.WorkoutID, &s.CompletionQuality, &s.Recommendation, &movements, &imbalances, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Summary{}, fmt.Errorf("summary of workout %d: %w", workoutID, workout.ErrNotFound)
	}
	if err != nil {
		return Summary{}, fmt.Errorf("query summary: %w", err)
	}
	if err = json.Unmarshal([]byte(movements), &s.Movements); err != nil {
		return Summary{}, fmt.Errorf("unmarshal movement feedback: %w", err)
	}
	if imbalances.Valid {
		if err = json.Unmarshal([]byte(imbalances.String), &s.Imbalances); err != nil {
			return Summary{}, fmt.Errorf("unmarshal imbalance feedback: %w", err)
		}
	}
	if s.CreatedAt, err = time.Parse(timestampFormat, createdAt); err != nil {
		return Summary{}, fmt.Errorf("parse created at %q: %w", createdAt, err)
	}
	return s, nil
}

// insertSummary stores s and returns its ID. Imbalances are stored as NULL when there are none.
func (r repository) insertSummary(ctx context.Context, s Summary) (int, error) {
	movements := s.Movements
	if movements == nil {
		movements = []MovementAnalysis{}
	}
	movementJSON, err := json.Marshal(movements)
	if err != nil {
		return 0, fmt.Errorf("marshal movement feedback: %w", err)
	}
	var imbalanceJSON sql.NullString
	if len(s.Imbalances) > 0 {
		b, marshalErr := json.Marshal(s.Imbalances)
		if marshalErr != nil {
			return 0, fmt.Errorf("marshal imbalance feedback: %w", marshalErr)
		}
		imbalanceJSON = sql.NullString{String: string(b), Valid: true}
	}
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO workout_feedback_summaries (workout_id, completion_quality, overall_recommendation,
		                                        movement_feedback_json, imbalance_feedback_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.WorkoutID, s.CompletionQuality, s.Recommendation, string(movementJSON), imbalanceJSON,
		s.CreatedAt.UTC().Format(timestampFormat))
	if err != nil {
		return 0, fmt.Errorf("insert summary: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return int(id), nil
}

// getProfile returns the profile of a user and movement, nil when none exists yet.
func (r repository) getProfile(ctx context.Context, userID, movementID int) (*Profile, error) {
	var (
		p            Profile
		lastAnalyzed string
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT user_id, movement_id, weight_multiplier, pattern_type, confidence_score, data_points,
		       last_analyzed_at
		FROM user_feedback_profiles
		WHERE user_id = ? AND movement_id = ?`, userID, movementID).
		Scan(&p.UserID, &p.MovementID, &p.Multiplier, &p.Pattern, &p.Confidence, &p.DataPoints, &lastAnalyzed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absence is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}
	if p.LastAnalyzed, err = time.Parse(timestampFormat, lastAnalyzed); err != nil {
		return nil, fmt.Errorf("parse last analyzed %q: %w", lastAnalyzed, err)
	}
	return &p, nil
}

// saveProfile inserts or replaces a profile.
func (r repository) saveProfile(ctx context.Context, p Profile) error {
	if _, err := r.q.ExecContext(ctx, `
		INSERT INTO user_feedback_profiles (user_id, movement_id, weight_multiplier, pattern_type,
		                                    confidence_score, data_points, last_analyzed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, movement_id) DO UPDATE SET weight_multiplier = excluded.weight_multiplier,
		                                                 pattern_type      = excluded.pattern_type,
		                                                 confidence_score  = excluded.confidence_score,
		                                                 data_points       = excluded.data_points,
		                                                 last_analyzed_at  = excluded.last_analyzed_at`,
		p.UserID, p.MovementID, p.Multiplier, string(p.Pattern), p.Confidence, p.DataPoints,
		p.LastAnalyzed.UTC().Format(timestampFormat)); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// muscleVolumesSince sums the impact volume per muscle group of a user's completed workouts dated on or
// after since.
func (r repository) muscleVolumesSince(
	ctx context.Context, userID int, since time.Time,
) (_ map[string]float64, err error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT mg.name, SUM(i.total_volume)
		FROM workout_muscle_group_impacts i
		JOIN workouts w ON w.id = i.workout_id
		JOIN muscle_groups mg ON mg.id = i.muscle_group_id
		WHERE w.user_id = ?
		  AND w.is_completed = 1
		  AND w.workout_date >= ?
		GROUP BY mg.name`, userID, since.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("query muscle volumes: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()
	volumes := make(map[string]float64)
	for rows.Next() {
		var (
			name   string
			volume float64
		)
		if err = rows.Scan(&name, &volume); err != nil {
			return nil, fmt.Errorf("scan muscle volume: %w", err)
		}
		volumes[name] = volume
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return volumes, nil
}

// historyRef points at one performance of a movement.
type historyRef struct {
	workoutID         int
	workoutMovementID int
}

// movementPerformances returns the most recent performances of a movement in a user's completed
// workouts, newest first.
func (r repository) movementPerformances(
	ctx context.Context, userID, movementID, limit int,
) (_ []historyRef, err error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT w.id, wm.id
		FROM workout_movements wm
		JOIN workouts w ON w.id = wm.workout_id
		WHERE w.user_id = ?
		  AND w.is_completed = 1
		  AND wm.movement_id = ?
		ORDER BY w.workout_date DESC, w.id DESC, wm.position
		LIMIT ?`, userID, movementID, limit)
	if err != nil {
		return nil, fmt.Errorf("query movement performances: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()
	var refs []historyRef
	for rows.Next() {
		var ref historyRef
		if err = rows.Scan(&ref.workoutID, &ref.workoutMovementID); err != nil {
			return nil, fmt.Errorf("scan movement performance: %w", err)
		}
		refs = append(refs, ref)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return refs, nil
}
