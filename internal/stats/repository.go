package stats

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/myrjola/liftscore/internal/sqlite"
)

// sqliteRepository reads the impact cache of completed workouts.
type sqliteRepository struct {
	db *sqlite.Database
}

func newSQLiteRepository(db *sqlite.Database) *sqliteRepository {
	return &sqliteRepository{db: db}
}

func day(t time.Time) string {
	return t.Format(time.DateOnly)
}

// muscleTotals sums the volume per muscle group of a user's completed workouts within [from, to].
func (r *sqliteRepository) muscleTotals(
	ctx context.Context, userID int, from, to time.Time,
) (_ map[string]float64, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT mg.name, COALESCE(SUM(i.total_volume), 0)
		FROM workout_muscle_group_impacts i
		JOIN workouts w ON w.id = i.workout_id
		JOIN muscle_groups mg ON mg.id = i.muscle_group_id
		WHERE w.user_id = ?
		  AND w.is_completed = 1
		  AND w.workout_date BETWEEN ? AND ?
		GROUP BY mg.name`, userID, day(from), day(to))
	if err != nil {
		return nil, fmt.Errorf("query muscle totals: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	totals := make(map[string]float64)
	for rows.Next() {
		var (
			name   string
			volume float64
		)
		if err = rows.Scan(&name, &volume); err != nil {
			return nil, fmt.Errorf("scan muscle total: %w", err)
		}
		totals[name] = volume
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return totals, nil
}

// dailySeries sums the volume per workout day of a user's completed workouts within [from, to]. When
// muscle is not empty only that muscle group counts. Days without workouts are omitted.
func (r *sqliteRepository) dailySeries(
	ctx context.Context, userID int, muscle string, from, to time.Time,
) (_ []DailyVolume, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT w.workout_date, COALESCE(SUM(i.total_volume), 0)
		FROM workout_muscle_group_impacts i
		JOIN workouts w ON w.id = i.workout_id
		JOIN muscle_groups mg ON mg.id = i.muscle_group_id
		WHERE w.user_id = :user
		  AND w.is_completed = 1
		  AND w.workout_date BETWEEN :from AND :to
		  AND (:muscle = '' OR mg.name = :muscle)
		GROUP BY w.workout_date
		ORDER BY w.workout_date`,
		sql.Named("user", userID), sql.Named("from", day(from)), sql.Named("to", day(to)),
		sql.Named("muscle", muscle))
	if err != nil {
		return nil, fmt.Errorf("query daily series: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var series []DailyVolume
	for rows.Next() {
		var (
			date string
			dv   DailyVolume
		)
		if err = rows.Scan(&date, &dv.Volume); err != nil {
			return nil, fmt.Errorf("scan daily volume: %w", err)
		}
		if dv.Date, err = time.Parse(time.DateOnly, date); err != nil {
			return nil, fmt.Errorf("parse workout date %q: %w", date, err)
		}
		series = append(series, dv)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return series, nil
}

// userVolume is a user's per-muscle volume over a window.
type userVolume struct {
	UserID     int
	Username   string
	Bodyweight float64
	Workouts   int
	Muscles    map[string]float64
}

// userIDFilter encodes the users to include as a JSON array for json_each. An empty filter selects
// every user.
func userIDFilter(userIDs []int) (string, error) {
	if userIDs == nil {
		userIDs = []int{}
	}
	b, err := json.Marshal(userIDs)
	if err != nil {
		return "", fmt.Errorf("marshal user ids: %w", err)
	}
	return string(b), nil
}

// userVolumes returns the per-muscle volume and completed workout count of each selected user within
// [from, to]. Users without workouts are included with empty volumes.
func (r *sqliteRepository) userVolumes(
	ctx context.Context, userIDs []int, from, to time.Time,
) (_ []userVolume, err error) {
	filter, err := userIDFilter(userIDs)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		WITH selected AS (SELECT id, username, COALESCE(bodyweight_kg, 0) AS bodyweight
		                  FROM users
		                  WHERE :ids = '[]' OR id IN (SELECT value FROM json_each(:ids))),
		     recent AS (SELECT id, user_id
		                FROM workouts
		                WHERE is_completed = 1 AND workout_date BETWEEN :from AND :to),
		     counts AS (SELECT user_id, COUNT(*) AS workouts FROM recent GROUP BY user_id)
		SELECT s.id, s.username, s.bodyweight, COALESCE(c.workouts, 0), mg.name, SUM(i.total_volume)
		FROM selected s
		LEFT JOIN counts c ON c.user_id = s.id
		LEFT JOIN recent w ON w.user_id = s.id
		LEFT JOIN workout_muscle_group_impacts i ON i.workout_id = w.id
		LEFT JOIN muscle_groups mg ON mg.id = i.muscle_group_id
		GROUP BY s.id, mg.name
		ORDER BY s.id`,
		sql.Named("ids", filter), sql.Named("from", day(from)), sql.Named("to", day(to)))
	if err != nil {
		return nil, fmt.Errorf("query user volumes: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var out []userVolume
	for rows.Next() {
		var (
			uv     userVolume
			muscle sql.NullString
			volume sql.NullFloat64
		)
		if err = rows.Scan(&uv.UserID, &uv.Username, &uv.Bodyweight, &uv.Workouts, &muscle, &volume); err != nil {
			return nil, fmt.Errorf("scan user volume: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].UserID != uv.UserID {
			uv.Muscles = make(map[string]float64)
			out = append(out, uv)
		}
		if muscle.Valid {
			out[len(out)-1].Muscles[muscle.String] += volume.Float64
		}
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// muscleNames returns the muscle group catalog names ordered by ID.
func (r *sqliteRepository) muscleNames(ctx context.Context) (_ []string, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, "SELECT name FROM muscle_groups ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query muscle groups: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()
	var names []string
	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan muscle group: %w", err)
		}
		names = append(names, name)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return names, nil
}

// bodyweight returns the bodyweight of a user, 0 when unknown.
func (r *sqliteRepository) bodyweight(ctx context.Context, userID int) (float64, error) {
	var bw sql.NullFloat64
	err := r.db.ReadOnly.QueryRowContext(ctx, "SELECT bodyweight_kg FROM users WHERE id = ?", userID).Scan(&bw)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("query bodyweight: %w", err)
	}
	return bw.Float64, nil
}
