// Package workout scores logged workouts: it turns sets, reps and load into per-muscle-group volume and
// keeps the per-workout impact cache up to date.
package workout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/myrjola/liftscore/internal/logging"
	"github.com/myrjola/liftscore/internal/sqlite"
)

const backfillConcurrency = 4

// Service handles the business logic of workout scoring.
type Service struct {
	db     *sqlite.Database
	logger *slog.Logger
	load   LoadConfig
}

// NewService creates a new workout service scoring with load.
func NewService(db *sqlite.Database, logger *slog.Logger, load LoadConfig) *Service {
	return &Service{
		db:     db,
		logger: logger,
		load:   load,
	}
}

// LoadConfig returns the load coefficients the service scores with.
func (s *Service) LoadConfig() LoadConfig {
	return s.load
}

func (s *Service) reader() Store {
	return NewStore(s.db.ReadOnly)
}

// CreateUser stores a new user.
func (s *Service) CreateUser(ctx context.Context, u User) (User, error) {
	created, err := NewStore(s.db.ReadWrite).CreateUser(ctx, u)
	if err != nil {
		return User{}, fmt.Errorf("create user %q: %w", u.Username, err)
	}
	return created, nil
}

// GetUser retrieves a user.
func (s *Service) GetUser(ctx context.Context, id int) (User, error) {
	u, err := s.reader().GetUser(ctx, id)
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// CreateWorkout creates an empty workout for a user.
func (s *Service) CreateWorkout(ctx context.Context, userID int, name string, date time.Time) (Workout, error) {
	w, err := NewStore(s.db.ReadWrite).CreateWorkout(ctx, userID, name, date)
	if err != nil {
		return Workout{}, fmt.Errorf("create workout: %w", err)
	}
	return w, nil
}

// GetWorkout retrieves a workout with all its movements and sets.
func (s *Service) GetWorkout(ctx context.Context, id int) (Workout, error) {
	w, err := s.reader().GetWorkout(ctx, id)
	if err != nil {
		return Workout{}, fmt.Errorf("get workout: %w", err)
	}
	return w, nil
}

// TargetInput declares a muscle group contribution by name for [Service.CreateMovement].
type TargetInput struct {
	MuscleGroup string
	Percentage  float64
}

// MovementInput describes a movement for [Service.CreateMovement].
type MovementInput struct {
	Name        string
	Description string
	Targets     []TargetInput
}

// FindMovement looks up a movement by name, ignoring case, separators and plural forms.
func (s *Service) FindMovement(ctx context.Context, name string) (Movement, error) {
	m, err := s.reader().FindMovement(ctx, NormalizeMovementName(name))
	if err != nil {
		return Movement{}, fmt.Errorf("find movement %q: %w", name, err)
	}
	return m, nil
}

// CreateMovement finds the movement matching in.Name or creates it with a formatted display name.
//
// Muscle groups missing from the catalog are created. Targets are linked to an existing movement only
// for muscle groups it does not target yet.
func (s *Service) CreateMovement(ctx context.Context, in MovementInput) (Movement, error) {
	normalized := NormalizeMovementName(in.Name)
	if normalized == "" {
		return Movement{}, fmt.Errorf("create movement: empty name %q", in.Name)
	}
	var movement Movement
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		store := NewStore(tx)
		existing, err := store.FindMovement(ctx, normalized)
		var id int
		switch {
		case err == nil:
			id = existing.ID
		case errors.Is(err, ErrNotFound):
			if id, err = store.InsertMovement(ctx, FormatMovementName(in.Name), normalized, in.Description); err != nil {
				return err
			}
		default:
			return err
		}
		for _, t := range in.Targets {
			name := strings.TrimSpace(t.MuscleGroup)
			if name == "" {
				continue
			}
			mg, err := store.EnsureMuscleGroup(ctx, name)
			if err != nil {
				return err
			}
			if err = store.LinkMuscleGroup(ctx, id, mg.ID, t.Percentage); err != nil {
				return err
			}
		}
		movement, err = store.GetMovement(ctx, id)
		return err
	})
	if err != nil {
		return Movement{}, fmt.Errorf("create movement %q: %w", in.Name, err)
	}
	return movement, nil
}

// AddMovement appends a movement to a workout and returns the workout movement ID.
func (s *Service) AddMovement(ctx context.Context, workoutID, movementID int) (int, error) {
	id, err := NewStore(s.db.ReadWrite).AddWorkoutMovement(ctx, workoutID, movementID)
	if err != nil {
		return 0, fmt.Errorf("add movement %d to workout %d: %w", movementID, workoutID, err)
	}
	return id, nil
}

// AddSet appends a set to a workout movement. The set may carry legacy reps and weights, paired entries
// or both.
func (s *Service) AddSet(ctx context.Context, workoutMovementID int, set Set) (int, error) {
	var id int
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = NewStore(tx).AddSet(ctx, workoutMovementID, set)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("add set to workout movement %d: %w", workoutMovementID, err)
	}
	return id, nil
}

// RebuildImpacts recomputes the cached impact rows of a workout atomically.
func (s *Service) RebuildImpacts(ctx context.Context, workoutID int) error {
	ctx = logging.WithAttrs(ctx, slog.Int("workout_id", workoutID))
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		return s.rebuildImpacts(ctx, NewStore(tx), workoutID)
	})
	if err != nil {
		return fmt.Errorf("rebuild impacts of workout %d: %w", workoutID, err)
	}
	return nil
}

func (s *Service) rebuildImpacts(ctx context.Context, store Store, workoutID int) error {
	w, err := store.GetWorkout(ctx, workoutID)
	if err != nil {
		return err
	}
	return s.replaceImpacts(ctx, store, workoutID, s.load.WorkoutTotals(w))
}

func (s *Service) replaceImpacts(ctx context.Context, store Store, workoutID int, totals Totals) error {
	if err := store.ReplaceImpacts(ctx, workoutID, totals); err != nil {
		return err
	}
	s.logger.LogAttrs(ctx, slog.LevelDebug, "rebuilt workout impacts", slog.Int("muscle_groups", len(totals)))
	return nil
}

// CompleteWorkout marks a workout completed on date and rebuilds its impacts in one transaction.
//
// Sets with legacy rep rows get their first paired entry synced from the legacy data: the rep total and
// the first recorded weight.
func (s *Service) CompleteWorkout(ctx context.Context, workoutID int, date time.Time) (Workout, error) {
	ctx = logging.WithAttrs(ctx, slog.Int("workout_id", workoutID))
	var w Workout
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		store := NewStore(tx)
		if err := store.SetCompleted(ctx, workoutID, date); err != nil {
			return err
		}
		current, err := store.GetWorkout(ctx, workoutID)
		if err != nil {
			return err
		}
		for _, wm := range current.Movements {
			for _, set := range wm.Sets {
				if len(set.Reps) == 0 {
					continue
				}
				if err = store.SyncFirstEntry(ctx, set); err != nil {
					return err
				}
			}
		}
		// Reload so that scoring sees the synced entries.
		if w, err = store.GetWorkout(ctx, workoutID); err != nil {
			return err
		}
		return s.replaceImpacts(ctx, store, workoutID, s.load.WorkoutTotals(w))
	})
	if err != nil {
		return Workout{}, fmt.Errorf("complete workout %d: %w", workoutID, err)
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "completed workout", slog.String("date", formatDate(date)))
	return w, nil
}

// BackfillSetEntries creates paired entries for every set that only has legacy rows and returns the
// number of sets converted.
func (s *Service) BackfillSetEntries(ctx context.Context) (int, error) {
	var converted int
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		store := NewStore(tx)
		sets, err := store.ListLegacyOnlySets(ctx)
		if err != nil {
			return err
		}
		for _, set := range sets {
			if err = store.InsertEntries(ctx, set.ID, ReconcileEntries(set)); err != nil {
				return fmt.Errorf("set %d: %w", set.ID, err)
			}
		}
		converted = len(sets)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("backfill set entries: %w", err)
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "backfilled set entries", slog.Int("sets", converted))
	return converted, nil
}

// BackfillImpacts rebuilds the impact cache of every completed workout and returns the number of
// workouts processed.
//
// Each workout is reloaded, scored and written in its own transaction, like [Service.RebuildImpacts], so
// a workout edited while the backfill runs never keeps stale totals. Transactions are started from a
// bounded pool of goroutines and serialize on the read-write connection.
func (s *Service) BackfillImpacts(ctx context.Context) (int, error) {
	ids, err := s.reader().ListCompletedWorkoutIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("backfill impacts: %w", err)
	}

	var processed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(backfillConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			wctx := logging.WithAttrs(gctx, slog.Int("workout_id", id))
			if txErr := s.db.WithTx(wctx, func(tx *sql.Tx) error {
				return s.rebuildImpacts(wctx, NewStore(tx), id)
			}); txErr != nil {
				return fmt.Errorf("workout %d: %w", id, txErr)
			}
			processed.Add(1)
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return int(processed.Load()), fmt.Errorf("backfill impacts: %w", err)
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "backfilled impacts", slog.Int("workouts", len(ids)))
	return len(ids), nil
}

// ListMuscleGroups returns the muscle group catalog.
func (s *Service) ListMuscleGroups(ctx context.Context) ([]MuscleGroup, error) {
	groups, err := s.reader().ListMuscleGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list muscle groups: %w", err)
	}
	return groups, nil
}

// ListUserIDs returns the IDs of all users.
func (s *Service) ListUserIDs(ctx context.Context) ([]int, error) {
	ids, err := s.reader().ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return ids, nil
}
