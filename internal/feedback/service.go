package feedback

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/myrjola/liftscore/internal/errors"
	"github.com/myrjola/liftscore/internal/logging"
	"github.com/myrjola/liftscore/internal/sqlite"
	"github.com/myrjola/liftscore/internal/workout"
)

const defaultHistoryLimit = 10

// ErrNotCompleted is returned when feedback is requested for a workout that does not exist or is not
// completed.
var ErrNotCompleted = errors.NewSentinel("workout not completed")

// Summary is the stored feedback of one completed workout.
type Summary struct {
	ID                int                `json:"id"`
	WorkoutID         int                `json:"workout_id"`
	CompletionQuality float64            `json:"completion_quality"`
	Recommendation    string             `json:"recommendation"`
	Movements         []MovementAnalysis `json:"movements"`
	Imbalances        []Imbalance        `json:"imbalances"`
	CreatedAt         time.Time          `json:"created_at"`
}

// HistoryEntry is the rep analysis of one past performance of a movement.
type HistoryEntry struct {
	RepAnalysis

	WorkoutID   int       `json:"workout_id"`
	WorkoutDate time.Time `json:"workout_date"`
	WorkoutName string    `json:"workout_name"`
}

// Service stores workout feedback and maintains the feedback profiles.
type Service struct {
	db     *sqlite.Database
	logger *slog.Logger
	rules  Rules
	now    func() time.Time
}

// NewService creates a feedback service. now supplies the current time and defaults to [time.Now].
func NewService(db *sqlite.Database, logger *slog.Logger, rules Rules, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		db:     db,
		logger: logger,
		rules:  rules,
		now:    now,
	}
}

// Rules returns the rules the service analyzes with.
func (s *Service) Rules() Rules {
	return s.rules
}

func goalOf(ctx context.Context, store workout.Store, userID int) (workout.Goal, error) {
	u, err := store.GetUser(ctx, userID)
	if errors.Is(err, workout.ErrNotFound) {
		return workout.GoalGeneralFitness, nil
	}
	if err != nil {
		return "", fmt.Errorf("get goal: %w", err)
	}
	if u.Goal == "" {
		return workout.GoalGeneralFitness, nil
	}
	return u.Goal, nil
}

// ProcessCompletedWorkout analyzes a completed workout, stores its summary and updates the user's
// profiles of every classified movement.
//
// Everything happens in one transaction. A workout that already has a summary is returned as is without
// touching the profiles, so processing the same workout twice counts it once.
func (s *Service) ProcessCompletedWorkout(ctx context.Context, workoutID int) (Summary, error) {
	ctx = logging.WithAttrs(ctx, slog.Int("workout_id", workoutID))
	var (
		summary Summary
		created bool
	)
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		store := workout.NewStore(tx)
		repo := newRepository(tx)

		w, err := store.GetWorkout(ctx, workoutID)
		if errors.Is(err, workout.ErrNotFound) {
			return fmt.Errorf("workout %d: %w", workoutID, ErrNotCompleted)
		}
		if err != nil {
			return err
		}
		if !w.Completed {
			return fmt.Errorf("workout %d: %w", workoutID, ErrNotCompleted)
		}

		existing, err := repo.getSummary(ctx, workoutID)
		switch {
		case err == nil:
			summary = existing
			return nil
		case !errors.Is(err, workout.ErrNotFound):
			return err
		}

		goal, err := goalOf(ctx, store, w.UserID)
		if err != nil {
			return err
		}
		analysis := s.rules.AnalyzeWorkout(w, goal)
		now := s.now().UTC().Truncate(time.Second)
		volumes, err := repo.muscleVolumesSince(ctx, w.UserID, s.lookbackStart(now))
		if err != nil {
			return err
		}

		summary = Summary{
			ID:                0,
			WorkoutID:         workoutID,
			CompletionQuality: analysis.OverallQuality,
			Recommendation:    analysis.Recommendation,
			Movements:         analysis.Movements,
			Imbalances:        s.rules.DetectImbalances(volumes),
			CreatedAt:         now,
		}
		if summary.ID, err = repo.insertSummary(ctx, summary); err != nil {
			return err
		}

		for _, m := range analysis.Movements {
			if m.Pattern == PatternInsufficientData {
				continue
			}
			prev, profileErr := repo.getProfile(ctx, w.UserID, m.MovementID)
			if profileErr != nil {
				return profileErr
			}
			next := NextProfile(prev, m.Pattern, m.SuggestedMultiplier, now)
			next.UserID, next.MovementID = w.UserID, m.MovementID
			if profileErr = repo.saveProfile(ctx, next); profileErr != nil {
				return fmt.Errorf("movement %d: %w", m.MovementID, profileErr)
			}
		}
		created = true
		return nil
	})
	if err != nil {
		return Summary{}, fmt.Errorf("process workout %d: %w", workoutID, err)
	}
	if created {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "processed workout feedback",
			slog.Float64("quality", summary.CompletionQuality),
			slog.Int("movements", len(summary.Movements)),
			slog.Int("imbalances", len(summary.Imbalances)))
	} else {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "workout feedback already processed")
	}
	return summary, nil
}

// lookbackStart is the first workout date included in imbalance checks.
func (s *Service) lookbackStart(now time.Time) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return today.AddDate(0, 0, -s.rules.Imbalance.LookbackDays)
}

// GetSummary returns the stored feedback of a workout or [workout.ErrNotFound].
func (s *Service) GetSummary(ctx context.Context, workoutID int) (Summary, error) {
	summary, err := newRepository(s.db.ReadOnly).getSummary(ctx, workoutID)
	if err != nil {
		return Summary{}, fmt.Errorf("get summary: %w", err)
	}
	return summary, nil
}

// MuscleImbalances checks the antagonist pairs over the user's recent completed workouts.
func (s *Service) MuscleImbalances(ctx context.Context, userID int) ([]Imbalance, error) {
	volumes, err := newRepository(s.db.ReadOnly).muscleVolumesSince(ctx, userID, s.lookbackStart(s.now().UTC()))
	if err != nil {
		return nil, fmt.Errorf("muscle imbalances of user %d: %w", userID, err)
	}
	return s.rules.DetectImbalances(volumes), nil
}

// MovementMultiplier returns the learned multiplier and its confidence, (1.0, 0.0) without a profile.
func (s *Service) MovementMultiplier(ctx context.Context, userID, movementID int) (float64, float64, error) {
	p, err := newRepository(s.db.ReadOnly).getProfile(ctx, userID, movementID)
	if err != nil {
		return 0, 0, fmt.Errorf("movement multiplier: %w", err)
	}
	if p == nil {
		return 1.0, 0.0, nil
	}
	return p.Multiplier, p.Confidence, nil
}

// MultiplierForMovement looks up the multiplier of a movement by name. It reports false when the
// movement is unknown or its profile is not confident enough.
func (s *Service) MultiplierForMovement(ctx context.Context, userID int, name string) (float64, bool, error) {
	m, err := workout.NewStore(s.db.ReadOnly).FindMovement(ctx, workout.NormalizeMovementName(name))
	if errors.Is(err, workout.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("multiplier for %q: %w", name, err)
	}
	p, err := newRepository(s.db.ReadOnly).getProfile(ctx, userID, m.ID)
	if err != nil {
		return 0, false, fmt.Errorf("multiplier for %q: %w", name, err)
	}
	if p == nil || p.Confidence < s.rules.Plan.MinConfidence {
		return 0, false, nil
	}
	return p.Multiplier, true, nil
}

// MovementHistory analyzes the most recent performances of a movement, newest first. A non-positive
// limit selects the default of 10. Performances without any entries are left out.
func (s *Service) MovementHistory(ctx context.Context, userID, movementID, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	store := workout.NewStore(s.db.ReadOnly)
	refs, err := newRepository(s.db.ReadOnly).movementPerformances(ctx, userID, movementID, limit)
	if err != nil {
		return nil, fmt.Errorf("movement history: %w", err)
	}
	if len(refs) == 0 {
		return nil, nil
	}
	goal, err := goalOf(ctx, store, userID)
	if err != nil {
		return nil, fmt.Errorf("movement history: %w", err)
	}

	workouts := make(map[int]workout.Workout)
	var history []HistoryEntry
	for _, ref := range refs {
		w, ok := workouts[ref.workoutID]
		if !ok {
			if w, err = store.GetWorkout(ctx, ref.workoutID); err != nil {
				return nil, fmt.Errorf("movement history: %w", err)
			}
			workouts[ref.workoutID] = w
		}
		for _, wm := range w.Movements {
			if wm.ID != ref.workoutMovementID {
				continue
			}
			entries := MovementEntries(wm)
			if len(entries) == 0 {
				break
			}
			history = append(history, HistoryEntry{
				RepAnalysis: s.rules.AnalyzeRepPattern(entries, goal),
				WorkoutID:   w.ID,
				WorkoutDate: w.Date,
				WorkoutName: w.Name,
			})
		}
	}
	return history, nil
}
