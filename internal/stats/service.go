package stats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/myrjola/liftscore/internal/sqlite"
)

const topChanges = 5

// DailyVolume is the total volume of the workouts of one day.
type DailyVolume struct {
	Date   time.Time
	Volume float64
}

// Summary is a user's progress over a period compared with the period before it.
type Summary struct {
	Period         Period
	Range          Range
	Totals         map[string]float64
	TotalVolume    float64
	Changes        []Change
	TopChanges     []Change
	Series         []DailyVolume
	Balance        float64
	RelativeVolume float64
}

// Service computes statistics from the impact cache. Only completed workouts count.
type Service struct {
	repo   *sqliteRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a stats service. now supplies the current time and defaults to [time.Now].
func NewService(db *sqlite.Database, logger *slog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:   newSQLiteRepository(db),
		logger: logger,
		now:    now,
	}
}

// Today returns the current UTC date.
func (s *Service) Today() time.Time {
	return truncateDay(s.now().UTC())
}

// MuscleTotals returns the volume per muscle group between from and to, both inclusive.
func (s *Service) MuscleTotals(ctx context.Context, userID int, from, to time.Time) (map[string]float64, error) {
	totals, err := s.repo.muscleTotals(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("muscle totals of user %d: %w", userID, err)
	}
	return totals, nil
}

// DailySeries returns the total volume per workout day between from and to, both inclusive.
func (s *Service) DailySeries(ctx context.Context, userID int, from, to time.Time) ([]DailyVolume, error) {
	series, err := s.repo.dailySeries(ctx, userID, "", from, to)
	if err != nil {
		return nil, fmt.Errorf("daily series of user %d: %w", userID, err)
	}
	return series, nil
}

// MuscleHistory returns the daily volume of one muscle group over the 180 days ending today.
func (s *Service) MuscleHistory(ctx context.Context, userID int, muscle string) ([]DailyVolume, error) {
	r := RangeFor(PeriodAll, s.Today())
	series, err := s.repo.dailySeries(ctx, userID, muscle, r.Start, r.End)
	if err != nil {
		return nil, fmt.Errorf("%s history of user %d: %w", muscle, userID, err)
	}
	return series, nil
}

// Summary compiles a user's statistics for the period ending today.
func (s *Service) Summary(ctx context.Context, userID int, period Period) (Summary, error) {
	r := RangeFor(period, s.Today())
	current, err := s.MuscleTotals(ctx, userID, r.Start, r.End)
	if err != nil {
		return Summary{}, err
	}
	previous, err := s.MuscleTotals(ctx, userID, r.PrevStart, r.PrevEnd)
	if err != nil {
		return Summary{}, err
	}
	series, err := s.DailySeries(ctx, userID, r.Start, r.End)
	if err != nil {
		return Summary{}, err
	}
	bodyweight, err := s.repo.bodyweight(ctx, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("summary of user %d: %w", userID, err)
	}

	changes := BuildChanges(current, previous)
	total := sum(current)
	summary := Summary{
		Period:         period,
		Range:          r,
		Totals:         current,
		TotalVolume:    total,
		Changes:        changes,
		TopChanges:     TopChanges(changes, topChanges),
		Series:         series,
		Balance:        BalanceScore(values(current)),
		RelativeVolume: RelativeVolume(total, bodyweight),
	}
	s.logger.LogAttrs(ctx, slog.LevelDebug, "computed stats summary",
		slog.Int("user_id", userID),
		slog.String("period", string(period)),
		slog.Float64("total_volume", total))
	return summary, nil
}
