package feedback_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/myrjola/liftscore/internal/feedback"
	"github.com/myrjola/liftscore/internal/sqlite"
	"github.com/myrjola/liftscore/internal/testhelpers"
	"github.com/myrjola/liftscore/internal/workout"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func date(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	t        *testing.T
	workouts *workout.Service
	feedback *feedback.Service
	userID   int
	bench    workout.Movement
	curl     workout.Movement
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := t.Context()
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	db, err := sqlite.NewDatabase(ctx, ":memory:", logger)
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	t.Cleanup(func() {
		if err = db.Close(); err != nil {
			t.Errorf("close database: %v", err)
		}
	})
	f := &fixture{
		t:        t,
		workouts: workout.NewService(db, logger, workout.DefaultLoadConfig()),
		feedback: feedback.NewService(db, logger, feedback.DefaultRules(), func() time.Time { return now }),
	}
	user, err := f.workouts.CreateUser(ctx, workout.User{Username: "ann", BodyweightKg: 70, Goal: workout.GoalStrength})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	f.userID = user.ID
	f.bench = f.movement("Bench Press", "Chest")
	f.curl = f.movement("Biceps Curl", "Biceps")
	return f
}

func (f *fixture) movement(name, muscle string) workout.Movement {
	f.t.Helper()
	m, err := f.workouts.CreateMovement(f.t.Context(), workout.MovementInput{
		Name:    name,
		Targets: []workout.TargetInput{{MuscleGroup: muscle, Percentage: 100}},
	})
	if err != nil {
		f.t.Fatalf("CreateMovement: %v", err)
	}
	return m
}

// performance is a movement with the rep count of each of its single-entry sets.
type performance struct {
	movement workout.Movement
	reps     []int
}

// logWorkout records a workout on day and completes it unless completed is false.
func (f *fixture) logWorkout(day time.Time, completed bool, performances ...performance) workout.Workout {
	f.t.Helper()
	ctx := f.t.Context()
	w, err := f.workouts.CreateWorkout(ctx, f.userID, "Day "+day.Format("Jan 2"), day)
	if err != nil {
		f.t.Fatalf("CreateWorkout: %v", err)
	}
	for _, p := range performances {
		wmID, addErr := f.workouts.AddMovement(ctx, w.ID, p.movement.ID)
		if addErr != nil {
			f.t.Fatalf("AddMovement: %v", addErr)
		}
		for _, reps := range p.reps {
			if _, addErr = f.workouts.AddSet(ctx, wmID, workout.Set{
				Entries: []workout.SetEntry{{Order: 1, Reps: reps, Weight: 60}},
			}); addErr != nil {
				f.t.Fatalf("AddSet: %v", addErr)
			}
		}
	}
	if !completed {
		return w
	}
	if w, err = f.workouts.CompleteWorkout(ctx, w.ID, day); err != nil {
		f.t.Fatalf("CompleteWorkout: %v", err)
	}
	return w
}

func (f *fixture) process(workoutID int) feedback.Summary {
	f.t.Helper()
	s, err := f.feedback.ProcessCompletedWorkout(f.t.Context(), workoutID)
	if err != nil {
		f.t.Fatalf("ProcessCompletedWorkout: %v", err)
	}
	return s
}

func TestService_ProcessCompletedWorkout(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	f := newFixture(t)
	w := f.logWorkout(date(9), true,
		performance{movement: f.bench, reps: []int{10, 10, 4}},
		performance{movement: f.curl, reps: []int{10, 8}},
	)

	got := f.process(w.ID)
	heavy, appropriate := 0.4, 0.8
	want := feedback.Summary{
		ID:                got.ID,
		WorkoutID:         w.ID,
		CompletionQuality: 0.75,
		Recommendation:    "Mixed performance. Review individual movements for specific adjustments.",
		Movements: []feedback.MovementAnalysis{
			{
				RepAnalysis: feedback.RepAnalysis{
					Pattern:             feedback.PatternWeightTooHeavy,
					DeclineRatio:        &heavy,
					SuggestedMultiplier: 0.95,
					FirstSetReps:        10,
					LastSetReps:         4,
				},
				MovementID:   f.bench.ID,
				MovementName: f.bench.Name,
			},
			{
				RepAnalysis: feedback.RepAnalysis{
					Pattern:             feedback.PatternWeightAppropriate,
					DeclineRatio:        &appropriate,
					SuggestedMultiplier: 1,
					FirstSetReps:        10,
					LastSetReps:         8,
				},
				MovementID:   f.curl.ID,
				MovementName: f.curl.Name,
			},
		},
		Imbalances: []feedback.Imbalance{
			{
				Pair:           [2]string{"Chest", "Back"},
				Ratio:          1,
				Dominant:       "Chest",
				Recommendation: "Consider adding more Back exercises to balance with Chest.",
			},
			{
				Pair:           [2]string{"Biceps", "Triceps"},
				Ratio:          1,
				Dominant:       "Biceps",
				Recommendation: "Consider adding more Triceps exercises to balance with Biceps.",
			},
		},
		CreatedAt: now,
	}
	if diff := cmp.Diff(want, got, approx()); diff != "" {
		t.Fatalf("ProcessCompletedWorkout() mismatch (-want +got):\n%s", diff)
	}

	stored, err := f.feedback.GetSummary(ctx, w.ID)
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if diff := cmp.Diff(want, stored, approx()); diff != "" {
		t.Errorf("GetSummary() mismatch (-want +got):\n%s", diff)
	}

	multiplier, confidence, err := f.feedback.MovementMultiplier(ctx, f.userID, f.bench.ID)
	if err != nil {
		t.Fatalf("MovementMultiplier: %v", err)
	}
	if multiplier != 0.95 || confidence != 0.25 {
		t.Errorf("bench profile = (%v, %v), want (0.95, 0.25)", multiplier, confidence)
	}

	t.Run("processing twice changes nothing", func(t *testing.T) {
		again := f.process(w.ID)
		if diff := cmp.Diff(got, again, approx()); diff != "" {
			t.Errorf("second ProcessCompletedWorkout() mismatch (-first +second):\n%s", diff)
		}
		multiplier, confidence, err = f.feedback.MovementMultiplier(ctx, f.userID, f.bench.ID)
		if err != nil {
			t.Fatalf("MovementMultiplier: %v", err)
		}
		if multiplier != 0.95 || confidence != 0.25 {
			t.Errorf("bench profile after reprocessing = (%v, %v), want (0.95, 0.25)", multiplier, confidence)
		}
	})

	t.Run("later workouts smooth the multiplier", func(t *testing.T) {
		next := f.logWorkout(date(10), true, performance{movement: f.bench, reps: []int{10, 10, 10}})
		f.process(next.ID)
		multiplier, confidence, err = f.feedback.MovementMultiplier(ctx, f.userID, f.bench.ID)
		if err != nil {
			t.Fatalf("MovementMultiplier: %v", err)
		}
		if multiplier != 0.965 || confidence != 0.2 {
			t.Errorf("bench profile = (%v, %v), want (0.965, 0.2)", multiplier, confidence)
		}
	})
}

func TestService_ProcessCompletedWorkout_notCompleted(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	w := f.logWorkout(date(9), false, performance{movement: f.bench, reps: []int{10, 8}})

	for _, id := range []int{w.ID, 9999} {
		if _, err := f.feedback.ProcessCompletedWorkout(t.Context(), id); !errors.Is(err, feedback.ErrNotCompleted) {
			t.Errorf("ProcessCompletedWorkout(%d) error = %v, want ErrNotCompleted", id, err)
		}
	}
	if _, err := f.feedback.GetSummary(t.Context(), w.ID); !errors.Is(err, workout.ErrNotFound) {
		t.Errorf("GetSummary() error = %v, want ErrNotFound", err)
	}
}

func TestService_MovementMultiplier_noProfile(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	multiplier, confidence, err := f.feedback.MovementMultiplier(t.Context(), f.userID, f.bench.ID)
	if err != nil {
		t.Fatalf("MovementMultiplier: %v", err)
	}
	if multiplier != 1 || confidence != 0 {
		t.Errorf("MovementMultiplier() = (%v, %v), want (1, 0)", multiplier, confidence)
	}
}

// benchHistory logs three completed bench workouts that were too heavy, giving a confident 0.95 profile.
func (f *fixture) benchHistory() {
	f.t.Helper()
	for _, d := range []int{2, 5, 9} {
		w := f.logWorkout(date(d), true, performance{movement: f.bench, reps: []int{10, 10, 4}})
		f.process(w.ID)
	}
}

func TestService_MultiplierForMovement(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	f := newFixture(t)

	w := f.logWorkout(date(2), true, performance{movement: f.bench, reps: []int{10, 10, 4}})
	f.process(w.ID)
	if _, ok, err := f.feedback.MultiplierForMovement(ctx, f.userID, "Bench Press"); err != nil || ok {
		t.Errorf("MultiplierForMovement() with one data point = (%v, %v), want no multiplier", ok, err)
	}

	for _, d := range []int{5, 9} {
		w = f.logWorkout(date(d), true, performance{movement: f.bench, reps: []int{10, 10, 4}})
		f.process(w.ID)
	}
	multiplier, ok, err := f.feedback.MultiplierForMovement(ctx, f.userID, "BENCH_PRESS")
	if err != nil {
		t.Fatalf("MultiplierForMovement: %v", err)
	}
	if !ok || multiplier != 0.95 {
		t.Errorf("MultiplierForMovement() = (%v, %v), want (0.95, true)", multiplier, ok)
	}
	if plural, pluralOK, pluralErr := f.feedback.MultiplierForMovement(ctx, f.userID, "Bench Presses"); pluralErr != nil ||
		!pluralOK || plural != multiplier {
		t.Errorf("MultiplierForMovement(Bench Presses) = (%v, %v, %v), want (%v, true)", plural, pluralOK, pluralErr,
			multiplier)
	}
	if _, ok, err = f.feedback.MultiplierForMovement(ctx, f.userID, "Zercher Squat"); err != nil || ok {
		t.Errorf("MultiplierForMovement() of unknown movement = (%v, %v), want no multiplier", ok, err)
	}
}

func TestService_ApplyToPlan(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	f := newFixture(t)
	f.benchHistory()

	plan := feedback.Plan{Movements: []feedback.PlannedMovement{
		{Name: "Bench Press", Sets: 3, Reps: 5, Weight: 100},
		{Name: "bench press", Sets: 3, Reps: 8, Weight: 61},
		{Name: "Push Up", Sets: 3, Reps: 15, IsBodyweight: true},
		{Name: "Bench Press", Sets: 1, Reps: 20, Weight: 0},
		{Name: "Squat", Sets: 5, Reps: 5, Weight: 80},
	}}
	got, err := f.feedback.ApplyToPlan(ctx, f.userID, plan)
	if err != nil {
		t.Fatalf("ApplyToPlan: %v", err)
	}
	want := feedback.Plan{
		Movements: []feedback.PlannedMovement{
			{Name: "Bench Press", Sets: 3, Reps: 5, Weight: 95},
			{Name: "bench press", Sets: 3, Reps: 8, Weight: 58},
			{Name: "Push Up", Sets: 3, Reps: 15, IsBodyweight: true},
			{Name: "Bench Press", Sets: 1, Reps: 20, Weight: 0},
			{Name: "Squat", Sets: 5, Reps: 5, Weight: 80},
		},
		Adjustments: []feedback.Adjustment{
			{Movement: "Bench Press", Original: 100, Adjusted: 95, Multiplier: 0.95},
			{Movement: "bench press", Original: 61, Adjusted: 58, Multiplier: 0.95},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ApplyToPlan() mismatch (-want +got):\n%s", diff)
	}
	if plan.Movements[0].Weight != 100 {
		t.Errorf("ApplyToPlan modified its input plan")
	}

	weekly := feedback.WeeklyPlan{Days: []feedback.DayPlan{
		{Day: "Monday", Movements: []feedback.PlannedMovement{{Name: "Bench Press", Weight: 100}}},
		{Day: "Wednesday", Movements: []feedback.PlannedMovement{{Name: "Squat", Weight: 80}}},
		{Day: "Friday", Movements: []feedback.PlannedMovement{{Name: "Bench Press", Weight: 62.5}}},
	}}
	gotWeekly, err := f.feedback.ApplyToWeeklyPlan(ctx, f.userID, weekly)
	if err != nil {
		t.Fatalf("ApplyToWeeklyPlan: %v", err)
	}
	wantAdjustments := []feedback.Adjustment{
		{Day: "Monday", Movement: "Bench Press", Original: 100, Adjusted: 95, Multiplier: 0.95},
		{Day: "Friday", Movement: "Bench Press", Original: 62.5, Adjusted: 59.5, Multiplier: 0.95},
	}
	if diff := cmp.Diff(wantAdjustments, gotWeekly.Adjustments); diff != "" {
		t.Errorf("ApplyToWeeklyPlan() adjustments mismatch (-want +got):\n%s", diff)
	}
	if got := gotWeekly.Days[2].Movements[0].Weight; got != 59.5 {
		t.Errorf("Friday bench = %v, want 59.5", got)
	}
}

func TestService_MovementHistory(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	f := newFixture(t)
	f.benchHistory()
	f.logWorkout(date(10), false, performance{movement: f.bench, reps: []int{10, 10}})

	history, err := f.feedback.MovementHistory(ctx, f.userID, f.bench.ID, 2)
	if err != nil {
		t.Fatalf("MovementHistory: %v", err)
	}
	var dates []time.Time
	for _, h := range history {
		dates = append(dates, h.WorkoutDate)
		if h.Pattern != feedback.PatternWeightTooHeavy || h.WorkoutName != "Day "+h.WorkoutDate.Format("Jan 2") {
			t.Errorf("history entry = %+v, want a too heavy named workout", h)
		}
	}
	if diff := cmp.Diff([]time.Time{date(9), date(5)}, dates); diff != "" {
		t.Errorf("MovementHistory() dates mismatch (-want +got):\n%s", diff)
	}

	all, err := f.feedback.MovementHistory(ctx, f.userID, f.bench.ID, 0)
	if err != nil {
		t.Fatalf("MovementHistory: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("MovementHistory() with default limit returned %d entries, want 3", len(all))
	}
}

func TestService_MuscleImbalances(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.logWorkout(date(9), true, performance{movement: f.bench, reps: []int{10}})
	// Outside the 30 day lookback.
	f.logWorkout(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), true, performance{movement: f.curl, reps: []int{10}})

	got, err := f.feedback.MuscleImbalances(t.Context(), f.userID)
	if err != nil {
		t.Fatalf("MuscleImbalances: %v", err)
	}
	want := []feedback.Imbalance{{
		Pair:           [2]string{"Chest", "Back"},
		Ratio:          1,
		Dominant:       "Chest",
		Recommendation: "Consider adding more Back exercises to balance with Chest.",
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MuscleImbalances() mismatch (-want +got):\n%s", diff)
	}
}
