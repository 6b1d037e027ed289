package stats_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/myrjola/liftscore/internal/sqlite"
	"github.com/myrjola/liftscore/internal/stats"
	"github.com/myrjola/liftscore/internal/testhelpers"
	"github.com/myrjola/liftscore/internal/workout"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	t        *testing.T
	workouts *workout.Service
	stats    *stats.Service
	bench    workout.Movement
	row      workout.Movement
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
		stats:    stats.NewService(db, logger, func() time.Time { return now }),
	}
	f.bench = f.movement("Bench Press", "Chest")
	f.row = f.movement("Barbell Row", "Back")
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

func (f *fixture) user(name string, bodyweight float64) int {
	f.t.Helper()
	u, err := f.workouts.CreateUser(f.t.Context(), workout.User{Username: name, BodyweightKg: bodyweight})
	if err != nil {
		f.t.Fatalf("CreateUser: %v", err)
	}
	return u.ID
}

// workout logs one set of reps at 0 kg external load, i.e. a volume of reps * 10, and completes it on
// date unless completed is false.
func (f *fixture) workout(userID int, m workout.Movement, date time.Time, reps int, completed bool) {
	f.t.Helper()
	ctx := f.t.Context()
	w, err := f.workouts.CreateWorkout(ctx, userID, m.Name, date)
	if err != nil {
		f.t.Fatalf("CreateWorkout: %v", err)
	}
	wmID, err := f.workouts.AddMovement(ctx, w.ID, m.ID)
	if err != nil {
		f.t.Fatalf("AddMovement: %v", err)
	}
	if _, err = f.workouts.AddSet(ctx, wmID, workout.Set{
		Entries: []workout.SetEntry{{Order: 1, Reps: reps}},
	}); err != nil {
		f.t.Fatalf("AddSet: %v", err)
	}
	if !completed {
		return
	}
	if _, err = f.workouts.CompleteWorkout(ctx, w.ID, date); err != nil {
		f.t.Fatalf("CompleteWorkout: %v", err)
	}
}

func TestService_Summary(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	f := newFixture(t)
	ann := f.user("ann", 50)

	f.workout(ann, f.bench, date(2026, 3, 10), 10, true) // today: 100
	f.workout(ann, f.bench, date(2026, 3, 4), 20, true)  // first day of the week: 200
	f.workout(ann, f.row, date(2026, 3, 4), 10, true)    // 100
	f.workout(ann, f.row, date(2026, 3, 3), 30, true)    // previous week: 300
	f.workout(ann, f.bench, date(2026, 3, 9), 50, false) // not completed
	f.workout(ann, f.row, date(2026, 2, 24), 90, true)   // before both weeks

	got, err := f.stats.Summary(ctx, ann, stats.PeriodWeek)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	want := stats.Summary{
		Period: stats.PeriodWeek,
		Range:  stats.RangeFor(stats.PeriodWeek, now),
		Totals: map[string]float64{"Chest": 300, "Back": 100},
		Changes: []stats.Change{
			{Muscle: "Chest", Current: 300, Previous: 0, Delta: 300, Percent: 100, Status: stats.StatusNew},
			{Muscle: "Back", Current: 100, Previous: 300, Delta: -200, Percent: -66.67, Status: stats.StatusDown},
		},
		TopChanges: []stats.Change{
			{Muscle: "Chest", Current: 300, Previous: 0, Delta: 300, Percent: 100, Status: stats.StatusNew},
			{Muscle: "Back", Current: 100, Previous: 300, Delta: -200, Percent: -66.67, Status: stats.StatusDown},
		},
		TotalVolume: 400,
		Series: []stats.DailyVolume{
			{Date: date(2026, 3, 4), Volume: 300},
			{Date: date(2026, 3, 10), Volume: 100},
		},
		Balance:        stats.BalanceScore([]float64{300, 100}),
		RelativeVolume: 8,
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Summary() mismatch (-want +got):\n%s", diff)
	}

	history, err := f.stats.MuscleHistory(ctx, ann, "Back")
	if err != nil {
		t.Fatalf("MuscleHistory: %v", err)
	}
	wantHistory := []stats.DailyVolume{
		{Date: date(2026, 2, 24), Volume: 900},
		{Date: date(2026, 3, 3), Volume: 300},
		{Date: date(2026, 3, 4), Volume: 100},
	}
	if diff := cmp.Diff(wantHistory, history); diff != "" {
		t.Errorf("MuscleHistory() mismatch (-want +got):\n%s", diff)
	}
}

func TestService_Summary_noWorkouts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	bob := f.user("bob", 0)

	got, err := f.stats.Summary(t.Context(), bob, stats.PeriodAll)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if got.TotalVolume != 0 || got.Balance != 0 || got.RelativeVolume != 0 || len(got.Changes) != 0 {
		t.Errorf("Summary() = %+v, want neutral values", got)
	}
}

func TestService_Leaderboards(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	f := newFixture(t)
	ann := f.user("ann", 50)
	bob := f.user("bob", 100)
	cid := f.user("cid", 0)

	f.workout(ann, f.bench, date(2026, 3, 9), 30, true)  // 300
	f.workout(ann, f.bench, date(2026, 3, 10), 10, true) // 100
	f.workout(bob, f.bench, date(2026, 3, 8), 30, true)  // 300
	f.workout(bob, f.row, date(2026, 3, 8), 30, true)    // 300
	f.workout(bob, f.row, date(2026, 3, 1), 99, true)    // outside the week

	counts, err := f.stats.WorkoutCounts(ctx, nil)
	if err != nil {
		t.Fatalf("WorkoutCounts: %v", err)
	}
	want := []stats.Ranking{
		{UserID: ann, Username: "ann", Value: 2},
		{UserID: bob, Username: "bob", Value: 2},
		{UserID: cid, Username: "cid", Value: 0},
	}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("WorkoutCounts() mismatch (-want +got):\n%s", diff)
	}

	total, err := f.stats.TotalImpact(ctx, []int{ann, bob})
	if err != nil {
		t.Fatalf("TotalImpact: %v", err)
	}
	want = []stats.Ranking{
		{UserID: bob, Username: "bob", Value: 600},
		{UserID: ann, Username: "ann", Value: 400},
	}
	if diff := cmp.Diff(want, total); diff != "" {
		t.Errorf("TotalImpact() mismatch (-want +got):\n%s", diff)
	}

	relative, err := f.stats.RelativeImpact(ctx, []int{ann, bob})
	if err != nil {
		t.Fatalf("RelativeImpact: %v", err)
	}
	want = []stats.Ranking{
		{UserID: ann, Username: "ann", Value: 8},
		{UserID: bob, Username: "bob", Value: 6},
	}
	if diff := cmp.Diff(want, relative); diff != "" {
		t.Errorf("RelativeImpact() mismatch (-want +got):\n%s", diff)
	}

	balance, err := f.stats.Balance(ctx, nil)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	want = []stats.Ranking{
		{UserID: bob, Username: "bob", Value: 1},
		{UserID: ann, Username: "ann", Value: 0},
		{UserID: cid, Username: "cid", Value: 0},
	}
	if diff := cmp.Diff(want, balance, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Balance() mismatch (-want +got):\n%s", diff)
	}

	board, err := f.stats.ImpactPerMuscle(ctx, []int{bob})
	if err != nil {
		t.Fatalf("ImpactPerMuscle: %v", err)
	}
	if len(board.Muscles) != 17 || len(board.Rows) != 1 {
		t.Fatalf("board has %d muscles and %d rows, want 17 and 1", len(board.Muscles), len(board.Rows))
	}
	row := board.Rows[0]
	if row.Volumes["Chest"] != 300 || row.Volumes["Back"] != 300 || row.Volumes["Calves"] != 0 {
		t.Errorf("bob's row = %v, want Chest and Back 300", row.Volumes)
	}
	if _, ok := row.Volumes["Neck"]; !ok {
		t.Errorf("catalog muscle Neck missing from row")
	}
}
