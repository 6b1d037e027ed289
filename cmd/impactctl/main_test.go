package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/myrjola/liftscore/internal/errors"
	"github.com/myrjola/liftscore/internal/feedback"
	"github.com/myrjola/liftscore/internal/sqlite"
	"github.com/myrjola/liftscore/internal/stats"
	"github.com/myrjola/liftscore/internal/testhelpers"
	"github.com/myrjola/liftscore/internal/workout"
)

type testEnv struct {
	t   *testing.T
	env map[string]string
}

func (e *testEnv) lookupEnv(key string) (string, bool) {
	v, ok := e.env[key]
	return v, ok
}

func (e *testEnv) run(args ...string) (string, error) {
	e.t.Helper()
	var stdout bytes.Buffer
	logger := testhelpers.NewLogger(testhelpers.NewWriter(e.t))
	err := run(e.t.Context(), logger, e.lookupEnv, args, &stdout)
	return stdout.String(), err
}

func (e *testEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run(args...)
	if err != nil {
		e.t.Fatalf("impactctl %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	return v
}

type seeded struct {
	userID    int
	workoutID int
}

// seed creates a user with an unfinished workout of heavy bench press and one legacy barbell row set.
func seed(t *testing.T, dbPath string) seeded {
	t.Helper()
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	db, err := sqlite.NewDatabase(ctx, dbPath, logger)
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	}()
	svc := workout.NewService(db, logger, workout.DefaultLoadConfig())

	user, err := svc.CreateUser(ctx, workout.User{Username: "ann", BodyweightKg: 80, Goal: workout.GoalStrength})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	movement := func(name, muscle string) workout.Movement {
		m, createErr := svc.CreateMovement(ctx, workout.MovementInput{
			Name:    name,
			Targets: []workout.TargetInput{{MuscleGroup: muscle, Percentage: 100}},
		})
		if createErr != nil {
			t.Fatalf("CreateMovement: %v", createErr)
		}
		return m
	}
	bench, row := movement("Bench Press", "Chest"), movement("Barbell Row", "Back")

	today := time.Now().UTC().Truncate(24 * time.Hour)
	w, err := svc.CreateWorkout(ctx, user.ID, "Push", today)
	if err != nil {
		t.Fatalf("CreateWorkout: %v", err)
	}
	benchID, err := svc.AddMovement(ctx, w.ID, bench.ID)
	if err != nil {
		t.Fatalf("AddMovement: %v", err)
	}
	for _, reps := range []int{10, 10, 4} {
		if _, err = svc.AddSet(ctx, benchID, workout.Set{
			Entries: []workout.SetEntry{{Order: 1, Reps: reps, Weight: 60}},
		}); err != nil {
			t.Fatalf("AddSet: %v", err)
		}
	}
	rowID, err := svc.AddMovement(ctx, w.ID, row.ID)
	if err != nil {
		t.Fatalf("AddMovement: %v", err)
	}
	if _, err = svc.AddSet(ctx, rowID, workout.Set{
		Reps:    []workout.Rep{{Count: 8}},
		Weights: []workout.Weight{{Value: 50}},
	}); err != nil {
		t.Fatalf("AddSet: %v", err)
	}
	return seeded{userID: user.ID, workoutID: w.ID}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "liftscore.sqlite3")
	s := seed(t, dbPath)
	e := &testEnv{t: t, env: map[string]string{"LIFTSCORE_SQLITE_URL": dbPath}}
	user, wID := strconv.Itoa(s.userID), strconv.Itoa(s.workoutID)

	if out := e.mustRun("backfill"); out != "converted 1 sets, rebuilt impacts of 0 workouts\n" {
		t.Errorf("backfill output = %q", out)
	}

	summary := decode[feedback.Summary](t, e.mustRun("complete", wID))
	if summary.WorkoutID != s.workoutID || len(summary.Movements) != 2 {
		t.Fatalf("complete summary = %+v, want two analyzed movements", summary)
	}
	if got := summary.Movements[0].Pattern; got != feedback.PatternWeightTooHeavy {
		t.Errorf("bench press pattern = %s, want too heavy", got)
	}
	if got := summary.Movements[1].Pattern; got != feedback.PatternInsufficientData {
		t.Errorf("barbell row pattern = %s, want insufficient data", got)
	}

	again := decode[feedback.Summary](t, e.mustRun("process", wID))
	if again.ID != summary.ID {
		t.Errorf("process created summary %d, want existing %d", again.ID, summary.ID)
	}

	if out := e.mustRun("report", wID, "--lang", "fi"); !strings.HasPrefix(out, "# Treenipalaute") {
		t.Errorf("finnish report = %q", out)
	}
	if out := e.mustRun("report", wID, "--html"); !strings.Contains(out, "<h1>Workout feedback</h1>") {
		t.Errorf("html report = %q", out)
	}

	weekly := decode[stats.Summary](t, e.mustRun("stats", "--user", user, "--period", "week"))
	if weekly.Totals["Chest"] <= 0 || weekly.Totals["Back"] <= 0 {
		t.Errorf("weekly totals = %v, want Chest and Back", weekly.Totals)
	}
	history := decode[[]stats.DailyVolume](t, e.mustRun("stats", "--user", user, "--muscle", "Back"))
	if len(history) != 1 {
		t.Errorf("got %d days of Back history, want 1", len(history))
	}

	counts := decode[[]stats.Ranking](t, e.mustRun("leaderboard", "--metric", "workouts"))
	if len(counts) != 1 || counts[0].UserID != s.userID || counts[0].Value != 1 {
		t.Errorf("workout counts = %+v", counts)
	}
	board := decode[stats.MuscleBoard](t, e.mustRun("leaderboard", "--metric", "muscles", "--users", user))
	if len(board.Rows) != 1 || len(board.Muscles) == 0 {
		t.Errorf("muscle board = %+v", board)
	}

	mult := decode[multiplierOutput](t, e.mustRun("multiplier", "--user", user, "--movement", "bench presses"))
	if mult.Movement != "Bench Press" || mult.Multiplier >= 1 || mult.Confidence != 0.25 || mult.Applied {
		t.Errorf("multiplier = %+v, want unconfident decrease for Bench Press", mult)
	}

	performances := decode[[]feedback.HistoryEntry](t, e.mustRun("history", "--user", user, "--movement", "Bench Press"))
	if len(performances) != 1 || performances[0].WorkoutID != s.workoutID {
		t.Errorf("bench press history = %+v", performances)
	}

	decode[[]feedback.Imbalance](t, e.mustRun("imbalances", "--user", user))

	planPath := filepath.Join(dir, "plan.json")
	if err := os.WriteFile(planPath, []byte(`{"movements": [{"name": "Bench Press", "weight": 60}]}`), 0o600); err != nil {
		t.Fatalf("write plan: %v", err)
	}
	plan := decode[feedback.Plan](t, e.mustRun("adjust", "--user", user, planPath))
	if len(plan.Adjustments) != 0 || plan.Movements[0].Weight != 60 {
		t.Errorf("plan adjusted without a confident profile: %+v", plan)
	}

	result := decode[sqlite.QueryResult](t,
		e.mustRun("query", "SELECT COUNT(*) AS n FROM workout_feedback_summaries"))
	if len(result.Rows) != 1 || result.Rows[0][0] != float64(1) {
		t.Errorf("summary count = %+v, want 1", result.Rows)
	}
}

func TestRun_errors(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "liftscore.sqlite3")
	s := seed(t, dbPath)
	e := &testEnv{t: t, env: map[string]string{"LIFTSCORE_SQLITE_URL": dbPath}}

	if _, err := e.run("process", strconv.Itoa(s.workoutID)); !errors.Is(err, feedback.ErrNotCompleted) {
		t.Errorf("process of unfinished workout: error = %v, want ErrNotCompleted", err)
	}
	if _, err := e.run("report", strconv.Itoa(s.workoutID)); !errors.Is(err, workout.ErrNotFound) {
		t.Errorf("report without summary: error = %v, want ErrNotFound", err)
	}
	for _, args := range [][]string{
		{"leaderboard", "--metric", "strongest"},
		{"rebuild", "abc"},
		{"report", "1", "--lang", "sv"},
		{"query", "PRAGMA user_version"},
		{"stats"},
	} {
		if _, err := e.run(args...); err == nil {
			t.Errorf("impactctl %s succeeded, want error", strings.Join(args, " "))
		}
	}

	e.env["LIFTSCORE_FEEDBACK_RULES_PATH"] = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := e.run("imbalances", "--user", "1"); err == nil {
		t.Error("missing rules file did not fail")
	}
}

func TestRun_slowCommandTrace(t *testing.T) {
	dir := t.TempDir()
	tracesDir := filepath.Join(dir, "traces")
	e := &testEnv{t: t, env: map[string]string{
		"LIFTSCORE_SQLITE_URL":      filepath.Join(dir, "liftscore.sqlite3"),
		"LIFTSCORE_TRACES_DIR":      tracesDir,
		"LIFTSCORE_SLOW_COMMAND_MS": "1",
	}}
	e.mustRun("backfill")

	entries, err := os.ReadDir(tracesDir)
	if err != nil {
		t.Fatalf("read traces: %v", err)
	}
	if len(entries) != 1 || !strings.HasPrefix(entries[0].Name(), "slow-impactctl_backfill-") {
		t.Errorf("traces = %v, want one backfill trace", entries)
	}
}
