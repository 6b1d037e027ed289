// Command impactctl maintains the muscle impact ledger and the workout feedback of a liftscore database.
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/myrjola/liftscore/internal/envstruct"
	"github.com/myrjola/liftscore/internal/errors"
	"github.com/myrjola/liftscore/internal/feedback"
	"github.com/myrjola/liftscore/internal/flightrecorder"
	"github.com/myrjola/liftscore/internal/logging"
	"github.com/myrjola/liftscore/internal/sqlite"
	"github.com/myrjola/liftscore/internal/stats"
	"github.com/myrjola/liftscore/internal/workout"
)

type application struct {
	logger          *slog.Logger
	db              *sqlite.Database
	workoutService  *workout.Service
	statsService    *stats.Service
	feedbackService *feedback.Service
	now             func() time.Time
}

type config struct {
	// SqliteURL is the URL to the SQLite database. You can use ":memory:" for an ethereal in-memory database.
	SqliteURL string `env:"LIFTSCORE_SQLITE_URL" envDefault:"./liftscore.sqlite3"`
	// RulesPath is an optional YAML file overriding the built-in feedback rules.
	RulesPath string `env:"LIFTSCORE_FEEDBACK_RULES_PATH" envDefault:""`
	// TracesDir enables the flight recorder. Traces of slow commands are written to it.
	TracesDir string `env:"LIFTSCORE_TRACES_DIR" envDefault:""`
	// SlowCommandMillis is how long a command may run before its trace is captured.
	SlowCommandMillis int `env:"LIFTSCORE_SLOW_COMMAND_MS" envDefault:"10000"`
}

func run(
	ctx context.Context,
	logger *slog.Logger,
	lookupEnv func(string) (string, bool),
	args []string,
	stdout io.Writer,
) (err error) {
	var cancel context.CancelFunc
	ctx, cancel = signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	defer func() {
		if panicErr := errors.DecoratePanic(recover()); panicErr != nil {
			err = panicErr
		}
	}()

	var cfg config
	if err = envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}

	var recorder *flightrecorder.Service
	if cfg.TracesDir != "" {
		if recorder, err = flightrecorder.New(flightrecorder.Config{
			Logger:          logger,
			MinAge:          0,
			MaxBytes:        0,
			Threshold:       time.Duration(cfg.SlowCommandMillis) * time.Millisecond,
			TracesDirectory: cfg.TracesDir,
		}); err != nil {
			return errors.Wrap(err, "new flight recorder")
		}
		if err = recorder.Start(ctx); err != nil {
			return errors.Wrap(err, "start flight recorder")
		}
		defer recorder.Stop(ctx)
	}

	app := &application{
		logger:          logger,
		db:              nil,
		workoutService:  nil,
		statsService:    nil,
		feedbackService: nil,
		now:             time.Now,
	}
	defer func() {
		if app.db != nil {
			err = errors.Join(err, app.db.Close())
		}
	}()

	root := app.rootCommand(cfg, lookupEnv)
	root.SetArgs(args)
	root.SetOut(stdout)

	start := time.Now()
	executed, err := root.ExecuteContextC(ctx)
	if recorder != nil && executed != nil {
		recorder.Observe(ctx, executed.CommandPath(), time.Since(start))
	}
	if err != nil {
		return errors.Wrap(err, "execute command")
	}
	return nil
}

// open connects to the database and wires the services. Commands that only print help never open it.
func (app *application) open(ctx context.Context, cfg config, lookupEnv func(string) (string, bool)) error {
	rules, err := feedback.LoadRules(cfg.RulesPath)
	if err != nil {
		return errors.Wrap(err, "load feedback rules", slog.String("path", cfg.RulesPath))
	}

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, app.logger)
	if err != nil {
		return errors.Wrap(err, "open db", slog.String("url", cfg.SqliteURL))
	}
	app.logger.LogAttrs(ctx, slog.LevelDebug, "connected to db")

	app.db = db
	app.workoutService = workout.NewService(db, app.logger, workout.LoadConfigFromEnv(ctx, app.logger, lookupEnv))
	app.statsService = stats.NewService(db, app.logger, app.now)
	app.feedbackService = feedback.NewService(db, app.logger, rules, app.now)
	return nil
}

func main() {
	ctx := context.Background()
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelInfo,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	if err := run(ctx, logger, os.LookupEnv, os.Args[1:], os.Stdout); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "impactctl failed", errors.SlogError(err))
		os.Exit(1)
	}
}
