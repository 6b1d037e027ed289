package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/myrjola/liftscore/internal/errors"
	"github.com/myrjola/liftscore/internal/feedback"
	"github.com/myrjola/liftscore/internal/i18n"
	"github.com/myrjola/liftscore/internal/stats"
)

func (app *application) rootCommand(cfg config, lookupEnv func(string) (string, bool)) *cobra.Command {
	root := &cobra.Command{
		Use:   "impactctl",
		Short: "Score muscle impact and workout feedback",
		Long: `impactctl maintains the per-workout muscle impact ledger of a liftscore database,
reports training statistics and leaderboards, and analyzes completed workouts to
learn per-movement weight multipliers.

The database is selected with LIFTSCORE_SQLITE_URL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.open(cmd.Context(), cfg, lookupEnv)
		},
	}
	root.AddCommand(
		app.backfillCommand(),
		app.rebuildCommand(),
		app.completeCommand(),
		app.processCommand(),
		app.reportCommand(),
		app.statsCommand(),
		app.leaderboardCommand(),
		app.imbalancesCommand(),
		app.historyCommand(),
		app.multiplierCommand(),
		app.adjustCommand(),
		app.queryCommand(),
	)
	return root
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "encode output")
	}
	return nil
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func (app *application) backfillCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Convert legacy set records to entries and rebuild the impacts of every completed workout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sets, err := app.workoutService.BackfillSetEntries(ctx)
			if err != nil {
				return err
			}
			workouts, err := app.workoutService.BackfillImpacts(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "converted %d sets, rebuilt impacts of %d workouts\n", sets, workouts)
			return err
		},
	}
}

func (app *application) rebuildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild <workout-id>",
		Short: "Recompute the muscle impacts of one workout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return app.workoutService.RebuildImpacts(cmd.Context(), id)
		},
	}
}

func (app *application) completeCommand() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "complete <workout-id>",
		Short: "Mark a workout completed, score its impacts and analyze it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			completed := app.now().UTC()
			if date != "" {
				if completed, err = time.Parse(time.DateOnly, date); err != nil {
					return errors.Wrap(err, "parse date")
				}
			}
			if _, err = app.workoutService.CompleteWorkout(cmd.Context(), id, completed); err != nil {
				return err
			}
			summary, err := app.feedbackService.ProcessCompletedWorkout(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "completion date as YYYY-MM-DD, defaults to today")
	return cmd
}

func (app *application) processCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "process <workout-id>",
		Short: "Analyze a completed workout and update the feedback profiles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			summary, err := app.feedbackService.ProcessCompletedWorkout(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
}

func (app *application) reportCommand() *cobra.Command {
	var (
		html bool
		lang string
	)
	cmd := &cobra.Command{
		Use:   "report <workout-id>",
		Short: "Render the feedback of a processed workout as Markdown or HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			language, err := i18n.ParseLanguage(lang)
			if err != nil {
				return err
			}
			summary, err := app.feedbackService.GetSummary(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := feedback.RenderReport(summary, language)
			if html {
				if out, err = feedback.RenderReportHTML(summary, language); err != nil {
					return err
				}
			}
			_, err = io.WriteString(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().BoolVar(&html, "html", false, "render HTML instead of Markdown")
	cmd.Flags().StringVar(&lang, "lang", string(i18n.DefaultLanguage), "report language, en or fi")
	return cmd
}

func (app *application) statsCommand() *cobra.Command {
	var (
		userID int
		period string
		muscle string
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print a user's training statistics, or the history of one muscle group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if muscle != "" {
				history, err := app.statsService.MuscleHistory(cmd.Context(), userID, muscle)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), history)
			}
			summary, err := app.statsService.Summary(cmd.Context(), userID, stats.ParsePeriod(period))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().IntVar(&userID, "user", 0, "user id")
	cmd.Flags().StringVar(&period, "period", string(stats.PeriodWeek), "week, month or all")
	cmd.Flags().StringVar(&muscle, "muscle", "", "print the history of this muscle group instead")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (app *application) leaderboardCommand() *cobra.Command {
	var (
		metric  string
		userIDs []int
	)
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Rank users by this week's training",
		Long: `Rank users by this week's training. Metrics:

  workouts  number of completed workouts
  total     total muscle impact
  relative  impact relative to bodyweight
  balance   how evenly the impact is spread across muscle groups
  muscles   impact per muscle group`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if len(userIDs) == 0 {
				var err error
				if userIDs, err = app.workoutService.ListUserIDs(ctx); err != nil {
					return err
				}
			}
			var (
				board any
				err   error
			)
			switch metric {
			case "workouts":
				board, err = app.statsService.WorkoutCounts(ctx, userIDs)
			case "total":
				board, err = app.statsService.TotalImpact(ctx, userIDs)
			case "relative":
				board, err = app.statsService.RelativeImpact(ctx, userIDs)
			case "balance":
				board, err = app.statsService.Balance(ctx, userIDs)
			case "muscles":
				board, err = app.statsService.ImpactPerMuscle(ctx, userIDs)
			default:
				return fmt.Errorf("unknown metric %q", metric)
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), board)
		},
	}
	cmd.Flags().StringVar(&metric, "metric", "total", "workouts, total, relative, balance or muscles")
	cmd.Flags().IntSliceVar(&userIDs, "users", nil, "user ids to rank, defaults to everyone")
	return cmd
}

func (app *application) imbalancesCommand() *cobra.Command {
	var userID int
	cmd := &cobra.Command{
		Use:   "imbalances",
		Short: "Detect antagonist muscle imbalances over the lookback window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			imbalances, err := app.feedbackService.MuscleImbalances(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if imbalances == nil {
				imbalances = []feedback.Imbalance{}
			}
			return writeJSON(cmd.OutOrStdout(), imbalances)
		},
	}
	cmd.Flags().IntVar(&userID, "user", 0, "user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (app *application) historyCommand() *cobra.Command {
	var (
		userID   int
		movement string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the rep analysis of a movement's recent performances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := app.workoutService.FindMovement(cmd.Context(), movement)
			if err != nil {
				return err
			}
			history, err := app.feedbackService.MovementHistory(cmd.Context(), userID, m.ID, limit)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), history)
		},
	}
	cmd.Flags().IntVar(&userID, "user", 0, "user id")
	cmd.Flags().StringVar(&movement, "movement", "", "movement name")
	cmd.Flags().IntVar(&limit, "limit", 0, "number of performances, defaults to 10")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("movement")
	return cmd
}

type multiplierOutput struct {
	Movement   string  `json:"movement"`
	Multiplier float64 `json:"multiplier"`
	Confidence float64 `json:"confidence"`
	Applied    bool    `json:"applied"`
}

func (app *application) multiplierCommand() *cobra.Command {
	var (
		userID   int
		movement string
	)
	cmd := &cobra.Command{
		Use:   "multiplier",
		Short: "Print the learned weight multiplier of a movement",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			m, err := app.workoutService.FindMovement(ctx, movement)
			if err != nil {
				return err
			}
			multiplier, confidence, err := app.feedbackService.MovementMultiplier(ctx, userID, m.ID)
			if err != nil {
				return err
			}
			_, applied, err := app.feedbackService.MultiplierForMovement(ctx, userID, m.Name)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), multiplierOutput{
				Movement:   m.Name,
				Multiplier: multiplier,
				Confidence: confidence,
				Applied:    applied,
			})
		},
	}
	cmd.Flags().IntVar(&userID, "user", 0, "user id")
	cmd.Flags().StringVar(&movement, "movement", "", "movement name")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("movement")
	return cmd
}

func (app *application) adjustCommand() *cobra.Command {
	var (
		userID int
		weekly bool
	)
	cmd := &cobra.Command{
		Use:   "adjust [plan.json]",
		Short: "Scale the weights of a generated plan with the user's learned multipliers",
		Long: `Scale the weights of a generated plan with the user's learned multipliers.

The plan is read from the file argument or from standard input. A plan is
{"movements": [...]}; with --weekly it is {"weekly_plan": [{"day": ..., "movements": [...]}]}.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return errors.Wrap(err, "open plan")
				}
				defer f.Close() //nolint:errcheck // read only
				in = f
			}
			dec := json.NewDecoder(in)
			if weekly {
				var plan feedback.WeeklyPlan
				if err := dec.Decode(&plan); err != nil {
					return errors.Wrap(err, "decode weekly plan")
				}
				adjusted, err := app.feedbackService.ApplyToWeeklyPlan(cmd.Context(), userID, plan)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), adjusted)
			}
			var plan feedback.Plan
			if err := dec.Decode(&plan); err != nil {
				return errors.Wrap(err, "decode plan")
			}
			adjusted, err := app.feedbackService.ApplyToPlan(cmd.Context(), userID, plan)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), adjusted)
		},
	}
	cmd.Flags().IntVar(&userID, "user", 0, "user id")
	cmd.Flags().BoolVar(&weekly, "weekly", false, "the plan is a weekly plan")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (app *application) queryCommand() *cobra.Command {
	var maxRows int
	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a read-only SQL query against the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := app.db.Inspect(cmd.Context(), args[0], maxRows)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().IntVar(&maxRows, "max-rows", 0, "maximum number of rows, defaults to 1000")
	return cmd
}
