package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"grove/internal/bootstrap"
	focusdto "grove/internal/modules/focus/dto"
	"grove/internal/platform/config"
	"grove/internal/platform/logging"
)

type rootOptions struct {
	dataDir     string
	metricsAddr string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "grove",
		Short:         "Grow a tree while you focus",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.dataDir, "data", config.DefaultDataDir(), "grove data directory")
	root.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")

	root.AddCommand(newTUICmd(opts))
	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newStatusCmd(opts))
	root.AddCommand(newDurationCmd(opts))
	root.AddCommand(newHistoryCmd(opts))
	root.AddCommand(newStatsCmd(opts))
	root.AddCommand(newOnboardingCmd(opts))
	return root
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type logTarget int

const (
	logToStderr logTarget = iota
	logToFile
)

func loadApp(opts *rootOptions, target logTarget) (*bootstrap.App, io.Closer, error) {
	cfg, err := config.Load(opts.dataDir)
	if err != nil {
		return nil, nil, err
	}
	if opts.metricsAddr != "" {
		cfg.MetricsAddr = opts.metricsAddr
	}

	var (
		logger *slog.Logger
		closer io.Closer = nopCloser{}
	)
	switch target {
	case logToFile:
		logger, closer, err = logging.OpenFile(cfg.LogPath, cfg.LogLevel)
		if err != nil {
			return nil, nil, err
		}
	default:
		logger = logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	}

	app, err := bootstrap.New(cfg, logger)
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	return app, closer, nil
}

// withApp runs the application loops for the duration of fn. The loops get
// their own context so fn can still talk to the focus service after the
// command context was interrupted.
func withApp(cmd *cobra.Command, opts *rootOptions, target logTarget, fn func(ctx context.Context, app *bootstrap.App) error) error {
	app, logCloser, err := loadApp(opts, target)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	runCtx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- app.Run(runCtx) }()

	fnErr := fn(cmd.Context(), app)
	cancel()
	return errors.Join(fnErr, <-runErr, app.Close())
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newTUICmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the grove terminal UI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, logToFile, func(ctx context.Context, app *bootstrap.App) error {
				return bootstrap.RunTUI(ctx, app)
			})
		},
	}
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var minutes float64
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a focus session without the UI; Ctrl-C abandons it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()
			cmd.SetContext(ctx)
			return withApp(cmd, opts, logToStderr, func(ctx context.Context, app *bootstrap.App) error {
				return runSession(ctx, cmd.OutOrStdout(), app, minutes)
			})
		},
	}
	cmd.Flags().Float64Var(&minutes, "minutes", 0, "session length in minutes (snapped to 5-minute steps)")
	return cmd
}

func runSession(ctx context.Context, out io.Writer, app *bootstrap.App, minutes float64) error {
	state, err := app.FocusCLI.Status(ctx)
	if err != nil {
		return err
	}
	if state.Running {
		_, _ = fmt.Fprintf(out, "resuming session %s\n", state.RunID)
	} else {
		if minutes > 0 {
			if _, err := app.FocusCLI.SetDuration(ctx, minutes); err != nil {
				return err
			}
		}
		started, err := app.FocusCLI.Start(ctx)
		if err != nil {
			return err
		}
		state = started.State
		_, _ = fmt.Fprintf(out, "growing for %d minutes\n", state.PlannedMinutes)
	}
	runID := state.RunID

	states, err := app.FocusCLI.WatchState(ctx)
	if err != nil {
		return err
	}
	lastMinute := int64(-1)
	for {
		select {
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			res, err := app.FocusCLI.Stop(stopCtx)
			if err != nil {
				return err
			}
			if res.Applied {
				_, _ = fmt.Fprintln(out, "session abandoned")
			}
			return nil
		case err := <-app.FocusCLI.Errors():
			_, _ = fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		case s, ok := <-states:
			if !ok {
				return nil
			}
			if !s.Running || s.RunID != runID {
				_, _ = fmt.Fprintf(out, "tree grown: %d minutes recorded\n", state.PlannedMinutes)
				return nil
			}
			if minute := s.RemainingMs / 60_000; minute != lastMinute {
				lastMinute = minute
				_, _ = fmt.Fprintf(out, "%s left  %s\n", formatRemaining(s.RemainingMs), s.Stage)
			}
		}
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current focus state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, logToStderr, func(ctx context.Context, app *bootstrap.App) error {
				state, err := app.FocusCLI.Status(ctx)
				if err != nil {
					return err
				}
				printState(cmd.OutOrStdout(), state)
				return nil
			})
		},
	}
}

func newDurationCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "duration [minutes]",
		Short: "Show or set the planned session length",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, logToStderr, func(ctx context.Context, app *bootstrap.App) error {
				if len(args) == 0 {
					state, err := app.FocusCLI.Status(ctx)
					if err != nil {
						return err
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "duration: %d minutes\n", state.DurationMinutes)
					return nil
				}
				minutes, err := strconv.ParseFloat(args[0], 64)
				if err != nil {
					return fmt.Errorf("invalid minutes %q: %w", args[0], err)
				}
				res, err := app.FocusCLI.SetDuration(ctx, minutes)
				if err != nil {
					return err
				}
				if !res.Applied {
					return fmt.Errorf("cannot change the duration while a session is running")
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "duration: %d minutes\n", res.State.DurationMinutes)
				return nil
			})
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded sessions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, logToStderr, func(ctx context.Context, app *bootstrap.App) error {
				sessions, err := app.FocusCLI.History(ctx, limit)
				if err != nil {
					return err
				}
				printSessions(cmd.OutOrStdout(), sessions)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum sessions to list (0 for all)")
	return cmd
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show per-day focus totals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, logToStderr, func(ctx context.Context, app *bootstrap.App) error {
				report, err := app.HistoryCLI.Stats(ctx, days)
				if err != nil {
					return err
				}
				printReport(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "number of days to show")
	return cmd
}

func newOnboardingCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "onboarding [complete]",
		Short:     "Show or mark the onboarding flag",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"complete"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, logToStderr, func(ctx context.Context, app *bootstrap.App) error {
				var (
					out focusdto.OnboardingOutput
					err error
				)
				if len(args) == 1 {
					out, err = app.FocusCLI.CompleteOnboarding(ctx)
				} else {
					out, err = app.FocusCLI.Onboarding(ctx)
				}
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "onboarding completed: %t\n", out.Completed)
				return nil
			})
		},
	}
}
