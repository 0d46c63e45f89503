package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	focusinadapter "grove/internal/modules/focus/adapter/in"
	focusoutadapter "grove/internal/modules/focus/adapter/out"
	focusservice "grove/internal/modules/focus/service"
	focususecase "grove/internal/modules/focus/usecase"
	historyinadapter "grove/internal/modules/history/adapter/in"
	historyoutadapter "grove/internal/modules/history/adapter/out"
	historydto "grove/internal/modules/history/dto"
	historyservice "grove/internal/modules/history/service"
	historyusecase "grove/internal/modules/history/usecase"
	"grove/internal/platform/clock"
	"grove/internal/platform/config"
	"grove/internal/platform/id"
	uiapp "grove/internal/ui/app"
)

const watchDebounce = 250 * time.Millisecond

type App struct {
	FocusCLI   focusinadapter.CLIHandler
	FocusTUI   focusinadapter.TUIHandler
	HistoryCLI historyinadapter.CLIHandler
	HistoryTUI historyinadapter.TUIHandler

	cfg        config.Config
	logger     *slog.Logger
	registry   *prometheus.Registry
	sessions   *focusoutadapter.SQLiteSessionStore
	focusSvc   *focusservice.FocusService
	historySvc *historyservice.HistoryService
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	clk := clock.SystemClock{}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sessions, err := focusoutadapter.NewSQLiteSessionStore(cfg.DBPath, logger.With("component", "session_store"))
	if err != nil {
		return nil, fmt.Errorf("new session store: %w", err)
	}
	focusSvc := focusservice.NewFocusService(focusservice.Deps{
		Clock:       clk,
		IDs:         id.UUID{},
		Preferences: focusoutadapter.NewYAMLPreferencesStore(cfg.PreferencesPath),
		Active:      focusoutadapter.NewFileActiveTimerStore(cfg.ActiveTimerPath),
		Sessions:    sessions,
		Engine:      focusoutadapter.NewTickerEngine(clk, cfg.TickInterval),
		Logger:      logger.With("component", "focus"),
		Metrics:     focusservice.NewMetrics(registry),
	}, focusservice.Options{
		DefaultDurationMinutes: cfg.DefaultDurationMinutes,
		PersistMaxElapsed:      cfg.PersistMaxElapsed,
	})
	focusUC := focususecase.NewInteractor(focusSvc)

	historySvc := historyservice.NewHistoryService(
		historyoutadapter.NewFocusSessionSource(focusUC),
		clk,
		time.Local,
		historydto.DefaultWindowDays,
		logger.With("component", "history"),
	)
	historyUC := historyusecase.NewInteractor(historySvc)

	return &App{
		FocusCLI:   focusinadapter.NewCLIHandler(focusUC),
		FocusTUI:   focusinadapter.NewTUIHandler(focusUC),
		HistoryCLI: historyinadapter.NewCLIHandler(historyUC),
		HistoryTUI: historyinadapter.NewTUIHandler(historyUC),
		cfg:        cfg,
		logger:     logger,
		registry:   registry,
		sessions:   sessions,
		focusSvc:   focusSvc,
		historySvc: historySvc,
	}, nil
}

// Run drives the focus loop, history recomputation, the external-change
// watcher and the optional metrics endpoint until ctx is done or one of them
// fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.focusSvc.Run(ctx) })
	g.Go(func() error { return a.historySvc.Run(ctx) })
	g.Go(func() error {
		// Other processes' writes are a convenience; grove keeps working without them.
		if err := a.sessions.Watch(ctx, watchDebounce); err != nil {
			a.logger.Warn("session watcher disabled", "error", err)
		}
		return nil
	})
	if a.cfg.MetricsAddr != "" {
		g.Go(func() error { return a.serveMetrics(ctx) })
	}
	return g.Wait()
}

func (a *App) Close() error {
	return a.sessions.Close()
}

func (a *App) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))
	srv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("metrics endpoint listening", "addr", a.cfg.MetricsAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve metrics: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics: %w", err)
		}
		return nil
	}
}

func RunTUI(ctx context.Context, app *App) error {
	model := uiapp.NewModel(ctx, app.FocusTUI, app.HistoryTUI)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
