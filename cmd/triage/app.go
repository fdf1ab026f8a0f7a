package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/triage/internal/batch"
	"github.com/phrazzld/triage/internal/config"
	"github.com/phrazzld/triage/internal/domain"
	"github.com/phrazzld/triage/internal/generation"
	"github.com/phrazzld/triage/internal/lifecycle"
	"github.com/phrazzld/triage/internal/metrics"
	"github.com/phrazzld/triage/internal/orchestrator"
	"github.com/phrazzld/triage/internal/platform/gemini"
	"github.com/phrazzld/triage/internal/platform/logger"
	"github.com/phrazzld/triage/internal/platform/openai"
	"github.com/phrazzld/triage/internal/platform/postgres"
	"github.com/phrazzld/triage/internal/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	registry *prometheus.Registry
	metrics  *metrics.Metrics

	router       *router.Router
	orchestrator *orchestrator.Orchestrator
}

// setupAppLogger configures the application logger from config settings.
func setupAppLogger(cfg *config.Config) (*slog.Logger, error) {
	l, err := logger.Setup(logger.LoggerConfig{Level: cfg.Server.LogLevel})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	return l, nil
}

// newApplication opens the database, builds both backends and wires the
// orchestrator. presenter receives everything the orchestrator presents.
func newApplication(ctx context.Context, cfg *config.Config, log *slog.Logger, presenter lifecycle.Presenter) (*application, error) {
	app := &application{
		config:   cfg,
		logger:   log,
		registry: prometheus.NewRegistry(),
	}
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.MustNewMetrics(app.registry)

	defaultBackend, err := newBackend(ctx, cfg.LLM.Default, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create default backend: %w", err)
	}
	deepBackend, err := newBackend(ctx, cfg.LLM.Deep, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create deep backend: %w", err)
	}

	app.router = router.New(defaultBackend, deepBackend, log,
		router.WithPredicate(router.KeywordPredicate(cfg.LLM.TriggerWords...)),
		router.WithMetrics(app.metrics))

	db, err := postgres.Open(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	app.db = db

	loop := lifecycle.New(defaultBackend, log,
		lifecycle.WithReminderDelay(time.Duration(cfg.Scheduler.ReminderDelayHours)*time.Hour),
		lifecycle.WithMetrics(app.metrics))

	orch, err := orchestrator.New(orchestrator.Deps{
		Provider:  postgres.NewProvider(db, log),
		Router:    app.router,
		Batcher:   batch.New(cfg.Scheduler.MaxBatchTasks, cfg.Scheduler.MaxBatchTokens, newEstimator(cfg.Scheduler, log)),
		Lifecycle: loop,
		Presenter: presenter,
		Metrics:   app.metrics,
		Logger:    log,
	}, orchestratorOptions(cfg.Scheduler))
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	app.orchestrator = orch

	return app, nil
}

// newBackend builds the backend for the configured provider.
func newBackend(ctx context.Context, cfg config.BackendConfig, log *slog.Logger) (*generation.LLMBackend, error) {
	prompts, err := generation.LoadPrompts(cfg.PromptTemplatePath)
	if err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case "gemini":
		return gemini.NewBackend(ctx, cfg, prompts, log)
	case "openai":
		return openai.NewBackend(cfg, prompts, log)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", generation.ErrInvalidConfig, cfg.Provider)
	}
}

// newEstimator selects the batch size proxy.
func newEstimator(cfg config.SchedulerConfig, log *slog.Logger) batch.Estimator {
	if cfg.Estimator == "tiktoken" {
		return batch.NewTokenEstimator(0, log)
	}
	return batch.CharQuarter{}
}

func orchestratorOptions(cfg config.SchedulerConfig) orchestrator.Options {
	tiers := make([]domain.Urgency, 0, len(cfg.UrgencyOrder))
	for _, t := range cfg.UrgencyOrder {
		tiers = append(tiers, domain.Urgency(t))
	}
	return orchestrator.Options{UrgencyOrder: tiers, PriorityTier: domain.Urgency(cfg.PriorityTier)}
}

// metricsHandler serves the application's registry.
func (app *application) metricsHandler() http.Handler {
	return promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{Registry: app.registry})
}

// cleanup releases resources held by the application.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database connection", slog.String("error", err.Error()))
		}
		app.db = nil
	}
}

// logPresenter records presented text in the log. It backs operations run
// outside an interactive terminal.
type logPresenter struct {
	logger *slog.Logger
}

func (p logPresenter) Present(ctx context.Context, heading, body string) {
	logger.FromContextOrDefault(ctx, p.logger).Debug("presented",
		slog.String("heading", heading),
		slog.Int("length", len(body)))
}
