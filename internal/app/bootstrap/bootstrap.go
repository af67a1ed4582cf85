package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	contractsv1 "dropvest/contracts/gen/events/v1"
	"dropvest/internal/platform/config"
	"dropvest/internal/platform/httpserver"
	"dropvest/internal/platform/scheduler"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server  *httpserver.Server
	runtime *runtime
	worker  *WorkerApp
	logger  *slog.Logger
}

type WorkerApp struct {
	runtime      *runtime
	scheduler    *scheduler.Scheduler
	pollInterval time.Duration
	owned        bool
	logger       *slog.Logger
}

// BuildAPI wires the HTTP process. Without POSTGRES_DSN all state lives in
// this process, so the background sweeps run here as well.
func BuildAPI(ctx context.Context) (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	app := &APIApp{
		server: httpserver.New(
			rt.airdrop,
			rt.vesting,
			httpserver.NewAdminAuthenticator(cfg.AdminJWTSecret),
			logger,
			normalizeAddr(cfg.HTTPPort),
		),
		runtime: rt,
		logger:  logger,
	}
	if cfg.UseInMemory {
		app.worker = newWorker(rt, false, logger)
	}
	return app, nil
}

// BuildWorker wires the background process. It shares state with the api
// process through Postgres, so it refuses to start in in-memory mode.
func BuildWorker(ctx context.Context) (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if cfg.UseInMemory {
		return nil, errors.New("POSTGRES_DSN is required for the worker process")
	}
	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return newWorker(rt, true, logger), nil
}

func newWorker(rt *runtime, owned bool, logger *slog.Logger) *WorkerApp {
	return &WorkerApp{
		runtime:      rt,
		scheduler:    scheduler.New(logger, rt.sweeps()...),
		pollInterval: rt.cfg.OutboxPollInterval,
		owned:        owned,
		logger:       logger,
	}
}

func (a *APIApp) Run(ctx context.Context) error {
	if a.worker != nil {
		go func() {
			if err := a.worker.Run(ctx); err != nil {
				a.logger.Error("embedded worker stopped",
					"event", "bootstrap_embedded_worker_failed",
					"module", "internal/app/bootstrap",
					"layer", "platform",
					"error", err.Error(),
				)
			}
		}()
	}
	if a.runtime.bus != nil {
		a.runtime.subscribeEventLog(ctx)
	}

	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"in_memory", a.runtime.cfg.UseInMemory,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- a.server.Start() }()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	}
}

func (a *APIApp) Close() error {
	return a.runtime.Close()
}

func (w *WorkerApp) Run(ctx context.Context) error {
	w.scheduler.Start(ctx)
	defer func() {
		<-w.scheduler.Stop().Done()
	}()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if err := w.runtime.relayOutboxes(ctx); err != nil && ctx.Err() == nil {
			// Relays stop at the first failed row; the next tick resumes there.
			w.logger.Warn("outbox relay pass failed",
				"event", "bootstrap_outbox_relay_failed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if !w.owned {
		return nil
	}
	return w.runtime.Close()
}

// subscribeEventLog logs every event published on the in-process bus.
func (rt *runtime) subscribeEventLog(ctx context.Context) {
	for _, topic := range []string{rt.cfg.ClaimTopic, rt.cfg.VestingTopic} {
		topic := topic
		_ = rt.bus.Subscribe(ctx, topic, "event-log", func(_ context.Context, event contractsv1.Envelope) error {
			rt.logger.Info("domain event published",
				"event", "bootstrap_domain_event",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"topic", topic,
				"event_id", event.EventID,
				"event_type", event.EventType,
				"partition_key", event.PartitionKey,
			)
			return nil
		})
	}
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
