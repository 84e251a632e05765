package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gyaneshwarpardhi/automation/internal/api"
	"github.com/gyaneshwarpardhi/automation/internal/audit"
	"github.com/gyaneshwarpardhi/automation/internal/bus"
	"github.com/gyaneshwarpardhi/automation/internal/config"
	"github.com/gyaneshwarpardhi/automation/internal/event"
	"github.com/gyaneshwarpardhi/automation/internal/explain"
	"github.com/gyaneshwarpardhi/automation/internal/intent"
	"github.com/gyaneshwarpardhi/automation/internal/logging"
	"github.com/gyaneshwarpardhi/automation/internal/observability"
	"github.com/gyaneshwarpardhi/automation/internal/rule"
	"github.com/gyaneshwarpardhi/automation/internal/runtime"
	"github.com/gyaneshwarpardhi/automation/internal/tracing"
)

func main() {
	envCfg, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to read environment", "err", err)
		os.Exit(1)
	}
	logger := logging.Init(envCfg.LogFormat, envCfg.LogLevel)

	// ── Load rules ───────────────────────────────────────────────────────────
	loader, err := config.NewLoader(envCfg.RulesPath, logger)
	if err != nil {
		slog.Error("failed to load rules", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("rules validation failed", "err", err)
		os.Exit(1)
	}
	catalog := rule.NewStaticCatalog(rule.Build(cfg))
	slog.Info("rules loaded", "version", cfg.Version, "rules", len(cfg.Rules))

	g, p, err := runtime.ExecutionFromConfig(cfg.Execution)
	if err != nil {
		slog.Error("failed to build execution policy", "err", err)
		os.Exit(1)
	}
	logExecution(cfg.Execution)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Setup(ctx, "automation", envCfg.OTelEndpoint)
	if err != nil {
		slog.Warn("tracing unavailable", "err", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Warn("tracing shutdown failed", "err", err)
		}
	}()

	// ── Storage ──────────────────────────────────────────────────────────────
	store, snapshots, closeStore, err := openStores(ctx, envCfg)
	if err != nil {
		slog.Error("failed to open store", "store", envCfg.Store, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	// ── Runtime ──────────────────────────────────────────────────────────────
	history := observability.NewMemoryHistory(observability.WithMaxRuns(cfg.Runtime.HistoryMaxRuns))
	intents := intent.New(
		time.Duration(cfg.Runtime.IntentTTLMs)*time.Millisecond,
		cfg.Runtime.IntentMaxEntries,
	)
	rt := runtime.New(store,
		runtime.WithLogger(logger),
		runtime.WithMatcher(rule.NewMatcher(catalog)),
		runtime.WithHistory(history),
		runtime.WithSnapshots(snapshots),
		runtime.WithIntents(intents),
		runtime.WithExecution(g, p),
	)
	go sweepIntents(ctx, intents, time.Minute)

	dispatcher := bus.New(ctx, cfg.Runtime.DispatchWorkers, cfg.Runtime.QueueDepth, logger)
	dispatcher.Subscribe("runtime", func(ctx context.Context, ev *event.Event) error {
		_, err := rt.RunEvent(ctx, ev)
		return err
	})

	// ── Hot-reload watcher ───────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.RuleConfig) {
		catalog.Swap(rule.Build(newCfg))
		g, p, err := runtime.ExecutionFromConfig(newCfg.Execution)
		if err != nil {
			slog.Warn("execution reload skipped", "err", err)
		} else {
			rt.SwapExecution(g, p)
			logExecution(newCfg.Execution)
		}
		slog.Info("rules hot-reloaded", "version", newCfg.Version, "rules", len(newCfg.Rules))
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("rules watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ──────────────────────────────────────────────────────────
	handler := api.New(api.Deps{
		Runtime:       rt,
		Loader:        loader,
		Catalog:       catalog,
		Bus:           dispatcher,
		Observability: observability.NewService(history),
		Explain:       explain.NewService(history, explain.WithSnapshots(snapshots)),
		Logger:        logger,
	})
	srv := &http.Server{
		Addr:         envCfg.Addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", envCfg.Addr, "store", envCfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	dispatcher.Drain()
	cancel()
	slog.Info("goodbye")
}

// openStores selects the audit and snapshot backends. Postgres holds explain
// snapshots only; plan traces stay in process memory for that backend.
func openStores(ctx context.Context, e config.Env) (audit.Store, audit.SnapshotStore, func(), error) {
	switch e.Store {
	case config.StoreSQLite:
		s, err := audit.OpenSQLite(e.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, func() { _ = s.Close() }, nil
	case config.StorePostgres:
		s, err := audit.OpenPostgres(ctx, e.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		return audit.NewMemoryStore(), s, func() { _ = s.Close() }, nil
	default:
		return audit.NewMemoryStore(), audit.NewMemorySnapshotStore(), func() {}, nil
	}
}

func logExecution(c config.ExecutionConf) {
	if !c.Enabled() {
		slog.Info("execution gate disabled (plan-only)")
		return
	}
	slog.Warn("execution gate enabled",
		"gate", c.Gate,
		"policy", c.Policy,
		"enabled_by", c.EnabledBy,
		"policies", len(c.Policies),
	)
}

func sweepIntents(ctx context.Context, c *intent.Cache, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := c.Sweep(); n > 0 {
				slog.Debug("expired intents swept", "count", n)
			}
		}
	}
}
