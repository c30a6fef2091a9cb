package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"railmap/internal/cache"
	"railmap/internal/config"
	"railmap/internal/delta"
	"railmap/internal/estimator"
	"railmap/internal/handler"
	"railmap/internal/hub"
	"railmap/internal/ingest"
	"railmap/internal/middleware"
	"railmap/internal/observability"
	"railmap/internal/persist"
	"railmap/internal/scheduler"
	"railmap/internal/store"
	"railmap/internal/tiploc"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting railmap server",
		"log_level", cfg.LogLevel.String(),
		"http_addr", cfg.HTTPAddr,
		"feed_url", cfg.NATSURL,
		"db_path", cfg.DBPath,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := persist.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	table := tiploc.NewTable(db, logger)
	if coords, err := db.LoadCoordinates(ctx); err != nil {
		logger.Warn("coordinate rehydration failed", "error", err)
	} else {
		table.Load(coords)
	}
	seeded := table.SeedDefaults()
	logger.Info("coordinate table ready", "entries", table.Len(), "seeded", seeded)

	positionStore := store.New(db, cfg.JournalWindow, logger)
	if positions, err := db.LoadPositions(ctx, cfg.RetentionMaxAge); err != nil {
		logger.Warn("position rehydration failed", "error", err)
	} else {
		positionStore.Rehydrate(positions)
		logger.Info("position store rehydrated", "count", len(positions))
	}
	observability.PositionsInStore.Set(float64(positionStore.Count()))

	est := estimator.New(cfg.DefaultProgress, cfg.StoppedIdle)
	adapter := ingest.New(cfg, table, est, positionStore, logger)
	diff := delta.NewComputer(positionStore)
	wsHub := hub.NewHub(positionStore, diff, logger)

	sched := scheduler.New(scheduler.Config{
		PeakStartHour:       cfg.PeakStartHour,
		PeakEndHour:         cfg.PeakEndHour,
		InitInterval:        cfg.InitInterval,
		PeakPushInterval:    cfg.PeakPushInterval,
		OffPeakPushInterval: cfg.OffPeakPushInterval,
		PeakReconcile:       cfg.PeakReconcile,
		OffPeakReconcile:    cfg.OffPeakReconcile,
		OverrideMin:         cfg.OverrideMinInterval,
		OverrideMax:         cfg.OverrideMaxInterval,
	})

	// A source switch replaces the whole fleet, so connected clients need
	// a fresh snapshot and the scheduler restarts its tight initial cadence.
	adapter.OnModeChange(func(m ingest.Mode) {
		logger.Info("event source changed", "mode", string(m))
		sched.ForceFullSync()
		wsHub.ForceFull()
	})

	var redisCache *cache.RedisCache
	if cfg.RedisEnabled {
		redisCache, err = cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			logger.Warn("redis unavailable, serving without response cache", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
		}
	}

	rl := middleware.NewRateLimiter(cfg.RateLimitPerWindow, cfg.RateLimitWindow, cfg.RateLimitWhitelist, logger)

	httpHandler := handler.NewHTTPHandler(positionStore, redisCache, cfg.CacheTTL, logger)
	wsHandler := handler.NewWSHandler(wsHub, cfg.WSCompressThreshold, logger)
	healthHandler := handler.NewHealthHandler(adapter, positionStore)
	statsHandler := handler.NewStatsHandler(positionStore, adapter, sched, wsHub, rl)
	tiplocHandler := handler.NewTiplocHandler(table, logger)
	configHandler := handler.NewConfigHandler(sched, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/positions", httpHandler.ListPositions)
	mux.HandleFunc("GET /v1/positions/{rid}", httpHandler.GetPosition)
	mux.HandleFunc("/v1/ws", wsHandler.ServeWS)

	mux.HandleFunc("GET /v1/tiplocs", tiplocHandler.ListTiplocs)
	mux.HandleFunc("POST /v1/tiplocs", tiplocHandler.UpsertTiploc)
	mux.HandleFunc("POST /v1/tiplocs/{code}", tiplocHandler.UpsertTiplocByCode)

	mux.HandleFunc("GET /v1/config/update-interval", configHandler.GetUpdateInterval)
	mux.HandleFunc("POST /v1/config/update-interval/{seconds}", configHandler.SetUpdateInterval)
	mux.HandleFunc("DELETE /v1/config/update-interval", configHandler.ClearUpdateInterval)

	mux.HandleFunc("GET /debug/stats", statsHandler.GetStats)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /healthz", healthHandler.Healthz)
	mux.HandleFunc("GET /readyz", healthHandler.Readyz)

	root := rl.Middleware(handler.CORSMiddleware(handler.GzipMiddleware(mux)))

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      root,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go wsHub.Run(ctx)
	go adapter.Run(ctx)
	go pushLoop(ctx, sched, wsHub, positionStore)
	go reconcileLoop(ctx, sched, wsHub, positionStore, redisCache, logger)
	go sweepLoop(ctx, cfg, positionStore, db, httpHandler, logger)

	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case <-ctx.Done():
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

// pushLoop drives delta broadcasts at the scheduler's cadence. The
// interval is re-read every cycle so overrides and the peak profile
// take effect without restarts.
func pushLoop(ctx context.Context, sched *scheduler.Scheduler, wsHub *hub.Hub, st *store.Store) {
	timer := time.NewTimer(sched.CurrentInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			wsHub.Push()
			if st.Count() > 0 {
				sched.MarkSynced()
			}
			observability.PositionsInStore.Set(float64(st.Count()))
			timer.Reset(sched.CurrentInterval())
		}
	}
}

// reconcileLoop periodically resends a full snapshot so clients recover
// from any missed deltas, and mirrors the snapshot to Redis.
func reconcileLoop(ctx context.Context, sched *scheduler.Scheduler, wsHub *hub.Hub, st *store.Store, c *cache.RedisCache, logger *slog.Logger) {
	timer := time.NewTimer(sched.ReconcileInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			wsHub.ForceFull()
			if c != nil {
				positions, _ := st.SnapshotWithFingerprint(store.SnapshotOptions{})
				if err := c.SetJSONCompressed(ctx, cache.KeySnapshotFull, positions, sched.ReconcileInterval()*2); err != nil {
					logger.Debug("snapshot mirror failed", "error", err)
				}
			}
			timer.Reset(sched.ReconcileInterval())
		}
	}
}

// sweepLoop evicts positions older than the retention window from both
// the store and the durable mirror.
func sweepLoop(ctx context.Context, cfg *config.Config, st *store.Store, db *persist.DB, h *handler.HTTPHandler, logger *slog.Logger) {
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := st.Sweep(ctx, cfg.RetentionMaxAge)
			if removed > 0 {
				h.InvalidateCache(ctx)
			}
			if n, err := db.CleanupPositions(ctx, cfg.RetentionMaxAge); err != nil {
				logger.Warn("durable cleanup failed", "error", err)
			} else if n > 0 {
				logger.Info("retention sweep", "memory_removed", removed, "durable_removed", n)
			}
		}
	}
}
