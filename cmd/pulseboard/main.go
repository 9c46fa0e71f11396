package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/af-corp/pulseboard/internal/backoff"
	"github.com/af-corp/pulseboard/internal/cache"
	"github.com/af-corp/pulseboard/internal/config"
	"github.com/af-corp/pulseboard/internal/coordinator"
	"github.com/af-corp/pulseboard/internal/portal"
	"github.com/af-corp/pulseboard/internal/providers"
	"github.com/af-corp/pulseboard/internal/quota"
	"github.com/af-corp/pulseboard/internal/registry"
	"github.com/af-corp/pulseboard/internal/session"
	"github.com/af-corp/pulseboard/internal/telemetry"
	"github.com/af-corp/pulseboard/internal/types"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}

	cfg := loader.Config()

	// Connect to PostgreSQL
	dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		logger.Warn("database not reachable (portal will start but sessions will fail)", "error", err)
	} else {
		logger.Info("database connected")
	}

	// Connect to Redis
	var rdb *redis.Client
	if len(cfg.Redis.Addresses) > 0 && cfg.Redis.Addresses[0] != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addresses[0],
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable (session cache and durable degradation cache disabled)", "error", err)
			rdb = nil
		} else {
			logger.Info("redis connected")
		}
	}

	// Build provider registry and clients
	reg, err := registry.BuildFromConfig(loader.Providers(), cfg.Quota)
	if err != nil {
		logger.Error("invalid providers config", "error", err)
		os.Exit(1)
	}
	clients := providers.BuildFromRegistry(reg)

	loader.OnReload(func() {
		newReg, err := registry.BuildFromConfig(loader.Providers(), loader.Config().Quota)
		if err != nil {
			logger.Error("reload rejected: invalid providers config", "error", err)
			return
		}
		reg.Swap(newReg)
		clients.Swap(providers.BuildFromRegistry(newReg))
		logger.Info("provider registry reloaded")
	})

	// Coordination engine
	metrics := telemetry.NewMetrics()
	tracker := quota.NewTracker(func(id types.ProviderID) (int, time.Duration) {
		if d, ok := reg.Get(id); ok {
			return d.QuotaLimit, d.QuotaWindow
		}
		return cfg.Quota.DefaultLimit, cfg.Quota.DefaultWindow
	}, cfg.Quota.MinRetryAfter)
	sched := backoff.NewScheduler(cfg.Backoff.BaseDelay, cfg.Backoff.MaxDelay, cfg.Backoff.CapExponent)

	var store cache.Store
	if rdb != nil {
		store = cache.NewRedisStore(rdb, cfg.Cache.TTL)
	} else {
		store = cache.NewMemoryStore(cfg.Cache.TTL, cfg.Cache.MaxEntries)
	}

	coord := coordinator.New(reg, clients, tracker, sched, store, metrics)
	handler := portal.NewHandler(coord, reg)
	sessionStore := session.NewCachedStore(dbPool, rdb)

	// Router setup
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)

	// Unauthenticated routes
	r.Get("/pulse/v1/health", healthHandler)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(session.Middleware(sessionStore))
		r.Get("/v1/providers", handler.ListProviders)
		r.Get("/v1/items/{provider}", handler.Items)
		r.Get("/v1/dashboard", handler.Dashboard)
	})

	// Metrics on a separate listener
	if cfg.Telemetry.MetricsPort > 0 {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Telemetry.MetricsPort)
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("metrics listening", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("portal starting", "addr", addr, "version", version)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("portal stopped")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": version,
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := context.WithValue(r.Context(), requestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type contextKey string

const requestIDKey contextKey = "request_id"

func generateRequestID() string {
	now := time.Now()
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("req_%d_%s", now.UnixMilli(), hex.EncodeToString(b))
}
