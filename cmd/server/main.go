package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"provenance/internal/audit"
	"provenance/internal/platform/config"
	"provenance/internal/platform/httpserver"
	"provenance/internal/platform/logger"
	platformredis "provenance/internal/platform/redis"
	"provenance/internal/registry"
	registrycache "provenance/internal/registry/cache"
	"provenance/internal/registry/handler"
	registrymetrics "provenance/internal/registry/metrics"
	"provenance/internal/token"
	httptransport "provenance/internal/transport/http"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the registry service package.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if cfg.AdminPrincipal == "" {
		log.Error("PROVENANCE_ADMIN must be set; the admin principal is bound once at startup")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		log.Error("store init failed", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	var recordCache *registrycache.RecordCache
	if redisClient != nil {
		recordCache = registrycache.New(redisClient.Client, cfg.CacheTTL)
		defer redisClient.Close()
	}

	kafkaSink, err := audit.NewKafkaSink(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		log.Error("kafka init failed", "error", err)
		os.Exit(1)
	}
	defer kafkaSink.Close()

	publisher := audit.NewPublisher(256, log)
	auditStore := audit.NewInMemoryStore()
	worker := audit.NewWorker(auditStore, kafkaSink, publisher.Inbox(), log)

	var gate registry.Gate = registry.PrefixGate{}
	if cfg.GateDisabled {
		gate = registry.OpenGate{}
	}

	opts := []registry.Option{
		registry.WithLogger(log),
		registry.WithMetrics(registrymetrics.New()),
		registry.WithAuditor(publisher),
		registry.WithGate(gate),
	}
	if recordCache != nil {
		opts = append(opts, registry.WithCache(recordCache))
	}

	service, err := registry.New(ctx, store, registry.Principal(cfg.AdminPrincipal), cfg.InitialRule, opts...)
	if err != nil {
		log.Error("registry init failed", "error", err)
		os.Exit(1)
	}

	jwtService := token.NewJWTService(cfg.JWTSigningKey, "provenance", "provenance")
	h := handler.New(service, log, jwtService)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(h))

	log.Info("starting provenance registry", "addr", cfg.Addr, "admin", cfg.AdminPrincipal)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		if err := worker.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// buildStore picks PostgreSQL when a DSN is configured and falls back to the
// in-memory store otherwise.
func buildStore(ctx context.Context, cfg config.Server) (registry.Store, func(), error) {
	if cfg.PostgresDSN == "" {
		return registry.NewMemoryStore(), func() {}, nil
	}
	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	store := registry.NewPostgres(db)
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, func() { _ = db.Close() }, nil
}
