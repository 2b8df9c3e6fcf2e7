package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"dppengine/internal/batch"
	"dppengine/internal/compliance"
	"dppengine/internal/export"
	"dppengine/internal/jwttoken"
	"dppengine/internal/passport/service"
	"dppengine/internal/platform/config"
	"dppengine/internal/platform/httpserver"
	"dppengine/internal/platform/logger"
	"dppengine/internal/platform/metrics"
	"dppengine/internal/platform/redis"
	"dppengine/internal/provenance"
	"dppengine/internal/provenance/stream"
	"dppengine/internal/store"
	httptransport "dppengine/internal/transport/http"
)

const (
	tokenIssuer   = "dppengine"
	tokenAudience = "dppengine"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	recordStore, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		log.Error("store initialization failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	if cfg.Seed {
		if err := store.Seed(ctx, recordStore, time.Now()); err != nil {
			log.Error("seeding failed", "error", err)
			os.Exit(1)
		}
		log.Info("seeded demo passports")
	}

	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		client, err := redis.New(cfg.RedisURL)
		if err != nil {
			log.Error("redis initialization failed", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		redisClient = client.Client
		log.Info("compliance cache enabled", "ttl", cfg.ComplianceCacheTTL)
	}
	cache := compliance.NewCachedAggregator(redisClient, cfg.ComplianceCacheTTL, log)

	// The stream is fail-open: a broker that is down at startup disables it
	// rather than blocking the engine.
	var publisher *stream.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		sink, err := stream.NewKafkaSink(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Warn("provenance stream disabled", "error", err)
		} else {
			publisher = stream.NewPublisher(sink, stream.WithLogger(log), stream.WithMetrics(m))
			log.Info("provenance stream enabled", "topic", cfg.KafkaTopic)
		}
	}

	svc := service.New(recordStore, provenance.NewLedger(), log,
		service.WithComplianceCache(cache),
		service.WithStream(publisher),
		service.WithMetrics(m),
	)
	mutator := batch.New(recordStore, log, batch.WithMetrics(m))
	exporter := export.New(recordStore, log, export.WithMetrics(m))
	tokens := jwttoken.NewService(cfg.JWTSigningKey, tokenIssuer, tokenAudience)

	handler := httptransport.NewHandler(svc, mutator, exporter, log, m, tokens)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting dpp record engine", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if publisher != nil {
		g.Go(func() error {
			if err := publisher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// buildStore selects the record store backend: postgres when configured,
// in-memory otherwise.
func buildStore(ctx context.Context, cfg config.Config) (store.RecordStore, func(), error) {
	if cfg.PostgresURL == "" {
		return store.NewInMemoryRecordStore(), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}

	pg := store.NewPostgresRecordStore(db)
	if err := pg.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return pg, func() { db.Close() }, nil
}
