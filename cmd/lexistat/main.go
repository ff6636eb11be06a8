package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/generation"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/lexicon"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/rail"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/textindex"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	tracing.Configure(cfg.Tracing.Enabled, cfg.Tracing.SampleRate)
	slog.Info("starting lexical statistics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	idx, err := openIndex(ctx, cfg.Index)
	if err != nil {
		slog.Error("failed to open text index", "error", err)
		os.Exit(1)
	}
	slog.Info("text index loaded",
		"snapshot", cfg.Index.SnapshotPath,
		"generation", idx.Generation(),
		"max_doc", idx.MaxDoc(),
		"fields", idx.Fields(),
	)

	m.Generation(idx.Generation())

	rails := rail.NewRegistry(idx, rail.Options{
		Dir:         cfg.Rail.DataDir,
		LockTimeout: cfg.Rail.BuildLockTimeout,
		Metrics:     m,
	})
	defer rails.Close()
	if err := rails.Warm(ctx, cfg.Rail.BuildParallelism, cfg.Index.Fields...); err != nil {
		slog.Warn("some rails could not be prebuilt", "error", err)
	}

	var (
		corpora corpus.Store = corpus.NewMemStore()
		pg      health.Pinger
	)
	if cfg.Postgres.Enabled {
		var db *postgres.Client
		err := resilience.Retry(ctx, "postgres connect", resilience.RetryConfig{MaxAttempts: 5, InitialDelay: time.Second}, func(ctx context.Context, _ int) error {
			var err error
			db, err = postgres.New(ctx, cfg.Postgres)
			return err
		})
		if err != nil {
			slog.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store, err := corpus.NewPGStore(ctx, db)
		if err != nil {
			slog.Error("failed to prepare corpus store", "error", err)
			os.Exit(1)
		}
		corpora, pg = store, db
		slog.Info("corpus store backed by postgres", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	} else {
		slog.Info("corpus store kept in memory")
	}

	var (
		resultCache *lexicon.Cache
		cachePing   health.Pinger
	)
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, result caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			resultCache = lexicon.NewCache(redisClient, cfg.Redis.CacheTTL, m)
			cachePing = redisClient
			slog.Info("result cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	svc := lexicon.NewService(rails, lexicon.Options{
		Query:       cfg.Query,
		Parallelism: cfg.Rail.BuildParallelism,
		Corpora:     corpora,
		Cache:       resultCache,
		Metrics:     m,
	})

	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		var inv generation.Invalidator
		if resultCache != nil {
			inv = resultCache
		}
		reloader := generation.NewReloader(rails, inv, generation.ReloaderOptions{
			Timeout:     cfg.Rail.BuildLockTimeout,
			Parallelism: cfg.Rail.BuildParallelism,
			Metrics:     m,
		})
		instance, _ := os.Hostname()
		consumer = kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexGeneration, instance, reloader.Handle)
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("generation consumer error", "error", err)
			}
		}()
		slog.Info("listening for index generations", "topic", cfg.Kafka.Topics.IndexGeneration)
	}

	checker := health.NewChecker(2 * time.Second)
	checker.Register("text_index", func(ctx context.Context) health.ComponentHealth {
		src := rails.Source()
		if src.MaxDoc() == 0 {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "index is empty"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("generation %d", src.Generation())}
	})
	checker.Register("postgres", health.PingCheck(pg, cfg.Postgres.Enabled))
	checker.Register("redis", health.PingCheck(cachePing, false))
	if consumer != nil {
		checker.Register("kafka", health.ErrCheck(consumer.LastError, false))
	}

	mux := http.NewServeMux()
	lexicon.NewHandler(svc).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var limiter *ratelimit.Limiter
	if cfg.Server.RateLimit > 0 {
		limiter = ratelimit.New(cfg.Server.RateLimit, time.Minute)
		defer limiter.Close()
	}

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.HandlerTimeout())(chain)
	chain = middleware.RateLimit(limiter, middleware.QueryCost)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("lexical statistics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("lexical statistics service stopped")
}

// openIndex loads the configured snapshot, or starts from an empty index
// with the configured fields when there is none yet.
func openIndex(ctx context.Context, cfg config.IndexConfig) (*textindex.Index, error) {
	if cfg.SnapshotPath != "" {
		if _, err := os.Stat(cfg.SnapshotPath); err == nil {
			return generation.LoadSnapshot(ctx, cfg.SnapshotPath)
		} else if !os.IsNotExist(err) {
			return nil, err
		}
		slog.Warn("snapshot not found, starting with an empty index", "path", cfg.SnapshotPath)
	}
	specs := make([]textindex.FieldSpec, len(cfg.Fields))
	for i, name := range cfg.Fields {
		specs[i] = textindex.FieldSpec{Name: name, Positions: true, Analyzer: textindex.DefaultAnalyzer()}
	}
	return textindex.NewIndex(specs...), nil
}
