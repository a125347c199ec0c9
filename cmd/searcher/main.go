package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	hackpados "github.com/hack-pad/hackpadfs/os"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/index/posting"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/query"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/internal/textstore"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/middleware"
	pkgpostgres "github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/resilience"
)

var connectRetry = resilience.RetryConfig{
	MaxAttempts:    5,
	InitialDelay:   500 * time.Millisecond,
	MaxDelay:       5 * time.Second,
	JitterFraction: 0.1,
}

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup("searcher", cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	fsys := hackpados.NewFS()
	dataDir, err := fsPath(fsys, cfg.Index.DataDir)
	if err != nil {
		return fmt.Errorf("resolving index directory: %w", err)
	}
	loader := posting.NewLoader(fsys, posting.LoaderConfig{
		Dir:       dataDir,
		MaxShards: cfg.Index.MaxShards,
		OnLoad: func(s posting.LoadStats) {
			tokens := make(map[string]int, len(s.Tokens))
			for p, n := range s.Tokens {
				tokens[string(p)] = n
			}
			m.ObserveIndexLoad(s.Duration, tokens)
		},
	})

	store, closeStore, err := openTextStore(ctx, cfg, fsys)
	if err != nil {
		return err
	}
	defer closeStore()

	var backend cache.Backend
	var redisClient *pkgredis.Client
	if cfg.Redis.Addr != "" {
		err := resilience.Retry(ctx, "redis connect", resilience.RetryConfig{MaxAttempts: 2}, func(ctx context.Context) error {
			var err error
			redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
			return err
		})
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			backend = redisClient
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	queryCache := cache.New(backend, cfg.Redis.CacheTTL, m)

	breaker := resilience.NewCircuitBreaker("text-store", resilience.CircuitBreakerConfig{
		IsFailure: executor.IsStoreFailure,
		OnStateChange: func(name string, _, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	exec := executor.New(loader, store, executor.Config{
		Compiler: query.NewCompiler(query.Options{
			MaxSetSize:   cfg.Index.MaxSetSize,
			MaxClassSize: cfg.Index.MaxClassSize,
		}),
		VerifyTimeout: cfg.Search.VerifyTimeout,
		Breaker:       breaker,
		Metrics:       m,
	})

	var tracker handler.Tracker
	if cfg.Analytics.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, analytics.CollectorConfig{BufferSize: cfg.Analytics.BufferSize})
		collector.Start()
		defer collector.Close()
		tracker = collector
	}

	checker := health.NewChecker(5 * time.Second)
	indexCheck := func(context.Context) error {
		if !loader.Loaded() {
			return errors.New("n-gram index not loaded")
		}
		return nil
	}
	if cfg.Index.LoadOnStartup {
		checker.Register("ngram_index", indexCheck)
	} else {
		checker.RegisterOptional("ngram_index", indexCheck)
	}
	checker.Register("text_store", store.Ping)
	checker.RegisterOptional("redis", func(ctx context.Context) error {
		if redisClient == nil {
			return errors.New("not configured")
		}
		return redisClient.Ping(ctx)
	})

	h := handler.New(exec, queryCache, loader, tracker, handler.Config{
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
		TraceSpans:   cfg.Tracing.Enabled,
	})
	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.RequestTimeout)(chain)
	if len(cfg.Server.CORSOrigins) > 0 {
		chain = middleware.CORS(middleware.CORSConfig{AllowOrigins: cfg.Server.CORSOrigins})(chain)
	}
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	if cfg.Index.LoadOnStartup {
		go func() {
			if _, err := loader.Load(ctx); err != nil {
				slog.Error("n-gram index load failed, searches will retry", "dir", cfg.Index.DataDir, "error", err)
			}
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("search service listening", "addr", server.Addr, "text_store", cfg.TextStore.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func openTextStore(ctx context.Context, cfg *config.Config, fsys *hackpados.FS) (textstore.Store, func(), error) {
	switch cfg.TextStore.Driver {
	case "memory":
		name, err := fsPath(fsys, cfg.TextStore.CorpusFile)
		if err != nil {
			return nil, nil, fmt.Errorf("resolving corpus file: %w", err)
		}
		store, err := textstore.LoadMemory(fsys, name)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	default:
		var client *pkgpostgres.Client
		err := resilience.Retry(ctx, "postgres connect", connectRetry, func(ctx context.Context) error {
			var err error
			client, err = pkgpostgres.New(ctx, cfg.Postgres)
			return err
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		slog.Info("text store connected", "host", cfg.Postgres.Host, "table", cfg.Postgres.Table)
		return textstore.NewPostgres(client, cfg.Postgres.Table), func() { client.Close() }, nil
	}
}

// fsPath converts an OS path, relative to the working directory or
// absolute, into a path on fsys.
func fsPath(fsys *hackpados.FS, osPath string) (string, error) {
	abs, err := filepath.Abs(osPath)
	if err != nil {
		return "", err
	}
	return fsys.FromOSPath(abs)
}
