package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olivere/elastic/v7"
	"github.com/redis/go-redis/v9"

	"github.com/Clark-Hu/portion-finder/internal/config"
	"github.com/Clark-Hu/portion-finder/internal/directory"
	"github.com/Clark-Hu/portion-finder/internal/geocode"
	httpserver "github.com/Clark-Hu/portion-finder/internal/http"
	"github.com/Clark-Hu/portion-finder/internal/logger"
	"github.com/Clark-Hu/portion-finder/internal/ratelimit"
	"github.com/Clark-Hu/portion-finder/internal/repository"
	"github.com/Clark-Hu/portion-finder/internal/service"
	"github.com/Clark-Hu/portion-finder/internal/store"
	"github.com/Clark-Hu/portion-finder/internal/upstream"
)

const serviceName = "portion-finder"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	log := logger.New(serviceName, cfg.LogLevel)
	slog.SetDefault(log)

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	st, err := store.New(dbCtx, cfg.DBURL, store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 log,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer st.Close()

	if err := st.Migrate(dbCtx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	geoClient, err := geocode.NewClient(cfg.GeocodeURL, cfg.GeocodeAPIKey, newUpstream(cfg, "geocoder", log), log)
	if err != nil {
		return fmt.Errorf("init geocode client: %w", err)
	}

	dir, err := newDirectory(ctx, cfg, log)
	if err != nil {
		return err
	}

	limiter, closeLimiter, err := newLimiter(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeLimiter()

	repo := repository.New(st)
	locations := service.NewLocationService(geoClient, dir, repo.Ratings, service.LocationOptions{
		RadiusMeters: cfg.DirectoryRadiusMeters,
		Concurrency:  cfg.EnrichConcurrency,
		SiteTimeout:  cfg.EnrichTimeout(),
	}, log)
	ratings := service.NewRatingService(repo.Ratings, limiter, log)

	server := httpserver.New(cfg, st, locations, ratings, log)
	log.Info("starting server",
		slog.String("port", cfg.Port),
		slog.String("directory_backend", cfg.DirectoryBackend),
		slog.String("rate_limit_backend", cfg.RateLimitBackend),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.String("error", err.Error()))
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("graceful shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
	return nil
}

func newUpstream(cfg config.Config, name string, log *slog.Logger) *upstream.Client {
	return upstream.New(upstream.Options{
		Name:                name,
		Timeout:             cfg.UpstreamTimeout(),
		MaxQPS:              cfg.UpstreamMaxQPS,
		BreakerFailureRatio: cfg.UpstreamBreakerFailure,
		BreakerMinRequests:  cfg.UpstreamBreakerMinReqs,
		BreakerOpenTimeout:  time.Duration(cfg.UpstreamBreakerOpenSec) * time.Second,
		Logger:              log,
	})
}

func newDirectory(ctx context.Context, cfg config.Config, log *slog.Logger) (service.Directory, error) {
	opts := directory.SearchOptions{
		PageSize:     cfg.DirectoryPageSize,
		Statuses:     cfg.DirectoryStatuses,
		ConceptIDs:   cfg.DirectoryConceptIDs,
		AddressTypes: cfg.DirectoryAddressTypes,
	}
	if cfg.DirectoryBackend != config.DirectoryBackendElastic {
		return directory.NewHTTPDirectory(cfg.DirectoryURL, cfg.DirectoryAPIKey, opts, newUpstream(cfg, "directory", log), log), nil
	}

	client, err := elastic.NewClient(
		elastic.SetURL(cfg.ElasticURL),
		elastic.SetSniff(false),
		elastic.SetHealthcheckTimeout(cfg.UpstreamTimeout()),
		elastic.SetHttpClient(newUpstream(cfg, "directory", log)),
	)
	if err != nil {
		return nil, fmt.Errorf("connect elasticsearch: %w", err)
	}
	dir := directory.NewElasticDirectory(client, cfg.ElasticIndex, opts, log)
	if err := dir.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("ensure site index: %w", err)
	}
	return dir, nil
}

func newLimiter(ctx context.Context, cfg config.Config, log *slog.Logger) (service.Limiter, func(), error) {
	if cfg.RateLimitBackend == config.RateLimitBackendRedis {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		log.Info("rate limiter using redis", slog.String("addr", cfg.RedisAddr))
		return ratelimit.NewRedis(rdb, cfg.RateLimitWindow(), cfg.RateLimitMaxRequests), func() { _ = rdb.Close() }, nil
	}

	mem := ratelimit.NewMemory(cfg.RateLimitWindow(), cfg.RateLimitMaxRequests, ratelimit.WithMaxKeys(cfg.RateLimitMaxKeys))
	go mem.Run(ctx, time.Minute)
	return mem, func() {}, nil
}
