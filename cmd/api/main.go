package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cenkalti/backoff/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"genstudio/internal/adapter/memstore"
	"genstudio/internal/adapter/repo"
	"genstudio/internal/billing"
	"genstudio/internal/cache"
	"genstudio/internal/domain"
	"genstudio/internal/http/handlers"
	httpapi "genstudio/internal/http/httpapi"
	"genstudio/internal/imagegen"
	"genstudio/internal/infra"
	"genstudio/internal/infra/geoip"
	"genstudio/internal/infra/google"
	"genstudio/internal/ledger"
	"genstudio/internal/middleware"
	"genstudio/internal/storage"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx := context.Background()

	store, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()

	generator := buildGenerator(cfg, logger)
	led := ledger.New(store, generator, ledgerPolicy(cfg.Ledger), logger,
		ledger.WithSettleRetry(5, func() backoff.BackOff { return backoff.NewExponentialBackOff() }),
	)

	// The worker binary sweeps Postgres; the memory store lives in this process.
	if cfg.StoreDriver == infra.StoreDriverMemory {
		sweepCtx, stopSweep := context.WithCancel(ctx)
		defer stopSweep()
		go func() { _ = led.RunSweeper(sweepCtx, cfg.Ledger.SweepInterval, cfg.Ledger.ReservationStale) }()
	}

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
		resolver, _ = geoip.NewResolver("")
	}
	defer resolver.Close()

	var statsCache cache.Cache = cache.Noop{}
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.RedisURL, "genstudio:")
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, stats cache disabled")
		} else {
			defer rc.Close()
			statsCache = rc
		}
	}

	sessions := middleware.NewSessions(cfg.SessionSecret, cfg.SessionTTL)
	extractors := []middleware.CredentialExtractor{
		middleware.BearerSession(sessions),
		middleware.SessionCookie(sessions),
	}
	if cfg.DevLoginEnabled {
		logger.Warn().Msg("dev login enabled")
		extractors = append(extractors, middleware.DevSessionCookie(sessions))
	}

	app := &handlers.App{
		Logger:          logger,
		Ledger:          led,
		Stats:           store.Stats(),
		Sessions:        sessions,
		GoogleVerifier:  google.NewVerifier(cfg.GoogleIssuer, cfg.GoogleClientID),
		Checkout:        billing.NewStripeCheckout(cfg.StripeSecretKey, cfg.PublicBaseURL),
		WebhookSecret:   cfg.StripeWebhookSecret,
		Cache:           statsCache,
		StatsCacheTTL:   cfg.StatsCacheTTL,
		DevLoginEnabled: cfg.DevLoginEnabled,
		SecureCookies:   !cfg.IsDevelopment(),
	}

	opts := httpapi.Options{
		Logger:             logger,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Extractors:         extractors,
		CountryLookup:      resolver.CountryCode,
		RateLimitPerMin:    cfg.RateLimitPerMin,
		AdminUsername:      cfg.AdminUsername,
		AdminPassword:      cfg.AdminPassword,
	}
	if cfg.StorageDriver == infra.StorageDriverFS {
		opts.StaticDir = cfg.StoragePath
	}
	router := httpapi.NewRouter(app, opts)

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("API listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func openStore(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (domain.Store, func()) {
	if cfg.StoreDriver == infra.StoreDriverMemory {
		logger.Warn().Msg("using in-memory store, data is lost on restart")
		return memstore.New(), func() {}
	}
	pool, err := infra.NewDBPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	return repo.NewStore(infra.NewSQLRunner(pool, logger)), pool.Close
}

func buildGenerator(cfg *infra.Config, logger zerolog.Logger) imagegen.Generator {
	var gen imagegen.Generator
	if cfg.FalKey != "" {
		gen = imagegen.NewFalClient(imagegen.FalOptions{
			BaseURL: cfg.FalBaseURL,
			APIKey:  cfg.FalKey,
			Model:   cfg.FalModel,
			Timeout: cfg.Ledger.GenerationTimeout,
		})
	} else {
		logger.Warn().Msg("FAL_KEY not set, serving placeholder images")
		gen = imagegen.PlaceholderGenerator{}
	}

	var objects storage.ObjectStore
	switch cfg.StorageDriver {
	case infra.StorageDriverFS:
		path := cfg.StoragePath
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		fs, err := storage.NewFileStore(path, cfg.StorageBaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure file storage")
		}
		objects = fs
	case infra.StorageDriverS3:
		s3, err := storage.NewS3Store(storage.S3Options{
			Endpoint:      cfg.S3.Endpoint,
			Region:        cfg.S3.Region,
			AccessKey:     cfg.S3.AccessKey,
			SecretKey:     cfg.S3.SecretKey,
			Bucket:        cfg.S3.Bucket,
			PublicBaseURL: cfg.S3.PublicURL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure s3 storage")
		}
		objects = s3
	default:
		return gen
	}
	return imagegen.NewMirror(gen, objects, cfg.S3.Prefix, logger)
}

func ledgerPolicy(c infra.LedgerConfig) ledger.Policy {
	p := ledger.DefaultPolicy()
	p.SignupBonus = c.SignupBonus
	p.ProfileBonus = c.ProfileBonus
	p.CostPerCreditCents = c.CostPerCreditCent
	p.DailyFreeCapCents = c.DailyFreeCapCents
	p.MaxLongEdge = c.MaxLongEdge
	p.MaxOutputs = c.MaxOutputs
	p.GenerationTimeout = c.GenerationTimeout
	return p
}
