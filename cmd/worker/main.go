package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"genstudio/internal/adapter/repo"
	"genstudio/internal/imagegen"
	"genstudio/internal/infra"
	"genstudio/internal/ledger"
)

// The worker settles reservations whose request died between reserve and
// settle: delivered generations are committed, the rest are released.
func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	if cfg.StoreDriver != infra.StoreDriverPostgres {
		logger.Fatal().Str("store", cfg.StoreDriver).Msg("worker: requires STORE_DRIVER=postgres")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	store := repo.NewStore(infra.NewSQLRunner(pool, logger))
	// The sweeper never calls the provider.
	led := ledger.New(store, imagegen.PlaceholderGenerator{}, ledger.DefaultPolicy(), logger)

	if err := led.RunSweeper(ctx, cfg.Ledger.SweepInterval, cfg.Ledger.ReservationStale); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
