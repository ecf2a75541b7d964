package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"

	"genstudio/internal/db"
	"genstudio/internal/infra"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "migrate")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("migrate: connect failed")
	}
	defer conn.Close()

	if err := db.Migrate(ctx, conn); err != nil {
		logger.Fatal().Err(err).Msg("migrate: apply schema failed")
	}
	logger.Info().Msg("migrate: schema up to date")
}
