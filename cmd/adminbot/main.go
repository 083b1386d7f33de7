package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"repbaza/internal/adminbot"
	"repbaza/internal/config"
	"repbaza/internal/db"
	"repbaza/internal/metrics"
)

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("REPBAZA_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Telegram.AdminBotToken == "" {
		logger.Fatal().Msg("set telegram.admin_bot_token in config")
	}
	if len(cfg.Admins) == 0 {
		logger.Fatal().Msg("admin allowlist is empty, nobody could use this bot")
	}

	database, err := db.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	metrics.Register()

	b, err := adminbot.New(cfg, database, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create admin bot error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Msg("admin bot started")
	b.Start(ctx)
}
