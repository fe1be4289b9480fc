// Package main содержит точку входа для журнала аудита событий по счетам.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/magabrotheeeer/billdesk/internal/app/billaudit"
	"github.com/magabrotheeeer/billdesk/internal/config"
	"github.com/magabrotheeeer/billdesk/internal/lib/sl"
)

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	logger := sl.New(cfg.Env, os.Stdout)

	if cfg.RabbitMQ.URL == "" {
		logger.Error("RABBITMQ_URL is not set")
		os.Exit(1)
	}

	logger.Info("starting bill-audit", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := billaudit.New(cfg.RabbitMQ, logger)
	if err != nil {
		logger.Error("failed to initialize bill-audit", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("bill-audit stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("bill-audit stopped gracefully")
}
