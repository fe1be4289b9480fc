// Package main Billdesk API
//
// @title           Billdesk API
// @version         1.0
// @description     API для хранения счетов, коммерческих предложений и заказов с PDF-копиями

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:5000
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	_ "github.com/magabrotheeeer/billdesk/docs"
	"github.com/magabrotheeeer/billdesk/internal/app/billdesk"
	"github.com/magabrotheeeer/billdesk/internal/config"
	"github.com/magabrotheeeer/billdesk/internal/lib/sl"
)

func main() {
	// .env нужен только локально, в контейнере переменные приходят из окружения
	_ = godotenv.Load()

	cfg := config.MustLoad()
	logger := sl.New(cfg.Env, os.Stdout)

	logger.Info("starting billdesk", slog.String("env", cfg.Env))
	logger.Debug("config loaded", slog.String("config", cfg.String()))
	if cfg.DevSecret {
		logger.Warn("jwt secret is not set, using development default")
	}
	if !cfg.Auth.DisablePlaintextFallback {
		logger.Warn("plaintext password fallback is enabled, run migrate-passwords to retire it")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := billdesk.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("billdesk stopped gracefully")
}
