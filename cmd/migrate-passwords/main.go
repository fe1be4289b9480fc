// Package main перехеширует пароли, сохраненные открытым текстом.
//
// Запускается один раз перед отключением auth.disable_plaintext_fallback:
// после него вход по открытому паролю больше не нужен. Если часть паролей
// перехешировать нельзя, команда завершается с кодом 2 и fallback
// отключать рано.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/magabrotheeeer/billdesk/internal/config"
	"github.com/magabrotheeeer/billdesk/internal/lib/jwt"
	"github.com/magabrotheeeer/billdesk/internal/lib/sl"
	"github.com/magabrotheeeer/billdesk/internal/migrations"
	authservice "github.com/magabrotheeeer/billdesk/internal/services/auth"
	"github.com/magabrotheeeer/billdesk/internal/storage/repository"
)

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	logger := sl.New(cfg.Env, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := run(ctx, cfg, logger)
	if err != nil {
		logger.Error("password migration stopped", slog.Int("migrated", res.Migrated), sl.Err(err))
		stop()
		os.Exit(1)
	}
	if len(res.Skipped) > 0 {
		logger.Error("some legacy passwords could not be hashed, keep plaintext fallback enabled",
			slog.Int("migrated", res.Migrated),
			slog.Any("skipped_user_uids", res.Skipped),
			sl.Audit())
		stop()
		os.Exit(2)
	}
	logger.Info("password migration finished", slog.Int("migrated", res.Migrated), sl.Audit())
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) (authservice.MigrationResult, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return authservice.MigrationResult{}, err
	}
	defer db.Close()

	if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return authservice.MigrationResult{}, err
	}

	// Токены здесь не выпускаются, но сервису нужен Maker.
	maker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	return authservice.NewAuthService(db, maker, logger, false).MigrateLegacyPasswords(ctx)
}
