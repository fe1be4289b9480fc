// Package billdesk собирает HTTP API: хранилище, миграции, кэш, хранилище PDF,
// публикацию событий, сервисы и маршруты.
package billdesk

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/billdesk/internal/assets"
	"github.com/magabrotheeeer/billdesk/internal/cache"
	"github.com/magabrotheeeer/billdesk/internal/config"
	"github.com/magabrotheeeer/billdesk/internal/events"
	"github.com/magabrotheeeer/billdesk/internal/lib/jwt"
	"github.com/magabrotheeeer/billdesk/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/billdesk/internal/lib/sl"
	"github.com/magabrotheeeer/billdesk/internal/migrations"
	authservice "github.com/magabrotheeeer/billdesk/internal/services/auth"
	billservice "github.com/magabrotheeeer/billdesk/internal/services/bill"
	"github.com/magabrotheeeer/billdesk/internal/storage/repository"
)

var (
	_ AuthService = (*authservice.AuthService)(nil)
	_ BillService = (*billservice.BillService)(nil)
)

// shutdownTimeout: сколько ждать завершения активных запросов при остановке.
const shutdownTimeout = 15 * time.Second

type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	broker *amqp.Connection
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err = repository.CheckDatabaseReady(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	app := &App{logger: logger, db: db}

	// Без Redis сервис работает, просто читает счета напрямую из базы.
	var billCache billservice.Cache
	if c, err := cache.InitServer(ctx, cfg.RedisConnection); err != nil {
		logger.Warn("redis unavailable, bill cache disabled", sl.Err(err))
	} else {
		app.cache = c
		billCache = c
	}

	store, err := assets.New(ctx, cfg.Assets)
	if err != nil {
		app.close()
		return nil, err
	}

	publisher, err := app.initPublisher(cfg.RabbitMQ)
	if err != nil {
		app.close()
		return nil, err
	}

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	authService := authservice.NewAuthService(db, jwtMaker, logger, !cfg.Auth.DisablePlaintextFallback)
	billService := billservice.NewBillService(db, billCache, store, publisher, logger, cfg.BillCacheTTL)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, authService, billService)

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

// initPublisher подключается к брокеру, если он настроен, иначе события не отправляются.
func (a *App) initPublisher(cfg config.RabbitMQ) (events.Publisher, error) {
	if cfg.URL == "" {
		a.logger.Info("rabbitmq url is not set, bill events disabled")
		return events.Noop{}, nil
	}
	conn, err := rabbitmq.Connect(cfg.URL, cfg.Retries, cfg.RetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, cfg.Exchange)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	a.broker = conn
	return events.NewAMQPPublisher(ch, cfg.Exchange), nil
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.broker != nil {
		if err := a.broker.Close(); err != nil {
			a.logger.Warn("failed to close rabbitmq connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("failed to close redis", sl.Err(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", sl.Err(err))
	}
}
