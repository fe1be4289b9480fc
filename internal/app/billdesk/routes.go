package billdesk

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/billdesk/internal/config"
	"github.com/magabrotheeeer/billdesk/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/billdesk/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/billdesk/internal/http/handlers/auth/verify"
	"github.com/magabrotheeeer/billdesk/internal/http/handlers/bill/create"
	"github.com/magabrotheeeer/billdesk/internal/http/handlers/bill/list"
	"github.com/magabrotheeeer/billdesk/internal/http/handlers/bill/listbyuser"
	"github.com/magabrotheeeer/billdesk/internal/http/handlers/bill/read"
	"github.com/magabrotheeeer/billdesk/internal/http/handlers/bill/remove"
	"github.com/magabrotheeeer/billdesk/internal/http/handlers/bill/stats"
	"github.com/magabrotheeeer/billdesk/internal/http/handlers/bill/update"
	"github.com/magabrotheeeer/billdesk/internal/http/handlers/bill/uploadpdf"
	"github.com/magabrotheeeer/billdesk/internal/http/handlers/health"
	"github.com/magabrotheeeer/billdesk/internal/http/middlewarectx"
)

// AuthService: все, что маршрутам нужно от сервиса учетных записей.
type AuthService interface {
	register.Service
	login.Service
	middlewarectx.Service
}

// BillService: все, что маршрутам нужно от сервиса счетов.
type BillService interface {
	create.Service
	update.Service
	uploadpdf.Service
	list.Service
	listbyuser.Service
	read.Service
	remove.Service
	stats.Service
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, authService AuthService, billService BillService) {
	// Глобальные middleware
	if cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.RequestSize(cfg.BodyLimit),
		cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}),
	)

	authLimiters := middlewarectx.NewClientLimiters(
		rate.Limit(cfg.Auth.LoginRate), cfg.Auth.LoginBurst, cfg.Auth.LoginLimiterIdle)

	// Открытые конечные точки
	r.Group(func(r chi.Router) {
		r.Use(middlewarectx.RateLimitMiddleware(logger, authLimiters))
		r.Post("/register", register.New(logger, authService).ServeHTTP)
		r.Post("/login", login.New(logger, authService).ServeHTTP)
	})
	r.Get("/health", health.New(logger).ServeHTTP)

	// Группа с JWT аутентификацией
	r.Group(func(r chi.Router) {
		r.Use(middlewarectx.JWTMiddleware(authService, logger))
		r.Get("/verify", verify.New(logger).ServeHTTP)

		r.Post("/api/bills", create.New(logger, billService).ServeHTTP)
		r.Get("/api/bills", list.New(logger, billService).ServeHTTP)
		r.Put("/api/bills/{id}", update.New(logger, billService).ServeHTTP)
		r.Delete("/api/bills/{id}", remove.New(logger, billService).ServeHTTP)
		r.Post("/api/bills/{id}/upload-pdf", uploadpdf.New(logger, billService).ServeHTTP)
		r.Get("/api/stats", stats.New(logger, billService).ServeHTTP)
	})

	// Чтение без сессии, оставлено для старых клиентов
	if !cfg.DisablePublicRoutes {
		r.Get("/api/bills/{id}", listbyuser.New(logger, billService).ServeHTTP)
		r.Get("/api/bill/{id}", read.New(logger, billService).ServeHTTP)
	} else {
		logger.Info("public bill routes disabled")
	}

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
