// Package middlewarectx содержит HTTP middleware для обработки и проверки JWT токенов.
//
// JWTMiddleware проверяет наличие и валидность JWT токена в заголовке Authorization
// и в случае успеха добавляет в контекст идентификатор, имя и email пользователя
// для дальнейшего использования в обработчиках.
//
// В случае ошибки проверки возвращает HTTP 401 Unauthorized с сообщением об ошибке.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/magabrotheeeer/billdesk/internal/http/response"
	"github.com/magabrotheeeer/billdesk/internal/lib/apperr"
	"github.com/magabrotheeeer/billdesk/internal/lib/jwt"
	"github.com/magabrotheeeer/billdesk/internal/lib/sl"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// UserUID: ключ для идентификатора пользователя в контексте
	UserUID Key = "user_uid"
	// User: ключ для имени пользователя в контексте
	User Key = "user_name"
	// Email: ключ для email пользователя в контексте
	Email Key = "email"
	// Claims: ключ для всех claims токена
	Claims Key = "claims"
)

// Service описывает интерфейс сервиса для валидации JWT токена.
type Service interface {
	ValidateToken(ctx context.Context, token string) (*jwt.CustomClaims, error)
}

// TokenFromHeader извлекает токен из заголовка Authorization.
// Префикс "Bearer " необязателен.
func TokenFromHeader(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		h = h[7:]
	}
	return strings.TrimSpace(h)
}

// JWTMiddleware возвращает HTTP middleware, который проверяет JWT в заголовке Authorization.
func JWTMiddleware(authService Service, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			logger := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			tokenStr := TokenFromHeader(r)
			if tokenStr == "" {
				logger.Info("missing authorization header")
				response.WriteError(w, r, apperr.New(apperr.ErrAuth, "missing or invalid authorization header"))
				return
			}

			claims, err := authService.ValidateToken(r.Context(), tokenStr)
			if err != nil {
				logger.Info("invalid or expired token", sl.Err(err))
				response.WriteError(w, r, apperr.New(apperr.ErrAuth, "invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// WithClaims кладет данные пользователя из токена в контекст.
func WithClaims(ctx context.Context, claims *jwt.CustomClaims) context.Context {
	ctx = context.WithValue(ctx, Claims, claims)
	ctx = context.WithValue(ctx, UserUID, claims.UserUID)
	ctx = context.WithValue(ctx, User, claims.Name)
	return context.WithValue(ctx, Email, claims.Email)
}

// UserUIDFromContext возвращает идентификатор аутентифицированного пользователя.
func UserUIDFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(UserUID).(string)
	return uid, ok && uid != ""
}

// ClaimsFromContext возвращает claims проверенного токена.
func ClaimsFromContext(ctx context.Context) (*jwt.CustomClaims, bool) {
	claims, ok := ctx.Value(Claims).(*jwt.CustomClaims)
	return claims, ok && claims != nil
}
