// Package verify реализует проверку сессии: возвращает данные пользователя
// из токена, который уже проверил JWTMiddleware.
package verify

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/billdesk/internal/http/middlewarectx"
	"github.com/magabrotheeeer/billdesk/internal/http/response"
	"github.com/magabrotheeeer/billdesk/internal/lib/apperr"
)

// Claims: данные сессии в ответе.
type Claims struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	ExpiresAt int64  `json:"exp,omitempty"`
}

// Handler отдает claims текущей сессии.
type Handler struct {
	log *slog.Logger
}

// New создает новый Handler.
func New(log *slog.Logger) *Handler {
	return &Handler{log: log}
}

// ServeHTTP godoc
// @Summary Проверка сессии
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=Claims}
// @Failure 401 {object} response.ErrorResponse
// @Router /verify [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.verify"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	claims, ok := middlewarectx.ClaimsFromContext(r.Context())
	if !ok {
		log.Info("no session in context")
		response.WriteError(w, r, apperr.New(apperr.ErrAuth, "missing or invalid authorization header"))
		return
	}

	out := Claims{ID: claims.UserUID, Name: claims.Name, Email: claims.Email}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Unix()
	}
	render.JSON(w, r, response.StatusOKWithData(out))
}
