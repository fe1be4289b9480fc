// Package remove реализует HTTP-обработчик удаления счета владельцем.
//
// Сначала удаляется привязанный PDF. Если хранилище файлов не ответило,
// счет не удаляется и клиент получает 502.
package remove

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/billdesk/internal/http/middlewarectx"
	"github.com/magabrotheeeer/billdesk/internal/http/response"
	"github.com/magabrotheeeer/billdesk/internal/lib/apperr"
	"github.com/magabrotheeeer/billdesk/internal/lib/sl"
)

// Handler обрабатывает запросы на удаление счета.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает бизнес-логику удаления счета.
type Service interface {
	Delete(ctx context.Context, id, ownerID string) error
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Удалить счет
// @Tags bills
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID счета"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /api/bills/{id} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.bill.remove"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	ownerID, ok := middlewarectx.UserUIDFromContext(r.Context())
	if !ok {
		log.Error("user uid not found in context")
		response.WriteError(w, r, apperr.New(apperr.ErrAuth, "unauthorized"))
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		log.Info("invalid bill id", slog.String("id", id))
		response.BadRequest(w, r, "invalid bill id")
		return
	}

	if err := h.service.Delete(r.Context(), id, ownerID); err != nil {
		log.Info("failed to delete bill", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	log.Info("bill deleted", slog.String("id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "bill deleted successfully",
	}))
}
