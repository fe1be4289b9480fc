// Package listbyuser реализует публичный HTTP-обработчик списка счетов
// произвольного пользователя. Сессия не требуется.
package listbyuser

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/billdesk/internal/http/response"
	"github.com/magabrotheeeer/billdesk/internal/lib/sl"
	"github.com/magabrotheeeer/billdesk/internal/models"
)

// Handler отдает счета пользователя по ID из пути.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает чтение счетов пользователя без проверки сессии.
type Service interface {
	ListByOwnerUnauthenticated(ctx context.Context, ownerID string) ([]*models.Bill, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Счета пользователя по его ID (публичный)
// @Tags bills
// @Produce json
// @Param id path string true "ID пользователя"
// @Success 200 {object} response.Response{data=[]models.Bill}
// @Failure 400 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /api/bills/{id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.bill.listbyuser"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(userID); err != nil {
		log.Info("invalid user id", slog.String("id", userID))
		response.BadRequest(w, r, "invalid user id")
		return
	}

	bills, err := h.service.ListByOwnerUnauthenticated(r.Context(), userID)
	if err != nil {
		log.Error("failed to list bills", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}
	if bills == nil {
		bills = []*models.Bill{}
	}

	render.JSON(w, r, response.StatusOKWithData(bills))
}
