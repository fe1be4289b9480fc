// Package list реализует HTTP-обработчик получения всех счетов текущего пользователя.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/billdesk/internal/http/middlewarectx"
	"github.com/magabrotheeeer/billdesk/internal/http/response"
	"github.com/magabrotheeeer/billdesk/internal/lib/apperr"
	"github.com/magabrotheeeer/billdesk/internal/lib/sl"
	"github.com/magabrotheeeer/billdesk/internal/models"
)

// Handler обрабатывает запросы на список счетов.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает бизнес-логику получения счетов владельца.
type Service interface {
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Bill, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Счета пользователя
// @Description Новые первыми
// @Tags bills
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]models.Bill}
// @Failure 401 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /api/bills [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.bill.list"

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

	bills, err := h.service.ListByOwner(r.Context(), ownerID)
	if err != nil {
		log.Error("failed to list bills", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}
	if bills == nil {
		bills = []*models.Bill{}
	}

	log.Debug("bills listed", slog.Int("count", len(bills)))
	render.JSON(w, r, response.StatusOKWithData(bills))
}
