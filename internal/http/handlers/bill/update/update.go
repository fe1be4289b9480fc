// Package update реализует HTTP-обработчик частичного обновления счета.
// Изменять счет может только его владелец.
package update

import (
	"context"
	"encoding/json"
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
	"github.com/magabrotheeeer/billdesk/internal/models"
)

// Handler обрабатывает запросы на обновление счета.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает бизнес-логику обновления счета.
type Service interface {
	Update(ctx context.Context, id, ownerID string, patch models.BillPatch) (*models.Bill, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Обновить счет
// @Description Пустые поля оставляют прежние значения
// @Tags bills
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID счета"
// @Param request body models.BillPatch true "Изменяемые поля"
// @Success 200 {object} response.Response{data=models.Bill}
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /api/bills/{id} [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.bill.update"

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

	var patch models.BillPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.BadRequest(w, r, "invalid request body")
		return
	}

	bill, err := h.service.Update(r.Context(), id, ownerID, patch)
	if err != nil {
		log.Info("failed to update bill", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	log.Info("bill updated", slog.String("id", id))
	render.JSON(w, r, response.StatusOKWithData(bill))
}
