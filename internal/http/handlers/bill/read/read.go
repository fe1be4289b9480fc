// Package read реализует публичный HTTP-обработчик получения счета по ID.
//
// Handler извлекает ID из URL, проверяет его формат и возвращает счет.
// Владелец не проверяется.
package read

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

// Handler обрабатывает запросы на получение счета.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики для получения счета по ID
}

// Service описывает интерфейс чтения счета.
type Service interface {
	GetByID(ctx context.Context, id string) (*models.Bill, error)
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Счет по ID (публичный)
// @Tags bills
// @Produce json
// @Param id path string true "ID счета"
// @Success 200 {object} response.Response{data=models.Bill}
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /api/bill/{id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.bill.read"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		log.Info("invalid bill id", slog.String("id", id))
		response.BadRequest(w, r, "invalid bill id")
		return
	}

	bill, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		log.Info("failed to read bill", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(bill))
}
