// Package create реализует HTTP-обработчик создания счета.
//
// Handler принимает JSON с данными документа и, опционально, PDF в base64,
// сохраняет счет от имени пользователя из сессии и возвращает его.
// Неудачная загрузка PDF не отменяет сохранение: в ответе будут
// pdf_uploaded=false и текст ошибки.
package create

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/billdesk/internal/http/middlewarectx"
	"github.com/magabrotheeeer/billdesk/internal/http/response"
	"github.com/magabrotheeeer/billdesk/internal/lib/apperr"
	"github.com/magabrotheeeer/billdesk/internal/lib/sl"
	"github.com/magabrotheeeer/billdesk/internal/models"
)

// Handler обрабатывает запросы на создание счета.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает бизнес-логику создания счета.
type Service interface {
	Create(ctx context.Context, ownerID string, req models.DummyBill) (*models.CreateBillResult, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Создать счет
// @Description Сохраняет документ пользователя; pdf_base64 необязателен
// @Tags bills
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.DummyBill true "Данные счета"
// @Success 201 {object} response.Response{data=models.CreateBillResult}
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /api/bills [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.bill.create"

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

	var req models.DummyBill
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.BadRequest(w, r, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Info("validation failed", sl.Err(err))
		response.WriteValidation(w, r, err)
		return
	}

	res, err := h.service.Create(r.Context(), ownerID, req)
	if err != nil {
		log.Info("failed to create bill", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	log.Info("bill created", slog.String("id", res.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(res))
}
