// Package uploadpdf реализует HTTP-обработчик замены PDF у счета.
//
// Новый файл загружается в хранилище, ссылка на него сохраняется в счете,
// после чего прежний файл удаляется. Если удалить прежний не удалось,
// ответ все равно успешный, но с previous_released=false.
package uploadpdf

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/billdesk/internal/http/middlewarectx"
	"github.com/magabrotheeeer/billdesk/internal/http/response"
	"github.com/magabrotheeeer/billdesk/internal/lib/apperr"
	"github.com/magabrotheeeer/billdesk/internal/lib/sl"
	"github.com/magabrotheeeer/billdesk/internal/models"
)

// Request: PDF в виде data URI или голого base64.
type Request struct {
	PDFBase64 string `json:"pdf_base64" validate:"required"`
}

// Handler обрабатывает загрузку PDF.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает бизнес-логику замены PDF.
type Service interface {
	UploadPDF(ctx context.Context, id, ownerID, pdfBase64 string) (*models.PDFUploadResult, error)
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
// @Summary Загрузить PDF счета
// @Tags bills
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID счета"
// @Param request body Request true "PDF в base64"
// @Success 200 {object} response.Response{data=models.PDFUploadResult}
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /api/bills/{id}/upload-pdf [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.bill.uploadpdf"

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

	var req Request
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

	res, err := h.service.UploadPDF(r.Context(), id, ownerID, req.PDFBase64)
	if err != nil {
		log.Warn("failed to upload pdf", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	log.Info("pdf uploaded", slog.String("id", id), slog.Bool("previous_released", res.PreviousReleased))
	render.JSON(w, r, response.StatusOKWithData(res))
}
