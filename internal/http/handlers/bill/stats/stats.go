// Package stats реализует HTTP-обработчик сводки по счетам пользователя.
package stats

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

type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	Stats(ctx context.Context, ownerID string) (*models.Stats, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Сводка по счетам
// @Description Общее число, разбивка по типам и пять последних
// @Tags bills
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.Stats}
// @Failure 401 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /api/stats [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.bill.stats"

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

	res, err := h.service.Stats(r.Context(), ownerID)
	if err != nil {
		log.Error("failed to build stats", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(res))
}
