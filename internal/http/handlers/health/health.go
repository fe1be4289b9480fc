package health

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"
)

// Status: ответ проверки живости.
type Status struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type Handler struct {
	log *slog.Logger
	now func() time.Time
}

func New(log *slog.Logger) *Handler {
	return &Handler{
		log: log,
		now: time.Now,
	}
}

// ServeHTTP godoc
// @Summary Проверка живости
// @Tags health
// @Produce json
// @Success 200 {object} Status
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, Status{
		Status:    "OK",
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}
