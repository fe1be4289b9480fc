package billaudit

import (
	"encoding/json"
	"log/slog"

	"github.com/magabrotheeeer/billdesk/internal/events"
	"github.com/magabrotheeeer/billdesk/internal/lib/metrics"
	"github.com/magabrotheeeer/billdesk/internal/lib/sl"
)

// NewHandler возвращает обработчик сообщений, который пишет каждое событие
// в журнал аудита. Нечитаемые сообщения подтверждаются и отбрасываются,
// иначе брокер возвращал бы их в очередь бесконечно.
func NewHandler(log *slog.Logger) func(routingKey string, body []byte) error {
	return func(routingKey string, body []byte) error {
		const op = "billaudit.Handle"

		var e events.Event
		if err := json.Unmarshal(body, &e); err != nil {
			log.Error("dropping malformed bill event",
				slog.String("op", op),
				slog.String("routing_key", routingKey),
				sl.Err(err),
			)
			metrics.BillEventsConsumed.WithLabelValues("malformed").Inc()
			return nil
		}
		if e.Type != routingKey {
			log.Warn("event type does not match routing key",
				slog.String("op", op),
				slog.String("routing_key", routingKey),
				slog.String("type", e.Type),
			)
		}

		log.Info("bill event",
			sl.Audit(),
			slog.String("event_id", e.ID),
			slog.String("type", e.Type),
			slog.String("bill_id", e.BillID),
			slog.String("user_uid", e.UserUID),
			slog.String("invoice_no", e.InvoiceNo),
			slog.String("pdf_url", e.PDFURL),
			slog.Time("occurred_at", e.OccurredAt),
		)
		metrics.BillEventsConsumed.WithLabelValues(e.Type).Inc()
		return nil
	}
}
