// Package events публикует события жизненного цикла счетов в RabbitMQ.
// Публикация не влияет на результат операции: ошибки только логируются вызывающим.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/billdesk/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/billdesk/internal/models"
)

// Ключи маршрутизации.
const (
	BillCreated     = "bill.created"
	BillUpdated     = "bill.updated"
	BillDeleted     = "bill.deleted"
	BillPDFUploaded = "bill.pdf_uploaded"
)

// Event сообщение о изменении счета.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	BillID     string    `json:"bill_id"`
	UserUID    string    `json:"user_uid"`
	InvoiceNo  string    `json:"invoice_no"`
	BillType   string    `json:"bill_type,omitempty"`
	PDFURL     string    `json:"pdf_url,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewBillEvent собирает событие для счета.
func NewBillEvent(eventType string, b *models.Bill) Event {
	e := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		BillID:     b.ID,
		UserUID:    b.UserUID,
		InvoiceNo:  b.InvoiceNo,
		BillType:   b.BillType,
		OccurredAt: time.Now().UTC(),
	}
	if b.PDFURL != nil {
		e.PDFURL = *b.PDFURL
	}
	return e
}

// Publisher отправляет события.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// AMQPPublisher публикует события в exchange с ключом, равным типу события.
type AMQPPublisher struct {
	mu       sync.Mutex
	ch       rabbitmq.Channel
	exchange string
}

// NewAMQPPublisher создает публикатор поверх открытого канала.
func NewAMQPPublisher(ch rabbitmq.Channel, exchange string) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, exchange: exchange}
}

// Publish отправляет событие. Канал AMQP не используется конкурентно.
func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	const op = "events.Publish"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := rabbitmq.PublishMessage(p.ch, p.exchange, e.Type, e); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Noop ничего не публикует. Используется, когда брокер не настроен.
type Noop struct{}

// Publish всегда успешен.
func (Noop) Publish(context.Context, Event) error { return nil }
