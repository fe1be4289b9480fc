// Package billaudit читает события счетов из RabbitMQ и ведет по ним журнал аудита.
package billaudit

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/billdesk/internal/config"
	"github.com/magabrotheeeer/billdesk/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/billdesk/internal/lib/sl"
)

// BindingKey: все события по счетам.
const BindingKey = "bill.*"

type App struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queue  string
	logger *slog.Logger
}

func New(cfg config.RabbitMQ, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.URL, cfg.Retries, cfg.RetryDelay)
	if err != nil {
		return nil, err
	}

	ch, err := rabbitmq.SetupChannel(conn, cfg.Exchange)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	queue, err := rabbitmq.BindQueue(ch, cfg.AuditQueue, cfg.Exchange, BindingKey)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &App{
		conn:   conn,
		ch:     ch,
		queue:  queue,
		logger: logger,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, a.queue, NewHandler(a.logger))
	if err != nil {
		a.logger.Error("failed to start bill audit consumer", sl.Err(err))
		return err
	}
	a.logger.Info("consuming bill events", slog.String("queue", a.queue))

	<-ctx.Done()
	a.logger.Info("bill audit shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	return nil
}
