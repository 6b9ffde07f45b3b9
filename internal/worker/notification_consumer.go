package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"eventportal/internal/domain"
)

// NotificationConsumer turns registration.confirmed messages into notifications.
type NotificationConsumer struct {
	deliveries <-chan amqp.Delivery
	notifier   domain.NotificationService
	logger     *slog.Logger
	done       chan struct{}
}

func NewNotificationConsumer(deliveries <-chan amqp.Delivery, notifier domain.NotificationService, logger *slog.Logger) *NotificationConsumer {
	return &NotificationConsumer{
		deliveries: deliveries,
		notifier:   notifier,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Start handles deliveries until ctx is done or the delivery channel closes.
func (c *NotificationConsumer) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-c.deliveries:
				if !ok {
					c.logger.Warn("notification deliveries closed")
					return
				}
				c.handle(ctx, d)
			}
		}
	}()
}

// Done is closed once the consumer loop has returned.
func (c *NotificationConsumer) Done() <-chan struct{} { return c.done }

// handle acks on success. Malformed payloads are dropped; a failed notification is requeued once
// and dropped when it fails again.
func (c *NotificationConsumer) handle(ctx context.Context, d amqp.Delivery) {
	var msg domain.RegistrationConfirmedMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil || msg.RegistrationID == "" {
		c.logger.Error("dropping malformed notification", "message_id", d.MessageId, "err", err)
		_ = d.Nack(false, false)
		return
	}
	if err := c.notifier.NotifyRegistrationConfirmed(ctx, msg); err != nil {
		requeue := !d.Redelivered
		c.logger.Error("failed to notify registration confirmed",
			"registration_id", msg.RegistrationID, "requeue", requeue, "err", err)
		_ = d.Nack(false, requeue)
		return
	}
	_ = d.Ack(false)
}
