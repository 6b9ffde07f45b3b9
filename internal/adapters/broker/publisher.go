package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"eventportal/internal/domain"
)

const (
	ExchangeKind = "topic"
	// RoutingKeyRegistrationConfirmed is used for domain.RegistrationConfirmedMessage messages.
	RoutingKeyRegistrationConfirmed = "registration.confirmed"
)

type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher sends persistent JSON messages to a topic exchange.
type Publisher struct {
	conn     *amqp.Connection
	channel  publishChannel
	closer   func() error
	exchange string
	logger   *slog.Logger
}

var _ domain.ConfirmationPublisher = (*Publisher)(nil)

// NewPublisher dials url and declares exchange as a durable topic exchange.
func NewPublisher(url, exchange string, logger *slog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, ExchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}
	return &Publisher{conn: conn, channel: ch, closer: ch.Close, exchange: exchange, logger: logger}, nil
}

func (p *Publisher) PublishRegistrationConfirmed(ctx context.Context, msg domain.RegistrationConfirmedMessage) error {
	return p.publish(ctx, RoutingKeyRegistrationConfirmed, msg.RegistrationID, msg)
}

func (p *Publisher) publish(ctx context.Context, routingKey, messageID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	p.logger.DebugContext(ctx, "message published", "exchange", p.exchange, "routing_key", routingKey, "message_id", messageID)
	return nil
}

func (p *Publisher) Close() {
	if p.closer != nil {
		_ = p.closer()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
