package event

import (
	"context"
	"customer-service/internal/infrastructure/monitoring"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const driverRabbitMQ = "rabbitmq"

// amqpChannel is the subset of *amqp.Channel the publisher needs.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type channelOpener func() (amqpChannel, error)

type RabbitMQEventPublisher struct {
	conn         *amqp.Connection
	openChannel  channelOpener
	exchangeName string
	logger       *slog.Logger
}

var _ EventPublisher = (*RabbitMQEventPublisher)(nil)

func NewRabbitMQEventPublisher(conn *amqp.Connection, exchangeName string, logger *slog.Logger) (*RabbitMQEventPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("RabbitMQ connection cannot be nil")
	}
	opener := func() (amqpChannel, error) {
		return conn.Channel()
	}
	p, err := newRabbitMQEventPublisher(opener, exchangeName, logger)
	if err != nil {
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newRabbitMQEventPublisher(opener channelOpener, exchangeName string, logger *slog.Logger) (*RabbitMQEventPublisher, error) {
	if exchangeName == "" {
		return nil, fmt.Errorf("RabbitMQ exchange name cannot be empty")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}

	tempCh, err := opener()
	if err != nil {
		return nil, fmt.Errorf("failed to open temporary channel for exchange declaration: %w", err)
	}
	defer tempCh.Close()

	err = tempCh.ExchangeDeclare(
		exchangeName,
		amqp.ExchangeTopic,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare exchange '%s': %w", exchangeName, err)
	}
	logger.Info("Ensured RabbitMQ exchange exists", "exchange", exchangeName, "type", amqp.ExchangeTopic)

	return &RabbitMQEventPublisher{
		openChannel:  opener,
		exchangeName: exchangeName,
		logger:       logger.With("component", "RabbitMQEventPublisher", "exchange", exchangeName),
	}, nil
}

func (p *RabbitMQEventPublisher) PublishCustomerCreated(ctx context.Context, event CustomerCreatedEvent) error {
	err := p.publish(ctx, TypeCustomerCreated, event.EventID, event.Key(), event)
	if err != nil {
		monitoring.RecordEventPublished(driverRabbitMQ, "error")
		return err
	}
	monitoring.RecordEventPublished(driverRabbitMQ, "success")
	return nil
}

func (p *RabbitMQEventPublisher) publish(ctx context.Context, routingKey, messageID, key string, payload any) error {
	logCtx := p.logger.With(slog.String("routingKey", routingKey), slog.String("key", key))

	channel, err := p.openChannel()
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to open RabbitMQ channel", slog.Any("error", err))
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer channel.Close()

	body, err := json.Marshal(payload)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to marshal event payload to JSON", slog.Any("error", err))
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	logCtx.DebugContext(ctx, "Publishing message", "bodySize", len(body))

	err = channel.PublishWithContext(
		ctx,
		p.exchangeName,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			Timestamp:     time.Now(),
			MessageId:     messageID,
			CorrelationId: key,
			Type:          routingKey,
			Headers:       amqp.Table{"key": key},
			Body:          body,
			AppId:         publisherAppID,
		},
	)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to publish message to RabbitMQ", slog.Any("error", err))
		return fmt.Errorf("failed to publish message: %w", err)
	}

	logCtx.InfoContext(ctx, "Successfully published message")
	return nil
}

// Close releases the broker connection when the publisher owns one.
func (p *RabbitMQEventPublisher) Close() error {
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	p.logger.Info("Closing RabbitMQ connection")
	return p.conn.Close()
}
