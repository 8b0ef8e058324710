package event

import (
	"context"
	"customer-service/internal/config"
	"fmt"
	"log/slog"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

// NewPublisher builds the publisher selected by events.driver and connects it
// to its broker.
func NewPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (EventPublisher, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Events.Driver))
	logger.Info("Initializing event publisher", "driver", driver)

	switch driver {
	case config.EventsDriverRabbitMQ:
		conn, err := amqp.Dial(cfg.RabbitMQ.AMQPURL())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to RabbitMQ at %s:%d: %w", cfg.RabbitMQ.Host, cfg.RabbitMQ.Port, err)
		}
		pub, err := NewRabbitMQEventPublisher(conn, cfg.RabbitMQ.ExchangeName, logger)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		return pub, nil

	case config.EventsDriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Redis.Addr, err)
		}
		return NewRedisStreamPublisher(client, cfg.Redis.Stream, cfg.Redis.MaxLen, logger)

	case config.EventsDriverLog, "":
		return NewLogPublisher(logger), nil

	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Events.Driver)
	}
}
