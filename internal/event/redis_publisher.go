package event

import (
	"context"
	"customer-service/internal/infrastructure/monitoring"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const driverRedis = "redis"

type streamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// RedisStreamPublisher appends customer events to a Redis stream. Each entry
// carries the customer id under "key" so consumers can partition on it.
type RedisStreamPublisher struct {
	client streamClient
	stream string
	maxLen int64
	logger *slog.Logger
}

var _ EventPublisher = (*RedisStreamPublisher)(nil)

func NewRedisStreamPublisher(client *redis.Client, stream string, maxLen int64, logger *slog.Logger) (*RedisStreamPublisher, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	return newRedisStreamPublisher(client, stream, maxLen, logger)
}

func newRedisStreamPublisher(client streamClient, stream string, maxLen int64, logger *slog.Logger) (*RedisStreamPublisher, error) {
	if stream == "" {
		return nil, fmt.Errorf("redis stream name cannot be empty")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &RedisStreamPublisher{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger.With("component", "RedisStreamPublisher", "stream", stream),
	}, nil
}

func (p *RedisStreamPublisher) PublishCustomerCreated(ctx context.Context, event CustomerCreatedEvent) error {
	logCtx := p.logger.With(slog.String("key", event.Key()), slog.String("eventID", event.EventID))

	body, err := json.Marshal(event)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to marshal event payload to JSON", slog.Any("error", err))
		monitoring.RecordEventPublished(driverRedis, "error")
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"key":     event.Key(),
			"type":    event.Type,
			"eventId": event.EventID,
			"payload": string(body),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	entryID, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to append event to Redis stream", slog.Any("error", err))
		monitoring.RecordEventPublished(driverRedis, "error")
		return fmt.Errorf("failed to publish message: %w", err)
	}

	monitoring.RecordEventPublished(driverRedis, "success")
	logCtx.InfoContext(ctx, "Successfully published message", slog.String("entryID", entryID))
	return nil
}

func (p *RedisStreamPublisher) Close() error {
	p.logger.Info("Closing Redis client")
	return p.client.Close()
}
