package event

import (
	"context"
	"customer-service/internal/infrastructure/monitoring"
	"log/slog"
)

const driverLog = "log"

// LogPublisher writes events to the logger instead of a broker. It is used
// for local runs where no broker is available.
type LogPublisher struct {
	logger *slog.Logger
}

var _ EventPublisher = (*LogPublisher)(nil)

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger.With("component", "LogPublisher")}
}

func (p *LogPublisher) PublishCustomerCreated(ctx context.Context, event CustomerCreatedEvent) error {
	p.logger.InfoContext(ctx, "Customer event",
		slog.String("type", event.Type),
		slog.String("eventID", event.EventID),
		slog.String("key", event.Key()),
		slog.Any("payload", event.Payload),
	)
	monitoring.RecordEventPublished(driverLog, "success")
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
