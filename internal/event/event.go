package event

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TypeCustomerCreated = "customer.created"
	publisherAppID      = "customer-service"
)

type EventPublisher interface {
	PublishCustomerCreated(ctx context.Context, event CustomerCreatedEvent) error
	Close() error
}

type CustomerEventPayload struct {
	ID             string     `json:"id"`
	FullName       string     `json:"fullName"`
	DocumentNumber string     `json:"documentNumber"`
	CustomerType   string     `json:"customerType"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	CreatedAt      time.Time  `json:"createdAt"`
	ModifiedAt     *time.Time `json:"modifiedAt"`
	Status         string     `json:"status"`
	IsVip          bool       `json:"isVip"`
	IsPym          bool       `json:"isPym"`
}

type CustomerCreatedEvent struct {
	EventID   string               `json:"eventId"`
	Type      string               `json:"type"`
	Timestamp time.Time            `json:"timestamp"`
	Payload   CustomerEventPayload `json:"payload"`
}

func NewCustomerCreatedEvent(payload CustomerEventPayload) CustomerCreatedEvent {
	return CustomerCreatedEvent{
		EventID:   uuid.NewString(),
		Type:      TypeCustomerCreated,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// Key is the partitioning key brokers attach to the message.
func (e CustomerCreatedEvent) Key() string {
	return e.Payload.ID
}
