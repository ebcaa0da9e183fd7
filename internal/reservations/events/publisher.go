package events

import (
	"context"
	"fmt"
	"time"

	"roombook/pkg/kafka"
	"roombook/pkg/middleware"
	"roombook/pkg/model"
)

const (
	TypeCreated = "reservation.created"
	TypeUpdated = "reservation.updated"
	TypeDeleted = "reservation.deleted"

	schemaVersion = "1"
)

// Event describes a committed reservation change.
type Event struct {
	Type        string             `json:"type"`
	Reservation *model.Reservation `json:"reservation"`
	Actor       string             `json:"actor"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type kafkaPublisher struct {
	producer *kafka.Producer
	source   string
}

// NewKafkaPublisher publishes events keyed by reservation id so the changes
// of one reservation stay ordered within a partition.
func NewKafkaPublisher(producer *kafka.Producer, source string) Publisher {
	return &kafkaPublisher{producer: producer, source: source}
}

func (p *kafkaPublisher) Publish(ctx context.Context, event Event) error {
	if event.Reservation == nil {
		return fmt.Errorf("event %s has no reservation", event.Type)
	}

	msg, err := kafka.NewMessage().
		WithKey(event.Reservation.ID).
		WithValue(event).
		WithEventType(event.Type).
		WithSchemaVersion(schemaVersion).
		WithSource(p.source).
		WithCorrelationID(middleware.RequestID(ctx)).
		Build()
	if err != nil {
		return err
	}

	return p.producer.Publish(ctx, msg)
}

func (p *kafkaPublisher) Close() error {
	return p.producer.Close()
}

type noopPublisher struct{}

// NewNoopPublisher is used when no broker is configured.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, Event) error { return nil }

func (noopPublisher) Close() error { return nil }
