package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmehra2102/storefront/pkg/tracing"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

type Event struct {
	ID            int64
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string
	CreatedAt     time.Time
	Status        Status
	RelayID       string
	RetryCount    int
	LastError     *string
}

// Message is an event not yet written to the outbox table.
type Message struct {
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string
}

// NewMessage encodes v as the JSON payload and captures the trace context of ctx.
func NewMessage(ctx context.Context, aggregateType, aggregateID, eventType string, v any) (Message, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s: %w", eventType, err)
	}
	return Message{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Type:          eventType,
		Payload:       payload,
		Headers:       map[string]string{},
		Traceparent:   tracing.Traceparent(ctx),
	}, nil
}
