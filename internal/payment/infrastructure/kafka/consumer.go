package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	orderdomain "github.com/dmehra2102/storefront/internal/order/domain"
	"github.com/dmehra2102/storefront/internal/payment/domain"
	"github.com/dmehra2102/storefront/pkg/idempotency"
	"github.com/dmehra2102/storefront/pkg/outbox"
	"github.com/dmehra2102/storefront/pkg/tracing"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type Intents interface {
	EnsureIntent(ctx context.Context, t domain.IntentTarget) (domain.Intent, error)
}

// Consumer makes sure every placed order ends up with a payment intent, even
// when the checkout request lost its gateway call.
type Consumer struct {
	log     *slog.Logger
	reader  *kafka.Reader
	intents Intents
	idem    *idempotency.Store
	tracer  trace.Tracer
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, intents Intents, idem *idempotency.Store) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &Consumer{
		log:     log,
		reader:  r,
		intents: intents,
		idem:    idem,
		tracer:  otel.Tracer("payment-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		c.handle(ctx, msg)
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("commit failed", "offset", msg.Offset, "err", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	if tracing.HeaderValue(msg.Headers, outbox.EventTypeHeader) != orderdomain.EventOrderPlaced {
		return
	}

	key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		c.log.Error("idempotency check failed", "err", err)
		return
	}
	if seen {
		c.log.Info("duplicate message skipped", "key", key)
		return
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeOrderPlaced")
	defer span.End()

	var event orderdomain.OrderPlaced
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.log.ErrorContext(msgCtx, "unmarshal failed", "err", err)
		return
	}

	intent, err := c.intents.EnsureIntent(msgCtx, domain.IntentTarget{
		OrderID: event.OrderID,
		UserID:  event.UserID,
		Amount:  event.TotalPrice,
		Note:    "Order " + event.OrderID,
	})
	switch {
	case errors.Is(err, domain.ErrIntentInProgress):
		c.log.InfoContext(msgCtx, "payment intent owned elsewhere", "order_id", event.OrderID)
	case err != nil:
		// The orphan sweep picks the order up again.
		c.log.ErrorContext(msgCtx, "ensure payment intent failed", "order_id", event.OrderID, "err", err)
		if fErr := c.idem.Forget(ctx, key); fErr != nil {
			c.log.Warn("forget idempotency key", "key", key, "err", fErr)
		}
	default:
		c.log.InfoContext(msgCtx, "payment intent ensured", "order_id", event.OrderID, "gateway_order_id", intent.GatewayOrderID)
	}
}
