package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/varejolabs/loja-backend/pkg/enums"
	"github.com/varejolabs/loja-backend/pkg/logger"
	"github.com/varejolabs/loja-backend/pkg/outbox"
	"github.com/varejolabs/loja-backend/pkg/redis"
)

const consumerScope = "evt:processed:analytics"

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// Consumer writes order events to BigQuery while honoring Redis idempotency.
type Consumer struct {
	client       tableInserter
	table        string
	subscription *pubsub.Subscriber
	idempotency  redis.IdempotencyStore
	ttl          time.Duration
	logg         *logger.Logger
	eventFilter  map[enums.OutboxEventType]struct{}
}

// NewConsumer builds the analytics consumer.
func NewConsumer(client tableInserter, table string, subscription *pubsub.Subscriber, idempotency redis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) (*Consumer, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("bigquery table name required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("analytics subscription required")
	}
	if idempotency == nil {
		return nil, fmt.Errorf("idempotency store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if ttl <= 0 {
		ttl = 720 * time.Hour
	}
	return &Consumer{
		client:       client,
		table:        strings.TrimSpace(table),
		subscription: subscription,
		idempotency:  idempotency,
		ttl:          ttl,
		logg:         logg,
		eventFilter: map[enums.OutboxEventType]struct{}{
			enums.EventOrderCreated:       {},
			enums.EventOrderPaid:          {},
			enums.EventOrderCanceled:      {},
			enums.EventOrderStatusChanged: {},
		},
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		eventType := enums.OutboxEventType(msg.Attributes["event_type"])
		logCtx := c.logg.WithFields(ctx, map[string]any{
			"message_id": msg.ID,
			"event_type": string(eventType),
		})

		var envelope outbox.PayloadEnvelope
		if err := json.Unmarshal(msg.Data, &envelope); err != nil {
			c.logg.Error(logCtx, "failed to decode envelope", err)
			msg.Ack()
			return
		}

		if err := c.Process(logCtx, eventType, envelope); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Process ingests the outbox envelope into BigQuery if the event is supported.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": string(eventType),
	})

	if _, ok := c.eventFilter[eventType]; !ok {
		c.logg.Info(logCtx, "event not handled by analytics consumer")
		return nil
	}

	// no stable dedupe key, drop rather than redeliver forever
	if strings.TrimSpace(envelope.EventID) == "" {
		c.logg.Warn(logCtx, "envelope missing event id")
		return nil
	}

	key := c.idempotency.IdempotencyKey(consumerScope, envelope.EventID)
	fresh, err := c.idempotency.SetNX(ctx, key, "1", c.ttl)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if !fresh {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	row, err := buildRow(eventType, envelope)
	if err != nil {
		c.logg.Error(logCtx, "failed to build order event row", err)
		_ = c.idempotency.Del(ctx, key)
		return err
	}

	if err := c.client.InsertRows(ctx, c.table, []any{row}); err != nil {
		c.logg.Error(logCtx, "failed to insert order event row", err)
		_ = c.idempotency.Del(ctx, key)
		return err
	}

	c.logg.Info(logCtx, "order event ingested")
	return nil
}

type orderEventRow struct {
	EventID       string             `bigquery:"event_id"`
	EventType     string             `bigquery:"event_type"`
	OccurredAt    time.Time          `bigquery:"occurred_at"`
	Trigger       *string            `bigquery:"trigger"`
	OrderID       *int64             `bigquery:"order_id"`
	CustomerEmail *string            `bigquery:"customer_email"`
	Total         *string            `bigquery:"total"`
	PaymentMethod *string            `bigquery:"payment_method"`
	GatewayStatus *string            `bigquery:"gateway_status"`
	Payload       cbigquery.NullJSON `bigquery:"payload"`
}

func buildRow(eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) (*orderEventRow, error) {
	payload := map[string]any{}
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		if payload == nil {
			payload = map[string]any{}
		}
	}

	payloadJSON := cbigquery.NullJSON{}
	if len(envelope.Data) > 0 {
		payloadJSON.Valid = true
		payloadJSON.JSONVal = string(envelope.Data)
	}

	return &orderEventRow{
		EventID:       envelope.EventID,
		EventType:     string(eventType),
		OccurredAt:    envelope.OccurredAt,
		Trigger:       optionalString(envelope.Trigger),
		OrderID:       int64Value(payload, "orderId"),
		CustomerEmail: stringValue(payload, "customerEmail"),
		Total:         stringValue(payload, "total"),
		PaymentMethod: stringValue(payload, "paymentMethod"),
		GatewayStatus: stringValue(payload, "gatewayStatus"),
		Payload:       payloadJSON,
	}, nil
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func stringValue(payload map[string]any, key string) *string {
	if payload == nil {
		return nil
	}
	if raw, ok := payload[key]; ok {
		if str, ok := raw.(string); ok {
			trimmed := strings.TrimSpace(str)
			if trimmed != "" {
				return &trimmed
			}
		}
	}
	return nil
}

func int64Value(payload map[string]any, key string) *int64 {
	if payload == nil {
		return nil
	}
	if raw, ok := payload[key]; ok {
		if num, ok := raw.(float64); ok {
			value := int64(num)
			return &value
		}
	}
	return nil
}
