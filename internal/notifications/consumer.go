package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/varejolabs/loja-backend/pkg/enums"
	"github.com/varejolabs/loja-backend/pkg/logger"
	"github.com/varejolabs/loja-backend/pkg/mailer"
	"github.com/varejolabs/loja-backend/pkg/outbox"
	"github.com/varejolabs/loja-backend/pkg/redis"
)

const consumerScope = "evt:processed:order-emails"

type sender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// Consumer watches order events and sends transactional email to customers.
type Consumer struct {
	mail         sender
	subscription *pubsub.Subscriber
	idempotency  redis.IdempotencyStore
	ttl          time.Duration
	logg         *logger.Logger
}

// NewConsumer builds the order email consumer.
func NewConsumer(mail sender, subscription *pubsub.Subscriber, idempotency redis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) (*Consumer, error) {
	if mail == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("orders subscription required")
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
		mail:         mail,
		subscription: subscription,
		idempotency:  idempotency,
		ttl:          ttl,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	if eventType != enums.EventOrderPaid && eventType != enums.EventOrderCanceled {
		c.logg.Info(logCtx, "skipping event without email handling")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	if strings.TrimSpace(envelope.EventID) == "" {
		c.logg.Warn(logCtx, "envelope missing event id")
		return processResult{ack: true}
	}

	key := c.idempotency.IdempotencyKey(consumerScope, envelope.EventID)
	fresh, err := c.idempotency.SetNX(ctx, key, "1", c.ttl)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if !fresh {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handle(logCtx, eventType, envelope.Data); err != nil {
		c.logg.Error(logCtx, "email handling failed", err)
		_ = c.idempotency.Del(ctx, key)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

func (c *Consumer) handle(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage) error {
	switch eventType {
	case enums.EventOrderPaid:
		var payload outbox.OrderPaidData
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse order_paid payload: %w", err)
		}
		return c.sendConfirmation(ctx, payload)
	case enums.EventOrderCanceled:
		var payload outbox.OrderCanceledData
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse order_canceled payload: %w", err)
		}
		return c.sendCancellation(ctx, payload)
	default:
		return nil
	}
}

func (c *Consumer) sendConfirmation(ctx context.Context, payload outbox.OrderPaidData) error {
	if strings.TrimSpace(payload.CustomerEmail) == "" {
		return fmt.Errorf("order %d has no customer email", payload.OrderID)
	}
	logCtx := c.logg.WithOrderID(ctx, payload.OrderID)

	name := strings.TrimSpace(payload.CustomerName)
	if name == "" {
		name = "cliente"
	}
	plain := fmt.Sprintf(
		"Ola %s,\n\nRecebemos o pagamento do pedido #%d no valor de R$ %s via %s. Em breve enviaremos os detalhes do envio.\n\nObrigado pela compra!",
		name, payload.OrderID, payload.Total, paymentMethodLabel(payload.PaymentMethod),
	)
	html := fmt.Sprintf(
		"<p>Ola %s,</p><p>Recebemos o pagamento do pedido <strong>#%d</strong> no valor de <strong>R$ %s</strong> via %s. Em breve enviaremos os detalhes do envio.</p><p>Obrigado pela compra!</p>",
		name, payload.OrderID, payload.Total, paymentMethodLabel(payload.PaymentMethod),
	)

	msg := mailer.Message{
		To:       mailer.Address{Email: payload.CustomerEmail, Name: payload.CustomerName},
		Subject:  fmt.Sprintf("Pagamento confirmado - pedido #%d", payload.OrderID),
		PlainVer: plain,
		HTMLVer:  html,
	}
	if err := c.mail.Send(ctx, msg); err != nil {
		return err
	}
	c.logg.Info(logCtx, "order confirmation email sent")
	return nil
}

func (c *Consumer) sendCancellation(ctx context.Context, payload outbox.OrderCanceledData) error {
	if strings.TrimSpace(payload.CustomerEmail) == "" {
		return fmt.Errorf("order %d has no customer email", payload.OrderID)
	}
	logCtx := c.logg.WithOrderID(ctx, payload.OrderID)

	plain := fmt.Sprintf(
		"Ola,\n\nO pagamento do pedido #%d nao foi aprovado e o pedido foi cancelado. Nenhum valor foi cobrado. Voce pode refazer a compra a qualquer momento.",
		payload.OrderID,
	)
	html := fmt.Sprintf(
		"<p>Ola,</p><p>O pagamento do pedido <strong>#%d</strong> nao foi aprovado e o pedido foi cancelado. Nenhum valor foi cobrado.</p><p>Voce pode refazer a compra a qualquer momento.</p>",
		payload.OrderID,
	)

	msg := mailer.Message{
		To:       mailer.Address{Email: payload.CustomerEmail},
		Subject:  fmt.Sprintf("Pedido #%d cancelado", payload.OrderID),
		PlainVer: plain,
		HTMLVer:  html,
	}
	if err := c.mail.Send(ctx, msg); err != nil {
		return err
	}
	c.logg.Info(logCtx, "order cancellation email sent")
	return nil
}

func paymentMethodLabel(method string) string {
	switch method {
	case "pix":
		return "Pix"
	case "boleto":
		return "boleto"
	case "credit_card":
		return "cartao de credito"
	default:
		return method
	}
}
