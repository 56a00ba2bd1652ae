package webhooks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/varejolabs/loja-backend/internal/payments"
	"github.com/varejolabs/loja-backend/pkg/config"
	pkgerrors "github.com/varejolabs/loja-backend/pkg/errors"
	"github.com/varejolabs/loja-backend/pkg/logger"
	"github.com/varejolabs/loja-backend/pkg/mercadopago"
	"github.com/varejolabs/loja-backend/pkg/redis"
)

const idempotencyScope = "webhook:mercadopago"

// Reconciler is the slice of the payment reconciler webhook processing uses.
type Reconciler interface {
	ReconcileByPaymentID(ctx context.Context, paymentID string, trigger string) (*payments.Result, error)
}

// Service processes gateway webhook notifications.
type Service interface {
	ProcessEvent(ctx context.Context, event mercadopago.WebhookEvent) (*payments.Result, error)
}

// ServiceParams bundles the dependencies for NewService.
type ServiceParams struct {
	Reconciler  Reconciler
	Idempotency redis.IdempotencyStore
	Webhook     config.WebhookConfig
	Logger      *logger.Logger
}

type service struct {
	reconciler  Reconciler
	idempotency redis.IdempotencyStore
	eventTTL    time.Duration
	logg        *logger.Logger
}

// NewService builds the webhook processor.
func NewService(params ServiceParams) (Service, error) {
	if params.Reconciler == nil {
		return nil, fmt.Errorf("payment reconciler required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency store required")
	}
	ttl := params.Webhook.EventTTL
	if ttl <= 0 {
		ttl = 168 * time.Hour
	}
	return &service{
		reconciler:  params.Reconciler,
		idempotency: params.Idempotency,
		eventTTL:    ttl,
		logg:        params.Logger,
	}, nil
}

// ProcessEvent reconciles the payment a notification refers to. Replayed
// notifications are dropped by the redis guard; a processing failure releases
// the guard so the gateway's retry can run the event again.
func (s *service) ProcessEvent(ctx context.Context, event mercadopago.WebhookEvent) (*payments.Result, error) {
	if !event.IsPaymentEvent() {
		if s.logg != nil {
			logCtx := s.logg.WithField(ctx, "event_type", event.Type)
			s.logg.Info(logCtx, "ignoring non-payment webhook event")
		}
		return nil, nil
	}

	paymentID := strings.TrimSpace(event.Data.ID)
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook event missing payment id")
	}

	guardKey := s.idempotency.IdempotencyKey(idempotencyScope, eventDedupeKey(event, paymentID))
	fresh, err := s.idempotency.SetNX(ctx, guardKey, time.Now().UTC().Format(time.RFC3339), s.eventTTL)
	if err != nil {
		// Redis being down must not drop gateway notifications; the
		// conditional update downstream still dedupes state changes.
		if s.logg != nil {
			s.logg.Error(ctx, "webhook idempotency guard unavailable", err)
		}
		fresh = true
	}
	if !fresh {
		if s.logg != nil {
			logCtx := s.logg.WithField(ctx, "payment_id", paymentID)
			s.logg.Info(logCtx, "duplicate webhook event dropped")
		}
		return nil, nil
	}

	result, err := s.reconciler.ReconcileByPaymentID(ctx, paymentID, payments.TriggerWebhook)
	if err != nil {
		// No order matches this payment: retrying will not resolve it,
		// so acknowledge and keep the guard.
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			if s.logg != nil {
				logCtx := s.logg.WithField(ctx, "payment_id", paymentID)
				s.logg.Warn(logCtx, "webhook payment matches no order")
			}
			return nil, nil
		}
		if delErr := s.idempotency.Del(ctx, guardKey); delErr != nil && s.logg != nil {
			s.logg.Error(ctx, "release webhook guard failed", delErr)
		}
		return nil, err
	}
	return result, nil
}

func eventDedupeKey(event mercadopago.WebhookEvent, paymentID string) string {
	if event.ID != 0 {
		return fmt.Sprintf("%d", event.ID)
	}
	// Older notification formats omit the event id.
	return fmt.Sprintf("%s:%s", paymentID, event.Action)
}
