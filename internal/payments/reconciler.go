package payments

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/varejolabs/loja-backend/internal/orders"
	"github.com/varejolabs/loja-backend/pkg/db/models"
	"github.com/varejolabs/loja-backend/pkg/enums"
	pkgerrors "github.com/varejolabs/loja-backend/pkg/errors"
	"github.com/varejolabs/loja-backend/pkg/logger"
	"github.com/varejolabs/loja-backend/pkg/mercadopago"
	"github.com/varejolabs/loja-backend/pkg/metrics"
	"github.com/varejolabs/loja-backend/pkg/outbox"
)

// Triggers name the entrypoint that produced a reconciliation run.
const (
	TriggerWebhook = "webhook"
	TriggerPoll    = "poll"
	TriggerAdmin   = "admin_recheck"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// GatewayReader reads payment state from the gateway.
type GatewayReader interface {
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
	SearchPaymentsByReference(ctx context.Context, externalReference string) ([]mercadopago.Payment, error)
}

// Result describes one reconciliation run.
type Result struct {
	Outcome               Outcome
	PreviousStatus        enums.OrderStatus
	PreviousPaymentStatus enums.PaymentStatus
	Status                enums.OrderStatus
	PaymentStatus         enums.PaymentStatus
	GatewayStatus         string
	// SideEffectErr aggregates confirmation side effect failures. It never
	// invalidates the transition itself.
	SideEffectErr error
	Order         *models.Order
}

// Service reconciles gateway payment observations onto orders.
type Service interface {
	Reconcile(ctx context.Context, orderID int64, gatewayStatus string, trigger string) (*Result, error)
	RefreshFromGateway(ctx context.Context, orderID int64, trigger string) (*Result, error)
	ReconcileByPaymentID(ctx context.Context, paymentID string, trigger string) (*Result, error)
}

// ServiceParams bundles the dependencies for NewService.
type ServiceParams struct {
	Repo    orders.Repository
	Tx      txRunner
	Gateway GatewayReader
	Stock   StockDecrementer
	Coupons CouponBurner
	Outbox  outboxPublisher
	Logger  *logger.Logger
	Metrics *metrics.ReconcilerMetrics
}

type service struct {
	repo    orders.Repository
	tx      txRunner
	gateway GatewayReader
	effects *sideEffectRunner
	outbox  outboxPublisher
	logg    *logger.Logger
	metrics *metrics.ReconcilerMetrics
}

// NewService builds the payment reconciler with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock decrementer required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon burner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		gateway: params.Gateway,
		effects: &sideEffectRunner{
			tx:      params.Tx,
			stock:   params.Stock,
			coupons: params.Coupons,
			outbox:  params.Outbox,
			logg:    params.Logger,
			metrics: params.Metrics,
		},
		outbox:  params.Outbox,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

// Reconcile applies one gateway observation to the order. The conditional
// update in the store is the only arbiter: with N concurrent observations of
// the same approval, exactly one caller sees OutcomeNewlyPaid and runs the
// confirmation side effects.
func (s *service) Reconcile(ctx context.Context, orderID int64, gatewayStatus string, trigger string) (*Result, error) {
	if orderID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	start := time.Now()
	targetStatus, targetPayment := MapStatus(gatewayStatus)

	var transition *orders.StatusTransition
	var order *models.Order

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		t, err := repo.UpdateStatusIfChanged(ctx, orderID, targetStatus, targetPayment)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		transition = t
		if t.Applied {
			order, err = repo.FindByID(ctx, orderID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	outcome := Decide(*transition, targetPayment)
	result := &Result{
		Outcome:               outcome,
		PreviousStatus:        transition.PreviousStatus,
		PreviousPaymentStatus: transition.PreviousPaymentStatus,
		Status:                targetStatus,
		PaymentStatus:         targetPayment,
		GatewayStatus:         gatewayStatus,
		Order:                 order,
	}
	if !transition.Applied {
		result.Status = transition.PreviousStatus
		result.PaymentStatus = transition.PreviousPaymentStatus
	}

	if s.metrics != nil {
		s.metrics.IncOutcome(trigger, outcome.String())
		s.metrics.ObserveDuration(trigger, time.Since(start))
	}

	switch outcome {
	case OutcomeNewlyPaid:
		result.SideEffectErr = s.effects.run(ctx, order)
	case OutcomeStatusChanged:
		if targetStatus == enums.OrderStatusCanceled {
			s.enqueueCancellationEvent(ctx, order, gatewayStatus)
		}
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, orderID)
		logCtx = s.logg.WithTrigger(logCtx, trigger)
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"gateway_status":  gatewayStatus,
			"outcome":         outcome.String(),
			"previous_status": transition.PreviousStatus,
		})
		s.logg.Info(logCtx, "payment reconciliation finished")
	}

	return result, nil
}

// RefreshFromGateway pulls the authoritative state for one order and
// reconciles it. Orders that never got a payment ID recover through the
// external reference search.
func (s *service) RefreshFromGateway(ctx context.Context, orderID int64, trigger string) (*Result, error) {
	if orderID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	payment, err := s.lookupPayment(ctx, order)
	if err != nil {
		// Client polls degrade to the stored state on gateway trouble;
		// admin re-checks surface the failure so the operator retries.
		if trigger == TriggerPoll && pkgerrors.IsRetryable(err) {
			if s.logg != nil {
				logCtx := s.logg.WithOrderID(ctx, order.ID)
				s.logg.Warn(logCtx, "gateway lookup failed, serving stored state")
			}
			return &Result{
				Outcome:               OutcomeNoChange,
				PreviousStatus:        order.Status,
				PreviousPaymentStatus: order.PaymentStatus,
				Status:                order.Status,
				PaymentStatus:         order.PaymentStatus,
				Order:                 order,
			}, nil
		}
		return nil, err
	}
	if payment == nil {
		// Nothing registered at the gateway yet; report the stored state.
		return &Result{
			Outcome:               OutcomeNoChange,
			PreviousStatus:        order.Status,
			PreviousPaymentStatus: order.PaymentStatus,
			Status:                order.Status,
			PaymentStatus:         order.PaymentStatus,
			Order:                 order,
		}, nil
	}

	result, err := s.Reconcile(ctx, order.ID, payment.Status, trigger)
	if err != nil {
		return nil, err
	}
	if result.Order == nil {
		result.Order, err = s.repo.FindByID(ctx, order.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
	}
	return result, nil
}

// ReconcileByPaymentID resolves the order attached to a gateway payment and
// reconciles it; webhook processing enters here.
func (s *service) ReconcileByPaymentID(ctx context.Context, paymentID string, trigger string) (*Result, error) {
	payment, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	order, err := s.repo.FindByPaymentID(ctx, paymentID)
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by payment")
		}
		if payment.ExternalReference == "" {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no order for payment")
		}
		order, err = s.repo.FindByExternalReference(ctx, payment.ExternalReference)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no order for payment")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by reference")
		}
		if err := s.adoptPaymentID(ctx, order, payment); err != nil {
			return nil, err
		}
	}

	return s.Reconcile(ctx, order.ID, payment.Status, trigger)
}

func (s *service) lookupPayment(ctx context.Context, order *models.Order) (*mercadopago.Payment, error) {
	if order.PaymentID != nil && *order.PaymentID != "" {
		payment, err := s.gateway.GetPayment(ctx, *order.PaymentID)
		if err == nil {
			return payment, nil
		}
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
			return nil, err
		}
		// Stale payment ID; fall through to the reference search.
	}

	if order.ExternalReference == "" {
		return nil, nil
	}
	results, err := s.gateway.SearchPaymentsByReference(ctx, order.ExternalReference)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}

	// Results arrive newest first; the latest attempt wins.
	payment := results[0]
	if err := s.adoptPaymentID(ctx, order, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (s *service) adoptPaymentID(ctx context.Context, order *models.Order, payment *mercadopago.Payment) error {
	id := fmt.Sprintf("%d", payment.ID)
	if order.PaymentID != nil && *order.PaymentID == id {
		return nil
	}
	if err := s.repo.SetPaymentDetails(ctx, order.ID, map[string]any{"payment_id": id, "updated_at": time.Now()}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adopt payment id")
	}
	order.PaymentID = &id
	return nil
}

func (s *service) enqueueCancellationEvent(ctx context.Context, order *models.Order, gatewayStatus string) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCanceled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: outbox.OrderCanceledData{
				OrderID:       order.ID,
				CustomerEmail: order.CustomerEmail,
				GatewayStatus: gatewayStatus,
			},
		})
	})
	if err != nil && s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID)
		s.logg.Error(logCtx, "enqueue cancellation event failed", err)
	}
}
