package payments

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/varejolabs/loja-backend/pkg/db/models"
	"github.com/varejolabs/loja-backend/pkg/enums"
	"github.com/varejolabs/loja-backend/pkg/logger"
	"github.com/varejolabs/loja-backend/pkg/metrics"
	"github.com/varejolabs/loja-backend/pkg/outbox"
)

const (
	actionStockDecrement = "stock_decrement"
	actionCouponUsage    = "coupon_usage"
	actionEmailEnqueue   = "email_enqueue"
)

// StockDecrementer takes confirmed units out of the catalog.
type StockDecrementer interface {
	DecrementStock(ctx context.Context, tx *gorm.DB, productID int64, qty int) error
}

// CouponBurner consumes one coupon use at confirmation time.
type CouponBurner interface {
	IncrementUsage(ctx context.Context, tx *gorm.DB, couponID int64) error
}

// sideEffectRunner executes the confirmation side effects for a newly paid
// order. Each action is independent: one failing never blocks the others,
// and the aggregate error is reported but never reverses the transition.
type sideEffectRunner struct {
	tx      txRunner
	stock   StockDecrementer
	coupons CouponBurner
	outbox  outboxPublisher
	logg    *logger.Logger
	metrics *metrics.ReconcilerMetrics
}

func (r *sideEffectRunner) run(ctx context.Context, order *models.Order) error {
	var errs error

	for _, item := range order.Items {
		if err := r.stock.DecrementStock(ctx, nil, item.ProductID, item.Quantity); err != nil {
			r.report(ctx, order.ID, actionStockDecrement, err)
			errs = multierr.Append(errs, err)
		}
	}

	if order.CouponID != nil {
		if err := r.coupons.IncrementUsage(ctx, nil, *order.CouponID); err != nil {
			r.report(ctx, order.ID, actionCouponUsage, err)
			errs = multierr.Append(errs, err)
		}
	}

	if err := r.enqueueConfirmationEvent(ctx, order); err != nil {
		r.report(ctx, order.ID, actionEmailEnqueue, err)
		errs = multierr.Append(errs, err)
	}

	return errs
}

// enqueueConfirmationEvent hands the email and analytics work to the outbox
// so the HTTP caller never waits on downstream delivery.
func (r *sideEffectRunner) enqueueConfirmationEvent(ctx context.Context, order *models.Order) error {
	return r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return r.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: outbox.OrderPaidData{
				OrderID:       order.ID,
				CustomerName:  order.CustomerName,
				CustomerEmail: order.CustomerEmail,
				Total:         order.Total.StringFixed(2),
				PaymentMethod: order.PaymentMethod.String(),
				PaidAt:        time.Now().UTC(),
			},
		})
	})
}

func (r *sideEffectRunner) report(ctx context.Context, orderID int64, action string, err error) {
	if r.metrics != nil {
		r.metrics.IncSideEffectFailure(action)
	}
	if r.logg != nil {
		logCtx := r.logg.WithOrderID(ctx, orderID)
		logCtx = r.logg.WithField(logCtx, "action", action)
		r.logg.Error(logCtx, "confirmation side effect failed", err)
	}
}
