package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/varejolabs/loja-backend/pkg/db/models"
	"github.com/varejolabs/loja-backend/pkg/enums"
	pkgerrors "github.com/varejolabs/loja-backend/pkg/errors"
	"github.com/varejolabs/loja-backend/pkg/logger"
	"github.com/varejolabs/loja-backend/pkg/mercadopago"
	"github.com/varejolabs/loja-backend/pkg/outbox"
	"github.com/varejolabs/loja-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Catalog exposes the product reads checkout needs.
type Catalog interface {
	FindActiveByIDs(ctx context.Context, tx *gorm.DB, ids []int64) ([]models.Product, error)
}

// CouponLedger exposes the coupon operations the order lifecycle touches.
type CouponLedger interface {
	FindUsableByCode(ctx context.Context, tx *gorm.DB, code string) (*models.Coupon, error)
	DecrementUsage(ctx context.Context, tx *gorm.DB, couponID int64) error
}

// PaymentGateway registers charges for new orders.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, params mercadopago.CreatePaymentParams) (*mercadopago.Payment, error)
}

// Service defines order lifecycle operations.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*models.Order, error)
	ListOrders(ctx context.Context, params pagination.Params, filters OrderFilters) (*OrderList, error)
	ApplyCoupon(ctx context.Context, orderID int64, code string) (*models.Order, error)
	RemoveCoupon(ctx context.Context, orderID int64) (*models.Order, error)
}

// ServiceParams bundles the dependencies for NewService.
type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Catalog   Catalog
	Coupons   CouponLedger
	Gateway   PaymentGateway
	Outbox    outboxPublisher
	Logger    *logger.Logger
	NotifyURL string
}

type service struct {
	repo      Repository
	tx        txRunner
	catalog   Catalog
	coupons   CouponLedger
	gateway   PaymentGateway
	outbox    outboxPublisher
	logg      *logger.Logger
	notifyURL string
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon ledger required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		catalog:   params.Catalog,
		coupons:   params.Coupons,
		gateway:   params.Gateway,
		outbox:    params.Outbox,
		logg:      params.Logger,
		notifyURL: params.NotifyURL,
	}, nil
}

// ExternalReference builds the gateway correlation key for an order. The
// channel suffix disambiguates authenticated and guest checkouts that could
// otherwise collide on numeric IDs.
func ExternalReference(orderID int64, guest bool) string {
	channel := "auth"
	if guest {
		channel = "guest"
	}
	return fmt.Sprintf("order-%d-%s", orderID, channel)
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if strings.TrimSpace(input.CustomerName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name required")
	}
	if strings.TrimSpace(input.CustomerEmail) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer email required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	for _, item := range input.Items {
		if item.ProductID <= 0 || item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order item")
		}
	}

	guest := input.UserID == nil
	var order *models.Order

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ids := make([]int64, 0, len(input.Items))
		for _, item := range input.Items {
			ids = append(ids, item.ProductID)
		}
		products, err := s.catalog.FindActiveByIDs(ctx, tx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
		}
		byID := make(map[int64]models.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		subtotal := decimal.Zero
		items := make([]models.OrderItem, 0, len(input.Items))
		for _, item := range input.Items {
			product, ok := byID[item.ProductID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %d not found", item.ProductID))
			}
			// Availability check only; stock is decremented when payment confirms.
			if product.Stock < item.Quantity {
				return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("insufficient stock for product %d", item.ProductID))
			}
			lineTotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			subtotal = subtotal.Add(lineTotal)
			items = append(items, models.OrderItem{
				ProductID: product.ID,
				Name:      product.Name,
				UnitPrice: product.Price,
				Quantity:  item.Quantity,
			})
		}

		discount := decimal.Zero
		var couponID *int64
		if code := strings.TrimSpace(input.CouponCode); code != "" {
			coupon, err := s.coupons.FindUsableByCode(ctx, tx, code)
			if err != nil {
				return err
			}
			discount = subtotal.Mul(coupon.DiscountPercent).Div(decimal.NewFromInt(100)).Round(2)
			couponID = &coupon.ID
		}

		order = &models.Order{
			CustomerName:   strings.TrimSpace(input.CustomerName),
			CustomerEmail:  strings.TrimSpace(input.CustomerEmail),
			Status:         enums.OrderStatusPending,
			PaymentStatus:  enums.PaymentStatusPending,
			PaymentMethod:  input.PaymentMethod,
			GuestCheckout:  guest,
			Subtotal:       subtotal,
			DiscountAmount: discount,
			Total:          subtotal.Sub(discount),
			CouponID:       couponID,
			Items:          items,
		}
		if _, err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		reference := ExternalReference(order.ID, guest)
		if err := repo.SetPaymentDetails(ctx, order.ID, map[string]any{"external_reference": reference}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set external reference")
		}
		order.ExternalReference = reference

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: outbox.OrderCreatedData{
				OrderID:       order.ID,
				CustomerEmail: order.CustomerEmail,
				Total:         order.Total.StringFixed(2),
			},
		}
		return s.outbox.EmitIfNotExists(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	if err := s.registerCharge(ctx, order); err != nil {
		// The order row stays pending without a payment ID; the payment poll
		// can still recover it through the external reference search.
		if s.logg != nil {
			logCtx := s.logg.WithOrderID(ctx, order.ID)
			s.logg.Error(logCtx, "gateway charge registration failed", err)
		}
		return nil, err
	}

	return s.repo.FindByID(ctx, order.ID)
}

func (s *service) registerCharge(ctx context.Context, order *models.Order) error {
	payment, err := s.gateway.CreatePayment(ctx, mercadopago.CreatePaymentParams{
		TransactionAmount: order.Total,
		Description:       fmt.Sprintf("Pedido #%d", order.ID),
		PaymentMethodID:   order.PaymentMethod.String(),
		ExternalReference: order.ExternalReference,
		NotificationURL:   s.notifyURL,
		PayerEmail:        order.CustomerEmail,
		PayerFirstName:    order.CustomerName,
	})
	if err != nil {
		return err
	}

	updates := map[string]any{
		"payment_id": fmt.Sprintf("%d", payment.ID),
		"updated_at": time.Now(),
	}
	if payment.PixQRCode != "" {
		updates["pix_qr_code"] = payment.PixQRCode
	}
	if payment.BoletoURL != "" {
		updates["boleto_url"] = payment.BoletoURL
	}
	if err := s.repo.SetPaymentDetails(ctx, order.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment details")
	}
	return nil
}

func (s *service) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
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
	return order, nil
}

func (s *service) ListOrders(ctx context.Context, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	list, err := s.repo.ListOrders(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

func (s *service) ApplyCoupon(ctx context.Context, orderID int64, code string) (*models.Order, error) {
	if orderID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if strings.TrimSpace(code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status == enums.OrderStatusPaid || order.PaymentStatus == enums.PaymentStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot apply coupon to a paid order")
		}

		coupon, err := s.coupons.FindUsableByCode(ctx, tx, code)
		if err != nil {
			return err
		}

		discount := order.Subtotal.Mul(coupon.DiscountPercent).Div(decimal.NewFromInt(100)).Round(2)
		return repo.UpdateCouponFields(ctx, orderID, map[string]any{
			"coupon_id":       coupon.ID,
			"discount_amount": discount,
			"total":           order.Subtotal.Sub(discount),
			"updated_at":      time.Now(),
		})
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, orderID)
}

// RemoveCoupon restores the order total to the full subtotal. Usage is only
// handed back when the order already confirmed, since that is the moment the
// coupon's used count was taken.
func (s *service) RemoveCoupon(ctx context.Context, orderID int64) (*models.Order, error) {
	if orderID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.CouponID == nil {
			return nil
		}

		if order.PaymentStatus == enums.PaymentStatusPaid {
			if err := s.coupons.DecrementUsage(ctx, tx, *order.CouponID); err != nil {
				return err
			}
		}

		return repo.UpdateCouponFields(ctx, orderID, map[string]any{
			"coupon_id":       nil,
			"discount_amount": decimal.Zero,
			"total":           order.Subtotal,
			"updated_at":      time.Now(),
		})
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, orderID)
}
