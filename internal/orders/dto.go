package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/varejolabs/loja-backend/pkg/db/models"
	"github.com/varejolabs/loja-backend/pkg/enums"
)

// StatusTransition reports the result of a conditional status update. When
// Applied is false the previous fields still describe the row as it was
// observed, so callers can tell "already there" apart from "terminal".
type StatusTransition struct {
	Applied               bool
	PreviousStatus        enums.OrderStatus
	PreviousPaymentStatus enums.PaymentStatus
}

// OrderFilters narrows admin order listings.
type OrderFilters struct {
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	CustomerEmail string
}

// OrderList is a cursor page of orders.
type OrderList struct {
	Orders     []models.Order
	NextCursor string
}

// CreateOrderItemInput is one cart line at checkout.
type CreateOrderItemInput struct {
	ProductID int64
	Quantity  int
}

// CreateOrderInput captures everything checkout needs to persist an order
// and register the charge at the gateway.
type CreateOrderInput struct {
	CustomerName  string
	CustomerEmail string
	PaymentMethod enums.PaymentMethod
	CouponCode    string
	Items         []CreateOrderItemInput
	UserID        *int64
}

// PaymentDetails is the buyer-facing payment data returned after checkout.
type PaymentDetails struct {
	PaymentID *string
	PixQRCode *string
	BoletoURL *string
}

// OrderSummary is the projection returned by list/get endpoints.
type OrderSummary struct {
	ID             int64               `json:"id"`
	CustomerName   string              `json:"customer_name"`
	CustomerEmail  string              `json:"customer_email"`
	Status         enums.OrderStatus   `json:"status"`
	PaymentStatus  enums.PaymentStatus `json:"payment_status"`
	PaymentMethod  enums.PaymentMethod `json:"payment_method"`
	Total          decimal.Decimal     `json:"total"`
	Subtotal       decimal.Decimal     `json:"subtotal"`
	DiscountAmount decimal.Decimal     `json:"discount_amount"`
	GuestCheckout  bool                `json:"guest_checkout"`
	CreatedAt      time.Time           `json:"created_at"`
}

// SummaryFromModel projects an order row into the API shape.
func SummaryFromModel(order models.Order) OrderSummary {
	return OrderSummary{
		ID:             order.ID,
		CustomerName:   order.CustomerName,
		CustomerEmail:  order.CustomerEmail,
		Status:         order.Status,
		PaymentStatus:  order.PaymentStatus,
		PaymentMethod:  order.PaymentMethod,
		Total:          order.Total,
		Subtotal:       order.Subtotal,
		DiscountAmount: order.DiscountAmount,
		GuestCheckout:  order.GuestCheckout,
		CreatedAt:      order.CreatedAt,
	}
}
