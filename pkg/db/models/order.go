package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/varejolabs/loja-backend/pkg/enums"
)

// Order is the buyer-facing order record. Status tracks the shipment
// lifecycle; PaymentStatus is the coarser paid/unpaid flag the payment
// reconciler flips. Total equals the sum of item snapshots at creation
// and is only mutated afterwards by coupon application/removal.
type Order struct {
	ID                int64               `gorm:"column:id;primaryKey;autoIncrement"`
	CustomerName      string              `gorm:"column:customer_name;not null"`
	CustomerEmail     string              `gorm:"column:customer_email;not null"`
	Status            enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentStatus     enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	PaymentMethod     enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null;default:'pix'"`
	PaymentID         *string             `gorm:"column:payment_id"`
	ExternalReference string              `gorm:"column:external_reference;not null"`
	GuestCheckout     bool                `gorm:"column:guest_checkout;not null;default:false"`
	Total             decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	Subtotal          decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	DiscountAmount    decimal.Decimal     `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	CouponID          *int64              `gorm:"column:coupon_id"`
	PixQRCode         *string             `gorm:"column:pix_qr_code"`
	BoletoURL         *string             `gorm:"column:boleto_url"`
	Items             []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
