package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Coupon usage is counted once per order, at payment confirmation.
// MaxUses == 0 means unlimited.
type Coupon struct {
	ID              int64           `gorm:"column:id;primaryKey;autoIncrement"`
	Code            string          `gorm:"column:code;not null;uniqueIndex"`
	DiscountPercent decimal.Decimal `gorm:"column:discount_percent;type:numeric(5,2);not null"`
	MaxUses         int             `gorm:"column:max_uses;not null;default:0"`
	UsedCount       int             `gorm:"column:used_count;not null;default:0"`
	Active          bool            `gorm:"column:active;not null;default:true"`
	ExpiresAt       *time.Time      `gorm:"column:expires_at"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// Usable reports whether the coupon can still be applied to a new order.
func (c *Coupon) Usable(now time.Time) bool {
	if !c.Active {
		return false
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return false
	}
	if c.MaxUses > 0 && c.UsedCount >= c.MaxUses {
		return false
	}
	return true
}
