package orders

import (
	"context"

	"gorm.io/gorm"

	"github.com/varejolabs/loja-backend/pkg/db/models"
	"github.com/varejolabs/loja-backend/pkg/enums"
	"github.com/varejolabs/loja-backend/pkg/pagination"
)

// Repository defines persistence operations for order tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, orderID int64) (*models.Order, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
	FindByExternalReference(ctx context.Context, reference string) (*models.Order, error)
	ListOrders(ctx context.Context, params pagination.Params, filters OrderFilters) (*OrderList, error)
	UpdateStatusIfChanged(ctx context.Context, orderID int64, status enums.OrderStatus, paymentStatus enums.PaymentStatus) (*StatusTransition, error)
	SetPaymentDetails(ctx context.Context, orderID int64, updates map[string]any) error
	UpdateCouponFields(ctx context.Context, orderID int64, updates map[string]any) error
}
