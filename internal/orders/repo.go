package orders

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/varejolabs/loja-backend/pkg/db/models"
	"github.com/varejolabs/loja-backend/pkg/enums"
	"github.com/varejolabs/loja-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, orderID int64) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("payment_id = ?", paymentID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByExternalReference(ctx context.Context, reference string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("external_reference = ?", reference).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListOrders(ctx context.Context, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	pageSize := pagination.NormalizeLimit(params.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(params.Limit)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	qb := r.db.WithContext(ctx).Model(&models.Order{})

	if filters.Status != nil {
		qb = qb.Where("status = ?", *filters.Status)
	}
	if filters.PaymentStatus != nil {
		qb = qb.Where("payment_status = ?", *filters.PaymentStatus)
	}
	if email := strings.TrimSpace(filters.CustomerEmail); email != "" {
		qb = qb.Where("LOWER(customer_email) = ?", strings.ToLower(email))
	}

	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	err = qb.Order("created_at DESC").Order("id DESC").Limit(limitWithBuffer).Find(&rows).Error
	if err != nil {
		return nil, err
	}

	nextCursor := ""
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	return &OrderList{
		Orders:     rows,
		NextCursor: nextCursor,
	}, nil
}

// UpdateStatusIfChanged applies the mapped statuses with a single conditional
// UPDATE. The status <> 'paid' predicate makes paid terminal, and the
// inequality on the target pair turns replays into no-ops; RowsAffected
// arbitrates concurrent observers so exactly one sees Applied=true.
func (r *repository) UpdateStatusIfChanged(ctx context.Context, orderID int64, status enums.OrderStatus, paymentStatus enums.PaymentStatus) (*StatusTransition, error) {
	var current models.Order
	err := r.db.WithContext(ctx).
		Select("id", "status", "payment_status").
		Where("id = ?", orderID).
		First(&current).Error
	if err != nil {
		return nil, err
	}

	transition := &StatusTransition{
		PreviousStatus:        current.Status,
		PreviousPaymentStatus: current.PaymentStatus,
	}

	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status <> ? AND (status <> ? OR payment_status <> ?)",
			orderID, enums.OrderStatusPaid, status, paymentStatus).
		Updates(map[string]any{
			"status":         status,
			"payment_status": paymentStatus,
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return nil, result.Error
	}

	transition.Applied = result.RowsAffected == 1
	return transition, nil
}

func (r *repository) SetPaymentDetails(ctx context.Context, orderID int64, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) UpdateCouponFields(ctx context.Context, orderID int64, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}
