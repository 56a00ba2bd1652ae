package orders

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/varejolabs/loja-backend/pkg/db/models"
	"github.com/varejolabs/loja-backend/pkg/enums"
	"github.com/varejolabs/loja-backend/pkg/pagination"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ordersTable := `
CREATE TABLE IF NOT EXISTS orders (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  customer_name TEXT NOT NULL,
  customer_email TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_status TEXT NOT NULL DEFAULT 'pending',
  payment_method TEXT NOT NULL DEFAULT 'pix',
  payment_id TEXT,
  external_reference TEXT NOT NULL DEFAULT '',
  guest_checkout INTEGER NOT NULL DEFAULT 0,
  total NUMERIC NOT NULL DEFAULT 0,
  subtotal NUMERIC NOT NULL DEFAULT 0,
  discount_amount NUMERIC NOT NULL DEFAULT 0,
  coupon_id INTEGER,
  pix_qr_code TEXT,
  boleto_url TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	orderItems := `
CREATE TABLE IF NOT EXISTS order_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  order_id INTEGER NOT NULL,
  product_id INTEGER NOT NULL,
  name TEXT NOT NULL,
  unit_price NUMERIC NOT NULL,
  quantity INTEGER NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(ordersTable).Error)
	require.NoError(t, db.Exec(orderItems).Error)
	require.NoError(t, db.Exec("DELETE FROM order_items").Error)
	require.NoError(t, db.Exec("DELETE FROM orders").Error)
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, email string, status enums.OrderStatus, paymentStatus enums.PaymentStatus, created time.Time) *models.Order {
	t.Helper()

	order := &models.Order{
		CustomerName:  "Test Buyer",
		CustomerEmail: email,
		Status:        status,
		PaymentStatus: paymentStatus,
		PaymentMethod: enums.PaymentMethodPix,
		Subtotal:      decimal.RequireFromString("100.00"),
		Total:         decimal.RequireFromString("100.00"),
		CreatedAt:     created,
		UpdatedAt:     created,
		Items: []models.OrderItem{
			{ProductID: 1, Name: "Test Product", UnitPrice: decimal.RequireFromString("50.00"), Quantity: 2},
		},
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestUpdateStatusIfChanged_appliesAndArbitrates(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, "winner@test.com", enums.OrderStatusPending, enums.PaymentStatusPending, time.Now().UTC())

	first, err := repo.UpdateStatusIfChanged(ctx, order.ID, enums.OrderStatusPaid, enums.PaymentStatusPaid)
	require.NoError(t, err)
	assert.True(t, first.Applied)
	assert.Equal(t, enums.OrderStatusPending, first.PreviousStatus)
	assert.Equal(t, enums.PaymentStatusPending, first.PreviousPaymentStatus)

	// A second observation of the same approval is a no-op.
	second, err := repo.UpdateStatusIfChanged(ctx, order.ID, enums.OrderStatusPaid, enums.PaymentStatusPaid)
	require.NoError(t, err)
	assert.False(t, second.Applied)
	assert.Equal(t, enums.OrderStatusPaid, second.PreviousStatus)
	assert.Equal(t, enums.PaymentStatusPaid, second.PreviousPaymentStatus)
}

func TestUpdateStatusIfChanged_paidIsTerminal(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, "terminal@test.com", enums.OrderStatusPaid, enums.PaymentStatusPaid, time.Now().UTC())

	// A late refund webhook must not demote a paid order.
	transition, err := repo.UpdateStatusIfChanged(ctx, order.ID, enums.OrderStatusCanceled, enums.PaymentStatusPending)
	require.NoError(t, err)
	assert.False(t, transition.Applied)
	assert.Equal(t, enums.OrderStatusPaid, transition.PreviousStatus)

	reloaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, reloaded.Status)
	assert.Equal(t, enums.PaymentStatusPaid, reloaded.PaymentStatus)
}

func TestUpdateStatusIfChanged_cancelsPending(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, "cancel@test.com", enums.OrderStatusPending, enums.PaymentStatusPending, time.Now().UTC())

	transition, err := repo.UpdateStatusIfChanged(ctx, order.ID, enums.OrderStatusCanceled, enums.PaymentStatusPending)
	require.NoError(t, err)
	assert.True(t, transition.Applied)

	reloaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCanceled, reloaded.Status)
	assert.Equal(t, enums.PaymentStatusPending, reloaded.PaymentStatus)
}

func TestUpdateStatusIfChanged_missingOrder(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	_, err := repo.UpdateStatusIfChanged(context.Background(), 987654, enums.OrderStatusPaid, enums.PaymentStatusPaid)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestFindByPaymentIDAndReference(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, "lookup@test.com", enums.OrderStatusPending, enums.PaymentStatusPending, time.Now().UTC())
	require.NoError(t, repo.SetPaymentDetails(ctx, order.ID, map[string]any{
		"payment_id":         "555001",
		"external_reference": "order-lookup-guest",
	}))

	byPayment, err := repo.FindByPaymentID(ctx, "555001")
	require.NoError(t, err)
	assert.Equal(t, order.ID, byPayment.ID)
	require.Len(t, byPayment.Items, 1)
	assert.Equal(t, "Test Product", byPayment.Items[0].Name)

	byReference, err := repo.FindByExternalReference(ctx, "order-lookup-guest")
	require.NoError(t, err)
	assert.Equal(t, order.ID, byReference.ID)

	_, err = repo.FindByPaymentID(ctx, "000000")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListOrders_paginationAndFilters(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	older := seedOrder(t, db, "list@test.com", enums.OrderStatusPaid, enums.PaymentStatusPaid, now.Add(-time.Hour))
	newer := seedOrder(t, db, "list@test.com", enums.OrderStatusPending, enums.PaymentStatusPending, now)

	list, err := repo.ListOrders(ctx, pagination.Params{Limit: 1}, OrderFilters{})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, newer.ID, list.Orders[0].ID)
	assert.NotEmpty(t, list.NextCursor)

	second, err := repo.ListOrders(ctx, pagination.Params{Limit: 1, Cursor: list.NextCursor}, OrderFilters{})
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	assert.Equal(t, older.ID, second.Orders[0].ID)
	assert.Empty(t, second.NextCursor)

	paid := enums.OrderStatusPaid
	filtered, err := repo.ListOrders(ctx, pagination.Params{}, OrderFilters{Status: &paid})
	require.NoError(t, err)
	require.Len(t, filtered.Orders, 1)
	assert.Equal(t, older.ID, filtered.Orders[0].ID)

	byEmail, err := repo.ListOrders(ctx, pagination.Params{}, OrderFilters{CustomerEmail: "LIST@test.com"})
	require.NoError(t, err)
	assert.Len(t, byEmail.Orders, 2)
}
