package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"gorm.io/gorm"

	"github.com/varejolabs/loja-backend/internal/auth"
	couponsvc "github.com/varejolabs/loja-backend/internal/coupons"
	ordersvc "github.com/varejolabs/loja-backend/internal/orders"
	"github.com/varejolabs/loja-backend/internal/payments"
	productsvc "github.com/varejolabs/loja-backend/internal/products"
	"github.com/varejolabs/loja-backend/pkg/config"
	"github.com/varejolabs/loja-backend/pkg/db/models"
	pkgerrors "github.com/varejolabs/loja-backend/pkg/errors"
	"github.com/varejolabs/loja-backend/pkg/logger"
	"github.com/varejolabs/loja-backend/pkg/mercadopago"
	"github.com/varejolabs/loja-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubAuthService struct{}

func (stubAuthService) AdminLogin(context.Context, auth.LoginRequest) (*auth.LoginResponse, error) {
	return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
}

type stubProductsService struct {
	products []models.Product
}

func (s stubProductsService) CreateProduct(context.Context, productsvc.CreateProductInput) (*models.Product, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s stubProductsService) GetProduct(context.Context, int64) (*models.Product, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (s stubProductsService) GetProductBySlug(_ context.Context, slug string) (*models.Product, error) {
	for i := range s.products {
		if s.products[i].Slug == slug {
			return &s.products[i], nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (s stubProductsService) ListProducts(context.Context) ([]models.Product, error) {
	return s.products, nil
}

func (s stubProductsService) UpdateProduct(context.Context, int64, map[string]any) (*models.Product, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

type stubCouponsService struct{}

func (stubCouponsService) CreateCoupon(context.Context, couponsvc.CreateCouponInput) (*models.Coupon, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (stubCouponsService) GetCoupon(context.Context, int64) (*models.Coupon, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
}

func (stubCouponsService) ListCoupons(context.Context) ([]models.Coupon, error) {
	return nil, nil
}

func (stubCouponsService) DeactivateCoupon(context.Context, int64) error {
	return nil
}

func (stubCouponsService) FindUsableByCode(context.Context, *gorm.DB, string) (*models.Coupon, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
}

func (stubCouponsService) DecrementUsage(context.Context, *gorm.DB, int64) error {
	return nil
}

type stubOrdersService struct{}

func (stubOrdersService) CreateOrder(context.Context, ordersvc.CreateOrderInput) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (stubOrdersService) GetOrder(context.Context, int64) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (stubOrdersService) ListOrders(context.Context, pagination.Params, ordersvc.OrderFilters) (*ordersvc.OrderList, error) {
	return &ordersvc.OrderList{}, nil
}

func (stubOrdersService) ApplyCoupon(context.Context, int64, string) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (stubOrdersService) RemoveCoupon(context.Context, int64) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

type stubPaymentsService struct{}

func (stubPaymentsService) Reconcile(context.Context, int64, string, string) (*payments.Result, error) {
	return &payments.Result{Outcome: payments.OutcomeNoChange}, nil
}

func (stubPaymentsService) RefreshFromGateway(context.Context, int64, string) (*payments.Result, error) {
	return &payments.Result{Outcome: payments.OutcomeNoChange}, nil
}

func (stubPaymentsService) ReconcileByPaymentID(context.Context, string, string) (*payments.Result, error) {
	return &payments.Result{Outcome: payments.OutcomeNoChange}, nil
}

type stubWebhooksService struct{}

func (stubWebhooksService) ProcessEvent(context.Context, mercadopago.WebhookEvent) (*payments.Result, error) {
	return &payments.Result{Outcome: payments.OutcomeNoChange}, nil
}

func newTestRouter(t *testing.T, products []models.Product) http.Handler {
	t.Helper()
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT = config.JWTConfig{Secret: "secret", Issuer: "loja-test", ExpirationMinutes: 60}
	logg := logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})

	return NewRouter(
		cfg,
		logg,
		Pingers{DB: stubPinger{}, Redis: stubPinger{}},
		nil,
		Services{
			Auth:     stubAuthService{},
			Products: stubProductsService{products: products},
			Coupons:  stubCouponsService{},
			Orders:   stubOrdersService{},
			Payments: stubPaymentsService{},
			Webhooks: stubWebhooksService{},
		},
		nil,
	)
}

func TestRouterServesHealthLive(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}

func TestRouterServesHealthReady(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestRouterListsProducts(t *testing.T) {
	router := newTestRouter(t, []models.Product{{ID: 1, Name: "Camiseta", Slug: "camiseta"}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(envelope.Data) != 1 {
		t.Fatalf("expected one product, got %d", len(envelope.Data))
	}
}

func TestRouterRejectsAdminRoutesWithoutToken(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestRouterReturns404ForUnknownRoute(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}
