package products

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/varejolabs/loja-backend/pkg/db/models"
	pkgerrors "github.com/varejolabs/loja-backend/pkg/errors"
)

type stubRepo struct {
	created  *models.Product
	byID     map[int64]*models.Product
	bySlug   map[string]*models.Product
	updates  map[string]any
	updateID int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{byID: map[int64]*models.Product{}, bySlug: map[string]*models.Product{}}
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	product.ID = 1
	s.created = product
	s.byID[product.ID] = product
	s.bySlug[product.Slug] = product
	return product, nil
}

func (s *stubRepo) FindByID(ctx context.Context, productID int64) (*models.Product, error) {
	if p, ok := s.byID[productID]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) FindBySlug(ctx context.Context, slug string) (*models.Product, error) {
	if p, ok := s.bySlug[slug]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) FindActiveByIDs(ctx context.Context, tx *gorm.DB, ids []int64) ([]models.Product, error) {
	return nil, nil
}

func (s *stubRepo) ListActive(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	for _, p := range s.byID {
		if p.Active {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *stubRepo) Update(ctx context.Context, productID int64, updates map[string]any) error {
	s.updateID = productID
	s.updates = updates
	return nil
}

func (s *stubRepo) DecrementStock(ctx context.Context, tx *gorm.DB, productID int64, qty int) error {
	return nil
}

func (s *stubRepo) IncrementStock(ctx context.Context, tx *gorm.DB, productID int64, qty int) error {
	return nil
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestCreateProductDerivesSlug(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo)

	product, err := svc.CreateProduct(context.Background(), CreateProductInput{
		Name:  "  Camiseta Básica Preta  ",
		Price: decimal.RequireFromString("59.90"),
		Stock: 10,
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if product.Slug != "camiseta-b-sica-preta" {
		t.Fatalf("unexpected slug %q", product.Slug)
	}
	if product.Name != "Camiseta Básica Preta" {
		t.Fatalf("name should be trimmed, got %q", product.Name)
	}
	if !product.Active {
		t.Fatal("new products start active")
	}
}

func TestCreateProductRejectsBadInput(t *testing.T) {
	svc := newTestService(t, newStubRepo())

	cases := []CreateProductInput{
		{Name: "", Price: decimal.RequireFromString("10.00")},
		{Name: "Produto", Price: decimal.Zero},
		{Name: "Produto", Price: decimal.RequireFromString("10.00"), Stock: -1},
	}
	for _, input := range cases {
		_, err := svc.CreateProduct(context.Background(), input)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("expected validation error for %+v, got %v", input, err)
		}
	}
}

func TestGetProductBySlugNotFound(t *testing.T) {
	svc := newTestService(t, newStubRepo())

	_, err := svc.GetProductBySlug(context.Background(), "inexistente")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateProductRequiresChanges(t *testing.T) {
	svc := newTestService(t, newStubRepo())

	_, err := svc.UpdateProduct(context.Background(), 1, map[string]any{})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateProductAppliesAndReloads(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo)

	created, err := svc.CreateProduct(context.Background(), CreateProductInput{
		Name:  "Caneca",
		Price: decimal.RequireFromString("29.90"),
		Stock: 5,
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	updated, err := svc.UpdateProduct(context.Background(), created.ID, map[string]any{"stock": 3})
	if err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}
	if repo.updateID != created.ID {
		t.Fatalf("update hit wrong product %d", repo.updateID)
	}
	if updated.ID != created.ID {
		t.Fatalf("expected reload of product %d, got %d", created.ID, updated.ID)
	}
}
