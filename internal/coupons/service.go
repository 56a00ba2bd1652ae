package coupons

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/varejolabs/loja-backend/pkg/db"
	"github.com/varejolabs/loja-backend/pkg/db/models"
	pkgerrors "github.com/varejolabs/loja-backend/pkg/errors"
)

// CreateCouponInput carries the admin-provided coupon fields.
type CreateCouponInput struct {
	Code            string
	DiscountPercent decimal.Decimal
	MaxUses         int
	ExpiresAt       *time.Time
}

// Service defines coupon management operations.
type Service interface {
	CreateCoupon(ctx context.Context, input CreateCouponInput) (*models.Coupon, error)
	GetCoupon(ctx context.Context, couponID int64) (*models.Coupon, error)
	ListCoupons(ctx context.Context) ([]models.Coupon, error)
	DeactivateCoupon(ctx context.Context, couponID int64) error
	FindUsableByCode(ctx context.Context, tx *gorm.DB, code string) (*models.Coupon, error)
	DecrementUsage(ctx context.Context, tx *gorm.DB, couponID int64) error
}

type service struct {
	repo Repository
}

// NewService builds the coupon service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupons repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreateCoupon(ctx context.Context, input CreateCouponInput) (*models.Coupon, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code required")
	}
	hundred := decimal.NewFromInt(100)
	if input.DiscountPercent.LessThanOrEqual(decimal.Zero) || input.DiscountPercent.GreaterThan(hundred) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount percent must be in (0, 100]")
	}
	if input.MaxUses < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max uses cannot be negative")
	}

	coupon := &models.Coupon{
		Code:            code,
		DiscountPercent: input.DiscountPercent,
		MaxUses:         input.MaxUses,
		Active:          true,
		ExpiresAt:       input.ExpiresAt,
	}
	if _, err := s.repo.Create(ctx, coupon); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_coupons_code") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create coupon")
	}
	return coupon, nil
}

func (s *service) GetCoupon(ctx context.Context, couponID int64) (*models.Coupon, error) {
	if couponID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon id required")
	}
	coupon, err := s.repo.FindByID(ctx, couponID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	return coupon, nil
}

func (s *service) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	coupons, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list coupons")
	}
	return coupons, nil
}

func (s *service) DeactivateCoupon(ctx context.Context, couponID int64) error {
	if couponID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon id required")
	}
	if err := s.repo.Update(ctx, couponID, map[string]any{"active": false, "updated_at": time.Now()}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate coupon")
	}
	return nil
}

// FindUsableByCode loads a coupon and verifies it is still applicable.
func (s *service) FindUsableByCode(ctx context.Context, tx *gorm.DB, code string) (*models.Coupon, error) {
	repo := s.repo.WithTx(tx)
	coupon, err := repo.FindByCode(ctx, code)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	if !coupon.Usable(time.Now()) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "coupon is not usable")
	}
	return coupon, nil
}

func (s *service) DecrementUsage(ctx context.Context, tx *gorm.DB, couponID int64) error {
	return s.repo.DecrementUsage(ctx, tx, couponID)
}
