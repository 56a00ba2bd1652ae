package auth

import (
	"context"
	"testing"

	"gorm.io/gorm"

	pkgAuth "github.com/varejolabs/loja-backend/pkg/auth"
	"github.com/varejolabs/loja-backend/pkg/config"
	"github.com/varejolabs/loja-backend/pkg/db/models"
	pkgerrors "github.com/varejolabs/loja-backend/pkg/errors"
	"github.com/varejolabs/loja-backend/pkg/security"
)

type stubUserRepo struct {
	user *models.User
}

func (s *stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.user == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUserRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	panic("not implemented")
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "loja-test",
		ExpirationMinutes: 15,
	}
}

func newAuthService(t *testing.T, user *models.User) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		UserRepo:  &stubUserRepo{user: user},
		JWTConfig: testJWTConfig(),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func seedAdmin(t *testing.T, password string, isAdmin bool) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return &models.User{
		ID:           9,
		Name:         "Admin",
		Email:        "admin@loja.test",
		PasswordHash: hash,
		IsAdmin:      isAdmin,
	}
}

func TestAdminLoginIssuesToken(t *testing.T) {
	svc := newAuthService(t, seedAdmin(t, "s3nh4-f0rte", true))

	resp, err := svc.AdminLogin(context.Background(), LoginRequest{
		Email:    "admin@loja.test",
		Password: "s3nh4-f0rte",
	})
	if err != nil {
		t.Fatalf("AdminLogin: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("expected access token")
	}
	if resp.User.ID != 9 || !resp.User.IsAdmin {
		t.Fatalf("unexpected user summary %+v", resp.User)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWTConfig(), resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != 9 || !claims.IsAdmin {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestAdminLoginRejectsWrongPassword(t *testing.T) {
	svc := newAuthService(t, seedAdmin(t, "s3nh4-f0rte", true))

	_, err := svc.AdminLogin(context.Background(), LoginRequest{
		Email:    "admin@loja.test",
		Password: "wrong",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestAdminLoginRejectsNonAdmin(t *testing.T) {
	svc := newAuthService(t, seedAdmin(t, "s3nh4-f0rte", false))

	_, err := svc.AdminLogin(context.Background(), LoginRequest{
		Email:    "admin@loja.test",
		Password: "s3nh4-f0rte",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestAdminLoginUnknownUser(t *testing.T) {
	svc := newAuthService(t, nil)

	_, err := svc.AdminLogin(context.Background(), LoginRequest{
		Email:    "ghost@loja.test",
		Password: "whatever",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
