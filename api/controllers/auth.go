package controllers

import (
	"net/http"

	"github.com/varejolabs/loja-backend/api/responses"
	"github.com/varejolabs/loja-backend/api/validators"
	"github.com/varejolabs/loja-backend/internal/auth"
	pkgerrors "github.com/varejolabs/loja-backend/pkg/errors"
	"github.com/varejolabs/loja-backend/pkg/logger"
)

// AdminAuthLogin wires the admin login endpoint into the HTTP layer.
func AdminAuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.AdminLogin(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
