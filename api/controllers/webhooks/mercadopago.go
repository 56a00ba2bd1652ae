package webhooks

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/varejolabs/loja-backend/api/responses"
	webhooksvc "github.com/varejolabs/loja-backend/internal/webhooks"
	"github.com/varejolabs/loja-backend/pkg/config"
	pkgerrors "github.com/varejolabs/loja-backend/pkg/errors"
	"github.com/varejolabs/loja-backend/pkg/logger"
	"github.com/varejolabs/loja-backend/pkg/mercadopago"
)

// MercadoPagoWebhook handles gateway payment notifications. Signature
// failures and malformed payloads get a 4xx so the gateway stops
// retrying; processing failures get a 5xx so it retries later.
func MercadoPagoWebhook(svc webhooksvc.Service, cfg config.MercadoPagoConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		dataID := strings.TrimSpace(r.URL.Query().Get("data.id"))
		if err := mercadopago.ValidateSignature(
			cfg.WebhookSecret,
			r.Header.Get("x-signature"),
			r.Header.Get("x-request-id"),
			dataID,
		); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var event mercadopago.WebhookEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload"))
			return
		}
		if event.Data.ID == "" {
			event.Data.ID = dataID
		}

		result, err := svc.ProcessEvent(ctx, event)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil && result != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"outcome":        string(result.Outcome),
				"gateway_status": result.GatewayStatus,
			})
			logg.Info(ctx, fmt.Sprintf("gateway event %d processed", event.ID))
		}
		responses.WriteSuccess(w, nil)
	}
}
