package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/varejolabs/loja-backend/api/responses"
	ordersvc "github.com/varejolabs/loja-backend/internal/orders"
	"github.com/varejolabs/loja-backend/internal/payments"
	"github.com/varejolabs/loja-backend/pkg/enums"
	pkgerrors "github.com/varejolabs/loja-backend/pkg/errors"
	"github.com/varejolabs/loja-backend/pkg/logger"
	"github.com/varejolabs/loja-backend/pkg/pagination"
)

type orderListResponse struct {
	Orders     []ordersvc.OrderSummary `json:"orders"`
	NextCursor string                  `json:"next_cursor,omitempty"`
}

// AdminListOrders returns a cursor page of orders with optional filters.
func AdminListOrders(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		params := pagination.Params{Cursor: strings.TrimSpace(r.URL.Query().Get("cursor"))}
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit <= 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid limit"))
				return
			}
			params.Limit = limit
		}

		filters := ordersvc.OrderFilters{
			CustomerEmail: strings.TrimSpace(r.URL.Query().Get("email")),
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			filters.Status = &status
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("payment_status")); raw != "" {
			status, err := enums.ParsePaymentStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment status"))
				return
			}
			filters.PaymentStatus = &status
		}

		list, err := svc.ListOrders(r.Context(), params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summaries := make([]ordersvc.OrderSummary, 0, len(list.Orders))
		for _, order := range list.Orders {
			summaries = append(summaries, ordersvc.SummaryFromModel(order))
		}

		responses.WriteSuccess(w, orderListResponse{
			Orders:     summaries,
			NextCursor: list.NextCursor,
		})
	}
}

// AdminRecheckPayment forces a reconciliation run against the gateway.
// Support uses this when a webhook went missing or a customer disputes
// their order state.
func AdminRecheckPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		orderID, err := parseIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RefreshFromGateway(r.Context(), orderID, payments.TriggerAdmin)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, recheckResponse{
			Transitioned:          result.Outcome != payments.OutcomeNoChange,
			Outcome:               result.Outcome,
			PreviousStatus:        result.PreviousStatus,
			PreviousPaymentStatus: result.PreviousPaymentStatus,
			Status:                result.Status,
			PaymentStatus:         result.PaymentStatus,
			GatewayStatus:         result.GatewayStatus,
		})
	}
}

type recheckResponse struct {
	Transitioned          bool                `json:"transitioned"`
	Outcome               payments.Outcome    `json:"outcome"`
	PreviousStatus        enums.OrderStatus   `json:"previous_status"`
	PreviousPaymentStatus enums.PaymentStatus `json:"previous_payment_status"`
	Status                enums.OrderStatus   `json:"status"`
	PaymentStatus         enums.PaymentStatus `json:"payment_status"`
	GatewayStatus         string              `json:"gateway_status,omitempty"`
}
