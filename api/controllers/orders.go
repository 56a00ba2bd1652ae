package controllers

import (
	"net/http"
	"strings"

	"github.com/varejolabs/loja-backend/api/middleware"
	"github.com/varejolabs/loja-backend/api/responses"
	"github.com/varejolabs/loja-backend/api/validators"
	ordersvc "github.com/varejolabs/loja-backend/internal/orders"
	"github.com/varejolabs/loja-backend/internal/payments"
	"github.com/varejolabs/loja-backend/pkg/db/models"
	"github.com/varejolabs/loja-backend/pkg/enums"
	pkgerrors "github.com/varejolabs/loja-backend/pkg/errors"
	"github.com/varejolabs/loja-backend/pkg/logger"
)

type createOrderItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

type createOrderRequest struct {
	CustomerName  string                   `json:"customer_name" validate:"required"`
	CustomerEmail string                   `json:"customer_email" validate:"required,email"`
	PaymentMethod string                   `json:"payment_method" validate:"required"`
	CouponCode    string                   `json:"coupon_code,omitempty"`
	Items         []createOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type orderResponse struct {
	Order   ordersvc.OrderSummary `json:"order"`
	Items   []orderItemResponse   `json:"items"`
	Payment paymentResponse       `json:"payment"`
}

type orderItemResponse struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

type paymentResponse struct {
	PaymentID *string `json:"payment_id,omitempty"`
	PixQRCode *string `json:"pix_qr_code,omitempty"`
	BoletoURL *string `json:"boleto_url,omitempty"`
}

func buildOrderResponse(order *models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice.StringFixed(2),
			Quantity:  item.Quantity,
		})
	}
	return orderResponse{
		Order: ordersvc.SummaryFromModel(*order),
		Items: items,
		Payment: paymentResponse{
			PaymentID: order.PaymentID,
			PixQRCode: order.PixQRCode,
			BoletoURL: order.BoletoURL,
		},
	}
}

// CreateOrder handles storefront checkout. Guests and logged-in
// customers share the endpoint; the token only pins the user ID.
func CreateOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(strings.TrimSpace(payload.PaymentMethod))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		items := make([]ordersvc.CreateOrderItemInput, 0, len(payload.Items))
		for _, item := range payload.Items {
			items = append(items, ordersvc.CreateOrderItemInput{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			})
		}

		input := ordersvc.CreateOrderInput{
			CustomerName:  payload.CustomerName,
			CustomerEmail: payload.CustomerEmail,
			PaymentMethod: method,
			CouponCode:    payload.CouponCode,
			Items:         items,
		}
		if userID := middleware.UserIDFromContext(r.Context()); userID > 0 {
			input.UserID = &userID
		}

		order, err := svc.CreateOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, buildOrderResponse(order))
	}
}

// GetOrder returns one order with its line items and payment data.
func GetOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		orderID, err := parseIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, buildOrderResponse(order))
	}
}

type applyCouponRequest struct {
	Code string `json:"code" validate:"required"`
}

// ApplyCoupon attaches a discount code to an unpaid order and reprices it.
func ApplyCoupon(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		orderID, err := parseIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload applyCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.ApplyCoupon(r.Context(), orderID, payload.Code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, buildOrderResponse(order))
	}
}

// RemoveCoupon detaches the discount code and restores the full price.
func RemoveCoupon(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		orderID, err := parseIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.RemoveCoupon(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, buildOrderResponse(order))
	}
}

type paymentStateResponse struct {
	Outcome       payments.Outcome    `json:"outcome"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	GatewayStatus string              `json:"gateway_status,omitempty"`
	PixQRCode     *string             `json:"pix_qr_code,omitempty"`
	BoletoURL     *string             `json:"boleto_url,omitempty"`
}

func buildPaymentState(result *payments.Result) paymentStateResponse {
	resp := paymentStateResponse{
		Outcome:       result.Outcome,
		Status:        result.Status,
		PaymentStatus: result.PaymentStatus,
		GatewayStatus: result.GatewayStatus,
	}
	if result.Order != nil {
		resp.PixQRCode = result.Order.PixQRCode
		resp.BoletoURL = result.Order.BoletoURL
	}
	return resp
}

// GetOrderPayment refreshes the order's payment state from the gateway.
// The storefront polls this while the buyer completes a Pix or boleto.
func GetOrderPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
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

		result, err := svc.RefreshFromGateway(r.Context(), orderID, payments.TriggerPoll)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, buildPaymentState(result))
	}
}
