package payments

import (
	"github.com/varejolabs/loja-backend/pkg/enums"
	"github.com/varejolabs/loja-backend/pkg/mercadopago"
)

// MapStatus translates a gateway payment status into the internal order and
// payment status pair. The mapping is total: any status the gateway adds in
// the future degrades to the pending pair instead of failing.
func MapStatus(gatewayStatus string) (enums.OrderStatus, enums.PaymentStatus) {
	switch gatewayStatus {
	case mercadopago.StatusApproved:
		return enums.OrderStatusPaid, enums.PaymentStatusPaid
	case mercadopago.StatusPending,
		mercadopago.StatusInProcess,
		mercadopago.StatusInMediation,
		mercadopago.StatusAuthorized:
		return enums.OrderStatusPending, enums.PaymentStatusPending
	case mercadopago.StatusRejected,
		mercadopago.StatusCancelled,
		mercadopago.StatusExpired,
		mercadopago.StatusRefunded,
		mercadopago.StatusChargedBack:
		return enums.OrderStatusCanceled, enums.PaymentStatusPending
	default:
		return enums.OrderStatusPending, enums.PaymentStatusPending
	}
}
