package mercadopago

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment statuses as reported by the gateway. The reconciler maps these
// onto internal order states; anything unrecognized is treated as pending.
const (
	StatusApproved    = "approved"
	StatusPending     = "pending"
	StatusInProcess   = "in_process"
	StatusInMediation = "in_mediation"
	StatusAuthorized  = "authorized"
	StatusRejected    = "rejected"
	StatusCancelled   = "cancelled"
	StatusExpired     = "expired"
	StatusRefunded    = "refunded"
	StatusChargedBack = "charged_back"
)

// Payment is the normalized subset of the gateway payment resource we consume.
type Payment struct {
	ID                int64
	Status            string
	StatusDetail      string
	ExternalReference string
	TransactionAmount decimal.Decimal
	PaymentMethodID   string
	PixQRCode         string
	PixQRCodeBase64   string
	TicketURL         string
	BoletoURL         string
	DateCreated       time.Time
	DateApproved      *time.Time
}

// CreatePaymentParams is the payload for creating a payment at the gateway.
type CreatePaymentParams struct {
	TransactionAmount decimal.Decimal
	Description       string
	PaymentMethodID   string
	ExternalReference string
	NotificationURL   string
	PayerEmail        string
	PayerFirstName    string
}

// WebhookEvent is the notification body posted by the gateway.
type WebhookEvent struct {
	ID     int64  `json:"id"`
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

// IsPaymentEvent reports whether the notification refers to a payment resource.
func (e WebhookEvent) IsPaymentEvent() bool {
	return e.Type == "payment"
}

// paymentResponse mirrors the wire shape of the gateway payment resource.
type paymentResponse struct {
	ID                int64           `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	ExternalReference string          `json:"external_reference"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	PaymentMethodID   string          `json:"payment_method_id"`
	DateCreated       time.Time       `json:"date_created"`
	DateApproved      *time.Time      `json:"date_approved"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
			TicketURL    string `json:"ticket_url"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
	TransactionDetails struct {
		ExternalResourceURL string `json:"external_resource_url"`
	} `json:"transaction_details"`
}

func (p paymentResponse) normalize() Payment {
	return Payment{
		ID:                p.ID,
		Status:            p.Status,
		StatusDetail:      p.StatusDetail,
		ExternalReference: p.ExternalReference,
		TransactionAmount: p.TransactionAmount,
		PaymentMethodID:   p.PaymentMethodID,
		PixQRCode:         p.PointOfInteraction.TransactionData.QRCode,
		PixQRCodeBase64:   p.PointOfInteraction.TransactionData.QRCodeBase64,
		TicketURL:         p.PointOfInteraction.TransactionData.TicketURL,
		BoletoURL:         p.TransactionDetails.ExternalResourceURL,
		DateCreated:       p.DateCreated,
		DateApproved:      p.DateApproved,
	}
}
