package outbox

import (
	"encoding/json"
	"time"
)

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Trigger    string          `json:"trigger,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// OrderPaidData is the event payload published when an order is confirmed.
type OrderPaidData struct {
	OrderID       int64     `json:"orderId"`
	CustomerName  string    `json:"customerName"`
	CustomerEmail string    `json:"customerEmail"`
	Total         string    `json:"total"`
	PaymentMethod string    `json:"paymentMethod"`
	PaidAt        time.Time `json:"paidAt"`
}

// OrderCanceledData is published when a terminal gateway status cancels an order.
type OrderCanceledData struct {
	OrderID       int64  `json:"orderId"`
	CustomerEmail string `json:"customerEmail"`
	GatewayStatus string `json:"gatewayStatus"`
}

// OrderCreatedData is published when checkout persists a new order.
type OrderCreatedData struct {
	OrderID       int64  `json:"orderId"`
	CustomerEmail string `json:"customerEmail"`
	Total         string `json:"total"`
}
