package webhooks

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/pixmock-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// Subscription is an endpoint registered to receive payment notifications.
// The secret never leaves the process.
type Subscription struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Secret    string    `json:"-"`
	HasSecret bool      `json:"has_secret"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification is the body sent for every payment status change.
type Notification struct {
	PaymentID string              `json:"payment_id"`
	OrderID   string              `json:"order_id"`
	Status    enums.PaymentStatus `json:"status"`
	Amount    decimal.Decimal     `json:"amount"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// DeliveryLogEntry records one delivery attempt. Entries are never modified.
// Payload is the exact body sent; Signature is the header value sent with it.
type DeliveryLogEntry struct {
	ID              string                       `json:"id"`
	SubscriptionID  string                       `json:"subscription_id"`
	SubscriptionURL string                       `json:"subscription_url"`
	PaymentID       string                       `json:"payment_id"`
	Status          enums.PaymentStatus          `json:"status"`
	Payload         json.RawMessage              `json:"payload"`
	Signature       string                       `json:"signature,omitempty"`
	Outcome         enums.WebhookDeliveryOutcome `json:"outcome"`
	AttemptCount    int                          `json:"attempt_count"`
	LastAttemptAt   time.Time                    `json:"last_attempt_at"`
	Error           *string                      `json:"error,omitempty"`
	HTTPStatus      *int                         `json:"http_status,omitempty"`
}
