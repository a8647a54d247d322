package payments

import (
	"maps"
	"time"

	"github.com/angelmondragon/pixmock-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// Payment is a simulated PIX charge. QRPayload is fixed at creation.
type Payment struct {
	ID             string              `json:"id" gorm:"column:id;primaryKey"`
	OrderID        string              `json:"order_id" gorm:"column:order_id"`
	Amount         decimal.Decimal     `json:"amount" gorm:"column:amount;type:numeric(14,2)"`
	DestinationKey string              `json:"destination_key" gorm:"column:destination_key"`
	Description    string              `json:"description" gorm:"column:description"`
	Status         enums.PaymentStatus `json:"status" gorm:"column:status"`
	QRPayload      string              `json:"qr_payload" gorm:"column:qr_payload"`
	QRCodeImage    string              `json:"qr_code_image" gorm:"column:qr_code_image"`
	RecipientName  string              `json:"recipient_name" gorm:"column:recipient_name"`
	Metadata       map[string]any      `json:"metadata" gorm:"column:metadata;serializer:json"`
	CreatedAt      time.Time           `json:"created_at" gorm:"column:created_at;autoCreateTime:false"`
	ExpiresAt      time.Time           `json:"expires_at" gorm:"column:expires_at"`
	UpdatedAt      *time.Time          `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime:false"`
}

func (Payment) TableName() string { return "payments" }

// Overdue reports whether a pending payment passed its expiry at now.
func (p *Payment) Overdue(now time.Time) bool {
	return p.Status == enums.PaymentStatusPending && now.After(p.ExpiresAt)
}

func (p *Payment) clone() *Payment {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Metadata = maps.Clone(p.Metadata)
	if p.UpdatedAt != nil {
		ts := *p.UpdatedAt
		cp.UpdatedAt = &ts
	}
	return &cp
}

// StandalonePaymentInput describes a payment that is not bound to an order.
// OrderID is a reference kept for the caller and is never attached.
type StandalonePaymentInput struct {
	Amount         decimal.Decimal
	DestinationKey string
	Description    string
	OrderID        string
	TTL            time.Duration
	Metadata       map[string]any
	// RecipientName is drawn from config when empty.
	RecipientName string
	// CreatedAt overrides the clock; used when seeding historical data.
	CreatedAt *time.Time
}
