package orders

import (
	"maps"
	"time"

	"github.com/angelmondragon/pixmock-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// Order is a customer purchase request. TotalAmount is computed once at creation.
type Order struct {
	ID              string            `json:"id" gorm:"primaryKey"`
	CustomerID      string            `json:"customer_id"`
	Customer        map[string]any    `json:"customer" gorm:"serializer:json"`
	LineItems       []LineItem        `json:"line_items" gorm:"serializer:json"`
	TotalAmount     decimal.Decimal   `json:"total_amount" gorm:"type:numeric(14,2)"`
	Status          enums.OrderStatus `json:"status"`
	PaymentID       *string           `json:"payment_id"`
	ShippingAddress map[string]any    `json:"shipping_address,omitempty" gorm:"serializer:json"`
	Metadata        map[string]any    `json:"metadata" gorm:"serializer:json"`
	CreatedAt       time.Time         `json:"created_at" gorm:"autoCreateTime:false"`
	UpdatedAt       *time.Time        `json:"updated_at,omitempty" gorm:"autoUpdateTime:false"`
}

func (Order) TableName() string { return "orders" }

type LineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Category  *string         `json:"category,omitempty"`
}

// Subtotal is quantity times unit price.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// HasPayment reports whether a payment was already bound to the order.
func (o *Order) HasPayment() bool {
	return o.PaymentID != nil && *o.PaymentID != ""
}

func (o *Order) clone() *Order {
	if o == nil {
		return nil
	}
	cp := *o
	cp.Customer = maps.Clone(o.Customer)
	cp.ShippingAddress = maps.Clone(o.ShippingAddress)
	cp.Metadata = maps.Clone(o.Metadata)
	if o.LineItems != nil {
		cp.LineItems = make([]LineItem, len(o.LineItems))
		copy(cp.LineItems, o.LineItems)
	}
	if o.PaymentID != nil {
		id := *o.PaymentID
		cp.PaymentID = &id
	}
	if o.UpdatedAt != nil {
		ts := *o.UpdatedAt
		cp.UpdatedAt = &ts
	}
	return &cp
}

// CreateOrderInput carries the data needed to open a new order.
type CreateOrderInput struct {
	// CustomerID is generated when empty.
	CustomerID      string
	Customer        map[string]any
	LineItems       []LineItem
	ShippingAddress map[string]any
	Metadata        map[string]any
	// CreatedAt overrides the clock; used when seeding historical data.
	CreatedAt *time.Time
}
