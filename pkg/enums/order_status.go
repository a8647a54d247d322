package enums

import (
	"fmt"
	"strings"
)

// OrderStatus tracks a purchase order from creation to delivery.
type OrderStatus string

const (
	OrderStatusCreated         OrderStatus = "created"
	OrderStatusAwaitingPayment OrderStatus = "awaiting_payment"
	OrderStatusPaid            OrderStatus = "paid"
	OrderStatusProcessing      OrderStatus = "processing"
	OrderStatusShipped         OrderStatus = "shipped"
	OrderStatusDelivered       OrderStatus = "delivered"
	OrderStatusCanceled        OrderStatus = "canceled"
	OrderStatusRefunded        OrderStatus = "refunded"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusCreated,
	OrderStatusAwaitingPayment,
	OrderStatusPaid,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCanceled,
	OrderStatusRefunded,
}

var orderStatusAliases = map[string]OrderStatus{
	"criado":               OrderStatusCreated,
	"aguardando_pagamento": OrderStatusAwaitingPayment,
	"pago":                 OrderStatusPaid,
	"processando":          OrderStatusProcessing,
	"enviado":              OrderStatusShipped,
	"entregue":             OrderStatusDelivered,
	"cancelado":            OrderStatusCanceled,
	"estornado":            OrderStatusRefunded,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether payment outcomes may no longer change the order.
func (o OrderStatus) IsTerminal() bool {
	switch o {
	case OrderStatusDelivered, OrderStatusCanceled, OrderStatusRefunded:
		return true
	}
	return false
}

// OrderStatuses lists every status in lifecycle order.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(validOrderStatuses))
	copy(out, validOrderStatuses)
	return out
}

// ParseOrderStatus converts raw input (case-insensitive, legacy names allowed) into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validOrderStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	if alias, ok := orderStatusAliases[normalized]; ok {
		return alias, nil
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
