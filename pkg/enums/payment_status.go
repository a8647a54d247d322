package enums

import (
	"fmt"
	"strings"
)

// PaymentStatus tracks the lifecycle of a simulated PIX payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusExpired   PaymentStatus = "expired"
	PaymentStatusCanceled  PaymentStatus = "canceled"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusCompleted,
	PaymentStatusFailed,
	PaymentStatusExpired,
	PaymentStatusCanceled,
}

// legacy names used by the platform's older integrations
var paymentStatusAliases = map[string]PaymentStatus{
	"pendente":  PaymentStatusPending,
	"concluido": PaymentStatusCompleted,
	"falhou":    PaymentStatusFailed,
	"expirado":  PaymentStatusExpired,
	"cancelado": PaymentStatusCanceled,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed without an override.
func (p PaymentStatus) IsTerminal() bool {
	switch p {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusExpired, PaymentStatusCanceled:
		return true
	}
	return false
}

// PaymentStatuses lists every status in display order.
func PaymentStatuses() []PaymentStatus {
	out := make([]PaymentStatus, len(validPaymentStatuses))
	copy(out, validPaymentStatuses)
	return out
}

// ParsePaymentStatus converts raw input (case-insensitive, legacy names allowed) into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	if alias, ok := paymentStatusAliases[normalized]; ok {
		return alias, nil
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
