package ids

import (
	"strings"

	"github.com/google/uuid"
)

const (
	OrderPrefix    = "ped_"
	PaymentPrefix  = "pix_"
	CustomerPrefix = "cli_"
)

// New returns prefix followed by 16 lowercase hex characters from a random UUID.
func New(prefix string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + hex[:16]
}

func NewOrderID() string    { return New(OrderPrefix) }
func NewPaymentID() string  { return New(PaymentPrefix) }
func NewCustomerID() string { return New(CustomerPrefix) }
