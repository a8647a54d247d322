package enums

import "fmt"

// WebhookDeliveryOutcome records how a single notification attempt ended.
type WebhookDeliveryOutcome string

const (
	WebhookDeliverySent   WebhookDeliveryOutcome = "sent"
	WebhookDeliveryFailed WebhookDeliveryOutcome = "failed"
)

// String implements fmt.Stringer.
func (w WebhookDeliveryOutcome) String() string {
	return string(w)
}

// WebhookTransport selects how notifications leave the process.
type WebhookTransport string

const (
	WebhookTransportSimulated WebhookTransport = "simulated"
	WebhookTransportHTTP      WebhookTransport = "http"
)

var validWebhookTransports = []WebhookTransport{
	WebhookTransportSimulated,
	WebhookTransportHTTP,
}

// IsValid reports whether the value is a known WebhookTransport.
func (w WebhookTransport) IsValid() bool {
	for _, candidate := range validWebhookTransports {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWebhookTransport converts raw input into a WebhookTransport.
func ParseWebhookTransport(value string) (WebhookTransport, error) {
	for _, candidate := range validWebhookTransports {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid webhook transport %q", value)
}
