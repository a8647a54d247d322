// Package types holds the JSON envelopes every gateway endpoint answers with:
// {"data": ...} on success and {"error": {code, message, details}} otherwise.
package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
