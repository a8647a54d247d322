package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/angelmondragon/pixmock-backend/pkg/clock"
	"github.com/angelmondragon/pixmock-backend/pkg/config"
	"github.com/angelmondragon/pixmock-backend/pkg/enums"
)

const (
	SignatureHeader = "X-Pix-Signature"
	EventHeader     = "X-Pix-Event"
)

// Transport performs a single delivery attempt and reports the HTTP status
// (zero when no response was received).
type Transport interface {
	Deliver(ctx context.Context, sub Subscription, body []byte, signature string) (int, error)
}

// Signer derives the signature for a payload from the subscription secret.
type Signer interface {
	Sign(secret string, body []byte) string
}

// HMACSigner signs with hex encoded HMAC-SHA256.
type HMACSigner struct{}

func (HMACSigner) Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signature against body in constant time.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected := HMACSigner{}.Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

var errSimulatedFailure = errors.New("simulated delivery failure")

// SimulatedTransport never leaves the process; a weighted draw decides the outcome.
type SimulatedTransport struct {
	random       clock.Random
	successRatio float64
}

func NewSimulatedTransport(random clock.Random, successRatio float64) *SimulatedTransport {
	return &SimulatedTransport{random: random, successRatio: successRatio}
}

func (t *SimulatedTransport) Deliver(ctx context.Context, sub Subscription, body []byte, signature string) (int, error) {
	if t.random.Float64() < t.successRatio {
		return http.StatusOK, nil
	}
	return http.StatusServiceUnavailable, errSimulatedFailure
}

// HTTPTransport POSTs the JSON payload to the subscription url.
type HTTPTransport struct {
	client *http.Client
}

func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPTransport{client: client}
}

func (t *HTTPTransport) Deliver(ctx context.Context, sub Subscription, body []byte, signature string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "pixmock-webhooks/1.0")
	req.Header.Set(EventHeader, "payment.status_changed")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// NewTransport builds the transport selected in config.
func NewTransport(cfg config.WebhooksConfig, random clock.Random) (Transport, error) {
	kind, err := enums.ParseWebhookTransport(cfg.Transport)
	if err != nil {
		return nil, err
	}
	switch kind {
	case enums.WebhookTransportHTTP:
		return NewHTTPTransport(&http.Client{Timeout: cfg.HTTPTimeout}), nil
	default:
		if random == nil {
			return nil, fmt.Errorf("random source required for simulated transport")
		}
		return NewSimulatedTransport(random, cfg.SuccessRatio), nil
	}
}
