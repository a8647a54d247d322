package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/pixmock-backend/pkg/clock"
	"github.com/angelmondragon/pixmock-backend/pkg/enums"
	"github.com/angelmondragon/pixmock-backend/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTransport fails for urls in fail and records every call.
type stubTransport struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []string
	sigs  map[string]string
	sent  map[string][]byte
	delay func(url string) time.Duration
}

func (s *stubTransport) Deliver(ctx context.Context, sub Subscription, body []byte, signature string) (int, error) {
	if s.delay != nil {
		time.Sleep(s.delay(sub.URL))
	}
	s.mu.Lock()
	s.calls = append(s.calls, sub.URL)
	if s.sigs == nil {
		s.sigs = map[string]string{}
	}
	s.sigs[sub.URL] = signature
	if s.sent == nil {
		s.sent = map[string][]byte{}
	}
	s.sent[sub.URL] = body
	s.mu.Unlock()
	if s.fail[sub.URL] {
		return 500, errors.New("endpoint down")
	}
	return 200, nil
}

func newDispatcher(t *testing.T, transport Transport) (*Dispatcher, *Registry, *DeliveryLog) {
	t.Helper()
	clk := clock.NewManual(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	reg := NewRegistry(clk)
	log := NewDeliveryLog()
	d, err := NewDispatcher(DispatcherParams{Registry: reg, Log: log, Transport: transport, Clock: clk})
	require.NoError(t, err)
	return d, reg, log
}

func notification(status enums.PaymentStatus) Notification {
	return Notification{
		PaymentID: "pix_0000000000000001",
		OrderID:   "ped_0000000000000001",
		Status:    status,
		Amount:    decimal.RequireFromString("1500.00"),
		UpdatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewDispatcherRequiresDeps(t *testing.T) {
	_, err := NewDispatcher(DispatcherParams{})
	require.Error(t, err)
	_, err = NewDispatcher(DispatcherParams{Registry: NewRegistry(nil)})
	require.Error(t, err)
	_, err = NewDispatcher(DispatcherParams{Registry: NewRegistry(nil), Log: NewDeliveryLog()})
	require.Error(t, err)
}

func TestDispatchWithoutSubscriptionsLogsNothing(t *testing.T) {
	d, _, log := newDispatcher(t, &stubTransport{})
	assert.Empty(t, d.Dispatch(context.Background(), notification(enums.PaymentStatusCompleted)))
	assert.Zero(t, log.Len())
}

func TestDispatchOneEntryPerSubscriptionInRegistrationOrder(t *testing.T) {
	transport := &stubTransport{
		fail: map[string]bool{"https://b.example": true},
		// later registrations finish first
		delay: func(url string) time.Duration {
			if url == "https://a.example" {
				return 20 * time.Millisecond
			}
			return 0
		},
	}
	d, reg, log := newDispatcher(t, transport)
	ctx := context.Background()
	for _, url := range []string{"https://a.example", "https://b.example", "https://c.example"} {
		_, err := reg.Register(ctx, url, "")
		require.NoError(t, err)
	}

	entries := d.Dispatch(ctx, notification(enums.PaymentStatusFailed))
	require.Len(t, entries, 3)
	assert.Equal(t, entries, log.List())

	urls := []string{entries[0].SubscriptionURL, entries[1].SubscriptionURL, entries[2].SubscriptionURL}
	assert.Equal(t, []string{"https://a.example", "https://b.example", "https://c.example"}, urls)

	assert.Equal(t, enums.WebhookDeliverySent, entries[0].Outcome)
	assert.Equal(t, enums.WebhookDeliveryFailed, entries[1].Outcome)
	require.NotNil(t, entries[1].Error)
	assert.Equal(t, "endpoint down", *entries[1].Error)
	require.NotNil(t, entries[1].HTTPStatus)
	assert.Equal(t, 500, *entries[1].HTTPStatus)

	for _, entry := range entries {
		assert.Equal(t, "pix_0000000000000001", entry.PaymentID)
		assert.Equal(t, enums.PaymentStatusFailed, entry.Status)
		assert.Equal(t, 1, entry.AttemptCount)
		var body map[string]any
		require.NoError(t, json.Unmarshal(entry.Payload, &body))
		assert.Equal(t, "failed", body["status"])
		assert.Equal(t, "1500", body["amount"])
		assert.NotContains(t, body, "signature")
	}
}

func TestDispatchOnlyReachesSubscriptionsPresentAtTheTime(t *testing.T) {
	d, reg, log := newDispatcher(t, &stubTransport{})
	ctx := context.Background()

	first, err := reg.Register(ctx, "https://a.example", "")
	require.NoError(t, err)
	d.Dispatch(ctx, notification(enums.PaymentStatusCompleted))
	assert.Equal(t, 1, log.Len())

	_, err = reg.Register(ctx, "https://b.example", "")
	require.NoError(t, err)
	d.Dispatch(ctx, notification(enums.PaymentStatusCompleted))
	assert.Equal(t, 3, log.Len())

	require.NoError(t, reg.Delete(ctx, first.ID))
	d.Dispatch(ctx, notification(enums.PaymentStatusCompleted))
	assert.Equal(t, 4, log.Len())
}

func TestDispatchSignsForSubscriptionsWithSecret(t *testing.T) {
	transport := &stubTransport{}
	d, reg, _ := newDispatcher(t, transport)
	ctx := context.Background()
	_, err := reg.Register(ctx, "https://signed.example", "s3cret")
	require.NoError(t, err)
	_, err = reg.Register(ctx, "https://plain.example", "")
	require.NoError(t, err)

	entries := d.Dispatch(ctx, notification(enums.PaymentStatusCompleted))
	require.Len(t, entries, 2)

	sig := transport.sigs["https://signed.example"]
	require.NotEmpty(t, sig)
	assert.Empty(t, transport.sigs["https://plain.example"])

	// the log holds the bytes that went over the wire and the header sent with them
	assert.Equal(t, sig, entries[0].Signature)
	assert.Equal(t, []byte(transport.sent["https://signed.example"]), []byte(entries[0].Payload))
	assert.True(t, VerifySignature("s3cret", entries[0].Payload, entries[0].Signature))
	assert.NotContains(t, string(entries[0].Payload), "signature")

	assert.Empty(t, entries[1].Signature)
	assert.Equal(t, []byte(transport.sent["https://plain.example"]), []byte(entries[1].Payload))
}

func TestConcurrentDispatchesKeepLogConsistent(t *testing.T) {
	d, reg, log := newDispatcher(t, &stubTransport{})
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := reg.Register(ctx, fmt.Sprintf("https://%d.example", i), "")
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Dispatch(ctx, notification(enums.PaymentStatusCompleted))
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, log.Len())

	// each dispatch appends its block contiguously
	entries := log.List()
	for i := 0; i < len(entries); i += 4 {
		for j := 0; j < 4; j++ {
			assert.Equal(t, fmt.Sprintf("https://%d.example", j), entries[i+j].SubscriptionURL)
		}
	}
}

func TestDispatchRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewGatewayMetrics(reg)
	registry := NewRegistry(nil)
	d, err := NewDispatcher(DispatcherParams{
		Registry:  registry,
		Log:       NewDeliveryLog(),
		Transport: &stubTransport{fail: map[string]bool{"https://down.example": true}},
		Metrics:   m,
	})
	require.NoError(t, err)
	_, _ = registry.Register(context.Background(), "https://up.example", "")
	_, _ = registry.Register(context.Background(), "https://down.example", "")

	d.Dispatch(context.Background(), notification(enums.PaymentStatusExpired))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var sent, failed float64
	for _, mf := range mfs {
		if mf.GetName() != "webhook_deliveries_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == "sent" {
					sent += metric.GetCounter().GetValue()
				}
				if label.GetName() == "outcome" && label.GetValue() == "failed" {
					failed += metric.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, 1.0, sent)
	assert.Equal(t, 1.0, failed)
}
