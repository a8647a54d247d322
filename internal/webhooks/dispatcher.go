package webhooks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/pixmock-backend/pkg/clock"
	"github.com/angelmondragon/pixmock-backend/pkg/enums"
	"github.com/angelmondragon/pixmock-backend/pkg/logger"
	"github.com/angelmondragon/pixmock-backend/pkg/metrics"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defaultMaxConcurrency = 8

// DispatcherParams groups dispatcher dependencies.
type DispatcherParams struct {
	Registry       *Registry
	Log            *DeliveryLog
	Transport      Transport
	Signer         Signer
	Clock          clock.Clock
	Logger         *logger.Logger
	Metrics        *metrics.GatewayMetrics
	MaxConcurrency int
}

// Dispatcher broadcasts payment notifications to every registered subscription.
// Each status change makes exactly one attempt per subscription; failures are
// recorded in the log and never returned.
type Dispatcher struct {
	registry       *Registry
	log            *DeliveryLog
	transport      Transport
	signer         Signer
	clock          clock.Clock
	logg           *logger.Logger
	metrics        *metrics.GatewayMetrics
	maxConcurrency int
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Registry == nil {
		return nil, fmt.Errorf("webhook registry required")
	}
	if params.Log == nil {
		return nil, fmt.Errorf("delivery log required")
	}
	if params.Transport == nil {
		return nil, fmt.Errorf("webhook transport required")
	}
	if params.Signer == nil {
		params.Signer = HMACSigner{}
	}
	if params.Clock == nil {
		params.Clock = clock.System()
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.MaxConcurrency <= 0 {
		params.MaxConcurrency = defaultMaxConcurrency
	}
	return &Dispatcher{
		registry:       params.Registry,
		log:            params.Log,
		transport:      params.Transport,
		signer:         params.Signer,
		clock:          params.Clock,
		logg:           params.Logger,
		metrics:        params.Metrics,
		maxConcurrency: params.MaxConcurrency,
	}, nil
}

// Dispatch delivers n to the subscriptions registered right now and appends
// one log entry per attempt, in registration order.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) []DeliveryLogEntry {
	subs := d.registry.List(ctx)
	if len(subs) == 0 {
		return nil
	}

	entries := make([]DeliveryLogEntry, len(subs))
	var g errgroup.Group
	g.SetLimit(d.maxConcurrency)
	for i, sub := range subs {
		g.Go(func() error {
			entries[i] = d.deliver(ctx, sub, n)
			return nil
		})
	}
	_ = g.Wait()

	d.log.Append(entries...)
	return entries
}

func (d *Dispatcher) deliver(ctx context.Context, sub Subscription, n Notification) DeliveryLogEntry {
	entry := DeliveryLogEntry{
		ID:              uuid.NewString(),
		SubscriptionID:  sub.ID,
		SubscriptionURL: sub.URL,
		PaymentID:       n.PaymentID,
		Status:          n.Status,
		AttemptCount:    1,
	}

	body, err := json.Marshal(n)
	if err != nil {
		return d.finish(ctx, entry, nil, 0, fmt.Errorf("encode notification: %w", err))
	}
	if sub.Secret != "" {
		entry.Signature = d.signer.Sign(sub.Secret, body)
	}

	status, err := d.transport.Deliver(ctx, sub, body, entry.Signature)
	return d.finish(ctx, entry, body, status, err)
}

func (d *Dispatcher) finish(ctx context.Context, entry DeliveryLogEntry, payload []byte, status int, err error) DeliveryLogEntry {
	entry.Payload = payload
	entry.LastAttemptAt = d.clock.Now()
	if status != 0 {
		code := status
		entry.HTTPStatus = &code
	}

	ctx = d.logg.WithFields(d.logg.WithPaymentID(ctx, entry.PaymentID), map[string]any{
		"subscription_id": entry.SubscriptionID,
		"payment_status":  entry.Status,
	})
	if err != nil {
		msg := err.Error()
		entry.Error = &msg
		entry.Outcome = enums.WebhookDeliveryFailed
		d.logg.Warn(d.logg.WithField(ctx, "error", msg), "webhook delivery failed")
	} else {
		entry.Outcome = enums.WebhookDeliverySent
		d.logg.Debug(ctx, "webhook delivered")
	}
	d.metrics.IncDelivery(entry.Status.String(), entry.Outcome.String())
	return entry
}
