package webhooks

import (
	"context"
	"strings"
	"sync"

	"github.com/angelmondragon/pixmock-backend/pkg/clock"
	pkgerrors "github.com/angelmondragon/pixmock-backend/pkg/errors"
	"github.com/google/uuid"
)

// Registry holds webhook subscriptions in registration order.
type Registry struct {
	mu    sync.RWMutex
	clock clock.Clock
	subs  []Subscription
}

func NewRegistry(clk clock.Clock) *Registry {
	if clk == nil {
		clk = clock.System()
	}
	return &Registry{clock: clk}
}

// Register adds a subscription. Only a non-empty url is required.
func (r *Registry) Register(ctx context.Context, url, secret string) (*Subscription, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "url is required").
			WithDetails(map[string]any{"field": "url"})
	}
	sub := Subscription{
		ID:        uuid.NewString(),
		URL:       url,
		Secret:    secret,
		HasSecret: secret != "",
		CreatedAt: r.clock.Now(),
	}
	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.mu.Unlock()
	return &sub, nil
}

// List returns a snapshot of the current subscriptions.
func (r *Registry) List(ctx context.Context) []Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Subscription, len(r.subs))
	copy(out, r.subs)
	return out
}

// Delete removes a subscription. Later status changes no longer reach it.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, sub := range r.subs {
		if sub.ID == id {
			r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "webhook subscription not found").
		WithDetails(map[string]any{"subscription_id": id})
}

// Count returns the number of registered subscriptions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
