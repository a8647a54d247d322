package payments

import (
	"context"
	"sort"
	"sync"

	pkgerrors "github.com/angelmondragon/pixmock-backend/pkg/errors"
)

// Store persists payments. Callers serialize writes per payment id.
type Store interface {
	Create(ctx context.Context, payment *Payment) error
	FindByID(ctx context.Context, id string) (*Payment, error)
	// FindByOrder returns the oldest payment referencing orderID.
	FindByOrder(ctx context.Context, orderID string) (*Payment, error)
	// Save persists a status change (status and updated_at).
	Save(ctx context.Context, payment *Payment) error
	List(ctx context.Context) ([]Payment, error)
}

type memoryStore struct {
	mu       sync.RWMutex
	payments map[string]*Payment
}

// NewMemoryStore returns a process-local Store.
func NewMemoryStore() Store {
	return &memoryStore{payments: make(map[string]*Payment)}
}

func (m *memoryStore) Create(ctx context.Context, payment *Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.payments[payment.ID]; exists {
		return pkgerrors.New(pkgerrors.CodeConflict, "payment already exists")
	}
	m.payments[payment.ID] = payment.clone()
	return nil
}

func (m *memoryStore) FindByID(ctx context.Context, id string) (*Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payment, ok := m.payments[id]
	if !ok {
		return nil, errPaymentNotFound(id)
	}
	return payment.clone(), nil
}

func (m *memoryStore) FindByOrder(ctx context.Context, orderID string) (*Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found *Payment
	for _, payment := range m.payments {
		if payment.OrderID != orderID {
			continue
		}
		if found == nil || payment.CreatedAt.Before(found.CreatedAt) {
			found = payment
		}
	}
	if found == nil {
		return nil, errNoPaymentForOrder(orderID)
	}
	return found.clone(), nil
}

func (m *memoryStore) Save(ctx context.Context, payment *Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[payment.ID]; !ok {
		return errPaymentNotFound(payment.ID)
	}
	m.payments[payment.ID] = payment.clone()
	return nil
}

func (m *memoryStore) List(ctx context.Context) ([]Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Payment, 0, len(m.payments))
	for _, payment := range m.payments {
		out = append(out, *payment.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func errPaymentNotFound(id string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found").WithDetails(map[string]any{"payment_id": id})
}

func errNoPaymentForOrder(orderID string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found for order").WithDetails(map[string]any{"order_id": orderID})
}
