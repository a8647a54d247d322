package orders

import (
	"context"
	"sort"
	"sync"

	pkgerrors "github.com/angelmondragon/pixmock-backend/pkg/errors"
)

// Store persists orders. Update runs fn against the current row atomically and
// saves the result unless fn returns an error.
type Store interface {
	Create(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, id string, fn func(*Order) error) (*Order, error)
	List(ctx context.Context) ([]Order, error)
}

type memoryStore struct {
	mu     sync.RWMutex
	orders map[string]*Order
}

// NewMemoryStore returns a process-local Store.
func NewMemoryStore() Store {
	return &memoryStore{orders: make(map[string]*Order)}
}

func (m *memoryStore) Create(ctx context.Context, order *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.orders[order.ID]; exists {
		return pkgerrors.New(pkgerrors.CodeConflict, "order already exists")
	}
	m.orders[order.ID] = order.clone()
	return nil
}

func (m *memoryStore) FindByID(ctx context.Context, id string) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, errOrderNotFound(id)
	}
	return order.clone(), nil
}

func (m *memoryStore) Update(ctx context.Context, id string, fn func(*Order) error) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.orders[id]
	if !ok {
		return nil, errOrderNotFound(id)
	}
	working := current.clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	m.orders[id] = working
	return working.clone(), nil
}

func (m *memoryStore) List(ctx context.Context) ([]Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Order, 0, len(m.orders))
	for _, order := range m.orders {
		out = append(out, *order.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func errOrderNotFound(id string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").WithDetails(map[string]any{"order_id": id})
}
