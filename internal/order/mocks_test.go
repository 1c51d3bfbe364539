package order

import (
	"context"
	"sync"
)

// MockOrderRepo is an in-memory OrderRepo with overridable methods.
type MockOrderRepo struct {
	mu         sync.Mutex
	orders     map[string]*Order
	saves      int
	GetFunc    func(ctx context.Context, id string) (*Order, error)
	SaveFunc   func(ctx context.Context, order *Order) error
	ListFunc   func(ctx context.Context) ([]*Order, error)
	ByUserFunc func(ctx context.Context, user string) ([]*Order, error)
}

func NewMockOrderRepo(orders ...*Order) *MockOrderRepo {
	m := &MockOrderRepo{orders: make(map[string]*Order)}
	for _, o := range orders {
		m.orders[o.ID()] = o
	}
	return m
}

func (m *MockOrderRepo) Get(ctx context.Context, id string) (*Order, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	cp.Items = append([]OrderItem(nil), o.Items...)
	return &cp, nil
}

func (m *MockOrderRepo) Save(ctx context.Context, order *Order) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, order)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.orders[order.ID()] = order
	return nil
}

func (m *MockOrderRepo) ListOpen(ctx context.Context) ([]*Order, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Order
	for _, o := range m.orders {
		if !o.Done {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *MockOrderRepo) ListByUser(ctx context.Context, user string) ([]*Order, error) {
	if m.ByUserFunc != nil {
		return m.ByUserFunc(ctx, user)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Order
	for _, o := range m.orders {
		if o.User == user {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *MockOrderRepo) stored(id string) *Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}
