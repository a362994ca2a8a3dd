package credstore

import (
	"sync"

	"bookmart/pkg/domain"
)

// MemoryStore keeps blobs in-process. Suited to tests and ephemeral runs.
type MemoryStore struct {
	mu      sync.Mutex
	session *domain.StoredSession
	cart    []domain.CartItem
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Session() (domain.StoredSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return domain.StoredSession{}, false
	}
	return *m.session, true
}

func (m *MemoryStore) SetSession(s domain.StoredSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = &s
	return nil
}

func (m *MemoryStore) ClearSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

func (m *MemoryStore) Cart() ([]domain.CartItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cart == nil {
		return nil, false
	}
	out := make([]domain.CartItem, len(m.cart))
	copy(out, m.cart)
	return out, true
}

func (m *MemoryStore) SetCart(items []domain.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cart = make([]domain.CartItem, len(items))
	copy(m.cart, items)
	return nil
}

func (m *MemoryStore) ClearCart() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cart = nil
	return nil
}
