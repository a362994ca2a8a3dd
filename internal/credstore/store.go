// Package credstore persists the session projection and the cart
// snapshot as opaque JSON blobs. It is a best-effort mirror for reload
// and offline display, never a source of truth once the backend is
// reachable. Corrupt entries are discarded on read, not fatal.
package credstore

import "bookmart/pkg/domain"

// Store is the persistence medium behind the data layer. Reads report
// ok=false for missing or corrupt entries.
type Store interface {
	Session() (domain.StoredSession, bool)
	SetSession(domain.StoredSession) error
	ClearSession() error

	Cart() ([]domain.CartItem, bool)
	SetCart([]domain.CartItem) error
	ClearCart() error
}
