// Package cart owns the authoritative cart view. Every mutation is
// write-through: the backend commits first, the local reducer applies
// after. The credential store holds a debounced snapshot used only for
// reload and offline display.
package cart

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"bookmart/internal/credstore"
	"bookmart/internal/gateway"
	"bookmart/pkg/domain"
)

const (
	defaultFlushDelay      = 300 * time.Millisecond
	defaultErrorClearAfter = 5 * time.Second
)

var (
	// ErrNotLoggedIn rejects cart mutations without a valid session,
	// before any network call.
	ErrNotLoggedIn = errors.New("you must be logged in to modify the cart")
	// ErrOutOfStock rejects adding an item with InStock=false, before
	// any network call.
	ErrOutOfStock = errors.New("this item is out of stock")
)

// Caller issues backend requests and returns normalized results.
type Caller interface {
	Do(ctx context.Context, method, path string, payload, out any) gateway.Result
}

// Session gates mutations on an authenticated session.
type Session interface {
	Active() bool
}

// Config configures a Synchronizer.
type Config struct {
	Gateway     Caller
	Credentials credstore.Store
	Session     Session

	// FlushDelay is the debounce window coalescing rapid snapshot
	// writes. Defaults to 300ms.
	FlushDelay time.Duration
	// ErrorClearAfter bounds how long a surfaced error stays visible.
	// Defaults to 5s.
	ErrorClearAfter time.Duration
}

// CheckoutResult is the backend's checkout acknowledgment.
type CheckoutResult struct {
	OrderID           string `json:"orderId"`
	EstimatedDelivery string `json:"estimatedDelivery"`
}

// Synchronizer holds the cart state.
type Synchronizer struct {
	gw         Caller
	creds      credstore.Store
	session    Session
	flushDelay time.Duration
	clearAfter time.Duration

	mu           sync.Mutex
	items        []domain.CartItem
	errMsg       string
	errTimer     *time.Timer
	persistTimer *time.Timer
	closed       bool
}

// New builds an empty synchronizer. Call Load to populate it.
func New(cfg Config) *Synchronizer {
	flushDelay := cfg.FlushDelay
	if flushDelay <= 0 {
		flushDelay = defaultFlushDelay
	}
	clearAfter := cfg.ErrorClearAfter
	if clearAfter <= 0 {
		clearAfter = defaultErrorClearAfter
	}
	return &Synchronizer{
		gw:         cfg.Gateway,
		creds:      cfg.Credentials,
		session:    cfg.Session,
		flushDelay: flushDelay,
		clearAfter: clearAfter,
	}
}

type addRequest struct {
	BookID   string  `json:"bookId"`
	Quantity int     `json:"quantity"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
}

type updateRequest struct {
	Quantity int `json:"quantity"`
}

// Load reconciles the cart on startup. With a valid session the
// backend wins whenever it answers; the local snapshot is only read
// when the fetch fails or no session exists (anonymous cart).
func (s *Synchronizer) Load(ctx context.Context) {
	if s.session.Active() {
		var items []domain.CartItem
		res := s.gw.Do(ctx, http.MethodGet, "/cart", nil, &items)
		if res.Success {
			s.replace(items)
			return
		}
		slog.Warn("cart fetch failed, falling back to local snapshot", "kind", res.Kind.String(), "status", res.Status)
	}
	if items, ok := s.creds.Cart(); ok {
		s.replace(items)
	}
}

// AddToCart adds one unit of a book. Stock and session are checked
// locally first; the reducer applies only after the backend confirms.
func (s *Synchronizer) AddToCart(ctx context.Context, book domain.Book) error {
	if !s.session.Active() {
		s.setError("You must be logged in to add items to the cart")
		return ErrNotLoggedIn
	}
	if !book.InStock {
		s.setError("This item is out of stock")
		return ErrOutOfStock
	}

	payload := addRequest{BookID: book.ID, Quantity: 1, Title: book.Title, Price: book.Price}
	res := s.gw.Do(ctx, http.MethodPost, "/cart/add", payload, nil)
	if !res.Success {
		s.setError(res.UserMessage())
		return errors.New(res.UserMessage())
	}
	if !s.session.Active() {
		// The session died while the call was in flight; there is no
		// authenticated cart left to apply the confirmation to.
		return ErrNotLoggedIn
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == book.ID {
			s.items[i].Quantity++
			s.schedulePersistLocked()
			return nil
		}
	}
	s.items = append(s.items, domain.CartItem{ID: book.ID, Title: book.Title, Price: book.Price, Quantity: 1})
	s.schedulePersistLocked()
	return nil
}

// RemoveFromCart drops a cart line.
func (s *Synchronizer) RemoveFromCart(ctx context.Context, bookID string) error {
	if !s.session.Active() {
		s.setError("You must be logged in to modify the cart")
		return ErrNotLoggedIn
	}

	res := s.gw.Do(ctx, http.MethodDelete, "/cart/"+bookID, nil, nil)
	if !res.Success {
		s.setError(res.UserMessage())
		return errors.New(res.UserMessage())
	}
	if !s.session.Active() {
		return ErrNotLoggedIn
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(bookID)
	s.schedulePersistLocked()
	return nil
}

// UpdateQuantity sets a line's quantity. Zero or negative quantities
// are removals, not errors.
func (s *Synchronizer) UpdateQuantity(ctx context.Context, bookID string, quantity int) error {
	if quantity <= 0 {
		return s.RemoveFromCart(ctx, bookID)
	}
	if !s.session.Active() {
		s.setError("You must be logged in to modify the cart")
		return ErrNotLoggedIn
	}

	res := s.gw.Do(ctx, http.MethodPut, "/cart/update/"+bookID, updateRequest{Quantity: quantity}, nil)
	if !res.Success {
		s.setError(res.UserMessage())
		return errors.New(res.UserMessage())
	}
	if !s.session.Active() {
		return ErrNotLoggedIn
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == bookID {
			s.items[i].Quantity = quantity
			break
		}
	}
	s.schedulePersistLocked()
	return nil
}

// Checkout places the order. On success both the in-memory cart and
// the persisted snapshot are cleared atomically as seen by any
// subsequent read: the pending debounce timer is stopped, not left to
// race the clear.
func (s *Synchronizer) Checkout(ctx context.Context) (CheckoutResult, error) {
	if !s.session.Active() {
		s.setError("You must be logged in to check out")
		return CheckoutResult{}, ErrNotLoggedIn
	}

	var result CheckoutResult
	res := s.gw.Do(ctx, http.MethodPost, "/cart/checkout", nil, &result)
	if !res.Success {
		s.setError(res.UserMessage())
		return CheckoutResult{}, errors.New(res.UserMessage())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopPersistLocked()
	s.items = nil
	if err := s.creds.ClearCart(); err != nil {
		slog.Warn("clear cart snapshot failed", "err", err)
	}
	return result, nil
}

// Items returns the current cart lines.
func (s *Synchronizer) Items() []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CartItem, len(s.items))
	copy(out, s.items)
	return out
}

// Total is the derived sum of price*quantity.
func (s *Synchronizer) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total float64
	for _, item := range s.items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

// ItemCount is the derived sum of quantities.
func (s *Synchronizer) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, item := range s.items {
		count += item.Quantity
	}
	return count
}

// Error returns the current surfaced error message, if any.
func (s *Synchronizer) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// ClearError drops the surfaced error and its auto-clear timer.
func (s *Synchronizer) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errTimer != nil {
		s.errTimer.Stop()
		s.errTimer = nil
	}
	s.errMsg = ""
}

// Flush forces any pending snapshot write immediately. Used on logout
// and teardown so a pending timer never races a state change.
func (s *Synchronizer) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopPersistLocked()
	s.persistLocked()
}

// Close flushes the snapshot and releases timers. The synchronizer
// must not be used afterwards.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopPersistLocked()
	s.persistLocked()
	if s.errTimer != nil {
		s.errTimer.Stop()
		s.errTimer = nil
	}
	s.closed = true
}

func (s *Synchronizer) replace(items []domain.CartItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make([]domain.CartItem, len(items))
	copy(s.items, items)
	s.schedulePersistLocked()
}

func (s *Synchronizer) removeLocked(bookID string) {
	kept := s.items[:0]
	for _, item := range s.items {
		if item.ID != bookID {
			kept = append(kept, item)
		}
	}
	s.items = kept
}

// schedulePersistLocked coalesces rapid successive changes into one
// snapshot write after the flush delay.
func (s *Synchronizer) schedulePersistLocked() {
	if s.closed {
		return
	}
	if s.persistTimer != nil {
		s.persistTimer.Stop()
	}
	s.persistTimer = time.AfterFunc(s.flushDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.persistLocked()
	})
}

func (s *Synchronizer) stopPersistLocked() {
	if s.persistTimer != nil {
		s.persistTimer.Stop()
		s.persistTimer = nil
	}
}

func (s *Synchronizer) persistLocked() {
	if s.closed {
		return
	}
	items := make([]domain.CartItem, len(s.items))
	copy(items, s.items)
	if err := s.creds.SetCart(items); err != nil {
		slog.Warn("cart snapshot write failed", "err", err)
	}
}

func (s *Synchronizer) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errTimer != nil {
		s.errTimer.Stop()
	}
	s.errMsg = msg
	s.errTimer = time.AfterFunc(s.clearAfter, s.ClearError)
}
