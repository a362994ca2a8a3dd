// Package catalog owns the visible book list as a function of a
// free-text query and a genre filter. Empty queries read the backend
// catalog; non-empty queries delegate to the external search
// collaborator. Superseded fetches are cancelled and their late results
// discarded by a generation guard.
package catalog

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"bookmart/internal/gateway"
	"bookmart/pkg/domain"
)

const (
	defaultErrorClearAfter = 5 * time.Second
	placeholderImage       = "https://via.placeholder.com/150"
)

var (
	// ErrNotLoggedIn rejects catalog mutations without a valid session,
	// before any network call.
	ErrNotLoggedIn = errors.New("please log in to perform this action")
	// ErrInvalidBook rejects create/update payloads that fail local
	// validation, before any network call.
	ErrInvalidBook = errors.New("invalid book data: missing required fields")
	// ErrMissingID rejects update/delete without a book ID.
	ErrMissingID = errors.New("missing book ID")
)

// Caller issues backend requests and returns normalized results.
type Caller interface {
	Do(ctx context.Context, method, path string, payload, out any) gateway.Result
}

// Searcher is the external search collaborator. It degrades to an
// empty list on failure and never returns an error.
type Searcher interface {
	Search(ctx context.Context, query string) []domain.Book
}

// Session gates catalog mutations on an authenticated session.
type Session interface {
	Active() bool
}

// Config configures a Store.
type Config struct {
	Gateway Caller
	Search  Searcher
	Session Session

	// ErrorClearAfter bounds how long a surfaced error stays visible.
	// Defaults to 5s.
	ErrorClearAfter time.Duration
}

// Store holds the book listing state.
type Store struct {
	gw         Caller
	search     Searcher
	session    Session
	clearAfter time.Duration

	// Concurrent consumers of the backend catalog share one call;
	// results are reconciled through the generation guard, so shared
	// flights are never cancelled mid-air.
	group singleflight.Group

	mu       sync.Mutex
	books    []domain.Book
	query    string
	genre    string
	gen      uint64
	cancel   context.CancelFunc
	errMsg   string
	errTimer *time.Timer
}

// New builds an empty store.
func New(cfg Config) *Store {
	clearAfter := cfg.ErrorClearAfter
	if clearAfter <= 0 {
		clearAfter = defaultErrorClearAfter
	}
	return &Store{
		gw:         cfg.Gateway,
		search:     cfg.Search,
		session:    cfg.Session,
		clearAfter: clearAfter,
	}
}

// SetQuery records a new query, cancels the fetch tied to the previous
// one and starts a fetch for the new value in the background.
func (s *Store) SetQuery(q string) {
	s.mu.Lock()
	if q == s.query {
		s.mu.Unlock()
		return
	}
	s.query = q
	gen, ctx := s.restartLocked(context.Background())
	s.mu.Unlock()
	go s.fetch(ctx, gen, q)
}

// Refresh synchronously fetches the list for the current query.
func (s *Store) Refresh(ctx context.Context) {
	s.mu.Lock()
	q := s.query
	gen, fctx := s.restartLocked(ctx)
	s.mu.Unlock()
	s.fetch(fctx, gen, q)
}

// restartLocked supersedes any in-flight fetch: the old context is
// cancelled and the generation bumped so a late completion cannot
// overwrite newer state.
func (s *Store) restartLocked(parent context.Context) (uint64, context.Context) {
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.gen++
	return s.gen, ctx
}

func (s *Store) fetch(ctx context.Context, gen uint64, query string) {
	var books []domain.Book
	if strings.TrimSpace(query) == "" {
		v, err, _ := s.group.Do("backend-catalog", func() (any, error) {
			var out []domain.Book
			// Deliberately not ctx: the flight may be shared with a
			// newer consumer; stale results die at the guard instead.
			res := s.gw.Do(context.Background(), http.MethodGet, "/books", nil, &out)
			if !res.Success {
				return nil, errors.New(res.UserMessage())
			}
			return out, nil
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.setError("Failed to fetch books")
			return
		}
		books = v.([]domain.Book)
	} else {
		books = s.search.Search(ctx, query)
		if ctx.Err() != nil {
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.books = books
}

// SetGenreFilter narrows FilteredBooks to one exact genre; empty clears.
func (s *Store) SetGenreFilter(genre string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.genre = genre
}

// Query returns the current free-text query.
func (s *Store) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Books returns the unfiltered list.
func (s *Store) Books() []domain.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Book, len(s.books))
	copy(out, s.books)
	return out
}

// FilteredBooks applies the query (case-insensitive substring on
// title/author/genre) and the exact genre filter.
func (s *Store) FilteredBooks() []domain.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	query := strings.ToLower(s.query)
	out := make([]domain.Book, 0, len(s.books))
	for _, b := range s.books {
		if query != "" && !matchesQuery(b, query) {
			continue
		}
		if s.genre != "" && b.Genre != s.genre {
			continue
		}
		out = append(out, b)
	}
	return out
}

func matchesQuery(b domain.Book, lowered string) bool {
	return strings.Contains(strings.ToLower(b.Title), lowered) ||
		strings.Contains(strings.ToLower(b.Author), lowered) ||
		strings.Contains(strings.ToLower(b.Genre), lowered)
}

// Genres returns the distinct sorted genre list of the current books.
func (s *Store) Genres() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{}, len(s.books))
	out := make([]string, 0, len(s.books))
	for _, b := range s.books {
		if _, ok := seen[b.Genre]; ok {
			continue
		}
		seen[b.Genre] = struct{}{}
		out = append(out, b.Genre)
	}
	sort.Strings(out)
	return out
}

// AddBook creates a catalog entry through the backend and appends it
// locally only after the backend confirms.
func (s *Store) AddBook(ctx context.Context, b domain.Book) error {
	if err := s.requireSession(); err != nil {
		return err
	}
	if strings.TrimSpace(b.Title) == "" || strings.TrimSpace(b.Author) == "" || b.Price <= 0 {
		s.setError(ErrInvalidBook.Error())
		return ErrInvalidBook
	}
	if strings.TrimSpace(b.Image) == "" {
		b.Image = placeholderImage
	}

	var created domain.Book
	res := s.gw.Do(ctx, http.MethodPost, "/books", b, &created)
	if !res.Success {
		s.setError(res.UserMessage())
		return errors.New(res.UserMessage())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.books = append(s.books, created)
	return nil
}

// UpdateBook replaces a catalog entry through the backend.
func (s *Store) UpdateBook(ctx context.Context, b domain.Book) error {
	if err := s.requireSession(); err != nil {
		return err
	}
	if strings.TrimSpace(b.ID) == "" {
		return ErrMissingID
	}

	var updated domain.Book
	res := s.gw.Do(ctx, http.MethodPut, "/books/"+b.ID, b, &updated)
	if !res.Success {
		s.setError(res.UserMessage())
		return errors.New(res.UserMessage())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.books {
		if s.books[i].ID == updated.ID {
			s.books[i] = updated
			break
		}
	}
	return nil
}

// DeleteBook removes a catalog entry through the backend.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	if err := s.requireSession(); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return ErrMissingID
	}

	res := s.gw.Do(ctx, http.MethodDelete, "/books/"+id, nil, nil)
	if !res.Success {
		s.setError(res.UserMessage())
		return errors.New(res.UserMessage())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.books[:0]
	for _, b := range s.books {
		if b.ID != id {
			kept = append(kept, b)
		}
	}
	s.books = kept
	return nil
}

func (s *Store) requireSession() error {
	if s.session != nil && !s.session.Active() {
		s.setError("Please log in to perform this action")
		return ErrNotLoggedIn
	}
	return nil
}

// Error returns the current surfaced error message, if any.
func (s *Store) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// ClearError drops the surfaced error and its auto-clear timer.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errTimer != nil {
		s.errTimer.Stop()
		s.errTimer = nil
	}
	s.errMsg = ""
}

func (s *Store) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errTimer != nil {
		s.errTimer.Stop()
	}
	s.errMsg = msg
	s.errTimer = time.AfterFunc(s.clearAfter, s.ClearError)
}

// Close cancels any in-flight fetch and stops timers.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	if s.errTimer != nil {
		s.errTimer.Stop()
		s.errTimer = nil
	}
}
