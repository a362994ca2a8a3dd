// Package session owns the authentication state machine: startup
// revalidation, login, register and logout, backed by the credential
// store and the gateway.
package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"bookmart/internal/credstore"
	"bookmart/internal/gateway"
	"bookmart/internal/token"
	"bookmart/pkg/domain"
)

const defaultErrorClearAfter = 5 * time.Second

// ErrMalformedResponse indicates the backend reported success but the
// payload failed local invariants (missing or unusable token).
var ErrMalformedResponse = errors.New("malformed server response")

// State is the auth machine state.
type State int

const (
	Unauthenticated State = iota
	Initializing
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Initializing:
		return "initializing"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	}
	return "unknown"
}

// Caller issues backend requests and returns normalized results.
type Caller interface {
	Do(ctx context.Context, method, path string, payload, out any) gateway.Result
}

// Config configures a Manager.
type Config struct {
	Gateway     Caller
	Credentials credstore.Store
	Tokens      *token.Validator

	// ErrorClearAfter bounds how long a surfaced error stays visible.
	// Defaults to 5s.
	ErrorClearAfter time.Duration
}

// Manager owns the Session exclusively; the credential store holds only
// its serialized projection.
type Manager struct {
	gw         Caller
	creds      credstore.Store
	tokens     *token.Validator
	clearAfter time.Duration

	mu       sync.Mutex
	state    State
	user     domain.User
	errMsg   string
	errTimer *time.Timer
}

// New builds a Manager in the Unauthenticated state. Wire
// gateway.OnUnauthorized to ForceLogout so any 401/403 from any call
// site invalidates this session.
func New(cfg Config) *Manager {
	tokens := cfg.Tokens
	if tokens == nil {
		tokens = &token.Validator{}
	}
	clearAfter := cfg.ErrorClearAfter
	if clearAfter <= 0 {
		clearAfter = defaultErrorClearAfter
	}
	return &Manager{
		gw:         cfg.Gateway,
		creds:      cfg.Credentials,
		tokens:     tokens,
		clearAfter: clearAfter,
	}
}

type authResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
	Token     string `json:"token"`
}

func (r authResponse) user() domain.User {
	return domain.User{ID: r.ID, Username: r.Username, Email: r.Email, CreatedAt: r.CreatedAt}
}

// Init restores a persisted session on startup. A missing or stale
// token short-circuits to Unauthenticated; otherwise the stored session
// is revalidated against /auth/me and the refreshed profile re-persisted.
// Returns the resulting state.
func (m *Manager) Init(ctx context.Context) State {
	stored, ok := m.creds.Session()
	if !ok || !m.tokens.Valid(stored.Token) {
		_ = m.creds.ClearSession()
		m.setState(Unauthenticated, domain.User{})
		return Unauthenticated
	}

	m.setState(Initializing, domain.User{})
	var user domain.User
	res := m.gw.Do(ctx, http.MethodGet, "/auth/me", nil, &user)
	if !res.Success {
		slog.Warn("session revalidation failed", "kind", res.Kind.String(), "status", res.Status)
		_ = m.creds.ClearSession()
		m.setState(Unauthenticated, domain.User{})
		return Unauthenticated
	}

	if err := m.creds.SetSession(domain.StoredSession{Token: stored.Token, User: user}); err != nil {
		slog.Warn("persist session failed", "err", err)
	}
	m.setState(Authenticated, user)
	return Authenticated
}

// Login authenticates with email and password. The returned token must
// pass local validation even on a 2xx response; a backend bug that
// omits or mints a dead token fails as ErrMalformedResponse.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	payload := map[string]string{"email": email, "password": password}
	return m.authenticate(ctx, "/auth/login", payload, "Login failed")
}

// Register creates an account; contract identical to Login.
func (m *Manager) Register(ctx context.Context, username, email, password string) error {
	payload := map[string]string{"username": username, "email": email, "password": password}
	return m.authenticate(ctx, "/auth/register", payload, "Registration failed")
}

func (m *Manager) authenticate(ctx context.Context, path string, payload any, fallback string) error {
	m.setState(Authenticating, domain.User{})
	m.ClearError()

	var resp authResponse
	res := m.gw.Do(ctx, http.MethodPost, path, payload, &resp)
	if !res.Success {
		msg := res.Err
		if msg == "" {
			msg = fallback
		}
		m.fail(msg)
		return errors.New(msg)
	}
	if !m.tokens.Valid(resp.Token) {
		m.fail("Invalid or missing token received from server")
		return ErrMalformedResponse
	}

	user := resp.user()
	if err := m.creds.SetSession(domain.StoredSession{Token: resp.Token, User: user}); err != nil {
		slog.Warn("persist session failed", "err", err)
	}
	m.setState(Authenticated, user)
	return nil
}

// Logout signs out. The backend call is best-effort; local sign-out is
// never blocked by a network failure.
func (m *Manager) Logout(ctx context.Context) {
	if stored, ok := m.creds.Session(); ok && m.tokens.Valid(stored.Token) {
		if res := m.gw.Do(ctx, http.MethodPost, "/auth/logout", nil, nil); !res.Success {
			slog.Warn("logout call failed", "kind", res.Kind.String(), "status", res.Status)
		}
	}
	_ = m.creds.ClearSession()
	m.setState(Unauthenticated, domain.User{})
	m.ClearError()
}

// ForceLogout clears the session without any network call. It is the
// subscriber for the gateway's unauthorized broadcast.
func (m *Manager) ForceLogout() {
	_ = m.creds.ClearSession()
	m.setState(Unauthenticated, domain.User{})
}

// State returns the current machine state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CurrentUser returns the authenticated user, if any.
func (m *Manager) CurrentUser() (domain.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Authenticated {
		return domain.User{}, false
	}
	return m.user, true
}

// Active reports whether an authenticated session with a still-fresh
// token exists. Callers gating mutations must re-check this after each
// network call returns.
func (m *Manager) Active() bool {
	if m.State() != Authenticated {
		return false
	}
	stored, ok := m.creds.Session()
	return ok && m.tokens.Valid(stored.Token)
}

// Error returns the current surfaced error message, if any.
func (m *Manager) Error() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errMsg
}

// ClearError drops the surfaced error and its auto-clear timer.
func (m *Manager) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearErrorLocked()
}

func (m *Manager) clearErrorLocked() {
	if m.errTimer != nil {
		m.errTimer.Stop()
		m.errTimer = nil
	}
	m.errMsg = ""
}

func (m *Manager) fail(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Unauthenticated
	m.user = domain.User{}
	if m.errTimer != nil {
		m.errTimer.Stop()
	}
	m.errMsg = msg
	m.errTimer = time.AfterFunc(m.clearAfter, m.ClearError)
}

func (m *Manager) setState(s State, user domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
	m.user = user
	if s == Authenticated {
		m.clearErrorLocked()
	}
}
