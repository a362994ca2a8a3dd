// Package gateway is the single chokepoint for every backend call: it
// attaches bearer authorization when the stored token is still fresh,
// normalizes all outcomes into a Result, and broadcasts a
// session-invalidated signal to its subscribers on 401/403.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bookmart/internal/token"
)

const defaultTimeout = 10 * time.Second

// Kind classifies the outcome of one call.
type Kind int

const (
	KindOK Kind = iota
	KindUnauthorized
	KindClientError
	KindServerError
	KindTimeout
	KindNetworkError
	KindCancelled
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindUnauthorized:
		return "unauthorized"
	case KindClientError:
		return "client_error"
	case KindServerError:
		return "server_error"
	case KindTimeout:
		return "timeout"
	case KindNetworkError:
		return "network_error"
	case KindCancelled:
		return "cancelled"
	case KindMalformed:
		return "malformed"
	}
	return "unknown"
}

// Result is the normalized outcome of one backend call. Callers never
// see transport-specific error shapes.
type Result struct {
	Success bool
	Status  int
	Kind    Kind
	Err     string
}

// UserMessage maps a failed result to display text. Success yields "".
func (r Result) UserMessage() string {
	switch r.Kind {
	case KindOK:
		return ""
	case KindUnauthorized:
		if r.Status == http.StatusForbidden {
			return "Access forbidden. You do not have permission to perform this action."
		}
		return "Your session has expired. Please log in again."
	case KindServerError:
		return "Server error. Please try again later."
	case KindTimeout:
		return "Request timeout. Please check your connection and try again."
	case KindMalformed:
		return "Malformed server response."
	}
	if r.Err != "" {
		return r.Err
	}
	return "An unexpected error occurred"
}

// Config configures the gateway client.
type Config struct {
	BaseURL string
	Timeout time.Duration // per-request ceiling, defaults to 10s

	// TokenSource returns the currently stored token, possibly empty.
	TokenSource func() string
	Validator   *token.Validator
}

// Client calls the storefront backend over HTTP.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	tokenSource func() string
	validator   *token.Validator

	mu   sync.Mutex
	subs []func()
}

// New constructs a gateway client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	validator := cfg.Validator
	if validator == nil {
		validator = &token.Validator{}
	}
	tokenSource := cfg.TokenSource
	if tokenSource == nil {
		tokenSource = func() string { return "" }
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		tokenSource: tokenSource,
		validator:   validator,
	}
}

// OnUnauthorized registers fn to run whenever the backend answers 401
// or 403, regardless of which call triggered it.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}

// Do issues one request and decodes a JSON body into out when non-nil.
// The bearer header is attached only when the stored token is still
// fresh; a stale token is never sent.
func (c *Client) Do(ctx context.Context, method, path string, payload, out any) Result {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Result{Kind: KindNetworkError, Err: err.Error()}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return Result{Kind: KindNetworkError, Err: err.Error()}
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.tokenSource(); c.validator.Valid(tok) {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := decodeErrorMessage(resp.Body)
		if msg == "" {
			msg = resp.Status
		}
		res := Result{Status: resp.StatusCode, Err: msg}
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			res.Kind = KindUnauthorized
			c.notifyUnauthorized()
		case resp.StatusCode >= 500:
			res.Kind = KindServerError
		default:
			res.Kind = KindClientError
		}
		return res
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return Result{Status: resp.StatusCode, Kind: KindMalformed, Err: "decode response: " + err.Error()}
		}
	}
	return Result{Success: true, Status: resp.StatusCode, Kind: KindOK}
}

func (c *Client) notifyUnauthorized() {
	c.mu.Lock()
	subs := make([]func(), len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

func classifyTransport(ctx context.Context, err error) Result {
	if errors.Is(err, context.Canceled) || ctx.Err() == context.Canceled {
		return Result{Kind: KindCancelled, Err: err.Error()}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Result{Kind: KindTimeout, Err: err.Error()}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Result{Kind: KindTimeout, Err: err.Error()}
	}
	return Result{Kind: KindNetworkError, Err: err.Error()}
}

func decodeErrorMessage(r io.Reader) string {
	var errResp struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.NewDecoder(r).Decode(&errResp)
	if strings.TrimSpace(errResp.Message) != "" {
		return errResp.Message
	}
	return strings.TrimSpace(errResp.Error)
}
