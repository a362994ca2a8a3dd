package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func freshToken(t *testing.T) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func TestDoAttachesBearerOnlyForFreshToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.Header.Get("X-Request-Id") == "" {
			t.Errorf("missing X-Request-Id header")
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	current := freshToken(t)
	c := New(Config{BaseURL: srv.URL, TokenSource: func() string { return current }})

	if res := c.Do(context.Background(), http.MethodGet, "/books", nil, nil); !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if gotAuth != "Bearer "+current {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}

	current = "stale-garbage"
	if res := c.Do(context.Background(), http.MethodGet, "/books", nil, nil); !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if gotAuth != "" {
		t.Fatalf("stale token must not be sent, got %q", gotAuth)
	}
}

func TestDoClassifiesStatuses(t *testing.T) {
	cases := []struct {
		status int
		kind   Kind
	}{
		{http.StatusUnauthorized, KindUnauthorized},
		{http.StatusForbidden, KindUnauthorized},
		{http.StatusNotFound, KindClientError},
		{http.StatusConflict, KindClientError},
		{http.StatusInternalServerError, KindServerError},
		{http.StatusBadGateway, KindServerError},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		}))
		c := New(Config{BaseURL: srv.URL})
		res := c.Do(context.Background(), http.MethodGet, "/x", nil, nil)
		srv.Close()
		if res.Success || res.Kind != tc.kind || res.Status != tc.status {
			t.Fatalf("status %d: got %+v, want kind %v", tc.status, res, tc.kind)
		}
	}
}

func TestDoNotifiesSubscribersOnUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	fired := 0
	c.OnUnauthorized(func() { fired++ })
	c.OnUnauthorized(func() { fired++ })

	c.Do(context.Background(), http.MethodPost, "/cart/add", map[string]any{"bookId": "b1"}, nil)
	if fired != 2 {
		t.Fatalf("expected both subscribers notified once, fired=%d", fired)
	}
}

func TestDoPrefersServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"email already taken"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	res := c.Do(context.Background(), http.MethodPost, "/auth/register", map[string]string{}, nil)
	if res.Err != "email already taken" {
		t.Fatalf("expected server message, got %q", res.Err)
	}
}

func TestDoClassifiesTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	res := c.Do(context.Background(), http.MethodGet, "/books", nil, nil)
	if res.Kind != KindTimeout {
		t.Fatalf("expected timeout, got %+v", res)
	}
}

func TestDoClassifiesCancellation(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	res := c.Do(ctx, http.MethodGet, "/books", nil, nil)
	if res.Kind != KindCancelled {
		t.Fatalf("expected cancelled, got %+v", res)
	}
}

func TestDoClassifiesNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(Config{BaseURL: url})
	res := c.Do(context.Background(), http.MethodGet, "/books", nil, nil)
	if res.Kind != KindNetworkError {
		t.Fatalf("expected network error, got %+v", res)
	}
}

func TestDoClassifiesMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{broken`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	var out map[string]any
	res := c.Do(context.Background(), http.MethodGet, "/books", nil, &out)
	if res.Kind != KindMalformed || res.Success {
		t.Fatalf("expected malformed, got %+v", res)
	}
}

func TestUserMessageByKind(t *testing.T) {
	cases := []struct {
		res  Result
		want string
	}{
		{Result{Kind: KindOK, Success: true}, ""},
		{Result{Kind: KindUnauthorized, Status: 401}, "Your session has expired. Please log in again."},
		{Result{Kind: KindUnauthorized, Status: 403}, "Access forbidden. You do not have permission to perform this action."},
		{Result{Kind: KindServerError, Status: 500}, "Server error. Please try again later."},
		{Result{Kind: KindTimeout}, "Request timeout. Please check your connection and try again."},
		{Result{Kind: KindClientError, Err: "no such book"}, "no such book"},
		{Result{Kind: KindNetworkError}, "An unexpected error occurred"},
	}
	for _, tc := range cases {
		if got := tc.res.UserMessage(); got != tc.want {
			t.Fatalf("kind %v: got %q want %q", tc.res.Kind, got, tc.want)
		}
	}
}
