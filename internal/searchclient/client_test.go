package searchclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const volumesBody = `{
  "items": [
    {
      "id": "vol-1",
      "volumeInfo": {
        "title": "Dune",
        "authors": ["Frank Herbert", "Other"],
        "categories": ["Science Fiction"],
        "averageRating": 4.5,
        "description": "Desert planet.",
        "publishedDate": "1965",
        "imageLinks": {"thumbnail": "http://img/dune.jpg"}
      }
    },
    {
      "id": "vol-2",
      "volumeInfo": {}
    }
  ]
}`

func TestSearchMapsAndDefaultsFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "dune saga" {
			t.Errorf("query not escaped/forwarded: %q", got)
		}
		if r.URL.Query().Get("key") != "k1" {
			t.Errorf("missing api key")
		}
		w.Write([]byte(volumesBody))
	}))
	defer srv.Close()

	c := New(srv.URL, "k1", time.Second)
	books := c.Search(context.Background(), "dune saga")
	if len(books) != 2 {
		t.Fatalf("expected 2 books, got %d", len(books))
	}

	full := books[0]
	if full.Title != "Dune" || full.Author != "Frank Herbert" || full.Genre != "Science Fiction" {
		t.Fatalf("unexpected mapping: %+v", full)
	}
	if full.Rating != 4.5 || full.Image != "http://img/dune.jpg" || !full.InStock || !full.FromSearch {
		t.Fatalf("unexpected mapping: %+v", full)
	}
	if full.Price < 100 || full.Price >= 1100 {
		t.Fatalf("synthetic price out of range: %v", full.Price)
	}

	empty := books[1]
	if empty.Title != "Untitled" || empty.Author != "Unknown Author" || empty.Genre != "General" {
		t.Fatalf("defaults not applied: %+v", empty)
	}
	if empty.Rating != 3.5 || empty.Image != placeholderImage || empty.Description != "No description available" {
		t.Fatalf("defaults not applied: %+v", empty)
	}
}

func TestSearchPriceIsDeterministic(t *testing.T) {
	if syntheticPrice("vol-1") != syntheticPrice("vol-1") {
		t.Fatalf("price must be stable per id")
	}
}

func TestSearchDegradesToEmpty(t *testing.T) {
	t.Run("http error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()
		if got := New(srv.URL, "k1", time.Second).Search(context.Background(), "q"); len(got) != 0 {
			t.Fatalf("expected empty result, got %d", len(got))
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{broken`))
		}))
		defer srv.Close()
		if got := New(srv.URL, "k1", time.Second).Search(context.Background(), "q"); len(got) != 0 {
			t.Fatalf("expected empty result, got %d", len(got))
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		url := srv.URL
		srv.Close()
		if got := New(url, "k1", time.Second).Search(context.Background(), "q"); len(got) != 0 {
			t.Fatalf("expected empty result, got %d", len(got))
		}
	})

	t.Run("missing api key", func(t *testing.T) {
		if got := New("", "", time.Second).Search(context.Background(), "q"); len(got) != 0 {
			t.Fatalf("expected empty result, got %d", len(got))
		}
	})
}
