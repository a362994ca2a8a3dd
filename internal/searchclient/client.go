// Package searchclient calls the external volumes search API. The
// collaborator is treated as unreliable: every failure degrades to an
// empty result and never crosses the boundary as an error.
package searchclient

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bookmart/pkg/domain"
)

const (
	defaultBaseURL   = "https://www.googleapis.com/books/v1"
	placeholderImage = "https://via.placeholder.com/150"
)

// Client queries the search API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New constructs a search client. baseURL defaults to the public
// volumes API when empty.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type volumesResponse struct {
	Items []volume `json:"items"`
}

type volume struct {
	ID         string `json:"id"`
	VolumeInfo struct {
		Title         string   `json:"title"`
		Authors       []string `json:"authors"`
		Categories    []string `json:"categories"`
		AverageRating float64  `json:"averageRating"`
		Description   string   `json:"description"`
		PublishedDate string   `json:"publishedDate"`
		ImageLinks    struct {
			Thumbnail string `json:"thumbnail"`
		} `json:"imageLinks"`
	} `json:"volumeInfo"`
}

// Search maps upstream results into Books, defaulting fields the
// upstream omits. Failures yield an empty list.
func (c *Client) Search(ctx context.Context, query string) []domain.Book {
	if strings.TrimSpace(c.apiKey) == "" {
		slog.Warn("search api key not configured")
		return nil
	}

	u := fmt.Sprintf("%s/volumes?q=%s&key=%s", c.baseURL, url.QueryEscape(query), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		slog.Warn("search request build failed", "err", err)
		return nil
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("search call failed", "err", err)
		}
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		slog.Warn("search call failed", "status", resp.StatusCode)
		return nil
	}

	var payload volumesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		slog.Warn("search response decode failed", "err", err)
		return nil
	}

	books := make([]domain.Book, 0, len(payload.Items))
	for _, item := range payload.Items {
		books = append(books, fromVolume(item))
	}
	return books
}

func fromVolume(v volume) domain.Book {
	info := v.VolumeInfo
	b := domain.Book{
		ID:              v.ID,
		Title:           info.Title,
		Author:          "Unknown Author",
		Genre:           "General",
		Rating:          info.AverageRating,
		Price:           syntheticPrice(v.ID),
		Image:           info.ImageLinks.Thumbnail,
		Description:     info.Description,
		PublicationDate: info.PublishedDate,
		InStock:         true,
		FromSearch:      true,
	}
	if b.Title == "" {
		b.Title = "Untitled"
	}
	if len(info.Authors) > 0 {
		b.Author = info.Authors[0]
	}
	if len(info.Categories) > 0 {
		b.Genre = info.Categories[0]
	}
	if b.Rating == 0 {
		b.Rating = 3.5
	}
	if b.Image == "" {
		b.Image = placeholderImage
	}
	if b.Description == "" {
		b.Description = "No description available"
	}
	return b
}

// syntheticPrice is a deterministic placeholder in the 100..1099 range.
// Search hits have no backend-committed price; see Book.FromSearch.
func syntheticPrice(id string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return float64(100 + h.Sum32()%1000)
}
