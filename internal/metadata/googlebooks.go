package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lepinkainen/bookstor/internal/cache"
	"github.com/lepinkainen/bookstor/internal/ratelimit"
)

const googleBooksDefaultBaseURL = "https://www.googleapis.com/books/v1"

// GoogleBooksClient fetches metadata from the Google Books volumes
// API. An API key is optional; keyless requests use the free tier.
type GoogleBooksClient struct {
	cfg         ProviderConfig
	baseURL     string
	httpClient  *http.Client
	rateLimiter *ratelimit.Limiter
	clientOnce  sync.Once
	limiterOnce sync.Once
}

var _ Client = (*GoogleBooksClient)(nil)

// NewGoogleBooksClient creates a Google Books client from provider
// config. An empty BaseURL selects the public endpoint.
func NewGoogleBooksClient(cfg ProviderConfig) *GoogleBooksClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = googleBooksDefaultBaseURL
	}
	return &GoogleBooksClient{cfg: cfg, baseURL: baseURL}
}

func (c *GoogleBooksClient) Name() string { return c.cfg.Name }

func (c *GoogleBooksClient) getHTTPClient() *http.Client {
	c.clientOnce.Do(func() {
		if c.httpClient == nil {
			c.httpClient = &http.Client{Timeout: 10 * time.Second}
		}
	})
	return c.httpClient
}

func (c *GoogleBooksClient) getRateLimiter() *ratelimit.Limiter {
	c.limiterOnce.Do(func() {
		if c.rateLimiter == nil {
			c.rateLimiter = ratelimit.ForProvider(c.cfg.Name)
		}
	})
	return c.rateLimiter
}

// googleBooksResponse matches the volumes API response structure.
type googleBooksResponse struct {
	TotalItems int               `json:"totalItems"`
	Items      []googleBooksItem `json:"items"`
}

type googleBooksItem struct {
	ID         string `json:"id"`
	VolumeInfo struct {
		Title               string   `json:"title"`
		Subtitle            string   `json:"subtitle"`
		Authors             []string `json:"authors"`
		Publisher           string   `json:"publisher"`
		PublishedDate       string   `json:"publishedDate"`
		Description         string   `json:"description"`
		PageCount           int      `json:"pageCount"`
		Categories          []string `json:"categories"`
		IndustryIdentifiers []struct {
			Type       string `json:"type"`
			Identifier string `json:"identifier"`
		} `json:"industryIdentifiers"`
		ImageLinks struct {
			Thumbnail      string `json:"thumbnail"`
			SmallThumbnail string `json:"smallThumbnail"`
		} `json:"imageLinks"`
	} `json:"volumeInfo"`
}

// cachedGoogleBooksResult wraps parsed results for caching, so "not
// found" responses are remembered too.
type cachedGoogleBooksResult struct {
	Books    []*BookMetadata `json:"books"`
	NotFound bool            `json:"not_found"`
}

// LookupISBN fetches the provider's best record for one ISBN.
func (c *GoogleBooksClient) LookupISBN(ctx context.Context, isbnCode string) (*BookMetadata, error) {
	cached, _, err := cache.GetOrFetchWithTTL("google_books_cache", "isbn:"+isbnCode, func() (*cachedGoogleBooksResult, error) {
		return c.fetch(ctx, "isbn:"+isbnCode, 1, isbnCode)
	}, cache.SelectNegativeTTL(func(r *cachedGoogleBooksResult) bool {
		return r.NotFound
	}))
	if err != nil {
		return nil, err
	}
	if cached.NotFound || len(cached.Books) == 0 {
		return nil, nil
	}
	return cached.Books[0], nil
}

// SearchTitle runs a free-text volumes search. The API caps page
// size at 40.
func (c *GoogleBooksClient) SearchTitle(ctx context.Context, query string, limit int) ([]*BookMetadata, error) {
	if limit <= 0 || limit > 40 {
		limit = 40
	}
	cacheKey := fmt.Sprintf("q:%s:%d", query, limit)
	cached, _, err := cache.GetOrFetchWithTTL("google_books_cache", cacheKey, func() (*cachedGoogleBooksResult, error) {
		return c.fetch(ctx, query, limit, "")
	}, cache.SelectNegativeTTL(func(r *cachedGoogleBooksResult) bool {
		return r.NotFound
	}))
	if err != nil {
		return nil, err
	}
	return cached.Books, nil
}

func (c *GoogleBooksClient) fetch(ctx context.Context, query string, limit int, searchedISBN string) (*cachedGoogleBooksResult, error) {
	if err := c.getRateLimiter().Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", fmt.Sprintf("%d", limit))
	if c.cfg.APIKey != "" {
		params.Set("key", c.cfg.APIKey)
	}
	endpoint := fmt.Sprintf("%s/volumes?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.getHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var result googleBooksResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if result.TotalItems == 0 || len(result.Items) == 0 {
		return &cachedGoogleBooksResult{NotFound: true}, nil
	}

	books := make([]*BookMetadata, 0, len(result.Items))
	for _, item := range result.Items {
		if book := c.parseVolume(item, searchedISBN); book != nil {
			books = append(books, book)
		}
	}
	if len(books) == 0 {
		return &cachedGoogleBooksResult{NotFound: true}, nil
	}
	return &cachedGoogleBooksResult{Books: books}, nil
}

// parseVolume converts one volume into a BookMetadata. ISBN-13 is
// preferred from industryIdentifiers; when the response carries no
// identifier at all, the searched ISBN is trusted.
func (c *GoogleBooksClient) parseVolume(item googleBooksItem, searchedISBN string) *BookMetadata {
	info := item.VolumeInfo
	if info.Title == "" {
		return nil
	}

	extracted := ""
	for _, id := range info.IndustryIdentifiers {
		switch id.Type {
		case "ISBN_13":
			extracted = id.Identifier
		case "ISBN_10":
			if extracted == "" {
				extracted = id.Identifier
			}
		}
		if extracted != "" && id.Type == "ISBN_13" {
			break
		}
	}
	if extracted == "" {
		extracted = searchedISBN
	}

	thumbnail := info.ImageLinks.Thumbnail
	if thumbnail == "" {
		thumbnail = info.ImageLinks.SmallThumbnail
	}

	seriesName, seriesPosition := extractSeries(info.Title, info.Subtitle, info.Categories)

	return &BookMetadata{
		ISBN:           extracted,
		Title:          info.Title,
		Subtitle:       info.Subtitle,
		Authors:        info.Authors,
		Description:    info.Description,
		Publisher:      info.Publisher,
		PublishedDate:  info.PublishedDate,
		PageCount:      info.PageCount,
		Categories:     info.Categories,
		Thumbnail:      thumbnail,
		SeriesName:     seriesName,
		SeriesPosition: seriesPosition,
	}
}
