package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lepinkainen/bookstor/internal/cache"
	"github.com/lepinkainen/bookstor/internal/ratelimit"
)

// fieldAliases maps each canonical field to the key names providers
// are known to use for it. The generic parser consults this table in
// order; the first present non-empty alias wins.
var fieldAliases = map[string][]string{
	"title":          {"title", "name", "book_title"},
	"subtitle":       {"subtitle", "subTitle"},
	"authors":        {"authors", "author", "author_name", "creators"},
	"description":    {"description", "summary", "synopsis"},
	"publisher":      {"publisher", "publisherName"},
	"published_date": {"publishedDate", "published_date", "publication_date", "publish_date", "date_published"},
	"page_count":     {"pageCount", "page_count", "pages", "number_of_pages"},
	"categories":     {"categories", "genres", "subjects"},
	"thumbnail":      {"thumbnail", "cover", "image", "cover_url"},
	"isbn":           {"isbn", "isbn13", "isbn_13"},
}

// listKeys are the conventional wrapper keys for multi-result
// responses, tried in order.
var listKeys = []string{"items", "docs", "results"}

// parseGenericBook maps one JSON object to a BookMetadata using the
// alias table. Unrecognized keys are ignored; a result without a
// title is unusable and yields nil.
func parseGenericBook(node map[string]any) *BookMetadata {
	// Google-style responses nest the fields under a volume wrapper.
	if wrapped, ok := node["volumeInfo"].(map[string]any); ok {
		merged := make(map[string]any, len(node)+len(wrapped))
		for k, v := range node {
			merged[k] = v
		}
		for k, v := range wrapped {
			merged[k] = v
		}
		node = merged
	}

	book := &BookMetadata{}
	for field, aliases := range fieldAliases {
		for _, key := range aliases {
			value, ok := node[key]
			if !ok || value == nil {
				continue
			}
			if applyGenericField(book, field, value) {
				break
			}
		}
	}

	// imageLinks is a nested structure, not a plain string alias.
	if book.Thumbnail == "" {
		if links, ok := node["imageLinks"].(map[string]any); ok {
			book.Thumbnail = firstString(links, "thumbnail", "smallThumbnail")
		}
	}

	if book.Title == "" {
		return nil
	}
	return book
}

// parseGenericList extracts candidate objects from a multi-result
// response: a top-level list under a conventional key, or the
// response itself when it is already a single book object.
func parseGenericList(data map[string]any) []*BookMetadata {
	for _, key := range listKeys {
		items, ok := data[key].([]any)
		if !ok {
			continue
		}
		var books []*BookMetadata
		for _, item := range items {
			node, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if book := parseGenericBook(node); book != nil {
				books = append(books, book)
			}
		}
		return books
	}
	if book := parseGenericBook(data); book != nil {
		return []*BookMetadata{book}
	}
	return nil
}

func applyGenericField(book *BookMetadata, field string, value any) bool {
	switch field {
	case "title":
		book.Title = toString(value)
		return book.Title != ""
	case "subtitle":
		book.Subtitle = toString(value)
		return book.Subtitle != ""
	case "authors":
		book.Authors = toStringSlice(value)
		return len(book.Authors) > 0
	case "description":
		book.Description = toString(value)
		return book.Description != ""
	case "publisher":
		book.Publisher = toString(value)
		return book.Publisher != ""
	case "published_date":
		book.PublishedDate = toString(value)
		return book.PublishedDate != ""
	case "page_count":
		book.PageCount = toInt(value)
		return book.PageCount > 0
	case "categories":
		book.Categories = toStringSlice(value)
		return len(book.Categories) > 0
	case "thumbnail":
		book.Thumbnail = toString(value)
		return book.Thumbnail != ""
	case "isbn":
		book.ISBN = toString(value)
		return book.ISBN != ""
	}
	return false
}

// toString accepts strings and numbers; anything else is absent.
func toString(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// toStringSlice accepts a single string, a list of strings, or a list
// of objects with a "name" field (contributor shapes).
func toStringSlice(value any) []string {
	switch v := value.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
	case []any:
		var out []string
		for _, item := range v {
			switch entry := item.(type) {
			case string:
				if s := strings.TrimSpace(entry); s != "" {
					out = append(out, s)
				}
			case map[string]any:
				if name := firstString(entry, "name"); name != "" {
					out = append(out, name)
				}
			}
		}
		return out
	}
	return nil
}

func toInt(value any) int {
	switch v := value.(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return 0
}

func firstString(node map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := node[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// GenericClient talks to a custom provider that follows one of the
// common book-API conventions. It probes a small set of known URL
// shapes and parses whatever comes back with the alias table.
type GenericClient struct {
	cfg         ProviderConfig
	httpClient  *http.Client
	rateLimiter *ratelimit.Limiter
	clientOnce  sync.Once
	limiterOnce sync.Once
}

var _ Client = (*GenericClient)(nil)

// NewGenericClient creates a client for a custom integration.
func NewGenericClient(cfg ProviderConfig) *GenericClient {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &GenericClient{cfg: cfg}
}

func (c *GenericClient) Name() string { return c.cfg.Name }

func (c *GenericClient) getHTTPClient() *http.Client {
	c.clientOnce.Do(func() {
		if c.httpClient == nil {
			c.httpClient = &http.Client{Timeout: 10 * time.Second}
		}
	})
	return c.httpClient
}

func (c *GenericClient) getRateLimiter() *ratelimit.Limiter {
	c.limiterOnce.Do(func() {
		if c.rateLimiter == nil {
			c.rateLimiter = ratelimit.ForProvider(c.cfg.Name)
		}
	})
	return c.rateLimiter
}

// cachedGenericResult is the cache payload for generic providers. All
// of them share one table; keys carry the provider name as prefix.
type cachedGenericResult struct {
	Books    []*BookMetadata `json:"books"`
	NotFound bool            `json:"not_found"`
}

// LookupISBN probes the common ISBN endpoint shapes in order and
// returns the first parseable result.
func (c *GenericClient) LookupISBN(ctx context.Context, isbnCode string) (*BookMetadata, error) {
	if c.cfg.BaseURL == "" {
		return nil, nil
	}

	cacheKey := fmt.Sprintf("%s:isbn:%s", c.cfg.Name, isbnCode)
	cached, _, err := cache.GetOrFetchWithTTL("generic_cache", cacheKey, func() (*cachedGenericResult, error) {
		book, err := c.lookupISBN(ctx, isbnCode)
		if err != nil {
			return nil, err
		}
		if book == nil {
			return &cachedGenericResult{NotFound: true}, nil
		}
		return &cachedGenericResult{Books: []*BookMetadata{book}}, nil
	}, cache.SelectNegativeTTL(func(r *cachedGenericResult) bool {
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

func (c *GenericClient) lookupISBN(ctx context.Context, isbnCode string) (*BookMetadata, error) {
	candidates := []string{
		fmt.Sprintf("%s/isbn/%s", c.cfg.BaseURL, url.PathEscape(isbnCode)),
		fmt.Sprintf("%s/search?isbn=%s", c.cfg.BaseURL, url.QueryEscape(isbnCode)),
		fmt.Sprintf("%s/volumes?q=isbn:%s", c.cfg.BaseURL, url.QueryEscape(isbnCode)),
	}

	var lastErr error
	for _, endpoint := range candidates {
		data, err := c.fetchJSON(ctx, endpoint)
		if err != nil {
			lastErr = err
			continue
		}
		books := parseGenericList(data)
		if len(books) > 0 {
			if books[0].ISBN == "" {
				books[0].ISBN = isbnCode
			}
			return books[0], nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

// SearchTitle probes the common search endpoint shapes in order.
func (c *GenericClient) SearchTitle(ctx context.Context, query string, limit int) ([]*BookMetadata, error) {
	if c.cfg.BaseURL == "" {
		return nil, nil
	}

	cacheKey := fmt.Sprintf("%s:q:%s:%d", c.cfg.Name, query, limit)
	cached, _, err := cache.GetOrFetchWithTTL("generic_cache", cacheKey, func() (*cachedGenericResult, error) {
		books, err := c.searchTitle(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		if len(books) == 0 {
			return &cachedGenericResult{NotFound: true}, nil
		}
		return &cachedGenericResult{Books: books}, nil
	}, cache.SelectNegativeTTL(func(r *cachedGenericResult) bool {
		return r.NotFound
	}))
	if err != nil {
		return nil, err
	}
	return cached.Books, nil
}

func (c *GenericClient) searchTitle(ctx context.Context, query string, limit int) ([]*BookMetadata, error) {
	escaped := url.QueryEscape(query)
	candidates := []string{
		fmt.Sprintf("%s/search?q=%s&limit=%d", c.cfg.BaseURL, escaped, limit),
		fmt.Sprintf("%s/volumes?q=%s&maxResults=%d", c.cfg.BaseURL, escaped, limit),
	}

	var lastErr error
	for _, endpoint := range candidates {
		data, err := c.fetchJSON(ctx, endpoint)
		if err != nil {
			lastErr = err
			continue
		}
		books := parseGenericList(data)
		if len(books) > 0 {
			return books, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

// fetchJSON performs one GET against a candidate endpoint. Both
// common auth header styles are sent when a key is configured; APIs
// ignore the header they don't use.
func (c *GenericClient) fetchJSON(ctx context.Context, endpoint string) (map[string]any, error) {
	if err := c.getRateLimiter().Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}

	resp, err := c.getHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return data, nil
}
