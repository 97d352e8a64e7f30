package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lepinkainen/bookstor/internal/cache"
	"github.com/lepinkainen/bookstor/internal/ratelimit"
)

const hardcoverDefaultBaseURL = "https://api.hardcover.app/v1/graphql"

// HardcoverClient fetches metadata from the Hardcover GraphQL API.
// A Bearer token is mandatory; the aggregator skips the provider
// when none is configured.
type HardcoverClient struct {
	cfg         ProviderConfig
	baseURL     string
	httpClient  *http.Client
	rateLimiter *ratelimit.Limiter
	clientOnce  sync.Once
	limiterOnce sync.Once
}

var _ Client = (*HardcoverClient)(nil)

// NewHardcoverClient creates a Hardcover client from provider config.
func NewHardcoverClient(cfg ProviderConfig) *HardcoverClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = hardcoverDefaultBaseURL
	}
	return &HardcoverClient{cfg: cfg, baseURL: baseURL}
}

func (c *HardcoverClient) Name() string { return c.cfg.Name }

func (c *HardcoverClient) getHTTPClient() *http.Client {
	c.clientOnce.Do(func() {
		if c.httpClient == nil {
			c.httpClient = &http.Client{Timeout: 30 * time.Second}
		}
	})
	return c.httpClient
}

func (c *HardcoverClient) getRateLimiter() *ratelimit.Limiter {
	c.limiterOnce.Do(func() {
		if c.rateLimiter == nil {
			c.rateLimiter = ratelimit.ForProvider(c.cfg.Name)
		}
	})
	return c.rateLimiter
}

const hardcoverSearchQuery = `
query Search($query: String!, $perPage: Int!) {
  search(
    query: $query,
    query_type: "books",
    per_page: $perPage,
    page: 1,
    sort: "activities_count:desc"
  ) {
    results
  }
}
`

type hardcoverRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type hardcoverResponse struct {
	Data *struct {
		Search *struct {
			Results struct {
				Hits []struct {
					Document json.RawMessage `json:"document"`
				} `json:"hits"`
			} `json:"results"`
		} `json:"search"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// hardcoverDocument is the denormalized search blob Hardcover returns
// for each hit.
type hardcoverDocument struct {
	Title       string   `json:"title"`
	Subtitle    string   `json:"subtitle"`
	Description string   `json:"description"`
	AuthorNames []string `json:"author_names"`
	Pages       int      `json:"pages"`
	ReleaseYear int      `json:"release_year"`
	ISBN13      string   `json:"isbn_13"`
	ISBN10      string   `json:"isbn_10"`
	Genres      []string `json:"genres"`
	Image       any      `json:"image"`
	Featured    *struct {
		Position any `json:"position"`
		Series   struct {
			Name string `json:"name"`
		} `json:"series"`
	} `json:"featured_series"`
}

type cachedHardcoverResult struct {
	Books    []*BookMetadata `json:"books"`
	NotFound bool            `json:"not_found"`
}

// LookupISBN searches Hardcover for one ISBN.
func (c *HardcoverClient) LookupISBN(ctx context.Context, isbnCode string) (*BookMetadata, error) {
	cached, _, err := cache.GetOrFetchWithTTL("hardcover_cache", "isbn:"+isbnCode, func() (*cachedHardcoverResult, error) {
		return c.fetch(ctx, isbnCode, 1, isbnCode)
	}, cache.SelectNegativeTTL(func(r *cachedHardcoverResult) bool {
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

// SearchTitle searches Hardcover by free text.
func (c *HardcoverClient) SearchTitle(ctx context.Context, query string, limit int) ([]*BookMetadata, error) {
	if limit <= 0 {
		limit = 10
	}
	cacheKey := fmt.Sprintf("q:%s:%d", query, limit)
	cached, _, err := cache.GetOrFetchWithTTL("hardcover_cache", cacheKey, func() (*cachedHardcoverResult, error) {
		return c.fetch(ctx, query, limit, "")
	}, cache.SelectNegativeTTL(func(r *cachedHardcoverResult) bool {
		return r.NotFound
	}))
	if err != nil {
		return nil, err
	}
	return cached.Books, nil
}

func (c *HardcoverClient) fetch(ctx context.Context, query string, limit int, searchedISBN string) (*cachedHardcoverResult, error) {
	if err := c.getRateLimiter().Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(hardcoverRequest{
		Query: hardcoverSearchQuery,
		Variables: map[string]any{
			"query":   query,
			"perPage": limit,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerToken(c.cfg.APIKey))

	resp, err := c.getHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var result hardcoverResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("GraphQL error: %s", result.Errors[0].Message)
	}
	if result.Data == nil || result.Data.Search == nil || len(result.Data.Search.Results.Hits) == 0 {
		return &cachedHardcoverResult{NotFound: true}, nil
	}

	books := make([]*BookMetadata, 0, len(result.Data.Search.Results.Hits))
	for _, hit := range result.Data.Search.Results.Hits {
		var doc hardcoverDocument
		if err := json.Unmarshal(hit.Document, &doc); err != nil {
			continue
		}
		if book := parseHardcoverDocument(doc, searchedISBN); book != nil {
			books = append(books, book)
		}
	}
	if len(books) == 0 {
		return &cachedHardcoverResult{NotFound: true}, nil
	}
	return &cachedHardcoverResult{Books: books}, nil
}

// bearerToken prefixes the key with "Bearer " unless the operator
// already stored it that way.
func bearerToken(key string) string {
	if strings.HasPrefix(key, "Bearer ") {
		return key
	}
	return "Bearer " + key
}

func parseHardcoverDocument(doc hardcoverDocument, searchedISBN string) *BookMetadata {
	if doc.Title == "" {
		return nil
	}

	isbnCode := doc.ISBN13
	if isbnCode == "" {
		isbnCode = doc.ISBN10
	}
	if isbnCode == "" {
		isbnCode = searchedISBN
	}

	// Image arrives either as a bare URL or as {"url": ...}.
	thumbnail := ""
	switch img := doc.Image.(type) {
	case string:
		thumbnail = img
	case map[string]any:
		thumbnail = firstString(img, "url")
	}

	var categories []string
	if len(doc.Genres) > 3 {
		categories = doc.Genres[:3]
	} else {
		categories = doc.Genres
	}

	seriesName, seriesPosition := "", ""
	if doc.Featured != nil {
		seriesName = CleanSeriesName(doc.Featured.Series.Name)
		seriesPosition = toString(doc.Featured.Position)
	}

	publishedDate := ""
	if doc.ReleaseYear > 0 {
		publishedDate = fmt.Sprintf("%d", doc.ReleaseYear)
	}

	return &BookMetadata{
		ISBN:           isbnCode,
		Title:          doc.Title,
		Subtitle:       doc.Subtitle,
		Authors:        doc.AuthorNames,
		Description:    doc.Description,
		PublishedDate:  publishedDate,
		PageCount:      doc.Pages,
		Categories:     categories,
		Thumbnail:      thumbnail,
		SeriesName:     seriesName,
		SeriesPosition: seriesPosition,
	}
}
