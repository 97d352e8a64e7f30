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

const (
	openLibraryDefaultBaseURL = "https://openlibrary.org"
	openLibraryCoversBaseURL  = "https://covers.openlibrary.org/b"
)

// OpenLibraryClient fetches metadata from the Open Library search
// API. No API key is needed. Series information lives in work
// subjects under a "series:" prefix and costs one extra request.
type OpenLibraryClient struct {
	cfg         ProviderConfig
	baseURL     string
	coversURL   string
	httpClient  *http.Client
	rateLimiter *ratelimit.Limiter
	clientOnce  sync.Once
	limiterOnce sync.Once
}

var _ Client = (*OpenLibraryClient)(nil)

// NewOpenLibraryClient creates an Open Library client from provider
// config. An empty BaseURL selects the public endpoint.
func NewOpenLibraryClient(cfg ProviderConfig) *OpenLibraryClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = openLibraryDefaultBaseURL
	}
	return &OpenLibraryClient{cfg: cfg, baseURL: baseURL, coversURL: openLibraryCoversBaseURL}
}

func (c *OpenLibraryClient) Name() string { return c.cfg.Name }

func (c *OpenLibraryClient) getHTTPClient() *http.Client {
	c.clientOnce.Do(func() {
		if c.httpClient == nil {
			c.httpClient = &http.Client{Timeout: 10 * time.Second}
		}
	})
	return c.httpClient
}

func (c *OpenLibraryClient) getRateLimiter() *ratelimit.Limiter {
	c.limiterOnce.Do(func() {
		if c.rateLimiter == nil {
			c.rateLimiter = ratelimit.ForProvider(c.cfg.Name)
		}
	})
	return c.rateLimiter
}

// openLibrarySearchResponse matches search.json responses.
type openLibrarySearchResponse struct {
	NumFound int              `json:"numFound"`
	Docs     []openLibraryDoc `json:"docs"`
}

type openLibraryDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	Subtitle         string   `json:"subtitle"`
	AuthorName       []string `json:"author_name"`
	Publisher        []string `json:"publisher"`
	FirstPublishYear int      `json:"first_publish_year"`
	NumberOfPages    int      `json:"number_of_pages_median"`
	CoverID          int      `json:"cover_i"`
	Subject          []string `json:"subject"`
}

type cachedOpenLibraryResult struct {
	Books    []*BookMetadata `json:"books"`
	NotFound bool            `json:"not_found"`
}

// LookupISBN searches Open Library for one ISBN and resolves series
// data from the matching work.
func (c *OpenLibraryClient) LookupISBN(ctx context.Context, isbnCode string) (*BookMetadata, error) {
	cached, _, err := cache.GetOrFetchWithTTL("open_library_cache", "isbn:"+isbnCode, func() (*cachedOpenLibraryResult, error) {
		return c.fetchISBN(ctx, isbnCode)
	}, cache.SelectNegativeTTL(func(r *cachedOpenLibraryResult) bool {
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

// SearchTitle runs a free-text search against search.json.
func (c *OpenLibraryClient) SearchTitle(ctx context.Context, query string, limit int) ([]*BookMetadata, error) {
	if limit <= 0 {
		limit = 10
	}
	cacheKey := fmt.Sprintf("q:%s:%d", query, limit)
	cached, _, err := cache.GetOrFetchWithTTL("open_library_cache", cacheKey, func() (*cachedOpenLibraryResult, error) {
		return c.fetchSearch(ctx, query, limit)
	}, cache.SelectNegativeTTL(func(r *cachedOpenLibraryResult) bool {
		return r.NotFound
	}))
	if err != nil {
		return nil, err
	}
	return cached.Books, nil
}

func (c *OpenLibraryClient) fetchISBN(ctx context.Context, isbnCode string) (*cachedOpenLibraryResult, error) {
	result, err := c.search(ctx, "isbn:"+isbnCode, 1)
	if err != nil {
		return nil, err
	}
	if len(result.Docs) == 0 {
		return &cachedOpenLibraryResult{NotFound: true}, nil
	}

	doc := result.Docs[0]
	book := c.parseDoc(doc)
	if book == nil {
		return &cachedOpenLibraryResult{NotFound: true}, nil
	}
	// The search matched on this ISBN, so it identifies the record.
	book.ISBN = isbnCode
	if book.Thumbnail == "" {
		book.Thumbnail = fmt.Sprintf("%s/isbn/%s-L.jpg", c.coversURL, isbnCode)
	}

	// Series data is rarely in the search doc. Pull the work record
	// when it's missing; a failure here only loses the series fields.
	if book.SeriesName == "" && doc.Key != "" {
		if name, pos, err := c.fetchWorkSeries(ctx, doc.Key, doc.Title); err == nil && name != "" {
			book.SeriesName = name
			if book.SeriesPosition == "" {
				book.SeriesPosition = pos
			}
		}
	}

	return &cachedOpenLibraryResult{Books: []*BookMetadata{book}}, nil
}

func (c *OpenLibraryClient) fetchSearch(ctx context.Context, query string, limit int) (*cachedOpenLibraryResult, error) {
	result, err := c.search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(result.Docs) == 0 {
		return &cachedOpenLibraryResult{NotFound: true}, nil
	}

	books := make([]*BookMetadata, 0, len(result.Docs))
	for _, doc := range result.Docs {
		if book := c.parseDoc(doc); book != nil {
			books = append(books, book)
		}
	}
	if len(books) == 0 {
		return &cachedOpenLibraryResult{NotFound: true}, nil
	}
	return &cachedOpenLibraryResult{Books: books}, nil
}

func (c *OpenLibraryClient) search(ctx context.Context, query string, limit int) (*openLibrarySearchResponse, error) {
	if err := c.getRateLimiter().Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("fields", "key,title,subtitle,author_name,publisher,first_publish_year,number_of_pages_median,cover_i,subject")
	endpoint := fmt.Sprintf("%s/search.json?%s", c.baseURL, params.Encode())

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

	var result openLibrarySearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &result, nil
}

// fetchWorkSeries loads a work record and scans its subjects for the
// "series:" convention.
func (c *OpenLibraryClient) fetchWorkSeries(ctx context.Context, workKey, title string) (string, string, error) {
	endpoint := fmt.Sprintf("%s%s.json", c.baseURL, workKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.getHTTPClient().Do(req)
	if err != nil {
		return "", "", fmt.Errorf("API request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var work struct {
		Title    string   `json:"title"`
		Subjects []string `json:"subjects"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&work); err != nil {
		return "", "", fmt.Errorf("decoding response: %w", err)
	}

	name := seriesFromSubjects(work.Subjects)
	if name == "" {
		return "", "", nil
	}
	position := extractPosition(work.Title)
	if position == "" {
		position = extractPosition(title)
	}
	return name, position, nil
}

// seriesFromSubjects finds the first "series:Name" subject tag.
func seriesFromSubjects(subjects []string) string {
	for _, subject := range subjects {
		if len(subject) > 7 && strings.EqualFold(subject[:7], "series:") {
			return CleanSeriesName(strings.TrimSpace(subject[7:]))
		}
	}
	return ""
}

func (c *OpenLibraryClient) parseDoc(doc openLibraryDoc) *BookMetadata {
	if doc.Title == "" {
		return nil
	}

	book := &BookMetadata{
		Title:    doc.Title,
		Subtitle: doc.Subtitle,
		Authors:  doc.AuthorName,
	}
	if len(doc.Publisher) > 0 {
		book.Publisher = doc.Publisher[0]
	}
	if doc.FirstPublishYear > 0 {
		book.PublishedDate = fmt.Sprintf("%d", doc.FirstPublishYear)
	}
	if doc.NumberOfPages > 0 {
		book.PageCount = doc.NumberOfPages
	}
	if doc.CoverID > 0 {
		book.Thumbnail = fmt.Sprintf("%s/id/%d-L.jpg", c.coversURL, doc.CoverID)
	}

	if name := seriesFromSubjects(doc.Subject); name != "" {
		book.SeriesName = name
		book.SeriesPosition = extractPosition(doc.Title)
	} else {
		book.SeriesName, book.SeriesPosition = extractSeries(doc.Title, doc.Subtitle, nil)
	}
	return book
}
