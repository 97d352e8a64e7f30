// Package metadata fetches book metadata from multiple configured
// providers concurrently and merges the responses into one canonical
// record per book.
package metadata

import (
	"context"
	"strings"
)

// BookMetadata is the canonical book record assembled from provider
// responses. Empty strings, zero counts and nil slices mean "absent";
// the merge never overwrites a set field with an absent one.
type BookMetadata struct {
	ISBN            string   `json:"isbn,omitempty"`
	Title           string   `json:"title,omitempty"`
	Subtitle        string   `json:"subtitle,omitempty"`
	Authors         []string `json:"authors,omitempty"`
	Description     string   `json:"description,omitempty"`
	Publisher       string   `json:"publisher,omitempty"`
	PublishedDate   string   `json:"published_date,omitempty"`
	PageCount       int      `json:"page_count,omitempty"`
	Categories      []string `json:"categories,omitempty"`
	Thumbnail       string   `json:"thumbnail,omitempty"`
	SeriesName      string   `json:"series_name,omitempty"`
	SeriesPosition  string   `json:"series_position,omitempty"`
	SourceProviders []string `json:"source_providers,omitempty"`
}

// HasData reports whether any metadata field is set. SourceProviders
// is bookkeeping and does not count.
func (b *BookMetadata) HasData() bool {
	if b == nil {
		return false
	}
	return b.ISBN != "" || b.Title != "" || b.Subtitle != "" ||
		len(b.Authors) > 0 || b.Description != "" || b.Publisher != "" ||
		b.PublishedDate != "" || b.PageCount > 0 || len(b.Categories) > 0 ||
		b.Thumbnail != "" || b.SeriesName != "" || b.SeriesPosition != ""
}

// ProviderConfig is a read-only snapshot of one configured metadata
// provider, as supplied by the integration registry.
type ProviderConfig struct {
	Name        string `yaml:"name"`
	DisplayName string `yaml:"display_name,omitempty"`
	Description string `yaml:"description,omitempty"`
	BaseURL     string `yaml:"base_url,omitempty"`
	APIKey      string `yaml:"api_key,omitempty"`
	RequiresKey bool   `yaml:"requires_key,omitempty"`
	Enabled     bool   `yaml:"enabled"`
	Priority    int    `yaml:"priority"`
}

// MissingKey reports whether the provider demands an API key that is
// not configured. Such a provider is skipped without a request.
func (p ProviderConfig) MissingKey() bool {
	return p.RequiresKey && strings.TrimSpace(p.APIKey) == ""
}

// Label returns the display name, falling back to the identifier.
func (p ProviderConfig) Label() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Name
}

// Client fetches book metadata from a single provider. Implementations
// return (nil, nil) / (empty, nil) when the provider has no data for
// the query; errors are reserved for transport and protocol failures.
type Client interface {
	// Name returns the provider identifier this client serves.
	Name() string

	// LookupISBN fetches the provider's best record for one ISBN.
	LookupISBN(ctx context.Context, isbn string) (*BookMetadata, error)

	// SearchTitle runs a free-text search and returns up to limit
	// candidate records.
	SearchTitle(ctx context.Context, query string, limit int) ([]*BookMetadata, error)
}

// Outcome records how a single provider fared during one lookup.
// It is diagnostic only and carries no API guarantees.
type Outcome struct {
	Provider string `json:"provider"`
	Status   Status `json:"status"`
	Reason   string `json:"reason,omitempty"`
}

// Status enumerates the possible per-provider outcomes.
type Status string

const (
	// StatusOK means the provider contributed data to the merge.
	StatusOK Status = "ok"
	// StatusNotFound means the provider answered but had no record.
	StatusNotFound Status = "not_found"
	// StatusFailed means the request errored or timed out.
	StatusFailed Status = "failed"
	// StatusSkipped means no request was sent (missing required key).
	StatusSkipped Status = "skipped"
	// StatusRejected means the provider returned data for a
	// different ISBN and was excluded by the integrity guard.
	StatusRejected Status = "rejected"
)
