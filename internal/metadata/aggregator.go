package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/lepinkainen/bookstor/internal/isbn"
)

// ProviderSource yields the enabled provider configs in merge order.
type ProviderSource interface {
	Enabled(ctx context.Context) ([]ProviderConfig, error)
}

// LookupResult is a merged book plus per-provider diagnostics. Book is
// nil when no provider had the ISBN; that is not an error.
type LookupResult struct {
	Book     *BookMetadata
	Outcomes []Outcome
}

// Aggregator fans a request out to every enabled provider and merges
// the answers deterministically.
type Aggregator struct {
	source    ProviderSource
	newClient func(ProviderConfig) Client
	timeout   time.Duration
}

// NewAggregator creates an aggregator over the given provider source.
func NewAggregator(source ProviderSource) *Aggregator {
	timeout := time.Duration(viper.GetInt("providers.timeout_seconds")) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Aggregator{
		source:    source,
		newClient: NewClient,
		timeout:   timeout,
	}
}

// SetClientFactory overrides client construction, for tests.
func (a *Aggregator) SetClientFactory(factory func(ProviderConfig) Client) {
	a.newClient = factory
}

// LookupISBN validates the ISBN, queries all enabled providers
// concurrently and merges their answers by priority. The returned
// book is nil when no provider knows the ISBN.
func (a *Aggregator) LookupISBN(ctx context.Context, rawISBN string) (*LookupResult, error) {
	normalized, err := isbn.Normalize(rawISBN)
	if err != nil {
		return nil, err
	}

	parts, err := a.fanOut(ctx, func(ctx context.Context, client Client) ([]*BookMetadata, error) {
		book, err := client.LookupISBN(ctx, normalized)
		if err != nil {
			return nil, err
		}
		if book == nil {
			return nil, nil
		}
		return []*BookMetadata{book}, nil
	})
	if err != nil {
		return nil, err
	}

	book, outcomes := mergeISBN(normalized, parts)
	return &LookupResult{Book: book, Outcomes: outcomes}, nil
}

// SearchTitle queries all enabled providers and deduplicates the
// combined results. Each provider is asked for maxResults hits so the
// merged list survives cross-provider dedup.
func (a *Aggregator) SearchTitle(ctx context.Context, query string, maxResults int) ([]*BookMetadata, error) {
	if maxResults <= 0 {
		maxResults = 10
	}

	parts, err := a.fanOut(ctx, func(ctx context.Context, client Client) ([]*BookMetadata, error) {
		return client.SearchTitle(ctx, query, maxResults)
	})
	if err != nil {
		return nil, err
	}

	return mergeSearch(parts, maxResults), nil
}

func (a *Aggregator) fanOut(ctx context.Context, call func(context.Context, Client) ([]*BookMetadata, error)) ([]partial, error) {
	configs, err := a.source.Enabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading providers: %w", err)
	}

	parts := make([]partial, len(configs))
	var wg sync.WaitGroup

	for i, cfg := range configs {
		parts[i] = partial{cfg: cfg, order: i}

		if cfg.MissingKey() {
			parts[i].skipped = true
			parts[i].skipReason = "api key required but not configured"
			slog.Debug("Skipping provider without API key", "provider", cfg.Name)
			continue
		}

		// Generic providers have no hardcoded endpoint to fall
		// back on, so an empty base URL means nothing to call.
		if !hasDefaultEndpoint(cfg.Name) && strings.TrimSpace(cfg.BaseURL) == "" {
			parts[i].skipped = true
			parts[i].skipReason = "no base URL configured"
			slog.Debug("Skipping provider without base URL", "provider", cfg.Name)
			continue
		}

		client := a.newClient(cfg)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			books, err := call(callCtx, client)
			if err != nil {
				slog.Warn("Provider request failed", "provider", parts[i].cfg.Name, "error", err)
				parts[i].err = err
				return
			}
			parts[i].books = books
		}(i)
	}

	wg.Wait()
	return parts, nil
}
