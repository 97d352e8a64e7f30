// Package series detects missing volumes in a book series by comparing
// the owned shelf against provider search results.
package series

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/lepinkainen/bookstor/internal/metadata"
)

// SearchFunc runs a title search across the configured providers.
// The aggregator's SearchTitle satisfies this.
type SearchFunc func(ctx context.Context, query string, maxResults int) ([]*metadata.BookMetadata, error)

// MissingBook is one detected gap in a series.
type MissingBook struct {
	Position float64 `json:"position"`
	Title    string  `json:"title,omitempty"`
	Author   string  `json:"author,omitempty"`
}

// GapReport summarizes the completeness of one series. TotalKnown
// counts the distinct volumes the report knows about, owned plus
// missing. When Estimated is true no provider knew the series and the
// report only covers gaps below the highest owned position.
type GapReport struct {
	SeriesName     string        `json:"series_name"`
	OwnedPositions []float64     `json:"owned_positions"`
	Missing        []MissingBook `json:"missing"`
	TotalKnown     int           `json:"total_known"`
	Completion     float64       `json:"completion"`
	Estimated      bool          `json:"estimated"`
}

// Analyzer computes gap reports for series in the shelf.
type Analyzer struct {
	search SearchFunc
}

func NewAnalyzer(search SearchFunc) *Analyzer {
	return &Analyzer{search: search}
}

// ComputeGaps analyzes one series given the owned books that belong to
// it. Books whose series position is empty or not numeric are ignored.
func (a *Analyzer) ComputeGaps(ctx context.Context, seriesName string, owned []*metadata.BookMetadata) (*GapReport, error) {
	report := &GapReport{SeriesName: seriesName}

	ownedSet := make(map[float64]bool)
	for _, book := range owned {
		pos, ok := ParsePosition(book.SeriesPosition)
		if !ok {
			slog.Debug("Skipping book without numeric series position",
				"series", seriesName, "title", book.Title, "position", book.SeriesPosition)
			continue
		}
		if !ownedSet[pos] {
			ownedSet[pos] = true
			report.OwnedPositions = append(report.OwnedPositions, pos)
		}
	}
	sort.Float64s(report.OwnedPositions)

	candidates := a.findCandidates(ctx, seriesName)
	if len(candidates) > 0 {
		a.fillFromCandidates(report, candidates, ownedSet)
	} else {
		a.fillEstimated(report, ownedSet)
	}

	report.TotalKnown = len(report.OwnedPositions) + len(report.Missing)
	if report.TotalKnown > 0 {
		report.Completion = float64(len(report.OwnedPositions)) / float64(report.TotalKnown)
	}
	return report, nil
}

// findCandidates searches providers for the series and indexes the
// results by position. The first result seen for a position wins.
// A search failure degrades to an estimated report rather than
// aborting the analysis.
func (a *Analyzer) findCandidates(ctx context.Context, seriesName string) map[float64]*metadata.BookMetadata {
	results, err := a.search(ctx, seriesName, 40)
	if err != nil {
		slog.Warn("Series search failed, falling back to estimate", "series", seriesName, "error", err)
		return nil
	}

	want := foldSeriesName(seriesName)
	candidates := make(map[float64]*metadata.BookMetadata)
	for _, result := range results {
		if foldSeriesName(result.SeriesName) != want {
			continue
		}
		pos, ok := ParsePosition(result.SeriesPosition)
		if !ok {
			continue
		}
		if _, exists := candidates[pos]; !exists {
			candidates[pos] = result
		}
	}
	return candidates
}

// fillFromCandidates reports as missing exactly the positions the
// provider listing declares and the shelf lacks. Positions the listing
// never mentions are not gaps: a listing of {1, 5} with volume 1 owned
// yields a single missing volume 5.
func (a *Analyzer) fillFromCandidates(report *GapReport, candidates map[float64]*metadata.BookMetadata, ownedSet map[float64]bool) {
	positions := make([]float64, 0, len(candidates))
	for pos := range candidates {
		if !ownedSet[pos] {
			positions = append(positions, pos)
		}
	}
	sort.Float64s(positions)

	for _, pos := range positions {
		book := candidates[pos]
		missing := MissingBook{Position: pos, Title: book.Title}
		if len(book.Authors) > 0 {
			missing.Author = book.Authors[0]
		}
		report.Missing = append(report.Missing, missing)
	}
}

// fillEstimated infers gaps from the owned positions alone: every
// whole number from 1 up to the highest owned position that the shelf
// lacks. Only whole numbers are interpolated, so a novella slot like
// 2.5 never shows up as an estimated gap.
func (a *Analyzer) fillEstimated(report *GapReport, ownedSet map[float64]bool) {
	report.Estimated = true

	maxOwned := 0
	for pos := range ownedSet {
		if int(pos) > maxOwned {
			maxOwned = int(pos)
		}
	}
	for pos := 1; pos <= maxOwned; pos++ {
		if !ownedSet[float64(pos)] {
			report.Missing = append(report.Missing, MissingBook{Position: float64(pos)})
		}
	}
}

// ParsePosition parses a series position string. Whole numbers and
// decimals are both valid; novellas are commonly numbered between
// volumes ("2.5"). Empty, non-numeric, and non-positive values report
// false.
func ParsePosition(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	pos, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(pos) || math.IsInf(pos, 0) || pos <= 0 {
		return 0, false
	}
	return pos, true
}

func foldSeriesName(name string) string {
	return strings.ToLower(strings.TrimSpace(metadata.CleanSeriesName(name)))
}
