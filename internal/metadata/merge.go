package metadata

import (
	"sort"
	"strings"

	"github.com/lepinkainen/bookstor/internal/isbn"
)

// partial is one provider's parsed contribution to a lookup, tagged
// with enough ordering information to make the merge deterministic.
type partial struct {
	cfg        ProviderConfig
	order      int // registry position, breaks priority ties
	books      []*BookMetadata
	err        error
	skipped    bool
	skipReason string
}

// sortPartials orders partials by priority ascending, registry order
// breaking ties. Sorting is what makes merge output independent of
// response arrival order.
func sortPartials(parts []partial) {
	sort.SliceStable(parts, func(i, j int) bool {
		if parts[i].cfg.Priority != parts[j].cfg.Priority {
			return parts[i].cfg.Priority < parts[j].cfg.Priority
		}
		return parts[i].order < parts[j].order
	})
}

// mergeISBN reduces per-provider partials for one ISBN lookup into a
// single canonical record. wanted must already be a canonical ISBN-13.
// Results whose ISBN does not match wanted are rejected outright so a
// provider answering for the wrong book never contaminates the merge.
// Returns nil when no provider survives.
func mergeISBN(wanted string, parts []partial) (*BookMetadata, []Outcome) {
	sortPartials(parts)

	outcomes := make([]Outcome, 0, len(parts))
	merged := &BookMetadata{ISBN: wanted}
	found := false

	for _, p := range parts {
		switch {
		case p.skipped:
			outcomes = append(outcomes, Outcome{Provider: p.cfg.Name, Status: StatusSkipped, Reason: p.skipReason})
			continue
		case p.err != nil:
			outcomes = append(outcomes, Outcome{Provider: p.cfg.Name, Status: StatusFailed, Reason: p.err.Error()})
			continue
		case len(p.books) == 0 || !p.books[0].HasData():
			outcomes = append(outcomes, Outcome{Provider: p.cfg.Name, Status: StatusNotFound})
			continue
		}

		book := p.books[0]
		if book.ISBN == "" || !isbn.Match(wanted, book.ISBN) {
			outcomes = append(outcomes, Outcome{Provider: p.cfg.Name, Status: StatusRejected, Reason: "result ISBN does not match requested ISBN"})
			continue
		}

		mergeInto(merged, book)
		merged.SourceProviders = append(merged.SourceProviders, p.cfg.Name)
		outcomes = append(outcomes, Outcome{Provider: p.cfg.Name, Status: StatusOK})
		found = true
	}

	if !found {
		return nil, outcomes
	}
	return merged, outcomes
}

// mergeInto fills absent fields of dst from src (first-non-empty
// wins) and unions the set-valued fields. dst.ISBN is never touched;
// the integrity guard fixed it before any merging happens.
func mergeInto(dst, src *BookMetadata) {
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if dst.Subtitle == "" {
		dst.Subtitle = src.Subtitle
	}
	if dst.Description == "" {
		dst.Description = src.Description
	}
	if dst.Publisher == "" {
		dst.Publisher = src.Publisher
	}
	if dst.PublishedDate == "" {
		dst.PublishedDate = src.PublishedDate
	}
	if dst.PageCount == 0 && src.PageCount > 0 {
		dst.PageCount = src.PageCount
	}
	if dst.Thumbnail == "" {
		dst.Thumbnail = src.Thumbnail
	}
	if dst.SeriesName == "" {
		dst.SeriesName = src.SeriesName
	}
	if dst.SeriesPosition == "" {
		dst.SeriesPosition = src.SeriesPosition
	}
	dst.Authors = unionFold(dst.Authors, src.Authors)
	dst.Categories = unionFold(dst.Categories, src.Categories)
}

// unionFold merges two string slices preserving first-seen order and
// casing, deduplicating case-insensitively.
func unionFold(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return a
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		key := strings.ToLower(strings.TrimSpace(s))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	for _, s := range b {
		key := strings.ToLower(strings.TrimSpace(s))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// mergeSearch deduplicates and merges title-search partials into an
// ordered result list, applying the omnibus filter and truncating to
// max entries. max <= 0 means no limit.
func mergeSearch(parts []partial, max int) []*BookMetadata {
	sortPartials(parts)

	byISBN := make(map[string]*BookMetadata)
	byTitle := make(map[string]*BookMetadata)
	var ordered []*BookMetadata

	for _, p := range parts {
		if p.skipped || p.err != nil {
			continue
		}
		for _, book := range p.books {
			if book == nil || book.Title == "" {
				continue
			}

			normISBN := ""
			if book.ISBN != "" {
				if n, err := isbn.Normalize(book.ISBN); err == nil {
					normISBN = n
				}
			}
			titleKey := titleDedupKey(book)

			// Same normalized ISBN is always the same logical book.
			if normISBN != "" {
				if existing, ok := byISBN[normISBN]; ok {
					mergeInto(existing, book)
					existing.SourceProviders = appendProvider(existing.SourceProviders, p.cfg.Name)
					continue
				}
			}
			// Title+authors only count as a duplicate when either
			// side lacks an ISBN; two distinct ISBNs with the same
			// title are different editions.
			if existing, ok := byTitle[titleKey]; ok && (normISBN == "" || existing.ISBN == "") {
				mergeInto(existing, book)
				existing.SourceProviders = appendProvider(existing.SourceProviders, p.cfg.Name)
				if existing.ISBN == "" && normISBN != "" {
					existing.ISBN = normISBN
					byISBN[normISBN] = existing
				}
				continue
			}

			clone := *book
			clone.ISBN = normISBN
			clone.SourceProviders = []string{p.cfg.Name}
			if normISBN != "" {
				byISBN[normISBN] = &clone
			}
			if _, taken := byTitle[titleKey]; !taken {
				byTitle[titleKey] = &clone
			}
			ordered = append(ordered, &clone)
		}
	}

	filtered := ordered[:0]
	for _, book := range ordered {
		if isOmnibus(book.Title) {
			continue
		}
		filtered = append(filtered, book)
	}

	if max > 0 && len(filtered) > max {
		filtered = filtered[:max]
	}
	return filtered
}

// titleDedupKey is the ISBN-less identity of a book: case-folded
// whitespace-collapsed title plus normalized author names.
func titleDedupKey(book *BookMetadata) string {
	authors := make([]string, 0, len(book.Authors))
	for _, a := range book.Authors {
		authors = append(authors, foldSpace(a))
	}
	sort.Strings(authors)
	return foldSpace(book.Title) + "|" + strings.Join(authors, ",")
}

// foldSpace lowercases and collapses runs of whitespace.
func foldSpace(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func appendProvider(providers []string, name string) []string {
	for _, p := range providers {
		if p == name {
			return providers
		}
	}
	return append(providers, name)
}
