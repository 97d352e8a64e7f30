package metadata

import (
	"regexp"
	"strings"
)

// Providers rarely return structured series data, so we extract it
// from the places publishers hide it: parenthesized suffixes,
// colon/dash prefixes and "Book N" markers in titles.

type seriesPattern struct {
	re        *regexp.Regexp
	nameGroup int
	posGroup  int
}

var seriesPatterns = []seriesPattern{
	// "Title (Series Name Book 1)" must run before the generic paren
	// form or "Book" leaks into the captured name.
	{regexp.MustCompile(`(?i)\(([^)]+?)\s+Book\s+(\d+)\)`), 1, 2},
	// "Title (Series Name, #1)" or "Title (Series Name #1)"
	{regexp.MustCompile(`(?i)\(([^)]+?)[,\s]+#?(\d+)\)`), 1, 2},
	// "Series Name: Title"
	{regexp.MustCompile(`^([^:]+?):\s+`), 1, 0},
	// "Series Name - Title"
	{regexp.MustCompile(`^([^-]+?)\s+-\s+`), 1, 0},
	// "Series Name Book 1" / "Series Name Vol 1"
	{regexp.MustCompile(`(?i)^(.+?)\s+(?:Book|Vol\.?|Volume)\s+(\d+)`), 1, 2},
	// "Series Name #1"
	{regexp.MustCompile(`^(.+?)\s+#(\d+)`), 1, 2},
}

var positionOnlyRe = regexp.MustCompile(`(?i)Part\s+(\d+)`)

var positionRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Book\s+(\d+)`),
	regexp.MustCompile(`#(\d+)`),
	regexp.MustCompile(`(?i)Vol\.?\s+(\d+)`),
	regexp.MustCompile(`(?i)Volume\s+(\d+)`),
	regexp.MustCompile(`\((\d+)\)`),
}

// extractPosition finds a bare series position marker in a title.
func extractPosition(title string) string {
	for _, re := range positionRes {
		if m := re.FindStringSubmatch(title); m != nil {
			return m[1]
		}
	}
	return ""
}

var (
	seriesSuffixRe  = regexp.MustCompile(`(?i)\s+(?:Series|Saga|Trilogy|Chronicles)$`)
	leadingTheRe    = regexp.MustCompile(`(?i)^The\s+`)
	categoryMarkers = []string{"series", "saga", "trilogy", "chronicles"}
)

// extractSeries pulls a series name and position out of a title,
// subtitle and category list. Best-effort: either value may be empty.
func extractSeries(title, subtitle string, categories []string) (string, string) {
	full := title
	if subtitle != "" {
		full = title + " " + subtitle
	}

	var name, position string
	for _, p := range seriesPatterns {
		m := p.re.FindStringSubmatch(full)
		if m == nil {
			continue
		}
		name = strings.TrimSpace(m[p.nameGroup])
		if p.posGroup > 0 && p.posGroup < len(m) {
			position = m[p.posGroup]
		}
		if name != "" {
			break
		}
	}
	if position == "" {
		if m := positionOnlyRe.FindStringSubmatch(full); m != nil {
			position = m[1]
		}
	}

	// Fall back to category labels like "Fiction / Dune Chronicles".
	if name == "" {
		for _, category := range categories {
			if !strings.Contains(category, "/") {
				continue
			}
			for _, part := range strings.Split(category, "/") {
				part = strings.TrimSpace(part)
				lower := strings.ToLower(part)
				for _, marker := range categoryMarkers {
					if strings.Contains(lower, marker) {
						name = part
						break
					}
				}
				if name != "" {
					break
				}
			}
			if name != "" {
				break
			}
		}
	}

	if name != "" {
		name = CleanSeriesName(name)
	}
	return name, position
}

// CleanSeriesName strips decorative suffixes (Series, Saga, Trilogy,
// Chronicles) and a leading "The" so the same series detected through
// different providers groups under one name.
func CleanSeriesName(name string) string {
	name = seriesSuffixRe.ReplaceAllString(name, "")
	name = leadingTheRe.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}
