package metadata

import (
	"regexp"
	"strings"
)

// volumeRangeRe matches "Books 1-3", "Vol. 2-4", "#1-3" and bare
// numeric ranges, the usual markers of multi-volume editions.
var volumeRangeRe = regexp.MustCompile(`(?i)(?:books?|vol(?:ume)?s?\.?|#)?\s*\d+\s*[-–—]\s*\d+`)

// isOmnibus reports whether a title looks like a multi-volume
// omnibus or boxed-set edition. These are excluded from title search
// so collected editions don't crowd out the individual volumes.
func isOmnibus(title string) bool {
	t := strings.ToLower(title)
	if strings.Contains(t, "omnibus") || strings.Contains(t, "boxed set") || strings.Contains(t, "box set") {
		return true
	}
	if strings.Contains(t, "collection") || strings.Contains(t, "complete") {
		return volumeRangeRe.MatchString(t)
	}
	return false
}
