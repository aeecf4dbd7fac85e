// Package sanitize turns free-form names into safe identifiers.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	unsafeRunRegex = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
	multiDashRegex = regexp.MustCompile(`-+`)
)

// maxSegmentLen bounds a sanitized path segment.
const maxSegmentLen = 64

// ForPathSegment sanitizes s for use as a single directory or file name.
// Runs of characters other than letters, digits, '_' and '-' become one
// hyphen. An empty result is replaced by fallback.
func ForPathSegment(s, fallback string) string {
	s = unsafeRunRegex.ReplaceAllString(s, "-")
	s = multiDashRegex.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > maxSegmentLen {
		s = strings.TrimRight(s[:maxSegmentLen], "-")
	}
	if s == "" {
		return fallback
	}
	return s
}
