package normalize

import (
	"net/url"
	"strings"
)

// UnknownSection is the sentinel for URLs whose path carries no taxonomy.
const UnknownSection = "unknown"

// Section derives the taxonomy section from an article URL path. depth > 0
// takes that many leading path segments; depth <= 0 takes every segment but
// the trailing slug (multi-segment taxonomies like "nacional/politica").
func Section(rawURL string, depth int) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return UnknownSection
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return UnknownSection
	}

	segments := strings.Split(path, "/")
	switch {
	case depth > 0:
		if depth > len(segments) {
			depth = len(segments)
		}
		segments = segments[:depth]
	default:
		segments = segments[:len(segments)-1]
	}

	section := strings.ToLower(strings.Join(segments, "/"))
	if section == "" {
		return UnknownSection
	}
	return section
}
