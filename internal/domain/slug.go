package domain

import (
	"regexp"
	"strings"
)

// reservedSlugs collide with top-level routes and may never be used as aliases.
var reservedSlugs = map[string]struct{}{
	"api": {},
}

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{2,49}$`)

// IsReservedSlug reports whether s is in the reserved set (case-insensitive).
func IsReservedSlug(s string) bool {
	_, ok := reservedSlugs[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// NormalizeSlug lowercases and checks a requested slug.
// The empty string is valid and means "clear the alias".
func NormalizeSlug(s string) (string, error) {
	slug := strings.ToLower(strings.TrimSpace(s))
	if slug == "" {
		return "", nil
	}
	if IsReservedSlug(slug) {
		return "", InvalidArgument("slug %q is reserved", slug)
	}
	if !slugPattern.MatchString(slug) {
		return "", InvalidArgument("slug %q must be 3-50 characters of a-z, 0-9, '-' or '_'", slug)
	}
	return slug, nil
}
