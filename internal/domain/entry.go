package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Family identifies the specification family a registered document belongs to.
type Family string

const (
	FamilyOpenAPI3 Family = "openapi"
	FamilySwagger2 Family = "swagger"
)

// Entry is the registry's record of one API-description document.
//
// An Entry is uniquely identified by ID and, independently, by URL.
// Slug is an optional alias that is unique when present.
type Entry struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is assigned at creation and never changes.
	ID string `json:"_id"`

	// URL is the location the document is fetched from.
	// No two entries share a URL.
	URL string `json:"url"`

	// Owner is the login of the user that registered the entry.
	Owner string `json:"owner"`

	// CreatedAt is the registration time.
	CreatedAt time.Time `json:"created_at"`

	// ─────────────────────────────
	// Alias (owner-controlled)
	// ─────────────────────────────

	// Slug is an optional short alias. Empty means no alias.
	Slug string `json:"slug,omitempty"`

	// ─────────────────────────────
	// Content (replaced only by validated content)
	// ─────────────────────────────

	Raw         []byte `json:"raw"`
	ContentHash string `json:"content_hash"`
	Family      Family `json:"family"`
	Version     string `json:"version"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// RefreshedAt is the last time Raw was replaced.
	RefreshedAt time.Time `json:"refreshed_at"`

	// ─────────────────────────────
	// Liveness
	// ─────────────────────────────

	WebStatus WebStatus `json:"web_status"`

	// LastCheckedCode is the last HTTP status seen for URL.
	// Nil when never checked or when the last fetch got no response.
	LastCheckedCode *int `json:"last_checked_code"`

	// CheckedAt is the last time WebStatus was written.
	CheckedAt time.Time `json:"checked_at"`
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	if e.Raw != nil {
		c.Raw = append([]byte(nil), e.Raw...)
	}
	if e.LastCheckedCode != nil {
		code := *e.LastCheckedCode
		c.LastCheckedCode = &code
	}
	return &c
}

// IsOwnedBy reports whether user may mutate the entry.
func (e *Entry) IsOwnedBy(user string) bool {
	return user != "" && e.Owner == user
}

// HashContent returns the hex sha256 of raw document bytes.
func HashContent(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// CodePtr is a helper for building optional status codes.
func CodePtr(code int) *int { return &code }
