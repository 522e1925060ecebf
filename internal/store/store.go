// Package store defines persistence for registry entries.
//
// Implementations enforce URL and slug uniqueness themselves, atomically, so two
// concurrent creates for the same URL can never both succeed.
package store

import (
	"context"

	"github.com/MrSnakeDoc/apiregistry/internal/domain"
)

// MutateFunc edits an entry inside a read-modify-write. Returning an error aborts the write.
type MutateFunc func(e *domain.Entry) error

type Store interface {
	// Create persists a new entry. It fails with a Conflict error when the URL is taken.
	Create(ctx context.Context, e *domain.Entry) error

	// Get loads an entry by id. Missing entries yield a NotFound error.
	Get(ctx context.Context, id string) (*domain.Entry, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Entry, error)
	GetByURL(ctx context.Context, url string) (*domain.Entry, error)

	// Update applies fn to the freshest copy of the entry and persists it atomically.
	// ID, URL, Owner, Slug and CreatedAt are restored after fn runs.
	Update(ctx context.Context, id string, fn MutateFunc) (*domain.Entry, error)

	// SetSlug assigns (or clears, with "") the alias of an entry.
	// It fails with a Conflict error when another entry holds the slug.
	SetSlug(ctx context.Context, id, slug string) (*domain.Entry, error)

	// Delete removes the entry and releases its URL and slug.
	Delete(ctx context.Context, id string) error

	List(ctx context.Context) ([]*domain.Entry, error)
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

// KeepIdentity copies the immutable fields of before into after.
func KeepIdentity(before, after *domain.Entry) {
	after.ID = before.ID
	after.URL = before.URL
	after.Owner = before.Owner
	after.Slug = before.Slug
	after.CreatedAt = before.CreatedAt
}
