// Package taxonomy resolves the descendants of a semantic type or predicate.
package taxonomy

import (
	"context"
	"errors"
)

// ErrUnknownTerm is returned when a term is not part of the taxonomy.
var ErrUnknownTerm = errors.New("unknown term")

// Lookup returns the term followed by all of its descendants.
type Lookup interface {
	Descendants(ctx context.Context, term string) ([]string, error)
}
