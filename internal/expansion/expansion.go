// Package expansion turns relation query filters into match sets, optionally widened
// with taxonomy descendants.
package expansion

import (
	"context"
	"errors"
	"strings"

	"github.com/MrSnakeDoc/apiregistry/internal/domain"
	"github.com/MrSnakeDoc/apiregistry/internal/search"
	"github.com/MrSnakeDoc/apiregistry/internal/taxonomy"
)

// Filters are the raw single-valued query parameters. Nil means absent.
type Filters struct {
	Subject   *string
	Object    *string
	Predicate *string
}

// Expanded holds the match set for each present field; absent fields stay nil.
type Expanded struct {
	Subject   []string
	Object    []string
	Predicate []string
}

// Query copies the match sets into a search query.
func (e Expanded) Query(from, size int) search.Query {
	return search.Query{
		Subject:   e.Subject,
		Object:    e.Object,
		Predicate: e.Predicate,
		From:      from,
		Size:      size,
	}
}

type Service struct {
	lookup taxonomy.Lookup
}

func New(lookup taxonomy.Lookup) *Service {
	return &Service{lookup: lookup}
}

// Expand resolves every present field. Without expand each value is passed through exactly as
// given. With expand set, a field becomes the value followed by its descendants; a single failed
// lookup fails the whole request and nothing is returned.
func (s *Service) Expand(ctx context.Context, f Filters, expand bool) (Expanded, error) {
	var out Expanded
	fields := []struct {
		name  string
		value *string
		dst   *[]string
	}{
		{search.FieldSubject, f.Subject, &out.Subject},
		{search.FieldObject, f.Object, &out.Object},
		{search.FieldPredicate, f.Predicate, &out.Predicate},
	}

	for _, fd := range fields {
		if fd.value == nil {
			continue
		}
		if !expand {
			*fd.dst = []string{*fd.value}
			continue
		}

		set, err := s.descendants(ctx, fd.name, strings.TrimSpace(*fd.value))
		if err != nil {
			return Expanded{}, err
		}
		*fd.dst = set
	}

	return out, nil
}

func (s *Service) descendants(ctx context.Context, field, value string) ([]string, error) {
	if s.lookup == nil {
		return nil, domain.InvalidArgument(
			"Cannot get descendants for field: `%s` with value: `%s`. Error: no taxonomy configured", field, value)
	}

	terms, err := s.lookup.Descendants(ctx, value)
	if err != nil {
		if errors.Is(err, taxonomy.ErrUnknownTerm) {
			return nil, domain.InvalidArgument(
				"Cannot get descendants for field: `%s` with value: `%s`. Error: %v", field, value, err)
		}
		return nil, domain.Wrap(domain.KindUpstreamFetch, err, "taxonomy lookup failed for "+field)
	}

	set := []string{value}
	seen := map[string]bool{strings.ToLower(value): true}
	for _, t := range terms {
		k := strings.ToLower(strings.TrimSpace(t))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		set = append(set, strings.TrimSpace(t))
	}
	return set, nil
}
