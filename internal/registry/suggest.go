package registry

import (
	"context"
	"sort"
	"strings"

	"github.com/MrSnakeDoc/apiregistry/internal/logger"
	"github.com/MrSnakeDoc/apiregistry/internal/validator"
)

// Registry fields accepted by SuggestRegistry. They are read from the stored documents,
// not from the relation index, so entries without relations are counted too.
const (
	FieldTagName             = "tags.name"
	FieldTranslatorTeam      = "info.x-translator.team"
	FieldTranslatorComponent = "info.x-translator.component"
	FieldTranslatorInfores   = "info.x-translator.infores"
	FieldTRAPIVersion        = "info.x-trapi.version"
)

var RegistryFields = []string{
	FieldTagName,
	FieldTranslatorTeam,
	FieldTranslatorComponent,
	FieldTranslatorInfores,
	FieldTRAPIVersion,
}

// IsRegistryField reports whether SuggestRegistry can aggregate field.
func IsRegistryField(field string) bool {
	for _, f := range RegistryFields {
		if f == field {
			return true
		}
	}
	return false
}

// SuggestRegistry counts, for each value of field, the entries whose document carries it.
// Lists are flattened along the path, so tags.name visits every tag. Only the size most
// frequent values are returned, ties broken by value.
func (c *Controller) SuggestRegistry(ctx context.Context, field string, size int) (map[string]int, error) {
	entries, err := c.store.List(ctx)
	if err != nil {
		c.observe("suggest", err)
		return nil, err
	}

	path := strings.Split(field, ".")
	counts := make(map[string]int)
	for _, e := range entries {
		doc, err := validator.Parse(e.Raw)
		if err != nil {
			c.log.Warn("stored content is unreadable", logger.String("id", e.ID), logger.Error(err))
			continue
		}
		seen := make(map[string]bool)
		collectValues(doc, path, seen)
		for v := range seen {
			counts[v]++
		}
	}
	c.observe("suggest", nil)
	return topValues(counts, size), nil
}

func collectValues(v any, path []string, out map[string]bool) {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			collectValues(item, path, out)
		}
	case map[string]any:
		if len(path) > 0 {
			collectValues(t[path[0]], path[1:], out)
		}
	case string:
		if s := strings.TrimSpace(t); len(path) == 0 && s != "" {
			out[s] = true
		}
	}
}

func topValues(counts map[string]int, size int) map[string]int {
	if size <= 0 || len(counts) <= size {
		return counts
	}
	values := make([]string, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool {
		if counts[values[i]] != counts[values[j]] {
			return counts[values[i]] > counts[values[j]]
		}
		return values[i] < values[j]
	})
	top := make(map[string]int, size)
	for _, v := range values[:size] {
		top[v] = counts[v]
	}
	return top
}
