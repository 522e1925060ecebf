package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/apiregistry/internal/domain"
	"github.com/MrSnakeDoc/apiregistry/internal/httpserver/deps"
	"github.com/MrSnakeDoc/apiregistry/internal/registry"
	"github.com/MrSnakeDoc/apiregistry/internal/search"
)

const defaultSuggestSize = 100

// Suggestion returns value:count aggregations of one field. Relation fields are answered by
// the search index, registry fields by the stored documents.
func Suggestion(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		field := q.Get("field")
		if field == "" {
			writeError(w, r, d, domain.InvalidArgument("missing required parameter: field"))
			return
		}
		size, err := parseInt("size", q.Get("size"), defaultSuggestSize)
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		var counts map[string]int
		switch {
		case search.IsSuggestField(field):
			counts, err = d.Index.Suggest(r.Context(), field, size)
		case registry.IsRegistryField(field):
			counts, err = d.Controller.SuggestRegistry(r.Context(), field, size)
		default:
			err = domain.InvalidArgument("field %q cannot be aggregated, use one of %v",
				field, append(append([]string(nil), search.SuggestFields...), registry.RegistryFields...))
		}
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusOK, counts)
	}
}
