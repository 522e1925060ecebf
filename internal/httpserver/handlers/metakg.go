package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/apiregistry/internal/expansion"
	"github.com/MrSnakeDoc/apiregistry/internal/httpserver/deps"
	"github.com/MrSnakeDoc/apiregistry/internal/logger"
	"github.com/MrSnakeDoc/apiregistry/internal/search"
)

// MetaKG searches relation documents. With expand, subject/object/predicate also match
// their taxonomy descendants.
func MetaKG(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		// An empty parameter is no filter at all.
		var filters expansion.Filters
		if v := q.Get("subject"); v != "" {
			filters.Subject = &v
		}
		if v := q.Get("object"); v != "" {
			filters.Object = &v
		}
		if v := q.Get("predicate"); v != "" {
			filters.Predicate = &v
		}

		expand := false
		if v, ok := q["expand"]; ok {
			var err error
			if expand, err = parseBool("expand", v[0]); err != nil {
				writeError(w, r, d, err)
				return
			}
		}
		from, err := parseInt("from", q.Get("from"), 0)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		size, err := parseInt("size", q.Get("size"), search.DefaultSize)
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		sets, err := d.Expander.Expand(r.Context(), filters, expand)
		if err != nil {
			d.Metrics.ExpansionFailure()
			writeError(w, r, d, err)
			return
		}
		if expand {
			d.Logger.Debug("metakg query expanded",
				logger.Int("subject", len(sets.Subject)),
				logger.Int("object", len(sets.Object)),
				logger.Int("predicate", len(sets.Predicate)))
		}

		query := sets.Query(from, size)
		if v := q.Get("node"); v != "" {
			query.Node = []string{v}
		}

		res, err := d.Index.Search(r.Context(), query.Normalize())
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		if res.Hits == nil {
			res.Hits = []search.Document{}
		}
		writeJSON(w, http.StatusOK, res)
	}
}
