package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/apiregistry/internal/httpserver/deps"
	"github.com/MrSnakeDoc/apiregistry/internal/logger"
)

// Metrics serves the Prometheus registry. Gauges are refreshed on each scrape.
func Metrics(d deps.Deps) http.HandlerFunc {
	h := d.Metrics.Handler()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if d.Store != nil {
			if n, err := d.Store.Count(ctx); err == nil {
				d.Metrics.SetEntries(n)
			} else {
				d.Logger.Debug("entry count unavailable", logger.Error(err))
			}
		}
		if d.Index != nil {
			if ids, err := d.Index.EntryIDs(ctx); err == nil {
				d.Metrics.SetIndexedEntries(len(ids))
			}
		}
		h.ServeHTTP(w, r)
	}
}
