package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/apiregistry/internal/httpserver/deps"
)

type componentStatus struct {
	OK      bool   `json:"ok"`
	Backend string `json:"backend,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Impact  string `json:"impact,omitempty"`
	Error   string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		components := map[string]componentStatus{
			"store": checkStore(ctx, d),
			"index": checkIndex(ctx, d),
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

func determineMode(components map[string]componentStatus) string {
	// No store means no registry at all
	if store, exists := components["store"]; exists && !store.OK {
		return "critical"
	}

	// Index down - entries still served, metakg and suggestions are not
	if index, exists := components["index"]; exists && !index.OK {
		return "degraded"
	}

	return "operational"
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	if d.Store == nil {
		return componentStatus{OK: false, Error: "store not initialized"}
	}
	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{OK: false, Backend: d.StoreBackend, Impact: "registry-unavailable", Error: "timeout"}
	}
	n, err := d.Store.Count(ctx)
	if err != nil {
		return componentStatus{OK: false, Backend: d.StoreBackend, Error: err.Error()}
	}
	return componentStatus{OK: true, Backend: d.StoreBackend, Count: &n}
}

func checkIndex(ctx context.Context, d deps.Deps) componentStatus {
	if d.Index == nil {
		return componentStatus{OK: false, Impact: "metakg-disabled", Error: "index not initialized"}
	}
	ids, err := d.Index.EntryIDs(ctx)
	if err != nil {
		return componentStatus{OK: false, Backend: d.IndexBackend, Impact: "metakg-disabled", Error: err.Error()}
	}
	n := len(ids)
	d.Metrics.SetIndexedEntries(n)
	return componentStatus{OK: true, Backend: d.IndexBackend, Count: &n}
}
