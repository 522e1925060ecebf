package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/apiregistry/internal/auth"
	"github.com/MrSnakeDoc/apiregistry/internal/domain"
	"github.com/MrSnakeDoc/apiregistry/internal/httpserver/deps"
)

// Uptime probes a registered URL on behalf of its owner. GET reads ?id=, POST the form field id.
func Uptime(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && hasBody(r) {
			writeError(w, r, d, domain.InvalidArgument("GET takes no request body."))
			return
		}

		id, _, err := formValue(r, "id")
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		if id == "" {
			writeError(w, r, d, domain.InvalidArgument("missing required parameter: id"))
			return
		}

		res, err := d.Controller.CheckUptime(r.Context(), id, auth.UserFrom(r.Context()))
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusOK, detailsResponse{Success: true, Details: string(res.Status)})
	}
}
