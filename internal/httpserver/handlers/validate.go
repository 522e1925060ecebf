package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/apiregistry/internal/domain"
	"github.com/MrSnakeDoc/apiregistry/internal/httpserver/deps"
	"github.com/MrSnakeDoc/apiregistry/internal/registry"
	"github.com/MrSnakeDoc/apiregistry/internal/validator"
)

type detailsResponse struct {
	Success bool   `json:"success"`
	Details string `json:"details"`
}

// ValidateGet validates the document served at ?url=.
func ValidateGet(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hasBody(r) {
			writeError(w, r, d, domain.InvalidArgument("GET takes no request body."))
			return
		}
		url := r.URL.Query().Get("url")
		if url == "" {
			writeError(w, r, d, domain.InvalidArgument("missing required parameter: url"))
			return
		}
		res, err := d.Controller.ValidateURL(r.Context(), url)
		respondValid(w, r, d, res, err)
	}
}

// ValidatePost validates the document at the form field url, or the request body itself.
func ValidatePost(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url, ok, err := formValue(r, "url")
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		if ok && url != "" {
			res, err := d.Controller.ValidateURL(r.Context(), url)
			respondValid(w, r, d, res, err)
			return
		}
		if isForm(r) {
			writeError(w, r, d, domain.InvalidArgument("missing required field: url"))
			return
		}

		raw, err := readBody(w, r)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		res, err := d.Controller.Validate(raw)
		respondValid(w, r, d, res, err)
	}
}

func respondValid(w http.ResponseWriter, r *http.Request, d deps.Deps, res *validator.Result, err error) {
	if err != nil {
		writeError(w, r, d, err)
		return
	}
	writeJSON(w, http.StatusOK, detailsResponse{Success: true, Details: registry.ValidDetails(res.Version)})
}
