package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/apiregistry/internal/auth"
	"github.com/MrSnakeDoc/apiregistry/internal/domain"
	"github.com/MrSnakeDoc/apiregistry/internal/httpserver/deps"
	"github.com/MrSnakeDoc/apiregistry/internal/registry"
	"github.com/MrSnakeDoc/apiregistry/internal/validator"
)

type createRequest struct {
	URL    string `json:"url"`
	DryRun bool   `json:"dryrun"`
}

type idResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"_id"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type refreshResponse struct {
	Success bool             `json:"success"`
	Status  domain.WebStatus `json:"status"`
	Code    *int             `json:"code"`
}

type webStatusView struct {
	Status    domain.WebStatus `json:"status"`
	Code      *int             `json:"code"`
	CheckedAt time.Time        `json:"checked_at"`
}

type metaView struct {
	URL         string        `json:"url"`
	Owner       string        `json:"username"`
	Slug        string        `json:"slug,omitempty"`
	Family      domain.Family `json:"family"`
	Version     string        `json:"version"`
	CreatedAt   time.Time     `json:"date_created"`
	RefreshedAt time.Time     `json:"last_updated"`
	WebStatus   webStatusView `json:"uptime"`
}

type entryView struct {
	ID          string         `json:"_id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Meta        metaView       `json:"_meta"`
	Document    map[string]any `json:"document,omitempty"`
}

func viewOf(e *domain.Entry, withDocument bool) entryView {
	v := entryView{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Meta: metaView{
			URL:         e.URL,
			Owner:       e.Owner,
			Slug:        e.Slug,
			Family:      e.Family,
			Version:     e.Version,
			CreatedAt:   e.CreatedAt,
			RefreshedAt: e.RefreshedAt,
			WebStatus: webStatusView{
				Status:    e.WebStatus,
				Code:      e.LastCheckedCode,
				CheckedAt: e.CheckedAt,
			},
		},
	}
	if withDocument {
		// Stored content always validated once, so a parse failure only drops the document.
		if doc, err := validator.Parse(e.Raw); err == nil {
			v.Document = doc
		}
	}
	return v
}

// CreateMetadata registers the document served at url, or validates it when dryrun is set.
func CreateMetadata(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseCreate(w, r)
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		res, err := d.Controller.Submit(r.Context(), req.URL, auth.UserFrom(r.Context()), req.DryRun)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		if res.DryRun {
			writeJSON(w, http.StatusOK, detailsResponse{Success: true, Details: registry.DryRunDetails(res.Version)})
			return
		}
		writeJSON(w, http.StatusOK, idResponse{Success: true, ID: res.ID})
	}
}

func parseCreate(w http.ResponseWriter, r *http.Request) (createRequest, error) {
	var req createRequest
	if isJSON(r) {
		return req, decodeJSON(w, r, &req)
	}

	url, _, err := formValue(r, "url")
	if err != nil {
		return req, err
	}
	req.URL = url

	raw, ok, err := formValue(r, "dryrun")
	if err != nil {
		return req, err
	}
	if ok {
		if req.DryRun, err = parseBool("dryrun", raw); err != nil {
			return req, err
		}
	}
	return req, nil
}

// ListMetadata returns a summary of every registered entry.
func ListMetadata(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := d.Controller.List(r.Context())
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		views := make([]entryView, 0, len(entries))
		for _, e := range entries {
			views = append(views, viewOf(e, false))
		}
		writeJSON(w, http.StatusOK, views)
	}
}

// GetMetadata returns one entry by id or slug. ?raw=1 returns the stored document bytes.
func GetMetadata(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := d.Controller.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		if raw, ok := r.URL.Query()["raw"]; ok {
			if asRaw, _ := parseBool("raw", raw[0]); asRaw {
				w.Header().Set("Content-Type", http.DetectContentType(e.Raw))
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(e.Raw)
				return
			}
		}
		writeJSON(w, http.StatusOK, viewOf(e, true))
	}
}

// UpdateMetadata refreshes the entry, or sets its slug when a slug is given (even empty).
func UpdateMetadata(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		actor := auth.UserFrom(r.Context())

		if _, err := d.Controller.Authorize(r.Context(), id, actor); err != nil {
			writeError(w, r, d, err)
			return
		}

		slug, present, err := parseSlug(w, r)
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		if present {
			if _, err := d.Controller.SetSlug(r.Context(), id, actor, slug); err != nil {
				writeError(w, r, d, err)
				return
			}
			writeJSON(w, http.StatusOK, successResponse{Success: true})
			return
		}

		res, err := d.Controller.Refresh(r.Context(), id, actor)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		// A failed download is a recorded outcome, not a failed request.
		writeJSON(w, http.StatusOK, refreshResponse{Success: true, Status: res.Status, Code: res.Code})
	}
}

// parseSlug reports whether a slug was supplied at all; "" is a request to clear it.
func parseSlug(w http.ResponseWriter, r *http.Request) (string, bool, error) {
	if isJSON(r) {
		var body struct {
			Slug *string `json:"slug"`
		}
		if err := decodeJSON(w, r, &body); err != nil {
			return "", false, err
		}
		if body.Slug != nil {
			return *body.Slug, true, nil
		}
		return "", false, nil
	}
	return formValue(r, "slug")
}

// DeleteMetadata removes an entry and its relation documents.
func DeleteMetadata(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := d.Controller.Delete(r.Context(), chi.URLParam(r, "id"), auth.UserFrom(r.Context()))
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusOK, idResponse{Success: true, ID: id})
	}
}
