package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/apiregistry/internal/domain"
	"github.com/MrSnakeDoc/apiregistry/internal/httpserver/deps"
	"github.com/MrSnakeDoc/apiregistry/internal/logger"
)

// maxBodyBytes caps request bodies, raw documents included.
const maxBodyBytes = 8 << 20

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Reason  string `json:"reason"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindValidation, domain.KindInvalidArgument, domain.KindUpstreamFetch:
		// a document that cannot be downloaded is reported like one that does not validate
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as {success:false, error, reason}. Internal errors are logged and
// their details withheld.
func writeError(w http.ResponseWriter, r *http.Request, d deps.Deps, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	reason := domain.ReasonOf(err)

	if status == http.StatusInternalServerError {
		d.Logger.Error("request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Error(err))
		reason = "internal error"
	} else {
		d.Logger.Debug("request rejected",
			logger.String("path", r.URL.Path),
			logger.String("kind", string(kind)),
			logger.String("reason", reason))
	}

	writeJSON(w, status, errorResponse{Success: false, Error: string(kind), Reason: reason})
}
