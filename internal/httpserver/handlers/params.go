package handlers

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/apiregistry/internal/domain"
)

func mediaType(r *http.Request) string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

func isForm(r *http.Request) bool {
	mt := mediaType(r)
	return mt == "application/x-www-form-urlencoded" || mt == "multipart/form-data"
}

func isJSON(r *http.Request) bool {
	return mediaType(r) == "application/json"
}

func hasBody(r *http.Request) bool {
	return r.ContentLength > 0 || len(r.TransferEncoding) > 0
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.InvalidArgument("could not read request body: %v", err)
	}
	return body, nil
}

// decodeJSON reads a JSON object body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := readBody(w, r)
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return domain.InvalidArgument("malformed JSON body: %v", err)
	}
	return nil
}

// formValue looks key up in the query string, then in a form body.
func formValue(r *http.Request, key string) (string, bool, error) {
	if isForm(r) {
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && err != http.ErrNotMultipart {
			return "", false, domain.InvalidArgument("malformed form body: %v", err)
		}
		if vs, ok := r.PostForm[key]; ok && len(vs) > 0 {
			return vs[0], true, nil
		}
	}
	if vs, ok := r.URL.Query()[key]; ok && len(vs) > 0 {
		return vs[0], true, nil
	}
	return "", false, nil
}

// parseBool accepts the usual spellings. A present but empty flag counts as true.
func parseBool(key, raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "1", "t", "true", "yes", "on":
		return true, nil
	case "0", "f", "false", "no", "off":
		return false, nil
	}
	return false, domain.InvalidArgument("%s must be a boolean, got %q", key, raw)
}

func parseInt(key, raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.InvalidArgument("%s must be a non-negative integer, got %q", key, raw)
	}
	return n, nil
}
