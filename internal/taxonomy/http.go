package taxonomy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	DefaultCacheTTL        = 1 * time.Hour
	defaultCleanupInterval = 2 * time.Hour
	maxResponseBytes       = 1 << 20
)

// HTTPLookup asks a remote taxonomy service for descendants:
// GET {base}/descendants/{term} -> JSON array of terms, 404 for unknown terms.
type HTTPLookup struct {
	base   string
	client *http.Client
	cache  *gocache.Cache
}

// NewHTTPLookup builds a cached lookup. A nil client uses a 10s timeout.
func NewHTTPLookup(baseURL string, client *http.Client, ttl time.Duration) *HTTPLookup {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &HTTPLookup{
		base:   strings.TrimRight(baseURL, "/"),
		client: client,
		cache:  gocache.New(ttl, defaultCleanupInterval),
	}
}

func (h *HTTPLookup) Descendants(ctx context.Context, term string) ([]string, error) {
	key := fold(term)
	if v, found := h.cache.Get(key); found {
		if terms, ok := v.([]string); ok {
			return append([]string(nil), terms...), nil
		}
	}

	endpoint := h.base + "/descendants/" + url.PathEscape(strings.TrimSpace(term))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build taxonomy request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("taxonomy request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTerm, term)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("taxonomy service answered %d", resp.StatusCode)
	}

	var terms []string
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&terms); err != nil {
		return nil, fmt.Errorf("decode taxonomy response: %w", err)
	}
	if len(terms) == 0 || fold(terms[0]) != key {
		terms = append([]string{strings.TrimSpace(term)}, terms...)
	}

	h.cache.SetDefault(key, terms)
	return append([]string(nil), terms...), nil
}
