package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/apiregistry/internal/auth"
	"github.com/MrSnakeDoc/apiregistry/internal/expansion"
	"github.com/MrSnakeDoc/apiregistry/internal/fetch/fetchtest"
	"github.com/MrSnakeDoc/apiregistry/internal/httpserver/deps"
	"github.com/MrSnakeDoc/apiregistry/internal/logger"
	"github.com/MrSnakeDoc/apiregistry/internal/metrics"
	"github.com/MrSnakeDoc/apiregistry/internal/registry"
	"github.com/MrSnakeDoc/apiregistry/internal/search/bleveindex"
	"github.com/MrSnakeDoc/apiregistry/internal/store/memory"
	"github.com/MrSnakeDoc/apiregistry/internal/taxonomy"
)

const (
	testSecret = "test-secret"
	apiURL     = "https://example.org/api.json"
)

var minimalDocument = []byte(`{
  "openapi": "3.0.3",
  "info": {"title": "MyGene.info API", "version": "3.0", "description": "Gene annotation as a service"},
  "paths": {"/gene/{id}": {"get": {"parameters": [{"name": "id", "in": "path", "required": true, "schema": {"type": "string"}}], "responses": {"200": {"description": "ok"}}}}},
  "components": {
    "x-bte-kgs-operations": {
      "gene2disease": [{"inputs": [{"semantic": "biolink:Gene"}], "outputs": [{"semantic": "biolink:Disease"}], "predicate": "biolink:gene_associated_with_condition", "source": "infores:mygene"}]
    }
  }
}`)

type testServer struct {
	handler http.Handler
	fetcher *fetchtest.Fetcher
	store   *memory.Store
	reload  chan struct{}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	idx, err := bleveindex.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	log := logger.NewNop()
	st := memory.New()
	f := fetchtest.New()
	m := metrics.New()

	var seq atomic.Int64
	ctl := registry.New(registry.Options{
		Store:     st,
		Fetcher:   f,
		Index:     idx,
		Logger:    log,
		Metrics:   m,
		UIBaseURL: "https://registry.example.org/ui",
		NewID:     func() string { return fmt.Sprintf("X%d", seq.Add(1)) },
	})
	t.Cleanup(ctl.Wait)

	ts := &testServer{fetcher: f, store: st, reload: make(chan struct{}, 1)}
	ts.handler = NewRouter(log, deps.Deps{
		Logger:         log,
		StartTime:      time.Now(),
		Version:        "test",
		RequestTimeout: 5 * time.Second,
		JWTSecret:      testSecret,
		Controller:     ctl,
		Expander:       expansion.New(taxonomy.Default()),
		Index:          idx,
		Store:          st,
		StoreBackend:   "memory",
		IndexBackend:   "bleve",
		Metrics:        m,
		ReloadTrigger:  ts.reload,
	})
	return ts
}

func token(t *testing.T, login string) string {
	t.Helper()
	tok, err := auth.IssueToken(testSecret, login, time.Hour)
	require.NoError(t, err)
	return tok
}

// rawJSON is sent verbatim with a JSON content type.
type rawJSON []byte

// do sends a request and decodes a JSON object response.
func (ts *testServer) do(t *testing.T, method, target, user string, body any) (int, map[string]any) {
	t.Helper()
	rec := ts.raw(t, method, target, user, body)
	out := map[string]any{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func (ts *testServer) raw(t *testing.T, method, target, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	switch b := body.(type) {
	case nil:
		req = httptest.NewRequest(method, target, nil)
	case url.Values:
		req = httptest.NewRequest(method, target, strings.NewReader(b.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	case []byte:
		req = httptest.NewRequest(method, target, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/yaml")
	case rawJSON:
		req = httptest.NewRequest(method, target, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		req = httptest.NewRequest(method, target, bytes.NewReader(data))
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, user))
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func TestEndToEnd_Lifecycle(t *testing.T) {
	ts := newTestServer(t)
	ts.fetcher.Serve(apiURL, http.StatusOK, minimalDocument)

	code, body := ts.do(t, http.MethodPost, "/api/metadata", "alice", map[string]any{"url": apiURL})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, true, body["success"])
	id, _ := body["_id"].(string)
	require.Equal(t, "X1", id)

	code, body = ts.do(t, http.MethodPost, "/api/metadata", "alice", map[string]any{"url": apiURL})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "conflict", body["error"])

	code, body = ts.do(t, http.MethodPut, "/api/metadata/"+id, "alice", map[string]any{})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "valid", body["status"])
	assert.Equal(t, float64(200), body["code"])

	ts.fetcher.Down(apiURL)
	code, body = ts.do(t, http.MethodPut, "/api/metadata/"+id, "alice", nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "nofile", body["status"])
	assert.Nil(t, body["code"])

	rec := ts.raw(t, http.MethodGet, "/api/metadata/"+id+"?raw=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, minimalDocument, rec.Body.Bytes(), "a failed refresh must keep the stored content")

	code, body = ts.do(t, http.MethodDelete, "/api/metadata/"+id, "alice", nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, map[string]any{"success": true, "_id": id}, body)

	code, body = ts.do(t, http.MethodGet, "/api/metadata/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["error"])
}

func TestEndToEnd_CreateVariants(t *testing.T) {
	ts := newTestServer(t)
	ts.fetcher.Serve(apiURL, http.StatusOK, minimalDocument)
	ts.fetcher.Serve("https://example.org/broken.json", http.StatusOK, []byte(`{"info": {"title": "nothing"}}`))
	ts.fetcher.Serve("https://example.org/gone.json", http.StatusNotFound, nil)

	tests := []struct {
		name       string
		user       string
		body       any
		wantStatus int
		wantKey    string
		wantValue  any
	}{
		{"anonymous create", "", map[string]any{"url": apiURL}, http.StatusUnauthorized, "error", "unauthenticated"},
		{"anonymous dryrun", "", map[string]any{"url": apiURL, "dryrun": true}, http.StatusOK, "details", "[Dryrun] Valid 3.0.3 Metadata"},
		{"form dryrun", "bob", url.Values{"url": {apiURL}, "dryrun": {"true"}}, http.StatusOK, "details", "[Dryrun] Valid 3.0.3 Metadata"},
		{"missing url", "bob", map[string]any{}, http.StatusBadRequest, "error", "invalid_argument"},
		{"invalid document", "bob", map[string]any{"url": "https://example.org/broken.json"}, http.StatusBadRequest, "error", "validation_error"},
		{"download failure", "bob", map[string]any{"url": "https://example.org/gone.json"}, http.StatusBadRequest, "error", "upstream_fetch_error"},
		{"bad dryrun flag", "bob", url.Values{"url": {apiURL}, "dryrun": {"maybe"}}, http.StatusBadRequest, "error", "invalid_argument"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := ts.do(t, http.MethodPost, "/api/metadata", tt.user, tt.body)
			assert.Equal(t, tt.wantStatus, code, body)
			assert.Equal(t, tt.wantValue, body[tt.wantKey])
		})
	}

	entries, err := ts.store.List(t.Context())
	require.NoError(t, err)
	assert.Empty(t, entries, "no variant above may persist an entry")
}

func TestEndToEnd_Ownership(t *testing.T) {
	ts := newTestServer(t)
	ts.fetcher.Serve(apiURL, http.StatusOK, minimalDocument)

	_, body := ts.do(t, http.MethodPost, "/api/metadata", "alice", map[string]any{"url": apiURL})
	id := body["_id"].(string)

	code, body := ts.do(t, http.MethodDelete, "/api/metadata/"+id, "mallory", nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "forbidden", body["error"])

	code, _ = ts.do(t, http.MethodPut, "/api/metadata/"+id, "", map[string]any{"slug": "mygene"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = ts.do(t, http.MethodDelete, "/api/metadata/unknown", "alice", nil)
	assert.Equal(t, http.StatusNotFound, code)

	malformed := []struct {
		name   string
		target string
		user   string
		want   int
		kind   string
	}{
		{"not the owner", "/api/metadata/" + id, "bob", http.StatusForbidden, "forbidden"},
		{"anonymous", "/api/metadata/" + id, "", http.StatusUnauthorized, "unauthenticated"},
		{"unknown entry", "/api/metadata/unknown", "bob", http.StatusNotFound, "not_found"},
		{"owner", "/api/metadata/" + id, "alice", http.StatusBadRequest, "invalid_argument"},
	}
	for _, tt := range malformed {
		t.Run("malformed update body/"+tt.name, func(t *testing.T) {
			code, body := ts.do(t, http.MethodPut, tt.target, tt.user, rawJSON("{"))
			assert.Equal(t, tt.want, code, body)
			assert.Equal(t, tt.kind, body["error"])
		})
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/metadata/"+id, nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEndToEnd_Slug(t *testing.T) {
	ts := newTestServer(t)
	ts.fetcher.Serve(apiURL, http.StatusOK, minimalDocument)
	_, body := ts.do(t, http.MethodPost, "/api/metadata", "alice", map[string]any{"url": apiURL})
	id := body["_id"].(string)

	code, body := ts.do(t, http.MethodPut, "/api/metadata/"+id, "alice", map[string]any{"slug": "MyGene"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, map[string]any{"success": true}, body)

	code, body = ts.do(t, http.MethodGet, "/api/metadata/mygene", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, id, body["_id"])
	meta := body["_meta"].(map[string]any)
	assert.Equal(t, "mygene", meta["slug"])
	assert.Equal(t, "alice", meta["username"])
	assert.NotNil(t, body["document"])

	code, body = ts.do(t, http.MethodPut, "/api/metadata/"+id, "alice", url.Values{"slug": {"api"}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_argument", body["error"])

	code, _ = ts.do(t, http.MethodPut, "/api/metadata/"+id, "alice", map[string]any{"slug": ""})
	require.Equal(t, http.StatusOK, code)
	code, _ = ts.do(t, http.MethodGet, "/api/metadata/mygene", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestEndToEnd_Validate(t *testing.T) {
	ts := newTestServer(t)
	ts.fetcher.Serve(apiURL, http.StatusOK, minimalDocument)

	code, body := ts.do(t, http.MethodGet, "/api/validate?url="+url.QueryEscape(apiURL), "", nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, map[string]any{"success": true, "details": "valid SmartAPI (3.0.3) metadata."}, body)

	code, body = ts.do(t, http.MethodPost, "/api/validate", "", url.Values{"url": {apiURL}})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, true, body["success"])

	yamlDoc := []byte("swagger: \"2.0\"\ninfo:\n  title: Legacy\n  version: \"1\"\npaths: {}\n")
	code, body = ts.do(t, http.MethodPost, "/api/validate", "", yamlDoc)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "valid SmartAPI (2.0) metadata.", body["details"])

	code, body = ts.do(t, http.MethodPost, "/api/validate", "", []byte(`{"info": {}}`))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["reason"])

	code, _ = ts.do(t, http.MethodGet, "/api/validate", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = ts.do(t, http.MethodGet, "/api/validate?url="+url.QueryEscape("https://example.org/gone.json"), "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "upstream_fetch_error", body["error"])

	entries, err := ts.store.List(t.Context())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEndToEnd_Uptime(t *testing.T) {
	ts := newTestServer(t)
	ts.fetcher.Serve(apiURL, http.StatusOK, minimalDocument)
	_, body := ts.do(t, http.MethodPost, "/api/metadata", "alice", map[string]any{"url": apiURL})
	id := body["_id"].(string)

	code, body := ts.do(t, http.MethodGet, "/api/uptime?id="+id, "alice", nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, map[string]any{"success": true, "details": "valid"}, body)

	ts.fetcher.Down(apiURL)
	code, body = ts.do(t, http.MethodPost, "/api/uptime", "alice", url.Values{"id": {id}})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "unreachable", body["details"])

	code, _ = ts.do(t, http.MethodGet, "/api/uptime", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(t, http.MethodGet, "/api/uptime?id="+id, "bob", nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestEndToEnd_MetaKG(t *testing.T) {
	ts := newTestServer(t)
	ts.fetcher.Serve(apiURL, http.StatusOK, minimalDocument)
	_, body := ts.do(t, http.MethodPost, "/api/metadata", "alice", map[string]any{"url": apiURL})
	id := body["_id"].(string)

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantTotal float64
	}{
		{"exact subject", "subject=Gene", http.StatusOK, 1},
		{"exact predicate", "predicate=gene_associated_with_condition", http.StatusOK, 1},
		{"ancestor without expand", "subject=GeneOrGeneProduct", http.StatusOK, 0},
		{"ancestor with expand", "subject=GeneOrGeneProduct&expand=true", http.StatusOK, 1},
		{"bare expand flag", "subject=NamedThing&expand", http.StatusOK, 1},
		{"no filters", "", http.StatusOK, 1},
		{"empty filter", "subject=&object=", http.StatusOK, 1},
		{"non matching object", "object=Gene", http.StatusOK, 0},
		{"unknown term with expand", "subject=NotAClass&expand=1", http.StatusBadRequest, 0},
		{"bad size", "size=abc", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := ts.do(t, http.MethodGet, "/api/metakg?"+tt.query, "", nil)
			require.Equal(t, tt.wantCode, code, body)
			if code != http.StatusOK {
				assert.Equal(t, false, body["success"])
				return
			}
			assert.Equal(t, tt.wantTotal, body["total"])
			hits := body["hits"].([]any)
			assert.Len(t, hits, int(tt.wantTotal))
			for _, h := range hits {
				api := h.(map[string]any)["api"].(map[string]any)
				assert.Equal(t, id, api["smartapi"].(map[string]any)["id"])
			}
		})
	}

	code, body := ts.do(t, http.MethodGet, "/api/metakg?subject=NotAClass&expand=true", "", nil)
	require.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["reason"], "Cannot get descendants for field: `subject` with value: `NotAClass`")
}

func TestEndToEnd_Suggestion(t *testing.T) {
	ts := newTestServer(t)
	ts.fetcher.Serve(apiURL, http.StatusOK, minimalDocument)
	ts.do(t, http.MethodPost, "/api/metadata", "alice", map[string]any{"url": apiURL})

	code, body := ts.do(t, http.MethodGet, "/api/suggestion?field=predicate", "", nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, map[string]any{"gene_associated_with_condition": float64(1)}, body)

	const kpURL = "https://example.org/kp.yaml"
	ts.fetcher.Serve(kpURL, http.StatusOK, []byte(`openapi: 3.0.3
info:
  title: Pathway KP
  version: "1.0"
  x-translator:
    component: KP
    team: [Service Provider, Exploring Agent]
tags:
  - name: translator
  - name: pathway
paths:
  /pathways:
    get:
      responses:
        "200":
          description: ok
`))
	code, body = ts.do(t, http.MethodPost, "/api/metadata", "bob", map[string]any{"url": kpURL})
	require.Equal(t, http.StatusOK, code, body)

	code, body = ts.do(t, http.MethodGet, "/api/suggestion?field=info.x-translator.team", "", nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, map[string]any{"Service Provider": float64(1), "Exploring Agent": float64(1)}, body,
		"registry fields count entries without relations")

	code, body = ts.do(t, http.MethodGet, "/api/suggestion?field=tags.name&size=1", "", nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, map[string]any{"pathway": float64(1)}, body, "ties are broken by value")

	code, body = ts.do(t, http.MethodGet, "/api/suggestion?field=owner", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["reason"], "tags.name")

	code, _ = ts.do(t, http.MethodGet, "/api/suggestion", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestEndToEnd_Operational(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "memory", body["store"])
	assert.Equal(t, "bleve", body["index"])

	code, body = ts.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["ready"])

	code, body = ts.do(t, http.MethodGet, "/infra", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "operational", body["mode"])

	rec := ts.raw(t, http.MethodPost, "/api/reload", "", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	rec = ts.raw(t, http.MethodPost, "/api/reload", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "trigger channel is full")

	rec = ts.raw(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "apiregistry_")

	req := httptest.NewRequest(http.MethodOptions, "/api/metadata", nil)
	req.Header.Set("Origin", "https://ui.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
