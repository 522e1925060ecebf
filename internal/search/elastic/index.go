// Package elastic stores relation documents in an Elasticsearch index.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/MrSnakeDoc/apiregistry/internal/search"
)

const (
	fieldID      = "id"
	fieldEntryID = "entry_id"
	// maxEntryBuckets bounds the entry_id aggregation used by EntryIDs.
	maxEntryBuckets = 10000
)

// Config holds the connection settings
type Config struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
	Transport http.RoundTripper
}

// Index is an Elasticsearch-backed search.Index.
type Index struct {
	client *es.Client
	name   string
}

var _ search.Index = (*Index)(nil)

// NewClient builds the Elasticsearch client.
func NewClient(cfg Config) (*es.Client, error) {
	client, err := es.NewClient(es.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return client, nil
}

// New wraps client around the named index.
func New(client *es.Client, name string) *Index {
	return &Index{client: client, name: name}
}

// Open builds a client and makes sure the index exists.
func Open(ctx context.Context, cfg Config) (*Index, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	idx := New(client, cfg.Index)
	if err := idx.EnsureIndex(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func indexMapping() map[string]any {
	keyword := map[string]any{"type": "keyword"}
	return map[string]any{
		"mappings": map[string]any{
			"dynamic": false,
			"properties": map[string]any{
				fieldID:                keyword,
				fieldEntryID:           keyword,
				search.FieldSubject:    keyword,
				search.FieldObject:     keyword,
				search.FieldPredicate:  keyword,
				search.FieldNode:       keyword,
				search.FieldProvidedBy: keyword,
				"display":              map[string]any{"type": "object", "enabled": false},
				"api":                  map[string]any{"type": "object", "enabled": false},
			},
		},
	}
}

// EnsureIndex creates the index with its mapping when it does not exist yet.
func (i *Index) EnsureIndex(ctx context.Context) error {
	res, err := i.client.Indices.Exists([]string{i.name}, i.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", i.name, err)
	}
	closeBody(res)
	if res.StatusCode == http.StatusOK {
		return nil
	}

	body, err := json.Marshal(indexMapping())
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}
	res, err = i.client.Indices.Create(
		i.name,
		i.client.Indices.Create.WithContext(ctx),
		i.client.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", i.name, err)
	}
	defer closeBody(res)
	if res.IsError() && !strings.Contains(res.String(), "resource_already_exists_exception") {
		return fmt.Errorf("create index %s: %s", i.name, res.String())
	}
	return nil
}

// Put indexes docs then removes any older document of the entry that is not among them.
func (i *Index) Put(ctx context.Context, entryID string, docs []search.Document) error {
	ids := make([]string, 0, len(docs))
	if len(docs) > 0 {
		var buf bytes.Buffer
		for _, d := range docs {
			meta := map[string]any{"index": map[string]any{"_index": i.name, "_id": d.ID}}
			if err := writeLine(&buf, meta); err != nil {
				return err
			}
			if err := writeLine(&buf, d); err != nil {
				return err
			}
			ids = append(ids, d.ID)
		}

		res, err := i.client.Bulk(
			bytes.NewReader(buf.Bytes()),
			i.client.Bulk.WithContext(ctx),
			i.client.Bulk.WithIndex(i.name),
			i.client.Bulk.WithRefresh("true"),
		)
		if err != nil {
			return fmt.Errorf("bulk index %s: %w", entryID, err)
		}
		defer closeBody(res)
		if res.IsError() {
			return fmt.Errorf("bulk index %s: %s", entryID, res.String())
		}

		var out struct {
			Errors bool `json:"errors"`
		}
		if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
			return fmt.Errorf("decode bulk response: %w", err)
		}
		if out.Errors {
			return fmt.Errorf("bulk index %s: some documents were rejected", entryID)
		}
	}

	boolQuery := map[string]any{
		"filter": []any{termQuery(fieldEntryID, entryID)},
	}
	if len(ids) > 0 {
		boolQuery["must_not"] = []any{map[string]any{"ids": map[string]any{"values": ids}}}
	}
	return i.deleteByQuery(ctx, map[string]any{"query": map[string]any{"bool": boolQuery}})
}

// DeleteByEntry removes every document of an entry.
func (i *Index) DeleteByEntry(ctx context.Context, entryID string) error {
	return i.deleteByQuery(ctx, map[string]any{"query": termQuery(fieldEntryID, entryID)})
}

func (i *Index) deleteByQuery(ctx context.Context, q map[string]any) error {
	body, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode delete query: %w", err)
	}
	res, err := i.client.DeleteByQuery(
		[]string{i.name},
		bytes.NewReader(body),
		i.client.DeleteByQuery.WithContext(ctx),
		i.client.DeleteByQuery.WithRefresh(true),
		i.client.DeleteByQuery.WithConflicts("proceed"),
	)
	if err != nil {
		return fmt.Errorf("delete by query: %w", err)
	}
	defer closeBody(res)
	if res.IsError() {
		return fmt.Errorf("delete by query: %s", res.String())
	}
	return nil
}

// Search runs a filtered relation query.
func (i *Index) Search(ctx context.Context, q search.Query) (*search.Result, error) {
	q = q.Normalize()

	body := map[string]any{
		"query": buildQuery(q),
		"from":  q.From,
		"size":  q.Size,
		"sort":  []any{map[string]any{fieldID: "asc"}},
		// exact totals keep pagination honest past 10k hits
		"track_total_hits": true,
	}

	var out struct {
		Hits struct {
			Total struct {
				Value uint64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source search.Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := i.search(ctx, body, &out); err != nil {
		return nil, err
	}

	hits := make([]search.Document, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		hits = append(hits, h.Source)
	}
	return &search.Result{Total: out.Hits.Total.Value, Hits: hits}, nil
}

func buildQuery(q search.Query) map[string]any {
	var filters []any
	add := func(field string, values []string) {
		if len(values) == 0 {
			return
		}
		folded := make([]string, 0, len(values))
		for _, v := range values {
			folded = append(folded, strings.ToLower(v))
		}
		filters = append(filters, map[string]any{"terms": map[string]any{field: folded}})
	}
	add(search.FieldSubject, q.Subject)
	add(search.FieldObject, q.Object)
	add(search.FieldPredicate, q.Predicate)
	add(search.FieldNode, q.Node)

	if len(filters) == 0 {
		return map[string]any{"match_all": map[string]any{}}
	}
	return map[string]any{"bool": map[string]any{"filter": filters}}
}

// Suggest aggregates field values with a terms aggregation.
func (i *Index) Suggest(ctx context.Context, field string, size int) (map[string]int, error) {
	if !search.IsSuggestField(field) {
		return nil, fmt.Errorf("field %q cannot be aggregated", field)
	}
	if size <= 0 {
		size = search.DefaultSize
	}
	return i.terms(ctx, field, size)
}

// EntryIDs lists the entries that own at least one document.
func (i *Index) EntryIDs(ctx context.Context) ([]string, error) {
	counts, err := i.terms(ctx, fieldEntryID, maxEntryBuckets)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (i *Index) terms(ctx context.Context, field string, size int) (map[string]int, error) {
	body := map[string]any{
		"size": 0,
		"aggs": map[string]any{
			"values": map[string]any{"terms": map[string]any{"field": field, "size": size}},
		},
	}

	var out struct {
		Aggregations struct {
			Values struct {
				Buckets []struct {
					Key      string `json:"key"`
					DocCount int    `json:"doc_count"`
				} `json:"buckets"`
			} `json:"values"`
		} `json:"aggregations"`
	}
	if err := i.search(ctx, body, &out); err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(out.Aggregations.Values.Buckets))
	for _, b := range out.Aggregations.Values.Buckets {
		counts[b.Key] = b.DocCount
	}
	return counts, nil
}

func (i *Index) search(ctx context.Context, body map[string]any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode search: %w", err)
	}
	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.name),
		i.client.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return fmt.Errorf("search %s: %w", i.name, err)
	}
	defer closeBody(res)
	if res.IsError() {
		return fmt.Errorf("search %s: %s", i.name, res.String())
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode search response: %w", err)
	}
	return nil
}

// Ping reports whether the cluster answers.
func (i *Index) Ping(ctx context.Context) error {
	res, err := i.client.Ping(i.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer closeBody(res)
	if res.IsError() {
		return fmt.Errorf("ping elasticsearch: %s", res.Status())
	}
	return nil
}

// Close is a no-op; the HTTP client has nothing to release.
func (i *Index) Close() error { return nil }

func termQuery(field, value string) map[string]any {
	return map[string]any{"term": map[string]any{field: value}}
}

func writeLine(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode bulk line: %w", err)
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

func closeBody(res *esapi.Response) {
	if res != nil && res.Body != nil {
		_ = res.Body.Close()
	}
}
