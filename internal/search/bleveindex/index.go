// Package bleveindex stores relation documents in an embedded Bleve index.
package bleveindex

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/MrSnakeDoc/apiregistry/internal/search"
)

const (
	fieldEntryID = "entry_id"
	// fieldSource holds the full document as JSON; stored, never indexed.
	fieldSource = "source_json"
	pageSize    = 500
)

// Index wraps a Bleve index.
type Index struct {
	index bleve.Index
}

var _ search.Index = (*Index)(nil)

// Open opens or creates the index at path. An empty path gives an in-memory index.
func Open(path string) (*Index, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create memory index: %w", err)
		}
		return &Index{index: idx}, nil
	}

	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	return &Index{index: idx}, nil
}

// buildIndexMapping maps every relation field as an exact keyword.
func buildIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentStaticMapping()
	docMapping.AddFieldMappingsAt(fieldEntryID, keywordField(true))
	for _, f := range search.SuggestFields {
		docMapping.AddFieldMappingsAt(f, keywordField(false))
	}

	source := bleve.NewTextFieldMapping()
	source.Index = false
	source.Store = true
	source.IncludeInAll = false
	source.IncludeTermVectors = false
	source.DocValues = false
	docMapping.AddFieldMappingsAt(fieldSource, source)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = keyword.Name

	return indexMapping
}

func keywordField(store bool) *mapping.FieldMapping {
	fm := bleve.NewKeywordFieldMapping()
	fm.Store = store
	fm.IncludeTermVectors = false
	fm.IncludeInAll = false
	return fm
}

func toFields(d search.Document) (map[string]interface{}, error) {
	src, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal document %s: %w", d.ID, err)
	}
	return map[string]interface{}{
		fieldEntryID:           d.EntryID,
		search.FieldSubject:    d.Subject,
		search.FieldObject:     d.Object,
		search.FieldPredicate:  d.Predicate,
		search.FieldNode:       d.Node,
		search.FieldProvidedBy: d.ProvidedBy,
		fieldSource:            string(src),
	}, nil
}

// Close closes the index
func (i *Index) Close() error {
	return i.index.Close()
}

// Put replaces the documents of one entry in a single batch.
func (i *Index) Put(ctx context.Context, entryID string, docs []search.Document) error {
	existing, err := i.idsForEntry(ctx, entryID)
	if err != nil {
		return err
	}

	batch := i.index.NewBatch()
	keep := make(map[string]bool, len(docs))
	for _, d := range docs {
		fields, err := toFields(d)
		if err != nil {
			return err
		}
		if err := batch.Index(d.ID, fields); err != nil {
			return fmt.Errorf("batch index %s: %w", d.ID, err)
		}
		keep[d.ID] = true
	}
	for _, id := range existing {
		if !keep[id] {
			batch.Delete(id)
		}
	}
	if batch.Size() == 0 {
		return nil
	}

	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// DeleteByEntry removes every document of an entry.
func (i *Index) DeleteByEntry(ctx context.Context, entryID string) error {
	ids, err := i.idsForEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	batch := i.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("delete documents of %s: %w", entryID, err)
	}
	return nil
}

func (i *Index) idsForEntry(ctx context.Context, entryID string) ([]string, error) {
	tq := bleve.NewTermQuery(entryID)
	tq.SetField(fieldEntryID)

	var ids []string
	for from := 0; ; from += pageSize {
		req := bleve.NewSearchRequestOptions(tq, pageSize, from, false)
		res, err := i.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("search documents of %s: %w", entryID, err)
		}
		for _, hit := range res.Hits {
			ids = append(ids, hit.ID)
		}
		if len(res.Hits) < pageSize {
			return ids, nil
		}
	}
}

// Search runs a filtered relation query.
func (i *Index) Search(ctx context.Context, q search.Query) (*search.Result, error) {
	q = q.Normalize()

	req := bleve.NewSearchRequestOptions(buildQuery(q), q.Size, q.From, false)
	req.Fields = []string{fieldSource}
	req.SortBy([]string{"_id"})

	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := make([]search.Document, 0, len(res.Hits))
	for _, hit := range res.Hits {
		raw, ok := hit.Fields[fieldSource].(string)
		if !ok {
			continue
		}
		var d search.Document
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, fmt.Errorf("decode hit %s: %w", hit.ID, err)
		}
		hits = append(hits, d)
	}

	return &search.Result{Total: res.Total, Hits: hits}, nil
}

func buildQuery(q search.Query) query.Query {
	var musts []query.Query
	add := func(field string, values []string) {
		if len(values) == 0 {
			return
		}
		should := make([]query.Query, 0, len(values))
		for _, v := range values {
			tq := bleve.NewTermQuery(strings.ToLower(v))
			tq.SetField(field)
			should = append(should, tq)
		}
		musts = append(musts, bleve.NewDisjunctionQuery(should...))
	}
	add(search.FieldSubject, q.Subject)
	add(search.FieldObject, q.Object)
	add(search.FieldPredicate, q.Predicate)
	add(search.FieldNode, q.Node)

	if len(musts) == 0 {
		return bleve.NewMatchAllQuery()
	}
	return bleve.NewConjunctionQuery(musts...)
}

// Suggest returns value counts for field using a term facet.
func (i *Index) Suggest(ctx context.Context, field string, size int) (map[string]int, error) {
	if !search.IsSuggestField(field) {
		return nil, fmt.Errorf("field %q cannot be aggregated", field)
	}
	return i.facet(ctx, field, size)
}

// EntryIDs lists the entries that own at least one document.
func (i *Index) EntryIDs(ctx context.Context) ([]string, error) {
	count, err := i.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	if count == 0 {
		return nil, nil
	}

	counts, err := i.facet(ctx, fieldEntryID, int(count))
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

func (i *Index) facet(ctx context.Context, field string, size int) (map[string]int, error) {
	if size <= 0 {
		size = search.DefaultSize
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), 0, 0, false)
	req.AddFacet(field, bleve.NewFacetRequest(field, size))

	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", field, err)
	}

	out := make(map[string]int)
	facet, ok := res.Facets[field]
	if !ok || facet.Terms == nil {
		return out, nil
	}
	for _, tf := range facet.Terms.Terms() {
		out[tf.Term] = tf.Count
	}
	return out, nil
}

// Count returns the number of documents in the index
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}
