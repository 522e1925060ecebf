package bleveindex

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/apiregistry/internal/search"
)

func doc(entryID string, i int, subject, predicate, object string) search.Document {
	return search.Document{
		ID:        fmt.Sprintf("%s:%d", entryID, i),
		EntryID:   entryID,
		Subject:   subject,
		Object:    object,
		Predicate: predicate,
		Node:      []string{subject, object},
		API:       search.APIRef{Name: entryID, Owner: "alice"},
	}
}

func seeded(t *testing.T) *Index {
	t.Helper()
	idx, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	ctx := context.Background()
	require.NoError(t, idx.Put(ctx, "mygene", []search.Document{
		doc("mygene", 0, "gene", "related_to", "disease"),
		doc("mygene", 1, "gene", "has_gene_product", "protein"),
	}))
	require.NoError(t, idx.Put(ctx, "mychem", []search.Document{
		doc("mychem", 0, "smallmolecule", "treats", "disease"),
	}))
	return idx
}

func TestSearchFilters(t *testing.T) {
	idx := seeded(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		q     search.Query
		total uint64
	}{
		{"match all", search.Query{}, 3},
		{"subject", search.Query{Subject: []string{"gene"}}, 2},
		{"subject case folded", search.Query{Subject: []string{"Gene"}}, 2},
		{"object any of", search.Query{Object: []string{"protein", "disease"}}, 3},
		{"and across fields", search.Query{Subject: []string{"gene"}, Object: []string{"disease"}}, 1},
		{"node", search.Query{Node: []string{"disease"}}, 2},
		{"predicate miss", search.Query{Predicate: []string{"nothing"}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := idx.Search(ctx, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.total, res.Total)
			assert.Len(t, res.Hits, int(tt.total))
		})
	}
}

func TestSearchReturnsFullDocuments(t *testing.T) {
	idx := seeded(t)
	res, err := idx.Search(context.Background(), search.Query{Subject: []string{"smallmolecule"}})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)

	hit := res.Hits[0]
	assert.Equal(t, "mychem:0", hit.ID)
	assert.Equal(t, "mychem", hit.API.Name)
	assert.Equal(t, "alice", hit.API.Owner)
}

func TestSearchPagination(t *testing.T) {
	idx := seeded(t)
	res, err := idx.Search(context.Background(), search.Query{From: 1, Size: 1})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.Total)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "mygene:0", res.Hits[0].ID)
}

func TestPutReplacesEntryDocuments(t *testing.T) {
	idx := seeded(t)
	ctx := context.Background()

	require.NoError(t, idx.Put(ctx, "mygene", []search.Document{
		doc("mygene", 0, "gene", "participates_in", "pathway"),
	}))

	res, err := idx.Search(ctx, search.Query{Subject: []string{"gene"}})
	require.NoError(t, err)
	require.Equal(t, uint64(1), res.Total)
	assert.Equal(t, "participates_in", res.Hits[0].Predicate)

	n, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
}

func TestPutEmptyClearsEntry(t *testing.T) {
	idx := seeded(t)
	ctx := context.Background()

	require.NoError(t, idx.Put(ctx, "mygene", nil))
	ids, err := idx.EntryIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"mychem"}, ids)
}

func TestDeleteByEntry(t *testing.T) {
	idx := seeded(t)
	ctx := context.Background()

	require.NoError(t, idx.DeleteByEntry(ctx, "mychem"))
	require.NoError(t, idx.DeleteByEntry(ctx, "unknown"))

	res, err := idx.Search(ctx, search.Query{})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Total)
	for _, h := range res.Hits {
		assert.Equal(t, "mygene", h.EntryID)
	}
}

func TestSuggest(t *testing.T) {
	idx := seeded(t)
	ctx := context.Background()

	counts, err := idx.Suggest(ctx, search.FieldObject, 10)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"disease": 2, "protein": 1}, counts)

	nodes, err := idx.Suggest(ctx, search.FieldNode, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, nodes["gene"])
	assert.Equal(t, 2, nodes["disease"])

	_, err = idx.Suggest(ctx, "api.owner", 10)
	assert.Error(t, err)
}

func TestEntryIDs(t *testing.T) {
	idx := seeded(t)
	ids, err := idx.EntryIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"mychem", "mygene"}, ids)
}

func TestEmptyIndex(t *testing.T) {
	idx, err := Open("")
	require.NoError(t, err)
	defer idx.Close()

	ids, err := idx.EntryIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)

	res, err := idx.Search(context.Background(), search.Query{})
	require.NoError(t, err)
	assert.Zero(t, res.Total)
}

func TestOpenOnDiskReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relations.bleve")
	ctx := context.Background()

	idx, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, idx.Put(ctx, "mygene", []search.Document{doc("mygene", 0, "gene", "related_to", "disease")}))
	require.NoError(t, idx.Close())

	idx, err = Open(path)
	require.NoError(t, err)
	defer idx.Close()

	res, err := idx.Search(ctx, search.Query{Subject: []string{"gene"}})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Total)
}
