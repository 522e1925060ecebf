// Package storetest holds the behaviour every store.Store implementation must share.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/apiregistry/internal/domain"
	"github.com/MrSnakeDoc/apiregistry/internal/store"
)

// Entry builds a minimal valid entry.
func Entry(id, url, owner string) *domain.Entry {
	raw := []byte(`{"openapi":"3.0.0"}`)
	return &domain.Entry{
		ID:          id,
		URL:         url,
		Owner:       owner,
		CreatedAt:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Raw:         raw,
		ContentHash: domain.HashContent(raw),
		Family:      domain.FamilyOpenAPI3,
		Version:     "3.0.0",
		Title:       "Test API " + id,
		WebStatus:   domain.StatusValid,
	}
}

// Run exercises s against the store contract. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		e := Entry("a1", "https://example.org/a.json", "alice")

		require.NoError(t, s.Create(ctx, e))

		got, err := s.Get(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, e.URL, got.URL)
		assert.Equal(t, e.Raw, got.Raw)
		assert.Equal(t, domain.StatusValid, got.WebStatus)

		byURL, err := s.GetByURL(ctx, e.URL)
		require.NoError(t, err)
		assert.Equal(t, "a1", byURL.ID)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("get missing is not found", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), "nope")
		assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
		_, err = s.GetBySlug(context.Background(), "nope")
		assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	})

	t.Run("duplicate url conflicts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, Entry("a1", "https://example.org/a.json", "alice")))

		err := s.Create(ctx, Entry("a2", "https://example.org/a.json", "bob"))
		assert.Equal(t, domain.KindConflict, domain.KindOf(err))

		_, err = s.Get(ctx, "a2")
		assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	})

	t.Run("concurrent creates for one url", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if err := s.Create(ctx, Entry(fmt.Sprintf("c%d", i), "https://example.org/same.json", "alice")); err == nil {
					wins.Add(1)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("update keeps identity", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, Entry("a1", "https://example.org/a.json", "alice")))

		updated, err := s.Update(ctx, "a1", func(e *domain.Entry) error {
			e.WebStatus = domain.StatusNoFile
			e.LastCheckedCode = domain.CodePtr(503)
			e.Owner = "mallory"
			e.URL = "https://evil.example/"
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusNoFile, updated.WebStatus)
		assert.Equal(t, "alice", updated.Owner)

		got, err := s.Get(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, 503, *got.LastCheckedCode)
		assert.Equal(t, "https://example.org/a.json", got.URL)
	})

	t.Run("update aborted by callback", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, Entry("a1", "https://example.org/a.json", "alice")))

		_, err := s.Update(ctx, "a1", func(e *domain.Entry) error {
			e.WebStatus = domain.StatusInvalid
			return domain.InvalidArgument("stop")
		})
		require.Error(t, err)

		got, err := s.Get(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusValid, got.WebStatus)
	})

	t.Run("update missing is not found", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Update(context.Background(), "nope", func(*domain.Entry) error { return nil })
		assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	})

	t.Run("slug lifecycle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, Entry("a1", "https://example.org/a.json", "alice")))
		require.NoError(t, s.Create(ctx, Entry("b1", "https://example.org/b.json", "bob")))

		_, err := s.SetSlug(ctx, "a1", "mygene")
		require.NoError(t, err)

		got, err := s.GetBySlug(ctx, "mygene")
		require.NoError(t, err)
		assert.Equal(t, "a1", got.ID)

		_, err = s.SetSlug(ctx, "b1", "mygene")
		assert.Equal(t, domain.KindConflict, domain.KindOf(err))

		// same slug again is a no-op
		_, err = s.SetSlug(ctx, "a1", "mygene")
		require.NoError(t, err)

		_, err = s.SetSlug(ctx, "a1", "mychem")
		require.NoError(t, err)
		_, err = s.GetBySlug(ctx, "mygene")
		assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

		// old slug is free for someone else now
		_, err = s.SetSlug(ctx, "b1", "mygene")
		require.NoError(t, err)

		cleared, err := s.SetSlug(ctx, "a1", "")
		require.NoError(t, err)
		assert.Empty(t, cleared.Slug)
		_, err = s.GetBySlug(ctx, "mychem")
		assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	})

	t.Run("delete releases url and slug", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, Entry("a1", "https://example.org/a.json", "alice")))
		_, err := s.SetSlug(ctx, "a1", "mygene")
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, "a1"))

		_, err = s.Get(ctx, "a1")
		assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
		_, err = s.GetBySlug(ctx, "mygene")
		assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
		assert.Equal(t, domain.KindNotFound, domain.KindOf(s.Delete(ctx, "a1")))

		require.NoError(t, s.Create(ctx, Entry("a2", "https://example.org/a.json", "bob")))
	})

	t.Run("list", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			require.NoError(t, s.Create(ctx, Entry(fmt.Sprintf("e%d", i), fmt.Sprintf("https://example.org/%d.json", i), "alice")))
		}
		entries, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, entries, 3)
		require.NoError(t, s.Ping(ctx))
	})
}
