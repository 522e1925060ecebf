package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/MrSnakeDoc/apiregistry/internal/domain"
	"github.com/MrSnakeDoc/apiregistry/internal/store"
)

// Store keeps entries in process memory. All uniqueness checks happen under one lock,
// so it is safe for concurrent use. Used for development and tests.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*domain.Entry // ID -> Entry
	urls    map[string]string        // URL -> ID
	slugs   map[string]string        // slug -> ID
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		entries: make(map[string]*domain.Entry),
		urls:    make(map[string]string),
		slugs:   make(map[string]string),
	}
}

func (s *Store) Create(_ context.Context, e *domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.urls[e.URL]; taken {
		return domain.Conflict("url %s is already registered", e.URL)
	}
	if _, exists := s.entries[e.ID]; exists {
		return domain.Conflict("entry %s already exists", e.ID)
	}
	if e.Slug != "" {
		if _, taken := s.slugs[e.Slug]; taken {
			return domain.Conflict("slug %q is already in use", e.Slug)
		}
		s.slugs[e.Slug] = e.ID
	}

	s.entries[e.ID] = e.Clone()
	s.urls[e.URL] = e.ID
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, domain.NotFound("entry %s not found", id)
	}
	return e.Clone(), nil
}

func (s *Store) GetBySlug(ctx context.Context, slug string) (*domain.Entry, error) {
	s.mu.RLock()
	id, ok := s.slugs[slug]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.NotFound("slug %q not found", slug)
	}
	return s.Get(ctx, id)
}

func (s *Store) GetByURL(ctx context.Context, url string) (*domain.Entry, error) {
	s.mu.RLock()
	id, ok := s.urls[url]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.NotFound("no entry for url %s", url)
	}
	return s.Get(ctx, id)
}

func (s *Store) Update(_ context.Context, id string, fn store.MutateFunc) (*domain.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.entries[id]
	if !ok {
		return nil, domain.NotFound("entry %s not found", id)
	}

	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	store.KeepIdentity(cur, next)

	s.entries[id] = next
	return next.Clone(), nil
}

func (s *Store) SetSlug(_ context.Context, id, slug string) (*domain.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.entries[id]
	if !ok {
		return nil, domain.NotFound("entry %s not found", id)
	}
	if cur.Slug == slug {
		return cur.Clone(), nil
	}
	if slug != "" {
		if holder, taken := s.slugs[slug]; taken && holder != id {
			return nil, domain.Conflict("slug %q is already in use", slug)
		}
		s.slugs[slug] = id
	}
	if cur.Slug != "" {
		delete(s.slugs, cur.Slug)
	}

	next := cur.Clone()
	next.Slug = slug
	s.entries[id] = next
	return next.Clone(), nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.entries[id]
	if !ok {
		return domain.NotFound("entry %s not found", id)
	}
	delete(s.entries, id)
	delete(s.urls, cur.URL)
	if cur.Slug != "" {
		delete(s.slugs, cur.Slug)
	}
	return nil
}

// List returns a snapshot of all entries ordered by creation time.
func (s *Store) List(_ context.Context) ([]*domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*domain.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e.Clone())
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *Store) Ping(context.Context) error { return nil }
