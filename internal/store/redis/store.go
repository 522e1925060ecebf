package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/apiregistry/internal/domain"
	"github.com/MrSnakeDoc/apiregistry/internal/store"
)

// maxTxRetries bounds optimistic transaction retries under contention
const maxTxRetries = 8

// Store persists entries in Redis.
//
// Uniqueness is enforced with SETNX claim keys (URL -> ID, slug -> ID); entry
// mutations run inside WATCH/MULTI transactions so concurrent writers never
// interleave a read-modify-write.
type Store struct {
	client *redis.Client
}

var _ store.Store = (*Store)(nil)

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func load(ctx context.Context, g getter, id string) (*domain.Entry, error) {
	data, err := g.Get(ctx, EntryKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.NotFound("entry %s not found", id)
		}
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	var e domain.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return &e, nil
}

// Create stores a new entry after claiming its URL (and slug, if any)
func (s *Store) Create(ctx context.Context, e *domain.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	urlKey := URLKey(e.URL)
	claimed, err := s.client.SetNX(ctx, urlKey, e.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to claim url: %w", err)
	}
	if !claimed {
		return domain.Conflict("url %s is already registered", e.URL)
	}
	release := []string{urlKey}

	if e.Slug != "" {
		slugKey := SlugKey(e.Slug)
		ok, err := s.client.SetNX(ctx, slugKey, e.ID, 0).Result()
		if err != nil || !ok {
			s.release(ctx, release...)
			if err != nil {
				return fmt.Errorf("failed to claim slug: %w", err)
			}
			return domain.Conflict("slug %q is already in use", e.Slug)
		}
		release = append(release, slugKey)
	}

	var created *redis.BoolCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		created = pipe.SetNX(ctx, EntryKey(e.ID), data, 0)
		pipe.SAdd(ctx, AllEntriesKey(), e.ID)
		return nil
	})
	if err != nil {
		s.release(ctx, release...)
		return fmt.Errorf("failed to save entry: %w", err)
	}
	if !created.Val() {
		s.release(ctx, release...)
		return domain.Conflict("entry %s already exists", e.ID)
	}

	return nil
}

// release drops claim keys after a failed create (best effort)
func (s *Store) release(ctx context.Context, keys ...string) {
	_ = s.client.Del(ctx, keys...).Err()
}

// Get retrieves an entry from Redis by ID
func (s *Store) Get(ctx context.Context, id string) (*domain.Entry, error) {
	return load(ctx, s.client, id)
}

// GetBySlug resolves a slug claim then loads the entry
func (s *Store) GetBySlug(ctx context.Context, slug string) (*domain.Entry, error) {
	id, err := s.client.Get(ctx, SlugKey(slug)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.NotFound("slug %q not found", slug)
		}
		return nil, fmt.Errorf("failed to resolve slug: %w", err)
	}
	return s.Get(ctx, id)
}

// GetByURL resolves a URL claim then loads the entry
func (s *Store) GetByURL(ctx context.Context, url string) (*domain.Entry, error) {
	id, err := s.client.Get(ctx, URLKey(url)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.NotFound("no entry for url %s", url)
		}
		return nil, fmt.Errorf("failed to resolve url: %w", err)
	}
	return s.Get(ctx, id)
}

// Update runs fn against the current entry inside a WATCH transaction
func (s *Store) Update(ctx context.Context, id string, fn store.MutateFunc) (*domain.Entry, error) {
	key := EntryKey(id)
	var result *domain.Entry

	txf := func(tx *redis.Tx) error {
		cur, err := load(ctx, tx, id)
		if err != nil {
			return err
		}

		next := cur.Clone()
		if err := fn(next); err != nil {
			return err
		}
		store.KeepIdentity(cur, next)

		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = next
		return nil
	}

	if err := s.watch(ctx, txf, key); err != nil {
		return nil, err
	}
	return result, nil
}

// SetSlug claims the new slug, points the entry at it and drops the old claim
func (s *Store) SetSlug(ctx context.Context, id, slug string) (*domain.Entry, error) {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Slug == slug {
		return cur, nil
	}

	claimed := false
	if slug != "" {
		ok, err := s.client.SetNX(ctx, SlugKey(slug), id, 0).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to claim slug: %w", err)
		}
		if !ok {
			holder, err := s.client.Get(ctx, SlugKey(slug)).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return nil, fmt.Errorf("failed to read slug claim: %w", err)
			}
			if holder != id {
				return nil, domain.Conflict("slug %q is already in use", slug)
			}
		} else {
			claimed = true
		}
	}

	key := EntryKey(id)
	var result *domain.Entry
	txf := func(tx *redis.Tx) error {
		cur, err := load(ctx, tx, id)
		if err != nil {
			return err
		}
		old := cur.Slug
		next := cur.Clone()
		next.Slug = slug

		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if old != "" && old != slug {
				pipe.Del(ctx, SlugKey(old))
			}
			return nil
		})
		if err != nil {
			return err
		}
		result = next
		return nil
	}

	if err := s.watch(ctx, txf, key); err != nil {
		if claimed {
			s.release(ctx, SlugKey(slug))
		}
		return nil, err
	}
	return result, nil
}

// Delete removes an entry and its claims atomically
func (s *Store) Delete(ctx context.Context, id string) error {
	key := EntryKey(id)
	txf := func(tx *redis.Tx) error {
		cur, err := load(ctx, tx, id)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key, URLKey(cur.URL))
			if cur.Slug != "" {
				pipe.Del(ctx, SlugKey(cur.Slug))
			}
			pipe.SRem(ctx, AllEntriesKey(), id)
			return nil
		})
		return err
	}
	return s.watch(ctx, txf, key)
}

// List retrieves all entries from Redis
func (s *Store) List(ctx context.Context) ([]*domain.Entry, error) {
	ids, err := s.client.SMembers(ctx, AllEntriesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get entry IDs: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.Entry{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = EntryKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get entries: %w", err)
	}

	entries := make([]*domain.Entry, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Set member without a document, skip it
			continue
		}
		var e domain.Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entry %s: %w", ids[i], err)
		}
		entries = append(entries, &e)
	}

	return entries, nil
}

// Count returns the number of registered entries
func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, AllEntriesKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return int(n), nil
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// watch runs txf under WATCH on keys, retrying when another client won the race
func (s *Store) watch(ctx context.Context, txf func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, keys...)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("transaction on %v aborted after %d retries", keys, maxTxRetries)
}
