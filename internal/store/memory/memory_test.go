package memory

import (
	"context"
	"testing"

	"github.com/MrSnakeDoc/apiregistry/internal/store"
	"github.com/MrSnakeDoc/apiregistry/internal/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestGetReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Create(ctx, storetest.Entry("a1", "https://example.org/a.json", "alice")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	first, _ := s.Get(ctx, "a1")
	first.Title = "mutated"
	first.Raw[0] = 'X'

	second, _ := s.Get(ctx, "a1")
	if second.Title == "mutated" || second.Raw[0] == 'X' {
		t.Error("Get() should return an independent copy")
	}
}
