package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/apiregistry/internal/domain"
	"github.com/MrSnakeDoc/apiregistry/internal/logger"
	"github.com/MrSnakeDoc/apiregistry/internal/registry"
	"github.com/MrSnakeDoc/apiregistry/internal/search"
	"github.com/MrSnakeDoc/apiregistry/internal/search/bleveindex"
	"github.com/MrSnakeDoc/apiregistry/internal/store/memory"
	"github.com/MrSnakeDoc/apiregistry/internal/store/storetest"
)

type fakeSweeper struct {
	refreshes atomic.Int32
	checks    atomic.Int32
	reindexed int
	orphans   []string
	err       error
	block     chan struct{}
	refreshed chan struct{}
}

func (f *fakeSweeper) RefreshAll(context.Context) (*registry.SweepReport, error) {
	f.refreshes.Add(1)
	if f.refreshed != nil {
		f.refreshed <- struct{}{}
	}
	return &registry.SweepReport{Statuses: map[domain.WebStatus]int{}}, f.err
}

func (f *fakeSweeper) CheckAll(context.Context) (*registry.SweepReport, error) {
	f.checks.Add(1)
	if f.block != nil {
		<-f.block
	}
	return &registry.SweepReport{Statuses: map[domain.WebStatus]int{}}, f.err
}

func (f *fakeSweeper) ReindexAll(context.Context) (int, error) { return f.reindexed, f.err }

func (f *fakeSweeper) CollectOrphans(context.Context) ([]string, error) { return f.orphans, f.err }

func testLogger() logger.Logger { return logger.New("error", false) }

func TestRefresher_ManualTrigger(t *testing.T) {
	sw := &fakeSweeper{refreshed: make(chan struct{}, 1)}
	trigger := make(chan struct{})
	r := NewRefresher(sw, testLogger(), time.Hour, trigger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer r.Stop()

	trigger <- struct{}{}
	select {
	case <-sw.refreshed:
	case <-time.After(5 * time.Second):
		t.Fatal("manual trigger did not run a refresh")
	}

	if got := sw.refreshes.Load(); got != 1 {
		t.Errorf("expected 1 refresh, got %d", got)
	}
}

func TestRefresher_TickerRuns(t *testing.T) {
	sw := &fakeSweeper{refreshed: make(chan struct{}, 4)}
	r := NewRefresher(sw, testLogger(), 10*time.Millisecond, make(chan struct{}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer r.Stop()

	select {
	case <-sw.refreshed:
	case <-time.After(5 * time.Second):
		t.Fatal("ticker never fired")
	}
}

func TestRefresher_ErrorIsLoggedNotFatal(t *testing.T) {
	sw := &fakeSweeper{err: errors.New("store down")}
	r := NewRefresher(sw, testLogger(), time.Hour, nil)
	r.Refresh(context.Background())

	if got := sw.refreshes.Load(); got != 1 {
		t.Errorf("expected 1 refresh attempt, got %d", got)
	}
}

func TestUptimeSweeper_InvalidSpec(t *testing.T) {
	u := NewUptimeSweeper(&fakeSweeper{}, testLogger(), "every now and then")
	if err := u.Start(context.Background()); err == nil {
		t.Fatal("expected an error for an invalid cron spec")
	}
}

func TestUptimeSweeper_DefaultSpec(t *testing.T) {
	u := NewUptimeSweeper(&fakeSweeper{}, testLogger(), "")
	if u.spec != DefaultUptimeSpec {
		t.Errorf("expected default spec, got %q", u.spec)
	}
	if err := u.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	u.Stop()
}

func TestUptimeSweeper_SkipsOverlappingRuns(t *testing.T) {
	sw := &fakeSweeper{block: make(chan struct{})}
	u := NewUptimeSweeper(sw, testLogger(), "")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		u.Check(context.Background())
	}()

	deadline := time.Now().Add(5 * time.Second)
	for sw.checks.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	u.Check(context.Background())
	close(sw.block)
	wg.Wait()

	if got := sw.checks.Load(); got != 1 {
		t.Errorf("expected overlapping run to be skipped, got %d checks", got)
	}
}

func TestIndexSyncer_Sync(t *testing.T) {
	if err := NewIndexSyncer(&fakeSweeper{reindexed: 3}, testLogger()).Sync(context.Background()); err != nil {
		t.Errorf("Sync failed: %v", err)
	}
	if err := NewIndexSyncer(&fakeSweeper{}, testLogger()).Sync(context.Background()); err != nil {
		t.Errorf("Sync on empty store failed: %v", err)
	}
	if err := NewIndexSyncer(&fakeSweeper{err: errors.New("boom")}, testLogger()).Sync(context.Background()); err == nil {
		t.Error("expected Sync to surface the error")
	}
}

func TestOrphanCollector_Collect(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	idx, err := bleveindex.Open("")
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer idx.Close()

	ctl := registry.New(registry.Options{Store: st, Index: idx, Logger: testLogger()})

	if err := st.Create(ctx, storetest.Entry("live", "https://example.org/live.json", "alice")); err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, id := range []string{"live", "dead"} {
		doc := search.Document{ID: id + ":0", EntryID: id, Subject: "gene", Object: "disease", Predicate: "related_to"}
		if err := idx.Put(ctx, id, []search.Document{doc}); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	gc := NewOrphanCollector(ctl, testLogger(), time.Hour)
	if err := gc.Collect(ctx); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	ids, err := idx.EntryIDs(ctx)
	if err != nil {
		t.Fatalf("entry ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != "live" {
		t.Errorf("expected only live entry to remain indexed, got %v", ids)
	}
}

func TestOrphanCollector_StartStop(t *testing.T) {
	gc := NewOrphanCollector(&fakeSweeper{orphans: []string{"x"}}, testLogger(), 0)
	if gc.interval != DefaultGCInterval {
		t.Errorf("expected default interval, got %v", gc.interval)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := gc.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	gc.Stop()
}
