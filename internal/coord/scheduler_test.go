package coord

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/abelbrown/questwatch/internal/journal"
	"github.com/abelbrown/questwatch/internal/metrics"
	"github.com/abelbrown/questwatch/internal/store"
)

// mockMerger records merged batches.
type mockMerger struct {
	mu      sync.Mutex
	batches [][]store.RawItem
	err     error
	merged  chan struct{}
}

func newMockMerger() *mockMerger {
	return &mockMerger{merged: make(chan struct{}, 100)}
}

func (m *mockMerger) Merge(items []store.RawItem) (store.ChangeRecord, error) {
	m.mu.Lock()
	m.batches = append(m.batches, items)
	err := m.err
	m.mu.Unlock()
	m.merged <- struct{}{}
	return store.ChangeRecord{New: items}, err
}

func (m *mockMerger) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

func (m *mockMerger) count() int {
	return m.Len()
}

// waitMerged waits for n merges or fails the test.
func (m *mockMerger) waitMerged(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-m.merged:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for merge %d of %d", i+1, n)
		}
	}
}

func batch(ids ...string) []store.RawItem {
	out := make([]store.RawItem, len(ids))
	for i, id := range ids {
		out[i] = store.RawItem{Identity: id}
	}
	return out
}

func staticFetch(items []store.RawItem) FetchFunc {
	return func(ctx context.Context) ([]store.RawItem, error) {
		return items, nil
	}
}

func TestSchedulerFirstCycleRunsImmediately(t *testing.T) {
	merger := newMockMerger()
	s := New(staticFetch(batch("a")), merger, Options{Interval: time.Hour})

	if s.State() != Idle {
		t.Fatalf("expected idle, got %s", s.State())
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	merger.waitMerged(t, 1)
	if s.State() != Running {
		t.Errorf("expected running, got %s", s.State())
	}
	if s.LastRefresh().IsZero() {
		t.Error("expected LastRefresh to be set")
	}
}

func TestSchedulerRunsOnInterval(t *testing.T) {
	merger := newMockMerger()
	s := New(staticFetch(batch("a")), merger, Options{Interval: 20 * time.Millisecond})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	merger.waitMerged(t, 3)
}

func TestSchedulerRefresh(t *testing.T) {
	merger := newMockMerger()
	s := New(staticFetch(batch("a")), merger, Options{Interval: time.Hour})

	if err := s.Refresh(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning before Start, got %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	merger.waitMerged(t, 1)

	if err := s.Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	merger.waitMerged(t, 1)

	s.Stop()
	if err := s.Refresh(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning after Stop, got %v", err)
	}
}

func TestSchedulerRefreshesCoalesce(t *testing.T) {
	release := make(chan struct{})
	var fetches atomic.Int32
	fetch := func(ctx context.Context) ([]store.RawItem, error) {
		if fetches.Add(1) == 1 {
			<-release
		}
		return batch("a"), nil
	}
	merger := newMockMerger()
	s := New(fetch, merger, Options{Interval: time.Hour})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	// Several requests while the first cycle is in flight.
	for i := 0; i < 5; i++ {
		if err := s.Refresh(); err != nil {
			t.Fatalf("Refresh failed: %v", err)
		}
	}
	close(release)

	merger.waitMerged(t, 2)
	select {
	case <-merger.merged:
		t.Error("expected pending refreshes to coalesce into one cycle")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSchedulerStartTwice(t *testing.T) {
	s := New(staticFetch(nil), newMockMerger(), Options{Interval: time.Hour})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
	s.Stop()
	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted after Stop, got %v", err)
	}
}

func TestSchedulerStopBeforeStart(t *testing.T) {
	s := New(staticFetch(nil), newMockMerger(), Options{})
	s.Stop()
	if s.State() != Stopped {
		t.Errorf("expected stopped, got %s", s.State())
	}
	s.Stop() // idempotent
}

func TestSchedulerFetchFailureContinues(t *testing.T) {
	var calls atomic.Int32
	fetch := func(ctx context.Context) ([]store.RawItem, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("network down")
		}
		return batch("a"), nil
	}
	merger := newMockMerger()
	reg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector failed: %v", err)
	}
	s := New(fetch, merger, Options{Interval: 10 * time.Millisecond, Metrics: collector})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	merger.waitMerged(t, 1)
	s.Stop()

	status := s.Status()
	if status.Failures < 1 {
		t.Errorf("expected at least 1 recorded failure, got %d", status.Failures)
	}
	if status.Cycles < 2 {
		t.Errorf("expected at least 2 cycles, got %d", status.Cycles)
	}
	if got := testutil.ToFloat64(collector.FetchFailures); got != 1 {
		t.Errorf("expected 1 fetch failure metric, got %v", got)
	}
	if merger.batches[0][0].Identity != "a" {
		t.Error("failed cycle must not merge")
	}
}

func TestSchedulerRecoversFetchPanic(t *testing.T) {
	var calls atomic.Int32
	fetch := func(ctx context.Context) ([]store.RawItem, error) {
		if calls.Add(1) == 1 {
			panic("scraper bug")
		}
		return batch("a"), nil
	}
	merger := newMockMerger()
	s := New(fetch, merger, Options{Interval: 10 * time.Millisecond})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	merger.waitMerged(t, 1)
}

func TestSchedulerMergeErrorIsRecorded(t *testing.T) {
	merger := newMockMerger()
	merger.err = errors.New("disk full")
	s := New(staticFetch(batch("a")), merger, Options{Interval: time.Hour})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	merger.waitMerged(t, 1)
	s.Stop()

	status := s.Status()
	if !errors.Is(status.LastError, merger.err) {
		t.Errorf("expected LastError %v, got %v", merger.err, status.LastError)
	}
	if status.State != Stopped {
		t.Errorf("expected stopped, got %s", status.State)
	}
}

func TestSchedulerStopDuringFetchBlocksAndSkipsMerge(t *testing.T) {
	entered := make(chan struct{})
	var exited atomic.Bool
	fetch := func(ctx context.Context) ([]store.RawItem, error) {
		close(entered)
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		exited.Store(true)
		return batch("late"), nil
	}
	merger := newMockMerger()
	s := New(fetch, merger, Options{Interval: time.Hour})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	<-entered
	s.Stop()

	if !exited.Load() {
		t.Error("Stop returned before the in-flight fetch finished")
	}
	if s.State() != Stopped {
		t.Errorf("expected stopped, got %s", s.State())
	}
	time.Sleep(20 * time.Millisecond)
	if merger.count() != 0 {
		t.Errorf("expected no merge after Stop, got %d", merger.count())
	}
}

func TestSchedulerParentCancel(t *testing.T) {
	merger := newMockMerger()
	s := New(staticFetch(batch("a")), merger, Options{Interval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	merger.waitMerged(t, 1)

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for s.State() != Stopped {
		if time.Now().After(deadline) {
			t.Fatalf("expected stopped after parent cancel, got %s", s.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()
}

func TestSchedulerWithStore(t *testing.T) {
	st, err := store.Open(store.NewJSONFiles(t.TempDir()+"/q.json", t.TempDir()+"/w.json"), store.Options{MaxHistory: 2})
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	defer st.Close()

	var views atomic.Int64
	fetch := func(ctx context.Context) ([]store.RawItem, error) {
		v := views.Add(10)
		return []store.RawItem{{Identity: "q", ViewTotal: v}}, nil
	}

	updates := make(chan store.State, 10)
	obs := &chanObserver{ch: updates}
	if err := st.Register(obs); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	s := New(fetch, st, Options{Interval: 10 * time.Millisecond})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		select {
		case <-updates:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for store update")
		}
	}
	s.Stop()

	if got := len(st.History("q")); got != 2 {
		t.Errorf("expected bounded history of 2, got %d", got)
	}
	before := st.History("q")
	time.Sleep(30 * time.Millisecond)
	if after := st.History("q"); after[len(after)-1].ViewTotal != before[len(before)-1].ViewTotal {
		t.Error("store mutated after Stop returned")
	}
}

type chanObserver struct {
	ch chan store.State
}

func (c *chanObserver) OnUpdate(st store.State) error {
	select {
	case c.ch <- st:
	default:
	}
	return nil
}

func TestSchedulerJournalsCycles(t *testing.T) {
	var calls atomic.Int32
	fetch := func(ctx context.Context) ([]store.RawItem, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("timeout")
		}
		return batch("a", "b"), nil
	}
	var buf bytes.Buffer
	j := journal.New(&buf)
	ring := journal.NewRingBuffer(32)
	j.SetRingBuffer(ring)

	merger := newMockMerger()
	s := New(fetch, merger, Options{Interval: 10 * time.Millisecond, Journal: j})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	merger.waitMerged(t, 1)
	s.Stop()
	j.Close()

	stats := ring.Counts()
	if stats[journal.KindFetchError] != 1 {
		t.Errorf("expected 1 fetch error event, got %d", stats[journal.KindFetchError])
	}
	if stats[journal.KindCycleComplete] < 1 {
		t.Error("expected a cycle.complete event")
	}
	if stats[journal.KindCycleStart] < 2 {
		t.Errorf("expected at least 2 cycle.start events, got %d", stats[journal.KindCycleStart])
	}
	for _, ev := range ring.Last(ring.Len()) {
		if ev.Kind == journal.KindCycleComplete {
			if ev.Fetched != 2 || ev.New != 2 || ev.CycleID == "" {
				t.Errorf("unexpected cycle.complete event: %+v", ev)
			}
			break
		}
	}
}
