// Package coord provides the background update scheduler for questwatch.
package coord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/abelbrown/questwatch/internal/journal"
	"github.com/abelbrown/questwatch/internal/logging"
	"github.com/abelbrown/questwatch/internal/metrics"
	"github.com/abelbrown/questwatch/internal/store"
)

// DefaultInterval is the time between scheduled update cycles.
const DefaultInterval = 10 * time.Minute

// DefaultFetchTimeout bounds a single fetch call.
const DefaultFetchTimeout = 30 * time.Second

var (
	// ErrAlreadyStarted is returned by Start on a scheduler that has left Idle.
	ErrAlreadyStarted = errors.New("coord: scheduler already started")

	// ErrNotRunning is returned by Refresh outside the Running state.
	ErrNotRunning = errors.New("coord: scheduler not running")
)

// State is the scheduler lifecycle state.
type State int

const (
	Idle State = iota
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// FetchFunc acquires one batch of raw items. It should honor ctx.
type FetchFunc func(ctx context.Context) ([]store.RawItem, error)

// Merger receives fetched batches. *store.Store implements it.
type Merger interface {
	Merge(items []store.RawItem) (store.ChangeRecord, error)
	Len() int
}

// Options configures a Scheduler. Zero values take the defaults.
type Options struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	MinFetchGap  time.Duration // minimum spacing between fetches; 0 disables pacing
	Logger       *log.Logger
	Metrics      *metrics.Collector
	Journal      *journal.Journal
	Now          func() time.Time
}

// Status is a point-in-time view of the scheduler for display.
type Status struct {
	State       State
	LastRefresh time.Time // start of the most recent cycle
	LastCycleID string
	LastError   error // nil if the most recent cycle succeeded
	LastChanges store.ChangeRecord
	Cycles      int
	Failures    int
}

// Scheduler runs fetch-and-merge cycles on a single background goroutine.
//
// Lifecycle: Idle -> Running (Start) -> Stopping -> Stopped (Stop).
// Refresh interrupts the interval wait so the next cycle starts at once.
type Scheduler struct {
	fetch    FetchFunc
	merger   Merger
	interval time.Duration
	timeout  time.Duration
	limiter  *rate.Limiter
	logger   *log.Logger
	metrics  *metrics.Collector
	journal  *journal.Journal
	now      func() time.Time

	// refresh holds at most one pending out-of-band request.
	refresh chan struct{}
	wg      sync.WaitGroup

	mu     sync.Mutex // guards state, cancel, status
	state  State
	cancel context.CancelFunc
	status Status
}

// New creates an idle Scheduler.
func New(fetch FetchFunc, merger Merger, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.WithPrefix("coord")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	limit := rate.Inf
	if opts.MinFetchGap > 0 {
		limit = rate.Every(opts.MinFetchGap)
	}

	return &Scheduler{
		fetch:    fetch,
		merger:   merger,
		interval: opts.Interval,
		timeout:  opts.FetchTimeout,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		journal:  opts.Journal,
		now:      opts.Now,
		refresh:  make(chan struct{}, 1),
	}
}

// Start spawns the worker. The first cycle runs immediately.
// Cancelling ctx also ends the worker; Stop still settles the state.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Idle {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = Running

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("scheduler started", "interval", s.interval)
	return nil
}

// Stop cancels the worker and blocks until it has exited. After Stop
// returns no further Merge is issued. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	switch s.state {
	case Idle:
		s.state = Stopped
		s.mu.Unlock()
		return
	case Running:
		s.state = Stopping
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	if s.state != Stopped {
		s.state = Stopped
		s.logger.Info("scheduler stopped")
	}
	s.mu.Unlock()
}

// Refresh requests an immediate cycle without waiting for it to complete.
// A request made while a cycle is in flight starts the next cycle as soon
// as the current one finishes. Requests coalesce while one is pending.
func (s *Scheduler) Refresh() error {
	s.mu.Lock()
	running := s.state == Running
	s.mu.Unlock()
	if !running {
		return ErrNotRunning
	}

	select {
	case s.refresh <- struct{}{}:
	default:
	}
	return nil
}

// State returns the lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns the latest cycle bookkeeping.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.State = s.state
	return st
}

// LastRefresh returns the start time of the most recent cycle, zero if none.
func (s *Scheduler) LastRefresh() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.LastRefresh
}

// run is the worker loop: cycle, then wait for the interval, a refresh
// request, or cancellation.
func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		if s.state == Running {
			// Parent context cancelled without Stop.
			s.state = Stopped
		}
		s.mu.Unlock()
	}()

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		s.cycle(ctx)

		timer.Reset(s.interval)
		select {
		case <-ctx.Done():
			return
		case <-s.refresh:
			s.logger.Debug("refresh requested")
		case <-timer.C:
		}
	}
}

// cycle performs one fetch and merge. Failures are recorded and logged,
// never returned: the loop always proceeds to its wait step.
func (s *Scheduler) cycle(ctx context.Context) {
	started := time.Now()
	id := uuid.NewString()
	logger := s.logger.With("cycle", id[:8])

	s.mu.Lock()
	s.status.LastRefresh = s.now()
	s.status.LastCycleID = id
	s.status.Cycles++
	s.mu.Unlock()
	s.metrics.CycleStarted()
	s.journal.Emit(journal.Event{Level: journal.LevelInfo, Kind: journal.KindCycleStart, Comp: "coord", CycleID: id})

	logger.Info("fetching new data")

	if err := s.limiter.Wait(ctx); err != nil {
		logger.Debug("cycle abandoned while pacing", "error", err)
		s.abandoned(id, started)
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	items, err := s.safeFetch(fetchCtx)
	cancel()

	if ctx.Err() != nil {
		logger.Info("cycle abandoned: scheduler stopping")
		s.abandoned(id, started)
		return
	}
	if err != nil {
		s.recordFailure(err)
		s.metrics.FetchFailed()
		s.journal.Emit(journal.Event{
			Level: journal.LevelError, Kind: journal.KindFetchError, Comp: "coord",
			CycleID: id, Dur: time.Since(started), Err: err.Error(),
		})
		logger.Error("fetch failed", "error", err)
		return
	}

	changes, err := s.merger.Merge(items)

	s.mu.Lock()
	s.status.LastChanges = changes
	s.status.LastError = err
	if err != nil {
		s.status.Failures++
	}
	s.mu.Unlock()

	if err != nil {
		s.metrics.PersistFailed()
		s.journal.Emit(journal.Event{
			Level: journal.LevelError, Kind: journal.KindPersistError, Comp: "coord",
			CycleID: id, Err: err.Error(),
		})
		logger.Error("merge not persisted", "error", err)
	}
	tracked := s.merger.Len()
	s.metrics.Merged(len(changes.New), len(changes.Updated), tracked)
	s.metrics.ObserveCycle(time.Since(started).Seconds())
	s.journal.Emit(journal.Event{
		Level: journal.LevelInfo, Kind: journal.KindCycleComplete, Comp: "coord",
		CycleID: id, Dur: time.Since(started),
		Fetched: len(items), New: len(changes.New), Updated: len(changes.Updated), Tracked: tracked,
	})

	logger.Info("data updated", "fetched", len(items), "new", len(changes.New), "updated", len(changes.Updated), "took", time.Since(started).Round(time.Millisecond))
}

// safeFetch calls the fetch function, converting a panic into an error.
func (s *Scheduler) safeFetch(ctx context.Context) (items []store.RawItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch panicked: %v", r)
		}
	}()
	return s.fetch(ctx)
}

func (s *Scheduler) abandoned(id string, started time.Time) {
	s.journal.Emit(journal.Event{
		Level: journal.LevelWarn, Kind: journal.KindCycleAbandoned, Comp: "coord",
		CycleID: id, Dur: time.Since(started),
	})
}

func (s *Scheduler) recordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastError = err
	s.status.Failures++
}
