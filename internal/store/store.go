// Package store provides the versioned snapshot store for questwatch.
//
// The store keeps a bounded history of snapshots per item identity plus a
// user-curated watch set, persists both through a Persister, and notifies
// registered observers after every successful merge.
package store

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/abelbrown/questwatch/internal/logging"
	"github.com/abelbrown/questwatch/internal/notify"
)

// DefaultMaxHistory is the number of snapshots kept per item when
// Options.MaxHistory is unset.
const DefaultMaxHistory = 3

// Observer is notified with a full State after every successful merge.
type Observer = notify.Observer[State]

// Options configures a Store.
type Options struct {
	MaxHistory int              // snapshots kept per identity; <1 means DefaultMaxHistory
	Logger     *log.Logger      // nil uses the "store" component logger
	Now        func() time.Time // clock for SavedAt; nil uses time.Now
}

// Store owns item histories and the watch set. NOT an interface - concrete type.
// Thread-safety: all methods are safe for concurrent use. mu guards every
// mutation and every persister write, so readers never see a partial merge.
type Store struct {
	mu         sync.RWMutex
	persister  Persister
	items      *Histories
	watched    *WatchSet
	maxHistory int
	now        func() time.Time
	logger     *log.Logger

	// notifyMu is taken before mu is released in Merge so broadcasts are
	// delivered in merge order.
	notifyMu sync.Mutex
	notifier *notify.Notifier[State]
}

// Open loads the persisted state (or starts empty) and returns a Store.
// Histories longer than MaxHistory are trimmed to their newest entries and
// empty histories are dropped.
func Open(p Persister, opts Options) (*Store, error) {
	if opts.MaxHistory < 1 {
		opts.MaxHistory = DefaultMaxHistory
	}
	if opts.Logger == nil {
		opts.Logger = logging.WithPrefix("store")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	loaded, watched, err := p.Load()
	if err != nil {
		return nil, fmt.Errorf("load store: %w", err)
	}
	if loaded == nil {
		loaded = NewHistories()
	}
	if watched == nil {
		watched = NewWatchSet()
	}

	items := NewHistories()
	for pair := loaded.Oldest(); pair != nil; pair = pair.Next() {
		history := pair.Value
		if len(history) == 0 {
			continue
		}
		if over := len(history) - opts.MaxHistory; over > 0 {
			history = slices.Clone(history[over:])
		}
		// The file keys snapshots by identity; the objects need not repeat it.
		for i := range history {
			history[i].Identity = pair.Key
		}
		items.Set(pair.Key, history)
	}

	s := &Store{
		persister:  p,
		items:      items,
		watched:    watched,
		maxHistory: opts.MaxHistory,
		now:        opts.Now,
		logger:     opts.Logger,
		notifier:   notify.New[State](opts.Logger.WithPrefix("notify")),
	}
	s.logger.Debug("store opened", "items", items.Len(), "watched", watched.Len(), "max_history", s.maxHistory)
	return s, nil
}

// Close releases the persister.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persister.Close()
}

// MaxHistory returns the per-item history bound.
func (s *Store) MaxHistory() int {
	return s.maxHistory
}

// Register adds an observer. Registering the same observer twice is a no-op.
func (s *Store) Register(o Observer) error {
	return s.notifier.Register(o)
}

// Unregister removes an observer if present.
func (s *Store) Unregister(o Observer) {
	s.notifier.Unregister(o)
}

// Merge ingests one fetched batch.
//
// Every item is appended to its identity's history stamped with the current
// time. Items never seen before are reported in ChangeRecord.New; known
// items whose view or answer totals moved are reported in
// ChangeRecord.Updated. Items with an empty identity are skipped.
//
// After the batch the whole item set is persisted and then observers are
// notified. If persisting fails the in-memory merge is kept, observers are
// not notified, and the error is returned along with the change record.
func (s *Store) Merge(incoming []RawItem) (ChangeRecord, error) {
	s.mu.Lock()

	var changes ChangeRecord
	savedAt := NewTimestamp(s.now())
	skipped := 0

	for _, item := range incoming {
		if item.Identity == "" {
			skipped++
			continue
		}

		history, _ := s.items.Get(item.Identity)
		if len(history) > 0 {
			prior := history[len(history)-1]
			viewInc := item.ViewTotal - prior.ViewTotal
			answerInc := item.AnswerTotal - prior.AnswerTotal
			if viewInc != 0 || answerInc != 0 {
				changes.Updated = append(changes.Updated, Delta{
					Identity:        item.Identity,
					ViewIncrement:   viewInc,
					AnswerIncrement: answerInc,
				})
			}
		} else {
			changes.New = append(changes.New, Snapshot{RawItem: item}.clone().RawItem)
		}

		history = append(history, Snapshot{RawItem: item, SavedAt: savedAt}.clone())
		if over := len(history) - s.maxHistory; over > 0 {
			history = slices.Clone(history[over:])
		}
		s.items.Set(item.Identity, history)
	}

	if skipped > 0 {
		s.logger.Warn("skipped items without identity", "count", skipped)
	}

	if err := s.persister.SaveItems(s.items); err != nil {
		s.mu.Unlock()
		s.logger.Error("persist failed; memory ahead of disk", "error", err)
		return changes, fmt.Errorf("persist items: %w", err)
	}

	state := s.stateLocked()
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	if err := s.notifier.Broadcast(state); err != nil {
		s.logger.Warn("broadcast had failures", "error", err)
	}
	return changes, nil
}

// AddToWatch pins identity's current latest snapshot into the watch set.
// It is a no-op if identity is already watched or has no history.
func (s *Store) AddToWatch(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.watched.Get(identity); ok {
		return nil
	}
	history, _ := s.items.Get(identity)
	if len(history) == 0 {
		return nil
	}

	s.watched.Set(identity, history[len(history)-1].clone())
	if err := s.persister.SaveWatched(s.watched); err != nil {
		return fmt.Errorf("persist watched: %w", err)
	}
	return nil
}

// RemoveFromWatch unpins identity. It is a no-op if identity is not watched.
func (s *Store) RemoveFromWatch(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.watched.Delete(identity); !ok {
		return nil
	}
	if err := s.persister.SaveWatched(s.watched); err != nil {
		return fmt.Errorf("persist watched: %w", err)
	}
	return nil
}

// IsWatched reports whether identity is in the watch set.
func (s *Store) IsWatched(identity string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.watched.Get(identity)
	return ok
}

// History returns a copy of identity's snapshots, oldest first.
func (s *Store) History(identity string) []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history, _ := s.items.Get(identity)
	return cloneSnapshots(history)
}

// Len returns the number of stored identities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items.Len()
}

// LatestPerItem returns the newest snapshot of every stored identity,
// ordered by descending potential score. Ties keep store key order.
func (s *Store) LatestPerItem() []Snapshot {
	s.mu.RLock()
	latest := make([]Snapshot, 0, s.items.Len())
	for pair := s.items.Oldest(); pair != nil; pair = pair.Next() {
		latest = append(latest, pair.Value[len(pair.Value)-1].clone())
	}
	s.mu.RUnlock()

	sortByScore(latest)
	return latest
}

// State returns a consistent deep copy of the store for rendering.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

// stateLocked copies items and watch set. Caller must hold s.mu.
func (s *Store) stateLocked() State {
	st := State{
		Histories: make([]History, 0, s.items.Len()),
		Watched:   make([]Snapshot, 0, s.watched.Len()),
		index:     make(map[string]int, s.items.Len()),
	}
	for pair := s.items.Oldest(); pair != nil; pair = pair.Next() {
		st.index[pair.Key] = len(st.Histories)
		st.Histories = append(st.Histories, History{
			Identity:  pair.Key,
			Snapshots: cloneSnapshots(pair.Value),
		})
	}
	for pair := s.watched.Oldest(); pair != nil; pair = pair.Next() {
		w := pair.Value.clone()
		w.Identity = pair.Key
		st.Watched = append(st.Watched, w)
	}
	return st
}

// sortByScore orders snapshots by descending potential score, stable.
func sortByScore(snaps []Snapshot) {
	slices.SortStableFunc(snaps, func(a, b Snapshot) int {
		switch {
		case a.PotentialScore > b.PotentialScore:
			return -1
		case a.PotentialScore < b.PotentialScore:
			return 1
		default:
			return 0
		}
	})
}

func cloneSnapshots(in []Snapshot) []Snapshot {
	if len(in) == 0 {
		return nil
	}
	out := make([]Snapshot, len(in))
	for i, snap := range in {
		out[i] = snap.clone()
	}
	return out
}
