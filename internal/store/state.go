package store

// History is one identity's snapshots, oldest first.
type History struct {
	Identity  string
	Snapshots []Snapshot
}

// Latest returns the newest snapshot. Histories in a State are never empty.
func (h History) Latest() Snapshot {
	return h.Snapshots[len(h.Snapshots)-1]
}

// State is an immutable copy of the store taken under its lock.
// Histories are in store key order; Watched is in watch order and holds the
// snapshots frozen at watch time.
type State struct {
	Histories []History
	Watched   []Snapshot

	index map[string]int
}

// Len returns the number of identities in the state.
func (st State) Len() int {
	return len(st.Histories)
}

// Latest returns identity's newest snapshot, if it has any.
func (st State) Latest(identity string) (Snapshot, bool) {
	i, ok := st.lookup(identity)
	if !ok {
		return Snapshot{}, false
	}
	return st.Histories[i].Latest(), true
}

// IsWatched reports whether identity was watched when the state was taken.
func (st State) IsWatched(identity string) bool {
	for _, w := range st.Watched {
		if w.Identity == identity {
			return true
		}
	}
	return false
}

// LatestPerItem returns every identity's newest snapshot ordered by
// descending potential score, ties in key order.
func (st State) LatestPerItem() []Snapshot {
	latest := make([]Snapshot, 0, len(st.Histories))
	for _, h := range st.Histories {
		latest = append(latest, h.Latest())
	}
	sortByScore(latest)
	return latest
}

func (st State) lookup(identity string) (int, bool) {
	if st.index != nil {
		i, ok := st.index[identity]
		return i, ok
	}
	for i, h := range st.Histories {
		if h.Identity == identity {
			return i, true
		}
	}
	return 0, false
}
