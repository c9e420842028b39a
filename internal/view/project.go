// Package view projects store state into display order.
package view

import "github.com/abelbrown/questwatch/internal/store"

// Project returns one snapshot per identity, newest of each history.
// Watched identities that still have history come first, in watch order;
// the rest follow by descending potential score, ties in store key order.
// The result never contains an identity twice.
func Project(st store.State) []store.Snapshot {
	out := make([]store.Snapshot, 0, st.Len())
	seen := make(map[string]bool, len(st.Watched))

	for _, w := range st.Watched {
		if seen[w.Identity] {
			continue
		}
		latest, ok := st.Latest(w.Identity)
		if !ok {
			continue
		}
		out = append(out, latest)
		seen[w.Identity] = true
	}

	for _, snap := range st.LatestPerItem() {
		if seen[snap.Identity] {
			continue
		}
		out = append(out, snap)
		seen[snap.Identity] = true
	}
	return out
}

// ProjectLimit is Project truncated to at most n entries; n <= 0 means all.
func ProjectLimit(st store.State, n int) []store.Snapshot {
	out := Project(st)
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
