package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Histories maps item identity to its snapshot history, oldest first.
// Iteration order is the order in which identities were first stored.
type Histories = orderedmap.OrderedMap[string, []Snapshot]

// WatchSet maps a watched identity to the snapshot captured when it was
// watched. Iteration order is watch order.
type WatchSet = orderedmap.OrderedMap[string, Snapshot]

// NewHistories returns an empty Histories.
func NewHistories() *Histories {
	return orderedmap.New[string, []Snapshot]()
}

// NewWatchSet returns an empty WatchSet.
func NewWatchSet() *WatchSet {
	return orderedmap.New[string, Snapshot]()
}

// Persister is the durable backing of a Store. Saves replace the whole
// artifact; a failed save must leave the previous artifact readable.
type Persister interface {
	Load() (*Histories, *WatchSet, error)
	SaveItems(items *Histories) error
	SaveWatched(watched *WatchSet) error
	Close() error
}

// JSONFiles persists the store as two independent JSON documents.
type JSONFiles struct {
	ItemsPath   string
	WatchedPath string
}

// NewJSONFiles creates a JSON persister for the two artifact paths.
func NewJSONFiles(itemsPath, watchedPath string) *JSONFiles {
	return &JSONFiles{ItemsPath: itemsPath, WatchedPath: watchedPath}
}

// Load reads both files. A missing file loads as empty.
func (j *JSONFiles) Load() (*Histories, *WatchSet, error) {
	items := NewHistories()
	if err := readJSON(j.ItemsPath, items); err != nil {
		return nil, nil, fmt.Errorf("load items: %w", err)
	}
	watched := NewWatchSet()
	if err := readJSON(j.WatchedPath, watched); err != nil {
		return nil, nil, fmt.Errorf("load watched: %w", err)
	}
	return items, watched, nil
}

// SaveItems rewrites the items file.
func (j *JSONFiles) SaveItems(items *Histories) error {
	if err := writeJSON(j.ItemsPath, items); err != nil {
		return fmt.Errorf("save items: %w", err)
	}
	return nil
}

// SaveWatched rewrites the watched file.
func (j *JSONFiles) SaveWatched(watched *WatchSet) error {
	if err := writeJSON(j.WatchedPath, watched); err != nil {
		return fmt.Errorf("save watched: %w", err)
	}
	return nil
}

// Close is a no-op; files are not held open between saves.
func (j *JSONFiles) Close() error {
	return nil
}

func readJSON(path string, v json.Unmarshaler) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return v.UnmarshalJSON(data)
}

// writeJSON writes to a sibling temp file and renames it over path, so a
// reader sees either the old or the new document.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
