// Package fetch provides raw item acquisition for questwatch.
//
// Sources deliver JSON arrays of already-normalized items, typically written
// or served by an external scraper. Parsing of page markup and locale-formatted
// quantities is the scraper's job, not this package's.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/abelbrown/questwatch/internal/store"
)

// Source kinds.
const (
	KindFile = "file"
	KindHTTP = "http"
)

// maxBodyBytes caps a single source payload.
const maxBodyBytes = 32 << 20

// Source is one configured item feed.
type Source struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`     // "file" or "http"
	Location string `json:"location"` // file path or URL
}

// Validate reports configuration errors.
func (s Source) Validate() error {
	if s.Location == "" {
		return fmt.Errorf("source %q: empty location", s.Name)
	}
	switch s.Kind {
	case KindFile, KindHTTP:
		return nil
	default:
		return fmt.Errorf("source %q: unknown kind %q", s.Name, s.Kind)
	}
}

// Fetcher retrieves items from sources.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher with the given HTTP client timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch retrieves items from a source. Does NOT store items - caller
// decides what to do with them. Returns early if ctx is cancelled.
func (f *Fetcher) Fetch(ctx context.Context, src Source) ([]store.RawItem, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	switch src.Kind {
	case KindFile:
		return f.fetchFile(src)
	case KindHTTP:
		return f.fetchHTTP(ctx, src)
	default:
		return nil, fmt.Errorf("unknown source kind %q", src.Kind)
	}
}

func (f *Fetcher) fetchFile(src Source) ([]store.RawItem, error) {
	file, err := os.Open(src.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}
	defer file.Close()
	return decodeItems(file)
}

func (f *Fetcher) fetchHTTP(ctx context.Context, src Source) ([]store.RawItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.Location, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "questwatch/0.1")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}
	return decodeItems(io.LimitReader(resp.Body, maxBodyBytes))
}

// decodeItems reads a JSON array of items.
func decodeItems(r io.Reader) ([]store.RawItem, error) {
	var items []store.RawItem
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}
	return items, nil
}
