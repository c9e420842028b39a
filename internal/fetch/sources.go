package fetch

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/questwatch/internal/logging"
	"github.com/abelbrown/questwatch/internal/store"
)

// maxConcurrentFetches limits parallel source fetches.
const maxConcurrentFetches = 5

// sourceFetcher is the subset of Fetcher used by All (for testing).
type sourceFetcher interface {
	Fetch(ctx context.Context, src Source) ([]store.RawItem, error)
}

// All returns a fetch function over every source.
//
// Sources are fetched in parallel and their items concatenated in source
// order. An identity reported by several sources is kept only from the
// first of them; repeats within one source are kept. A failing source is logged and skipped; the batch fails only if
// every source failed.
func All(f sourceFetcher, sources []Source, logger *log.Logger) func(ctx context.Context) ([]store.RawItem, error) {
	if logger == nil {
		logger = logging.WithPrefix("fetch")
	}
	srcs := make([]Source, len(sources))
	copy(srcs, sources)

	return func(ctx context.Context) ([]store.RawItem, error) {
		if len(srcs) == 0 {
			return nil, nil
		}

		results := make([][]store.RawItem, len(srcs))
		errs := make([]error, len(srcs))

		var g errgroup.Group
		g.SetLimit(maxConcurrentFetches)
		for i, src := range srcs {
			g.Go(func() error {
				if ctx.Err() != nil {
					errs[i] = ctx.Err()
					return nil
				}
				items, err := f.Fetch(ctx, src)
				if err != nil {
					errs[i] = fmt.Errorf("%s: %w", src.Name, err)
					logger.Warn("source failed", "source", src.Name, "error", err)
					return nil
				}
				results[i] = items
				logger.Debug("source fetched", "source", src.Name, "items", len(items))
				return nil // never fail the group - errors reported per-source
			})
		}
		_ = g.Wait()

		failed := 0
		for _, err := range errs {
			if err != nil {
				failed++
			}
		}
		if failed == len(srcs) {
			return nil, fmt.Errorf("all %d sources failed: %w", failed, errors.Join(errs...))
		}

		// An identity belongs to the first source that reports it. Repeats
		// within that source stay; the store merges them in order.
		owner := make(map[string]int)
		var merged []store.RawItem
		for i, items := range results {
			for _, item := range items {
				if item.Identity != "" {
					if src, ok := owner[item.Identity]; ok && src != i {
						continue
					}
					owner[item.Identity] = i
				}
				merged = append(merged, item)
			}
		}
		return merged, nil
	}
}
