// Command questwatch tracks question popularity over time.
//
// It fetches question batches on a fixed interval, keeps a short history
// per question, and shows the latest state in a terminal table. With
// -headless it runs without the TUI and logs a summary after every cycle.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abelbrown/questwatch/internal/config"
	"github.com/abelbrown/questwatch/internal/coord"
	"github.com/abelbrown/questwatch/internal/fetch"
	"github.com/abelbrown/questwatch/internal/journal"
	"github.com/abelbrown/questwatch/internal/logging"
	"github.com/abelbrown/questwatch/internal/metrics"
	"github.com/abelbrown/questwatch/internal/store"
	"github.com/abelbrown/questwatch/internal/ui"
	"github.com/abelbrown/questwatch/internal/view"
)

// headlessTop is how many projected rows a headless cycle logs.
const headlessTop = 5

func main() {
	configPath := flag.String("config", "", "config file (default ~/.questwatch/config.json)")
	headless := flag.Bool("headless", false, "run without the TUI and log each cycle")
	flag.Parse()

	if err := run(*configPath, *headless); err != nil {
		fmt.Fprintf(os.Stderr, "questwatch: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, headless bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if headless && cfg.Log.File == "" {
		logging.InitWriter(os.Stderr, cfg.Log.Level)
	} else if err := logging.Init(cfg.Log.File, cfg.Log.Level); err != nil {
		return err
	}
	defer logging.Close()

	persister, err := openPersister(cfg.Storage)
	if err != nil {
		return err
	}
	st, err := store.Open(persister, store.Options{
		MaxHistory: cfg.MaxHistory,
		Logger:     logging.WithPrefix("store"),
	})
	if err != nil {
		persister.Close()
		return err
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := metrics.NewCollector(reg)
	if err != nil {
		return err
	}
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, reg)
	}

	events := journal.NewRingBuffer(journal.DefaultRingSize)
	jrnl, err := openJournal(cfg.EventsFile, events)
	if err != nil {
		return err
	}
	defer jrnl.Close()
	jrnl.Info(journal.KindStartup, "main", fmt.Sprintf("%d items, %d watched", st.Len(), len(st.State().Watched)))

	fetcher := fetch.NewFetcher(cfg.FetchTimeout.Std())
	sched := coord.New(fetch.All(fetcher, cfg.Sources, logging.WithPrefix("fetch")), st, coord.Options{
		Interval:     cfg.Interval.Std(),
		FetchTimeout: cfg.FetchTimeout.Std(),
		MinFetchGap:  cfg.MinFetchGap.Std(),
		Logger:       logging.WithPrefix("coord"),
		Metrics:      collector,
		Journal:      jrnl,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if headless {
		err = runHeadless(ctx, st, sched)
	} else {
		err = runTUI(ctx, st, sched, jrnl, events)
	}
	jrnl.Info(journal.KindShutdown, "main", "")
	return err
}

// openJournal returns nil when path is empty; a nil journal drops events.
func openJournal(path string, ring *journal.RingBuffer) (*journal.Journal, error) {
	if path == "" {
		return nil, nil
	}
	j, err := journal.OpenFile(path)
	if err != nil {
		return nil, err
	}
	j.SetRingBuffer(ring)
	return j, nil
}

func openPersister(cfg config.StorageConfig) (store.Persister, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		return store.OpenSQLite(cfg.DBPath)
	default:
		for _, p := range []string{cfg.ItemsFile, cfg.WatchedFile} {
			if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
				return nil, fmt.Errorf("create data directory: %w", err)
			}
		}
		return store.NewJSONFiles(cfg.ItemsFile, cfg.WatchedFile), nil
	}
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logging.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Error("metrics server stopped", "err", err)
	}
}

func runTUI(ctx context.Context, st *store.Store, sched *coord.Scheduler, jrnl *journal.Journal, events *journal.RingBuffer) error {
	app := ui.NewApp(ui.AppConfig{
		LoadState: func() tea.Cmd {
			return func() tea.Msg {
				return ui.StateLoaded{State: st.State()}
			}
		},
		ToggleWatch: toggleWatch(st, jrnl),
		TriggerFetch: func() tea.Cmd {
			return func() tea.Msg {
				return ui.FetchRequested{Err: sched.Refresh()}
			}
		},
		LastRefresh: sched.LastRefresh,
		Events:      events,
	})

	program := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	observer := ui.NewProgramObserver(program)
	if err := st.Register(observer); err != nil {
		return err
	}
	defer st.Unregister(observer)

	if err := sched.Start(ctx); err != nil {
		return err
	}

	_, err := program.Run()
	sched.Stop()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// watchEditor is the part of the store the TUI edits.
type watchEditor interface {
	AddToWatch(identity string) error
	RemoveFromWatch(identity string) error
}

// toggleWatch builds the TUI's watch command. Successful toggles are journaled.
func toggleWatch(st watchEditor, jrnl *journal.Journal) func(id string, watch bool) tea.Cmd {
	return func(id string, watch bool) tea.Cmd {
		return func() tea.Msg {
			kind := journal.KindWatchAdd
			var err error
			if watch {
				err = st.AddToWatch(id)
			} else {
				kind = journal.KindWatchRemove
				err = st.RemoveFromWatch(id)
			}
			if err == nil {
				jrnl.Emit(journal.Event{Level: journal.LevelInfo, Kind: kind, Comp: "ui", Identity: id})
			}
			return ui.WatchToggled{ID: id, Watched: watch, Err: err}
		}
	}
}

// cycleLogger logs the top of the projection after every merge.
type cycleLogger struct {
	logger *log.Logger
}

func (c *cycleLogger) OnUpdate(state store.State) error {
	top := view.ProjectLimit(state, headlessTop)
	c.logger.Info("state updated", "items", state.Len(), "watched", len(state.Watched))
	for i, snap := range top {
		c.logger.Info(fmt.Sprintf("#%d", i+1),
			"id", snap.Identity,
			"score", snap.PotentialScore,
			"views", snap.ViewTotal,
			"+views", snap.ViewIncrement,
			"answers", snap.AnswerTotal,
			"watched", state.IsWatched(snap.Identity),
		)
	}
	return nil
}

func runHeadless(ctx context.Context, st *store.Store, sched *coord.Scheduler) error {
	observer := &cycleLogger{logger: logging.WithPrefix("headless")}
	if err := st.Register(observer); err != nil {
		return err
	}
	defer st.Unregister(observer)

	if err := sched.Start(ctx); err != nil {
		return err
	}
	logging.Info("running headless", "items", st.Len())

	<-ctx.Done()
	logging.Info("shutting down")
	sched.Stop()
	return nil
}
