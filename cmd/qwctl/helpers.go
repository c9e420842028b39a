package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/abelbrown/questwatch/internal/config"
	"github.com/abelbrown/questwatch/internal/logging"
	"github.com/abelbrown/questwatch/internal/store"
)

// commonFlags registers the flags every subcommand shares.
func commonFlags(fs *flag.FlagSet) *string {
	return fs.String("config", "", "config file (default ~/.questwatch/config.json)")
}

// loadConfig loads the config or fatals.
func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logging.InitWriter(os.Stderr, cfg.Log.Level)
	return cfg
}

// openStore opens the configured store or fatals.
func openStore(cfg *config.Config) *store.Store {
	var p store.Persister
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		mkdirFor(cfg.Storage.DBPath)
		db, err := store.OpenSQLite(cfg.Storage.DBPath)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		p = db
	default:
		mkdirFor(cfg.Storage.ItemsFile)
		mkdirFor(cfg.Storage.WatchedFile)
		p = store.NewJSONFiles(cfg.Storage.ItemsFile, cfg.Storage.WatchedFile)
	}

	st, err := store.Open(p, store.Options{MaxHistory: cfg.MaxHistory})
	if err != nil {
		p.Close()
		log.Fatalf("failed to open store: %v", err)
	}
	return st
}

func mkdirFor(path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}
}

// requireArg returns the single positional argument or exits with usage.
func requireArg(fs *flag.FlagSet, name string) string {
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: qwctl %s [flags] <%s>\n", fs.Name(), name)
		os.Exit(2)
	}
	return fs.Arg(0)
}

// signed formats n with separators and an explicit plus sign.
func signed(n int64) string {
	if n > 0 {
		return "+" + humanize.Comma(n)
	}
	return humanize.Comma(n)
}

// truncate shortens a string to max runes, appending "..." if truncated.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
