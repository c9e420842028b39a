package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/abelbrown/questwatch/internal/fetch"
)

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := commonFlags(fs)
	verbose := fs.Bool("v", false, "List every new and updated question")
	fs.Parse(os.Args[1:])
	path := requireArg(fs, "file")

	cfg := loadConfig(*configPath)
	st := openStore(cfg)
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.FetchTimeout.Std())
	defer cancel()

	items, err := fetch.NewFetcher(cfg.FetchTimeout.Std()).Fetch(ctx, fetch.Source{
		Name:     "ingest",
		Kind:     fetch.KindFile,
		Location: path,
	})
	if err != nil {
		log.Fatalf("failed to read batch: %v", err)
	}

	start := time.Now()
	changes, err := st.Merge(items)
	if err != nil {
		log.Fatalf("merge not persisted: %v", err)
	}

	fmt.Printf("Merged %d items in %s: %s\n", len(items), time.Since(start).Round(time.Millisecond), changes)
	if !*verbose {
		return
	}
	for _, item := range changes.New {
		fmt.Printf("  new      %s  %s\n", item.Identity, truncate(item.DisplayText, 60))
	}
	for _, d := range changes.Updated {
		fmt.Printf("  updated  %s  views %s  answers %s\n", d.Identity, signed(d.ViewIncrement), signed(d.AnswerIncrement))
	}
}
