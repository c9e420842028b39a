package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
)

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := commonFlags(fs)
	fs.Parse(os.Args[1:])

	cfg := loadConfig(*configPath)
	st := openStore(cfg)
	defer st.Close()

	state := st.State()

	snapshots := 0
	full := 0
	var views, answers int64
	for _, h := range state.Histories {
		snapshots += len(h.Snapshots)
		if len(h.Snapshots) == st.MaxHistory() {
			full++
		}
		latest := h.Latest()
		views += latest.ViewTotal
		answers += latest.AnswerTotal
	}

	fmt.Printf("Backend:               %s\n", cfg.Storage.Backend)
	fmt.Printf("Questions tracked:     %d\n", state.Len())
	fmt.Printf("Watched:               %d\n", len(state.Watched))
	fmt.Printf("Snapshots stored:      %d\n", snapshots)
	fmt.Printf("At max history (%d):    %d\n", st.MaxHistory(), full)
	fmt.Printf("Total views:           %s\n", humanize.Comma(views))
	fmt.Printf("Total answers:         %s\n", humanize.Comma(answers))

	var newest, oldest string
	for _, h := range state.Histories {
		saved := h.Latest().SavedAt.String()
		if newest == "" || saved > newest {
			newest = saved
		}
		first := h.Snapshots[0].SavedAt.String()
		if oldest == "" || first < oldest {
			oldest = first
		}
	}
	if newest != "" {
		fmt.Printf("\nOldest snapshot:       %s\n", oldest)
		fmt.Printf("Newest snapshot:       %s\n", newest)
	}
}
