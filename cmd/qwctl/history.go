package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
)

func runHistory() {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := commonFlags(fs)
	fs.Parse(os.Args[1:])
	id := requireArg(fs, "id")

	st := openStore(loadConfig(*configPath))
	defer st.Close()

	history := st.History(id)
	if len(history) == 0 {
		fmt.Fprintf(os.Stderr, "no history for %q\n", id)
		os.Exit(1)
	}

	latest := history[len(history)-1]
	fmt.Printf("%s\n", latest.DisplayText)
	fmt.Printf("Asked %s  Topics %v  Watched %v\n\n", latest.Date, latest.Topics, st.IsWatched(id))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SAVED AT\tPOTENTIAL\tVIEWS\t+VIEWS\tANSWERS\t+ANSWERS")
	for _, snap := range history {
		fmt.Fprintf(w, "%s\t%.1f\t%s\t%s\t%s\t%s\n",
			snap.SavedAt,
			snap.PotentialScore,
			humanize.Comma(snap.ViewTotal),
			signed(snap.ViewIncrement),
			humanize.Comma(snap.AnswerTotal),
			signed(snap.AnswerIncrement),
		)
	}
	w.Flush()
	fmt.Printf("\n%d of at most %d snapshots kept\n", len(history), st.MaxHistory())
}
