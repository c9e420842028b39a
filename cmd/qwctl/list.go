package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/abelbrown/questwatch/internal/view"
)

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := commonFlags(fs)
	limit := fs.Int("n", 0, "Show at most n rows (0 = all)")
	width := fs.Int("width", 60, "Truncate question text to this many characters")
	fs.Parse(os.Args[1:])

	st := openStore(loadConfig(*configPath))
	defer st.Close()

	state := st.State()
	rows := view.ProjectLimit(state, *limit)
	if len(rows) == 0 {
		fmt.Println("No questions stored.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "QUESTION\tASKED\tPOTENTIAL\tVIEWS\t+VIEWS\tANSWERS\t+ANSWERS\tWATCHED\tID")
	for _, snap := range rows {
		watched := "No"
		if state.IsWatched(snap.Identity) {
			watched = "Yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%.1f\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncate(snap.DisplayText, *width),
			snap.Date,
			snap.PotentialScore,
			humanize.Comma(snap.ViewTotal),
			signed(snap.ViewIncrement),
			humanize.Comma(snap.AnswerTotal),
			signed(snap.AnswerIncrement),
			watched,
			snap.Identity,
		)
	}
	w.Flush()
}
