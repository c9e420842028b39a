package main

import (
	"flag"
	"fmt"
	"log"
	"os"
)

func runWatch(add bool) {
	name := "unwatch"
	if add {
		name = "watch"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := commonFlags(fs)
	fs.Parse(os.Args[1:])
	id := requireArg(fs, "id")

	st := openStore(loadConfig(*configPath))
	defer st.Close()

	if add {
		if len(st.History(id)) == 0 {
			fmt.Fprintf(os.Stderr, "unknown question %q\n", id)
			os.Exit(1)
		}
		if err := st.AddToWatch(id); err != nil {
			log.Fatalf("failed to watch: %v", err)
		}
		fmt.Printf("Watching %s\n", id)
		return
	}

	if err := st.RemoveFromWatch(id); err != nil {
		log.Fatalf("failed to unwatch: %v", err)
	}
	fmt.Printf("Not watching %s\n", id)
}
