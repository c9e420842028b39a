// Command qwctl inspects and edits questwatch data without the TUI.
//
// Usage:
//
//	qwctl                   Show help
//	qwctl list              Projected question table
//	qwctl history <id>      Snapshot history of one question
//	qwctl watch <id>        Add a question to the watch set
//	qwctl unwatch <id>      Remove a question from the watch set
//	qwctl ingest <file>     Merge a JSON batch as one update cycle
//	qwctl stats             Store statistics
//	qwctl events            Tail the cycle event journal
package main

import (
	"fmt"
	"os"
)

const usage = `qwctl - questwatch inspection & maintenance CLI

Usage:
  qwctl <command> [flags] [args]

Commands:
  list        Projected question table (watched first, then by score)
  history     Snapshot history of one question
  watch       Add a question to the watch set
  unwatch     Remove a question from the watch set
  ingest      Merge a JSON batch file as one update cycle
  stats       Store statistics
  events      Tail the cycle event journal

Every command accepts -config to point at a non-default config file.
Do not edit data while questwatch is running against the same files.

Run 'qwctl <command> -h' for command-specific help.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(0)
	}

	cmd := os.Args[1]
	// Strip the program name + subcommand so flag sets see only their flags
	os.Args = os.Args[1:]

	switch cmd {
	case "list":
		runList()
	case "history":
		runHistory()
	case "watch":
		runWatch(true)
	case "unwatch":
		runWatch(false)
	case "ingest":
		runIngest()
	case "stats":
		runStats()
	case "events":
		runEvents()
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "qwctl: unknown command %q\n\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}
}
