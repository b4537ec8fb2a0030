package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stackfall.dev/internal/persistence/indexdb"
	persistlog "stackfall.dev/internal/persistence/log"
)

// dbCmd queries the results index: the top games, or one game's indexed
// ticks checked against its log.
func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	top := fs.Int("top", 10, "number of results to print")
	gameID := fs.String("game", "", "print indexed ticks of this game and verify its log")
	_ = fs.Parse(args)

	path := filepath.Join(*dataDir, "index.sqlite")
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "index:", err)
		os.Exit(1)
	}
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open index:", err)
		os.Exit(1)
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if *gameID != "" {
		n, last, err := idx.GameTicks(ctx, *gameID)
		if err != nil {
			fmt.Fprintln(os.Stderr, "ticks:", err)
			os.Exit(1)
		}
		fmt.Printf("game=%s indexed_ticks=%d last_digest=%s\n", *gameID, n, last)
		rep, err := persistlog.Replay(persistlog.GamePath(*dataDir, *gameID), 0)
		if err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
		fmt.Printf("log verified: ticks=%d lines=%d over=%v\n", rep.Checked, rep.Lines, rep.Over)
		return
	}

	rows, err := idx.TopResults(ctx, *top)
	if err != nil {
		fmt.Fprintln(os.Stderr, "results:", err)
		os.Exit(1)
	}
	for i, r := range rows {
		fmt.Printf("%2d. %s lines=%d ticks=%d seed=%d ended=%s\n",
			i+1, r.GameID, r.Lines, r.Ticks, r.Seed, r.EndedAt.Format(time.RFC3339))
	}
}
