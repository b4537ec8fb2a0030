package main

import (
	"flag"
	"fmt"
	"os"

	persistlog "stackfall.dev/internal/persistence/log"
)

func main() {
	var (
		logPath = flag.String("log", "", "path to a game log (<data>/games/<id>.jsonl.zst)")
		dataDir = flag.String("data", "./data", "runtime data directory, used with -game")
		gameID  = flag.String("game", "", "game id to replay from <data>/games")
		toTick  = flag.Uint64("to_tick", 0, "stop after this tick (inclusive, optional)")
	)
	flag.Parse()

	path := *logPath
	if path == "" && *gameID != "" {
		path = persistlog.GamePath(*dataDir, *gameID)
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "missing -log or -game")
		os.Exit(2)
	}

	rep, err := persistlog.Replay(path, *toTick)
	fmt.Printf("game=%s seed=%d grid=%dx%d checked=%d\n",
		rep.Header.GameID, rep.Header.Seed, rep.Header.Rows, rep.Header.Cols, rep.Checked)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("ok lines=%d over=%v\n", rep.Lines, rep.Over)
}
