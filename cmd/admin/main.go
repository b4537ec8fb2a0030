package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"stackfall.dev/internal/sim/tuning"
	"stackfall.dev/internal/transport/display"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "display-off":
			displayOffCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints the recorded games, newest first.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	games, err := listGames(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, g := range games {
		fmt.Printf("%s\t%s\t%d bytes\n", g.id, g.mod.Format(time.RFC3339), g.size)
	}
}

type gameFile struct {
	id   string
	mod  time.Time
	size int64
}

func listGames(dataDir string) ([]gameFile, error) {
	ents, err := os.ReadDir(filepath.Join(dataDir, "games"))
	if err != nil {
		return nil, err
	}
	var out []gameFile
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".jsonl.zst") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, gameFile{id: strings.TrimSuffix(name, ".jsonl.zst"), mod: info.ModTime(), size: info.Size()})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].mod.Equal(out[j].mod) {
			return out[i].mod.After(out[j].mod)
		}
		return out[i].id > out[j].id
	})
	return out, nil
}

// displayOffCmd blanks the LED panel.
func displayOffCmd(args []string) {
	fs := flag.NewFlagSet("display-off", flag.ExitOnError)
	tuningPath := fs.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
	url := fs.String("url", "", "display url (default: from tuning)")
	_ = fs.Parse(args)

	target := *url
	if target == "" {
		tune, err := tuning.Load(*tuningPath)
		if err != nil && !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "tuning:", err)
			os.Exit(1)
		}
		if err != nil {
			tune = tuning.Defaults()
		}
		tune, err = tuning.LoadEnv(tune, ".env")
		if err != nil {
			fmt.Fprintln(os.Stderr, "env:", err)
			os.Exit(1)
		}
		target = tune.Display.URL
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := display.TurnOff(ctx, target, nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println("display off:", target)
}
