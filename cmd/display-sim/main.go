package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"stackfall.dev/internal/transport/display"
)

// display-sim stands in for the LED panel. It prints the panel after every
// frame. Typing "gameover" on stdin sends GAMEOVER to the connected links.
func main() {
	var (
		addr  = flag.String("addr", ":81", "listen address")
		rows  = flag.Int("rows", 20, "panel rows")
		cols  = flag.Int("cols", 10, "panel columns")
		quiet = flag.Bool("quiet", false, "do not print the panel")
	)
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ps := display.NewPanelServer(display.NewPanel(*rows, *cols), logger)
	if !*quiet {
		ps.OnFrame = func(string) {
			fmt.Print("\033[H\033[2J", ps.Panel().Render())
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			if strings.EqualFold(strings.TrimSpace(sc.Text()), "gameover") {
				n := ps.SendGameOver()
				logger.Info("sent GAMEOVER", zap.Int("links", n))
			}
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/", ps.Handler())
	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctx2, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info("display simulator listening", zap.String("addr", *addr), zap.Int("rows", *rows), zap.Int("cols", *cols))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("ListenAndServe", zap.Error(err))
	}
}
