package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"stackfall.dev/internal/persistence/indexdb"
	"stackfall.dev/internal/queue"
	"stackfall.dev/internal/sim/session"
	"stackfall.dev/internal/sim/tuning"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml (empty for defaults)")
		envPath    = flag.String("env", ".env", "optional dotenv file with STACKFALL_* overrides")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite results index")
		noDisplay  = flag.Bool("no_display", false, "never connect to the LED display")
	)
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Fatal("load tuning", zap.String("path", *tuningPath), zap.Error(err))
		}
		logger.Info("tuning not found; using defaults", zap.String("path", *tuningPath))
		tune = tuning.Defaults()
	}
	tune, err = tuning.LoadEnv(tune, *envPath)
	if err != nil {
		logger.Fatal("load env", zap.Error(err))
	}
	if *noDisplay {
		tune.Display.Enabled = false
	}

	a := &app{
		tune: tune,
		log:  logger,
		host: session.NewHost(session.Config{
			Rows:      tune.Rows,
			Cols:      tune.Cols,
			Seed:      tune.Seed,
			TickDelay: tune.TickDelay(),
		}, logger),
		pub: queue.NewPublisher(tune.AMQPURL, logger),
	}
	if !*disableDB {
		if err := os.MkdirAll(tune.DataDir, 0o755); err != nil {
			logger.Fatal("create data dir", zap.Error(err))
		}
		idx, err := indexdb.OpenSQLite(filepath.Join(tune.DataDir, "index.sqlite"))
		if err != nil {
			logger.Fatal("open results index", zap.Error(err))
		}
		defer idx.Close()
		a.idx = idx
	}

	ctx, cancel := signalContext()
	defer cancel()

	a.wire(ctx)
	hostDone := make(chan struct{})
	go func() {
		defer close(hostDone)
		_ = a.host.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           a.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info("listening",
		zap.String("addr", *addr),
		zap.Duration("tick", tune.TickDelay()),
		zap.Bool("display", tune.Display.Enabled),
		zap.Bool("amqp", a.pub.Enabled()),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("ListenAndServe", zap.Error(err))
	}
	cancel()
	<-hostDone
	a.pub.Wait()
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
