package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"stackfall.dev/internal/persistence/indexdb"
	persistlog "stackfall.dev/internal/persistence/log"
	"stackfall.dev/internal/queue"
	"stackfall.dev/internal/sim/session"
	"stackfall.dev/internal/sim/tuning"
	"stackfall.dev/internal/transport/display"
	"stackfall.dev/internal/transport/ws"
)

// app owns the long-lived pieces of the server. idx and pub may be nil.
type app struct {
	tune tuning.Tuning
	log  *zap.Logger
	host *session.Host
	idx  *indexdb.SQLiteIndex
	pub  *queue.Publisher
}

// wire attaches persistence, the display link and result publishing to
// every game the host starts. ctx bounds the display links.
func (a *app) wire(ctx context.Context) {
	a.host.OnStart(func(s *session.Session) {
		cfg := s.Config()
		var sinks multiTickLogger

		if a.tune.DataDir != "" {
			tl, err := persistlog.NewTickLogger(a.tune.DataDir, persistlog.GameHeader{
				GameID:    cfg.ID,
				Seed:      cfg.Seed,
				Rows:      cfg.Rows,
				Cols:      cfg.Cols,
				StartedAt: time.Now().UTC().Format(time.RFC3339),
			})
			if err != nil {
				a.log.Warn("tick log disabled", zap.String("game_id", cfg.ID), zap.Error(err))
			} else {
				sinks = append(sinks, tl)
				// Restarted games never reach game over; close on exit too.
				go func() {
					<-s.Done()
					_ = tl.Close()
				}()
				s.OnGameOver(func(session.Result) { _ = tl.Close() })
			}
		}
		if a.idx != nil {
			sinks = append(sinks, a.idx.TickSink(cfg.ID))
		}
		if len(sinks) > 0 {
			s.SetTickLogger(sinks)
		}

		if a.tune.Display.Enabled {
			link := display.NewLink(display.LinkConfig{
				URL:      a.tune.Display.URL,
				Interval: a.tune.Display.SendInterval(),
			}, a.log.With(zap.String("game_id", cfg.ID)))
			go func() {
				if err := link.Run(ctx, s); err != nil && !errors.Is(err, context.Canceled) {
					a.log.Warn("display link ended", zap.String("game_id", cfg.ID), zap.Error(err))
				}
			}()
		}
	})

	a.host.OnGameOver(func(res session.Result) {
		if a.idx != nil {
			logPath := ""
			if a.tune.DataDir != "" {
				logPath = persistlog.GamePath(a.tune.DataDir, res.GameID)
			}
			a.idx.RecordResult(res, logPath)
		}
		if a.pub.Enabled() {
			a.pub.OnGameOver(res)
		}
	})
}

func (a *app) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	r.Get("/metrics", a.metrics)
	r.Get("/v1/ws", ws.NewServer(a.host, a.log).Handler())
	r.Get("/v1/state", a.state)
	r.Get("/v1/results", a.results)
	return r
}

func (a *app) metrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

	var m session.Metrics
	game := ""
	if cur := a.host.Current(); cur != nil {
		m = cur.Metrics()
		game = cur.ID()
	}
	over := 0
	if m.Over {
		over = 1
	}

	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP stackfall_game_tick Ticks run by the current game.\n")
	fmt.Fprintf(rw, "# TYPE stackfall_game_tick gauge\n")
	fmt.Fprintf(rw, "stackfall_game_tick{game=%q} %d\n", game, m.Tick)

	fmt.Fprintf(rw, "# HELP stackfall_game_lines Lines cleared in the current game.\n")
	fmt.Fprintf(rw, "# TYPE stackfall_game_lines gauge\n")
	fmt.Fprintf(rw, "stackfall_game_lines{game=%q} %d\n", game, m.Lines)

	fmt.Fprintf(rw, "# HELP stackfall_game_over Whether the current game has ended.\n")
	fmt.Fprintf(rw, "# TYPE stackfall_game_over gauge\n")
	fmt.Fprintf(rw, "stackfall_game_over{game=%q} %d\n", game, over)

	fmt.Fprintf(rw, "# HELP stackfall_game_intents_total Intents applied in the current game.\n")
	fmt.Fprintf(rw, "# TYPE stackfall_game_intents_total counter\n")
	fmt.Fprintf(rw, "stackfall_game_intents_total{game=%q} %d\n", game, m.Intents)

	fmt.Fprintf(rw, "# HELP stackfall_game_step_ms Last tick step duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE stackfall_game_step_ms gauge\n")
	fmt.Fprintf(rw, "stackfall_game_step_ms{game=%q} %.3f\n", game, m.StepMS)

	if a.idx != nil {
		s := a.idx.Stats()
		fmt.Fprintf(rw, "# HELP stackfall_index_queue_depth Index writer backlog.\n")
		fmt.Fprintf(rw, "# TYPE stackfall_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "stackfall_index_queue_depth %d\n", s.QueueDepth)
		fmt.Fprintf(rw, "# HELP stackfall_index_dropped_total Index writes dropped because the queue was full.\n")
		fmt.Fprintf(rw, "# TYPE stackfall_index_dropped_total counter\n")
		fmt.Fprintf(rw, "stackfall_index_dropped_total{kind=%q} %d\n", "tick", s.DropTickTotal)
		fmt.Fprintf(rw, "stackfall_index_dropped_total{kind=%q} %d\n", "result", s.DropResultTotal)
	}
}

func (a *app) state(rw http.ResponseWriter, r *http.Request) {
	cur := a.host.Current()
	if cur == nil {
		http.Error(rw, "no game running", http.StatusServiceUnavailable)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	v, err := cur.View(ctx)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(rw, v.StateMsg())
}

func (a *app) results(rw http.ResponseWriter, r *http.Request) {
	if a.idx == nil {
		http.Error(rw, "results index disabled", http.StatusNotFound)
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			http.Error(rw, "limit must be 1..100", http.StatusBadRequest)
			return
		}
		limit = n
	}
	rows, err := a.idx.TopResults(r.Context(), limit)
	if err != nil {
		a.log.Warn("top results", zap.Error(err))
		http.Error(rw, "query failed", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []indexdb.ResultRow{}
	}
	writeJSON(rw, rows)
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(v)
}

// multiTickLogger fans a tick out to every sink. A failing sink does not
// stop the others.
type multiTickLogger []session.TickLogger

func (m multiTickLogger) WriteTick(entry session.TickLogEntry) error {
	var errs []error
	for _, l := range m {
		if err := l.WriteTick(entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
