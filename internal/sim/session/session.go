package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"stackfall.dev/internal/sim/board"
)

// ErrStopped is returned by Run after Stop, and by Apply once the loop has
// exited.
var ErrStopped = errors.New("session stopped")

type Config struct {
	ID        string
	Rows      int
	Cols      int
	Seed      int64
	TickDelay time.Duration
}

// Result is the outcome of a finished game.
type Result struct {
	GameID    string    `json:"game_id"`
	Seed      int64     `json:"seed"`
	Lines     int       `json:"lines"`
	Ticks     uint64    `json:"ticks"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

// TickLogEntry records the intents applied since the previous tick and the
// board digest after the tick. Replaying the intents in order against a
// board built from the same seed reproduces every digest.
type TickLogEntry struct {
	Tick    uint64   `json:"tick"`
	Intents []string `json:"intents,omitempty"`
	Digest  string   `json:"digest"`
}

type intentReq struct {
	intent Intent
	resp   chan bool
}

// Session is a single-threaded authoritative game.
// The board is touched only from the Run goroutine (or via StepOnce when
// Run is not running).
type Session struct {
	cfg Config
	log *zap.Logger

	b *board.Board

	tick atomic.Uint64

	intents chan intentReq
	views   chan chan View
	stop    chan struct{}
	done    chan struct{}

	stopOnce sync.Once
	overOnce sync.Once

	// pending holds the intents applied since the last tick, for the tick log.
	pending []string

	tickLogger TickLogger

	mu         sync.Mutex
	onGameOver []func(Result)
	onChange   []func(View)

	started time.Time
	metrics atomic.Value
	applied atomic.Uint64
}

func New(cfg Config, log *zap.Logger) *Session {
	if cfg.Rows == 0 {
		cfg.Rows = board.Rows
	}
	if cfg.Cols == 0 {
		cfg.Cols = board.Cols
	}
	if cfg.TickDelay <= 0 {
		cfg.TickDelay = 500 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{
		cfg:     cfg,
		log:     log.With(zap.String("game_id", cfg.ID)),
		b:       board.NewSized(cfg.Rows, cfg.Cols, board.NewFactory(cfg.Seed, cfg.Cols)),
		intents: make(chan intentReq),
		views:   make(chan chan View),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		started: time.Now(),
	}
	s.metrics.Store(Metrics{})
	return s
}

func (s *Session) ID() string     { return s.cfg.ID }
func (s *Session) Config() Config { return s.cfg }

// SetTickLogger must be called before Run.
func (s *Session) SetTickLogger(l TickLogger) { s.tickLogger = l }

// OnGameOver registers fn to run once, on the session goroutine, when the
// game ends.
func (s *Session) OnGameOver(fn func(Result)) {
	s.mu.Lock()
	s.onGameOver = append(s.onGameOver, fn)
	s.mu.Unlock()
}

// OnChange registers fn to run on the session goroutine after every intent
// or tick that changed the board. fn must not block.
func (s *Session) OnChange(fn func(View)) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

// Run owns the board until ctx is done or Stop is called. Gravity is a
// fixed-delay timer: it is re-armed after each step, so a slow step delays
// the next one instead of queueing ticks. The timer is dropped for good at
// game over; the loop keeps serving views until stopped.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)

	timer := time.NewTimer(s.cfg.TickDelay)
	defer timer.Stop()
	tickC := timer.C

	s.log.Info("game started", zap.Int64("seed", s.cfg.Seed), zap.Duration("tick", s.cfg.TickDelay))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return ErrStopped
		case req := <-s.intents:
			req.resp <- s.apply(req.intent)
		case resp := <-s.views:
			resp <- s.view()
		case <-tickC:
			s.step()
			if s.b.Over() {
				tickC = nil
				continue
			}
			timer.Reset(s.cfg.TickDelay)
		}
	}
}

// Stop ends Run. It is safe to call more than once.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} { return s.done }

// Apply hands in to the session loop and reports whether it changed the
// board. It never waits for a tick. After game over, or once the loop has
// exited, it reports false.
func (s *Session) Apply(in Intent) bool {
	req := intentReq{intent: in, resp: make(chan bool, 1)}
	select {
	case s.intents <- req:
	case <-s.done:
		return false
	}
	select {
	case changed := <-req.resp:
		return changed
	case <-s.done:
		return false
	}
}

// View returns a copy of the current state, taken on the session loop.
func (s *Session) View(ctx context.Context) (View, error) {
	resp := make(chan View, 1)
	select {
	case s.views <- resp:
	case <-s.done:
		return View{}, ErrStopped
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
	select {
	case v := <-resp:
		return v, nil
	case <-s.done:
		return View{}, ErrStopped
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

func (s *Session) apply(in Intent) bool {
	if s.b.Over() {
		return false
	}
	s.pending = append(s.pending, in.String())
	s.applied.Add(1)
	changed := applyIntent(s.b, in)
	if changed {
		s.notifyChange()
	}
	return changed
}

// StepOnce applies intents and then advances one tick, with the same
// ordering as Run. It is meant for replays and tests and must not be used
// while Run is running.
func (s *Session) StepOnce(intents []Intent) (tick uint64, digest string) {
	for _, in := range intents {
		s.apply(in)
	}
	tick = s.tick.Load()
	digest = s.step()
	return tick, digest
}

// step runs one gravity tick, logs it and reports the post-tick digest.
func (s *Session) step() string {
	start := time.Now()
	tick := s.tick.Load()

	changed := s.b.Tick()
	digest := s.b.Snapshot().Digest(s.b.LinesCleared())

	if s.tickLogger != nil {
		entry := TickLogEntry{Tick: tick, Intents: s.pending, Digest: digest}
		if err := s.tickLogger.WriteTick(entry); err != nil {
			s.log.Warn("tick log write failed", zap.Uint64("tick", tick), zap.Error(err))
		}
	}
	s.pending = nil
	s.tick.Add(1)

	s.metrics.Store(Metrics{
		Tick:    tick + 1,
		Lines:   s.b.LinesCleared(),
		Over:    s.b.Over(),
		Intents: s.applied.Load(),
		StepMS:  float64(time.Since(start).Microseconds()) / 1000.0,
	})

	if changed {
		s.notifyChange()
	}
	if s.b.Over() {
		s.finish()
	}
	return digest
}

func (s *Session) finish() {
	s.overOnce.Do(func() {
		res := Result{
			GameID:    s.cfg.ID,
			Seed:      s.cfg.Seed,
			Lines:     s.b.LinesCleared(),
			Ticks:     s.tick.Load(),
			StartedAt: s.started,
			EndedAt:   time.Now(),
		}
		s.log.Info("game over", zap.Int("lines", res.Lines), zap.Uint64("ticks", res.Ticks))
		s.mu.Lock()
		fns := append([]func(Result){}, s.onGameOver...)
		s.mu.Unlock()
		for _, fn := range fns {
			fn(res)
		}
	})
}

func (s *Session) notifyChange() {
	s.mu.Lock()
	fns := append([]func(View){}, s.onChange...)
	s.mu.Unlock()
	if len(fns) == 0 {
		return
	}
	v := s.view()
	for _, fn := range fns {
		fn(v)
	}
}

func (s *Session) view() View {
	return View{
		GameID:   s.cfg.ID,
		Tick:     s.tick.Load(),
		Lines:    s.b.LinesCleared(),
		Over:     s.b.Over(),
		Settled:  s.b.Settled(),
		Falling:  s.b.Falling(),
		Next:     s.b.Next(),
		Snapshot: s.b.Snapshot(),
	}
}
