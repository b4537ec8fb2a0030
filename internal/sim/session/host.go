package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"stackfall.dev/internal/protocol"
)

// Host keeps exactly one live game. It starts the first game when Run is
// called, leaves a finished game readable until Restart, and replaces it on
// Restart.
type Host struct {
	base Config
	log  *zap.Logger

	// seed picks the seed of a new game when base.Seed is zero.
	seed func() int64

	hub *Broadcaster

	mu      sync.Mutex
	ctx     context.Context
	cur     *Session
	onStart []func(*Session)
	onOver  []func(Result)

	games atomic.Uint64
	wg    sync.WaitGroup
}

func NewHost(base Config, log *zap.Logger) *Host {
	if log == nil {
		log = zap.NewNop()
	}
	return &Host{
		base: base,
		log:  log,
		seed: func() int64 { return rand.Int64N(1 << 53) },
		hub:  NewBroadcaster(),
	}
}

// Broadcaster carries STATE and GAMEOVER frames of whichever game is current.
func (h *Host) Broadcaster() *Broadcaster { return h.hub }

// OnStart registers fn to run for every new session before it starts.
// Typical hooks attach a tick logger or a display link. Hooks run with the
// host locked and must not call back into the host.
func (h *Host) OnStart(fn func(*Session)) {
	h.mu.Lock()
	h.onStart = append(h.onStart, fn)
	h.mu.Unlock()
}

func (h *Host) OnGameOver(fn func(Result)) {
	h.mu.Lock()
	h.onOver = append(h.onOver, fn)
	h.mu.Unlock()
}

// Current returns the current session, or nil before Run.
func (h *Host) Current() *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cur
}

// Run starts the first game and blocks until ctx is done, then stops the
// current game and waits for its loop to exit.
func (h *Host) Run(ctx context.Context) error {
	h.mu.Lock()
	if h.ctx != nil {
		h.mu.Unlock()
		return errors.New("host already running")
	}
	h.ctx = ctx
	h.mu.Unlock()

	h.Restart()
	<-ctx.Done()

	h.mu.Lock()
	cur := h.cur
	h.mu.Unlock()
	if cur != nil {
		cur.Stop()
	}
	h.wg.Wait()
	return ctx.Err()
}

// Restart discards the current game, if any, and starts a fresh one.
// It returns nil when the host is not running.
func (h *Host) Restart() *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctx == nil || h.ctx.Err() != nil {
		return nil
	}
	if h.cur != nil {
		h.cur.Stop()
	}

	cfg := h.base
	n := h.games.Add(1)
	if cfg.Seed == 0 {
		cfg.Seed = h.seed()
	}
	cfg.ID = fmt.Sprintf("G%06d", n)

	s := New(cfg, h.log)
	s.OnChange(func(v View) {
		if h.Current() == s {
			h.publish(v.StateMsg())
		}
	})
	s.OnGameOver(func(res Result) {
		if h.Current() == s {
			h.publish(protocol.GameOverMsg{
				Type:            protocol.TypeGameOver,
				ProtocolVersion: protocol.Version,
				GameID:          res.GameID,
				Lines:           res.Lines,
				Ticks:           res.Ticks,
			})
		}
		h.mu.Lock()
		fns := append([]func(Result){}, h.onOver...)
		h.mu.Unlock()
		for _, fn := range fns {
			fn(res)
		}
	})
	for _, fn := range h.onStart {
		fn(s)
	}
	h.cur = s

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := s.Run(h.ctx); err != nil && !errors.Is(err, ErrStopped) && !errors.Is(err, context.Canceled) {
			h.log.Warn("session exited", zap.String("game_id", s.ID()), zap.Error(err))
		}
	}()
	h.log.Info("game created", zap.String("game_id", cfg.ID), zap.Int64("seed", cfg.Seed))
	return s
}

func (h *Host) publish(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.log.Error("encode frame", zap.Error(err))
		return
	}
	h.hub.Publish(b)
}
