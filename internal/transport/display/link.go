package display

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"stackfall.dev/internal/protocol"
	"stackfall.dev/internal/sim/board"
	"stackfall.dev/internal/sim/session"
)

// Source is the game a Link mirrors. *session.Session implements it.
type Source interface {
	View(ctx context.Context) (session.View, error)
	OnChange(fn func(session.View))
	Done() <-chan struct{}
}

type LinkConfig struct {
	URL      string
	Interval time.Duration
	Dialer   *websocket.Dialer
}

// Link mirrors one game onto the LED panel. Every interval it diffs the
// board against what it sent last and writes the changed cells as one text
// frame. It ends after sending the final GAMEOVER frame, when the panel
// reports its own GAMEOVER, or when the game goes away.
type Link struct {
	cfg LinkConfig
	log *zap.Logger

	frames atomic.Uint64
}

func NewLink(cfg LinkConfig, log *zap.Logger) *Link {
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Link{cfg: cfg, log: log}
}

// Frames is the number of frames written so far.
func (l *Link) Frames() uint64 { return l.frames.Load() }

// ErrPanelStopped means the panel asked us to stop with its own GAMEOVER.
var ErrPanelStopped = errors.New("display: panel sent GAMEOVER")

// Run mirrors src until one of the end conditions. It returns nil after a
// normal game over, including one that ends right before the game goes
// away: the last board and GAMEOVER frame are still sent.
func (l *Link) Run(ctx context.Context, src Source) error {
	conn, _, err := l.cfg.Dialer.DialContext(ctx, l.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("display: dial %s: %w", l.cfg.URL, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var final atomic.Pointer[session.View]
	src.OnChange(func(v session.View) {
		if v.Over {
			final.Store(&v)
		}
	})

	// Reader: a GAMEOVER from the panel stops sending; any other read
	// failure means the connection is gone.
	stopped := make(chan struct{})
	readErr := make(chan error, 1)
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			if protocol.IsGameOverFrame(string(msg)) {
				close(stopped)
				return
			}
		}
	}()

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	var prev board.Snapshot
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopped:
			l.log.Info("display link stopped by panel")
			return ErrPanelStopped
		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				l.log.Info("display link closed by panel")
				return nil
			}
			return fmt.Errorf("display: read: %w", err)
		case <-src.Done():
			if v := final.Load(); v != nil {
				return l.sendFinal(conn, prev, *v)
			}
			return nil
		case <-ticker.C:
		}

		v, err := src.View(ctx)
		if err != nil {
			if errors.Is(err, session.ErrStopped) {
				if v := final.Load(); v != nil {
					return l.sendFinal(conn, prev, *v)
				}
				return nil
			}
			return err
		}
		if v.Over {
			return l.sendFinal(conn, prev, v)
		}
		if changes := board.Diff(prev, v.Snapshot); len(changes) > 0 {
			if err := l.write(conn, board.EncodeChanges(changes)); err != nil {
				return err
			}
		}
		prev = v.Snapshot
	}
}

// sendFinal writes the last board diff and the GAMEOVER frame, then closes
// the connection normally.
func (l *Link) sendFinal(conn *websocket.Conn, prev board.Snapshot, v session.View) error {
	if changes := board.Diff(prev, v.Snapshot); len(changes) > 0 {
		if err := l.write(conn, board.EncodeChanges(changes)); err != nil {
			return err
		}
	}
	if err := l.write(conn, protocol.FormatGameOver(v.Lines)); err != nil {
		return err
	}
	l.log.Info("display link sent game over", zap.Int("lines", v.Lines), zap.Uint64("frames", l.Frames()))
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return nil
}

func (l *Link) write(conn *websocket.Conn, frame string) error {
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		return fmt.Errorf("display: write: %w", err)
	}
	l.frames.Add(1)
	return nil
}

// TurnOff tells the panel at url to blank itself, then closes the
// connection normally.
func TurnOff(ctx context.Context, url string, dialer *websocket.Dialer) error {
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("display: dial %s: %w", url, err)
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(protocol.DisplayTurnOff)); err != nil {
		return fmt.Errorf("display: write: %w", err)
	}
	err = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("display: close: %w", err)
	}
	return nil
}
