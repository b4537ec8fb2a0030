package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"stackfall.dev/internal/sim/session"
)

// JSONLZstdWriter appends JSON lines to a single zstd-compressed file,
// opened on first write.
type JSONLZstdWriter struct {
	path string

	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

func NewJSONLZstdWriter(path string) *JSONLZstdWriter {
	return &JSONLZstdWriter{path: path}
}

func (w *JSONLZstdWriter) Path() string { return w.path }

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil {
		if err := w.openLocked(); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) openLocked() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

// GameHeader is the first line of every game log. Together with the tick
// entries it is enough to rebuild the game.
type GameHeader struct {
	GameID    string `json:"game_id"`
	Seed      int64  `json:"seed"`
	Rows      int    `json:"rows"`
	Cols      int    `json:"cols"`
	StartedAt string `json:"started_at,omitempty"`
}

// GamePath is where the log of gameID lives under dataDir.
func GamePath(dataDir, gameID string) string {
	return filepath.Join(dataDir, "games", fmt.Sprintf("%s.jsonl.zst", gameID))
}

// TickLogger writes a game header followed by one JSONL entry per tick
// (compressed).
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(dataDir string, h GameHeader) (*TickLogger, error) {
	w := NewJSONLZstdWriter(GamePath(dataDir, h.GameID))
	if err := w.Write(h); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("write game header: %w", err)
	}
	return &TickLogger{w: w}, nil
}

func (l *TickLogger) WriteTick(v session.TickLogEntry) error { return l.w.Write(v) }
func (l *TickLogger) Path() string                          { return l.w.Path() }
func (l *TickLogger) Close() error                          { return l.w.Close() }
