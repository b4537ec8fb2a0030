package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"stackfall.dev/internal/sim/session"
)

// GameLog reads back a file written by TickLogger.
type GameLog struct {
	Header GameHeader

	f   *os.File
	dec *zstd.Decoder
	sc  *bufio.Scanner
}

func OpenGameLog(path string) (*GameLog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	g := &GameLog{f: f, dec: dec, sc: sc}
	if !sc.Scan() {
		err := sc.Err()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		g.Close()
		return nil, fmt.Errorf("%s: read header: %w", path, err)
	}
	if err := json.Unmarshal(sc.Bytes(), &g.Header); err != nil {
		g.Close()
		return nil, fmt.Errorf("%s: header: %w", path, err)
	}
	if g.Header.GameID == "" {
		g.Close()
		return nil, fmt.Errorf("%s: header has no game id", path)
	}
	return g, nil
}

// Next returns the next tick entry, or io.EOF after the last one.
func (g *GameLog) Next() (session.TickLogEntry, error) {
	var e session.TickLogEntry
	if !g.sc.Scan() {
		if err := g.sc.Err(); err != nil {
			return e, err
		}
		return e, io.EOF
	}
	if err := json.Unmarshal(g.sc.Bytes(), &e); err != nil {
		return e, fmt.Errorf("unmarshal tick: %w", err)
	}
	return e, nil
}

func (g *GameLog) Close() error {
	g.dec.Close()
	return g.f.Close()
}
