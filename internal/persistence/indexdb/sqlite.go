package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"stackfall.dev/internal/sim/session"
)

// SQLiteIndex is a secondary index of finished games and their ticks. The
// JSONL game logs remain the source of truth; writes are queued and applied
// by one writer goroutine so the session loop never waits on disk.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick   atomic.Uint64
	dropResult atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqResult
	// reqSync is answered once every earlier request has been committed.
	reqSync
)

type req struct {
	kind reqKind

	gameID string
	tick   session.TickLogEntry
	result resultRow
	done   chan struct{}
}

type resultRow struct {
	session.Result
	LogPath string
}

// ResultRow is one finished game as stored in the games table.
type ResultRow struct {
	GameID    string    `json:"game_id"`
	Seed      int64     `json:"seed"`
	Lines     int       `json:"lines"`
	Ticks     uint64    `json:"ticks"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	LogPath   string    `json:"log_path,omitempty"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer connection plus readers for the results API (WAL).
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 16384),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS games (
			game_id TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			lines INTEGER NOT NULL,
			ticks INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			log_path TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_games_lines ON games(lines DESC, ended_at);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			game_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			digest TEXT NOT NULL,
			intents TEXT NOT NULL,
			PRIMARY KEY (game_id, tick)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// TickSink returns a session.TickLogger that indexes the ticks of gameID.
func (s *SQLiteIndex) TickSink(gameID string) session.TickLogger {
	return tickSink{s: s, gameID: gameID}
}

type tickSink struct {
	s      *SQLiteIndex
	gameID string
}

func (t tickSink) WriteTick(entry session.TickLogEntry) error {
	t.s.writeTick(t.gameID, entry)
	return nil
}

func (s *SQLiteIndex) writeTick(gameID string, entry session.TickLogEntry) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqTick, gameID: gameID, tick: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.dropTick.Add(1)
	}
}

// RecordResult queues a finished game. logPath may be empty.
func (s *SQLiteIndex) RecordResult(res session.Result, logPath string) {
	if s == nil || s.closed.Load() {
		return
	}
	if res.GameID == "" {
		return
	}
	select {
	case s.ch <- req{kind: reqResult, result: resultRow{Result: res, LogPath: logPath}}:
	default:
		s.dropResult.Add(1)
	}
}

// Sync waits until every request queued before it has been committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqSync, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TopResults lists finished games, most lines first.
func (s *SQLiteIndex) TopResults(ctx context.Context, limit int) ([]ResultRow, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT game_id,seed,lines,ticks,started_at,ended_at,COALESCE(log_path,'')
		FROM games ORDER BY lines DESC, ended_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer rows.Close()

	var out []ResultRow
	for rows.Next() {
		var (
			r              ResultRow
			ticks          int64
			started, ended string
		)
		if err := rows.Scan(&r.GameID, &r.Seed, &r.Lines, &ticks, &started, &ended, &r.LogPath); err != nil {
			return nil, fmt.Errorf("scan games: %w", err)
		}
		r.Ticks = uint64(ticks)
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.EndedAt, _ = time.Parse(time.RFC3339Nano, ended)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GameTicks returns the number of indexed ticks of gameID and the digest
// of the last one.
func (s *SQLiteIndex) GameTicks(ctx context.Context, gameID string) (n int, lastDigest string, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE((SELECT digest FROM ticks WHERE game_id=? ORDER BY tick DESC LIMIT 1),'')
		FROM ticks WHERE game_id=?`, gameID, gameID)
	if err := row.Scan(&n, &lastDigest); err != nil {
		return 0, "", fmt.Errorf("count ticks: %w", err)
	}
	return n, lastDigest, nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	// Prepared statements (on db; executed within tx).
	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(game_id,tick,digest,intents) VALUES(?,?,?,?)`)
	insertGame, _ := s.db.Prepare(`INSERT OR REPLACE INTO games(game_id,seed,lines,ticks,started_at,ended_at,log_path) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		if insertTick != nil {
			_ = insertTick.Close()
		}
		if insertGame != nil {
			_ = insertGame.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	handle := func(r req) {
		if r.kind == reqSync {
			commit()
			close(r.done)
			return
		}
		begin()
		if tx == nil {
			return
		}
		switch r.kind {
		case reqTick:
			if insertTick != nil {
				if _, err := tx.Stmt(insertTick).Exec(
					r.gameID,
					int64(r.tick.Tick),
					r.tick.Digest,
					strings.Join(r.tick.Intents, ","),
				); err != nil {
					rollback()
					return
				}
				opCount++
			}

		case reqResult:
			g := r.result
			if insertGame != nil {
				if _, err := tx.Stmt(insertGame).Exec(
					g.GameID,
					g.Seed,
					g.Lines,
					int64(g.Ticks),
					g.StartedAt.UTC().Format(time.RFC3339Nano),
					g.EndedAt.UTC().Format(time.RFC3339Nano),
					g.LogPath,
				); err != nil {
					rollback()
					return
				}
			}
			// Results are read back by the API right away.
			commit()
			return
		}
		flushIfNeeded()
	}

	// A quiet queue must not leave ticks sitting in an open transaction.
	flush := time.NewTicker(commitMaxWait)
	defer flush.Stop()

	for {
		select {
		case r, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			handle(r)
		case <-flush.C:
			flushIfNeeded()
		}
	}
}

type Stats struct {
	QueueDepth      int    `json:"queue_depth"`
	QueueCapacity   int    `json:"queue_capacity"`
	DropTickTotal   uint64 `json:"drop_tick_total"`
	DropResultTotal uint64 `json:"drop_result_total"`
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:      len(s.ch),
		QueueCapacity:   cap(s.ch),
		DropTickTotal:   s.dropTick.Load(),
		DropResultTotal: s.dropResult.Load(),
	}
}
