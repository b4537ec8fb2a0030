package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"stackfall.dev/internal/sim/session"
)

func TestSQLiteIndex_RecordResult(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	idx.RecordResult(session.Result{
		GameID:    "G000001",
		Seed:      42,
		Lines:     7,
		Ticks:     900,
		StartedAt: start,
		EndedAt:   start.Add(450 * time.Second),
	}, "/data/games/G000001.jsonl.zst")
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var (
		id    string
		seed  int64
		lines int
		ticks int64
		logp  string
	)
	row := db.QueryRow(`SELECT game_id,seed,lines,ticks,log_path FROM games WHERE game_id='G000001'`)
	if err := row.Scan(&id, &seed, &lines, &ticks, &logp); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if seed != 42 || lines != 7 || ticks != 900 || logp != "/data/games/G000001.jsonl.zst" {
		t.Fatalf("row mismatch: seed=%d lines=%d ticks=%d log=%q", seed, lines, ticks, logp)
	}
}

func TestSQLiteIndex_TopResultsOrdersByLines(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	now := time.Now().UTC()
	for i, lines := range []int{3, 11, 0, 11} {
		idx.RecordResult(session.Result{
			GameID:    []string{"A", "B", "C", "D"}[i],
			Lines:     lines,
			StartedAt: now,
			EndedAt:   now.Add(time.Duration(i) * time.Second),
		}, "")
	}
	if err := idx.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	got, err := idx.TopResults(context.Background(), 3)
	if err != nil {
		t.Fatalf("TopResults: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("rows = %d", len(got))
	}
	// Ties go to the game that ended first.
	if got[0].GameID != "B" || got[1].GameID != "D" || got[2].GameID != "A" {
		t.Fatalf("order = %s,%s,%s", got[0].GameID, got[1].GameID, got[2].GameID)
	}
	if !got[1].EndedAt.Equal(now.Add(3 * time.Second)) {
		t.Fatalf("ended_at = %v", got[1].EndedAt)
	}
}

func TestSQLiteIndex_TickSink(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	s := session.New(session.Config{ID: "G000009", Seed: 3}, nil)
	s.SetTickLogger(idx.TickSink("G000009"))
	var last string
	for i := 0; i < 25; i++ {
		_, last = s.StepOnce([]session.Intent{session.IntentRotate})
	}
	if err := idx.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	n, digest, err := idx.GameTicks(context.Background(), "G000009")
	if err != nil {
		t.Fatalf("GameTicks: %v", err)
	}
	if n != 25 || digest != last {
		t.Fatalf("ticks=%d digest=%s want 25 %s", n, digest, last)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick, tick: session.TickLogEntry{Tick: 1}}

	_ = s.TickSink("G1").WriteTick(session.TickLogEntry{Tick: 2})
	s.RecordResult(session.Result{GameID: "G1"}, "")
	s.RecordResult(session.Result{}, "")

	st := s.Stats()
	if st.DropTickTotal != 1 {
		t.Fatalf("DropTickTotal=%d want=1", st.DropTickTotal)
	}
	if st.DropResultTotal != 1 {
		t.Fatalf("DropResultTotal=%d want=1", st.DropResultTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}
