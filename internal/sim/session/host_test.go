package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"stackfall.dev/internal/protocol"
)

func waitCurrent(t *testing.T, h *Host) *Session {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s := h.Current(); s != nil {
			return s
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("host never started a game")
	return nil
}

func TestHost_RestartReplacesGame(t *testing.T) {
	h := NewHost(Config{Seed: 42, TickDelay: time.Hour}, nil)
	var started []string
	h.OnStart(func(s *Session) { started = append(started, s.ID()) })

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.Run(ctx) }()

	first := waitCurrent(t, h)
	second := h.Restart()
	if second == nil || second == first {
		t.Fatalf("restart did not create a new session")
	}
	if first.ID() == second.ID() {
		t.Fatalf("ids not unique: %s", first.ID())
	}
	select {
	case <-first.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("old session still running")
	}
	if h.Current() != second {
		t.Fatalf("current is not the restarted session")
	}

	cancel()
	select {
	case <-errc:
	case <-time.After(5 * time.Second):
		t.Fatalf("host did not stop")
	}
	if len(started) != 2 {
		t.Fatalf("OnStart ran %d times", len(started))
	}
	if h.Restart() != nil {
		t.Fatalf("restart after stop should be refused")
	}
}

func TestHost_ReplacedGameEndsSilently(t *testing.T) {
	h := NewHost(Config{Seed: 42, TickDelay: time.Hour}, nil)
	var results []string
	h.OnGameOver(func(res Result) { results = append(results, res.GameID) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.Run(ctx) }()

	old := waitCurrent(t, h)
	sub := h.Broadcaster().Subscribe()
	defer h.Broadcaster().Unsubscribe(sub)
	if h.Restart() == nil {
		t.Fatalf("restart refused")
	}
	select {
	case <-old.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("old session still running")
	}

	// Play the replaced game out by hand.
	for i := 0; i < 10000 && !old.Metrics().Over; i++ {
		old.StepOnce(nil)
	}
	if !old.Metrics().Over {
		t.Fatalf("old game never ended")
	}
	if len(results) != 1 || results[0] != old.ID() {
		t.Fatalf("game over hooks saw %v", results)
	}

	for {
		select {
		case frame := <-sub:
			var msg protocol.GameOverMsg
			if err := json.Unmarshal(frame, &msg); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if msg.GameID == old.ID() {
				t.Fatalf("replaced game published %s", frame)
			}
		default:
			return
		}
	}
}

func TestHost_PublishesStateFrames(t *testing.T) {
	h := NewHost(Config{Seed: 8, TickDelay: time.Hour}, nil)
	sub := h.Broadcaster().Subscribe()
	defer h.Broadcaster().Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.Run(ctx) }()

	s := waitCurrent(t, h)
	if !s.Apply(IntentDrop) {
		t.Fatalf("drop did not change the board")
	}

	select {
	case frame := <-sub:
		var msg protocol.StateMsg
		if err := json.Unmarshal(frame, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msg.Type != protocol.TypeState || msg.GameID != s.ID() {
			t.Fatalf("unexpected frame: %s", frame)
		}
		if len(msg.Settled) != 4 {
			t.Fatalf("settled cells = %d", len(msg.Settled))
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no frame published")
	}
}

func TestBroadcaster_LaggingSubscriberKeepsNewest(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	for i := 0; i < 40; i++ {
		b.Publish([]byte{byte(i)})
	}
	var last byte
	for len(ch) > 0 {
		last = (<-ch)[0]
	}
	if last != 39 {
		t.Fatalf("last frame = %d, want 39", last)
	}
	b.Unsubscribe(ch)
	if _, open := <-ch; open {
		t.Fatalf("channel should be closed after Unsubscribe")
	}
}
