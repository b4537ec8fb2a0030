// Package queue publishes game events to RabbitMQ.
package queue

import (
	"time"

	"stackfall.dev/internal/sim/session"
)

// GameOverQueue is the durable queue finished games are published to.
const GameOverQueue = "game.over"

// GameOverEvent is the JSON body published to GameOverQueue.
type GameOverEvent struct {
	GameID    string    `json:"game_id"`
	Seed      int64     `json:"seed"`
	Lines     int       `json:"lines"`
	Ticks     uint64    `json:"ticks"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

func EventFromResult(res session.Result) GameOverEvent {
	return GameOverEvent{
		GameID:    res.GameID,
		Seed:      res.Seed,
		Lines:     res.Lines,
		Ticks:     res.Ticks,
		StartedAt: res.StartedAt.UTC(),
		EndedAt:   res.EndedAt.UTC(),
	}
}
