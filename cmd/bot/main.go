package main

import (
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"stackfall.dev/internal/protocol"
)

func main() {
	var (
		url     = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name    = flag.String("name", "bot", "player name")
		seed    = flag.Uint64("seed", uint64(time.Now().UnixNano()), "policy seed")
		delay   = flag.Duration("delay", 150*time.Millisecond, "pause before each intent")
		restart = flag.Bool("restart", false, "start a new game after each game over")
	)
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatal("dial", zap.Error(err))
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      *name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatal("send HELLO", zap.Error(err))
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	var pol *policy
	gameID := ""
	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			gameID = w.GameID
			pol = newPolicy(*seed, w.Grid.Cols)
			logger.Info("WELCOME", zap.String("game_id", w.GameID), zap.Int("tick_ms", w.Grid.TickMs), zap.Int64("seed", w.Seed))

		case protocol.TypeState:
			var st protocol.StateMsg
			if err := json.Unmarshal(msg, &st); err != nil || pol == nil || st.GameID != gameID {
				continue
			}
			if in := pol.next(&st); in != "" {
				time.Sleep(*delay)
				_ = conn.WriteJSON(protocol.IntentMsg{Type: protocol.TypeIntent, ProtocolVersion: protocol.Version, Intent: in})
			}

		case protocol.TypeGameOver:
			var g protocol.GameOverMsg
			if err := json.Unmarshal(msg, &g); err != nil || g.GameID != gameID {
				continue
			}
			logger.Info("GAMEOVER", zap.String("game_id", g.GameID), zap.Int("lines", g.Lines), zap.Uint64("ticks", g.Ticks))
			if !*restart {
				return
			}
			_ = conn.WriteJSON(protocol.RestartMsg{Type: protocol.TypeRestart, ProtocolVersion: protocol.Version})

		case protocol.TypeError:
			var e protocol.ErrorMsg
			if json.Unmarshal(msg, &e) == nil {
				logger.Warn("server error", zap.String("code", e.Code), zap.String("message", e.Message))
			}
		}
	}
}
