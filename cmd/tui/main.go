package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gorilla/websocket"

	"stackfall.dev/internal/protocol"
)

func main() {
	var (
		url  = flag.String("url", "ws://127.0.0.1:8080/v1/ws", "server websocket url")
		name = flag.String("name", "tui", "player name")
	)
	flag.Parse()

	if err := run(*url, *name); err != nil {
		fmt.Fprintln(os.Stderr, "tui:", err)
		os.Exit(1)
	}
}

func run(url, name string) error {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      name,
	}); err != nil {
		return fmt.Errorf("hello: %w", err)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	frames := make(chan []byte, 64)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			frames <- msg
		}
	}()

	events := make(chan tcell.Event, 64)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	st := screenState{rows: 20, cols: 10}
	draw(screen, st)
	send := func(v any) {
		_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := conn.WriteJSON(v); err != nil {
			st.status = "send: " + err.Error()
		}
	}

	for {
		select {
		case err := <-readErr:
			return fmt.Errorf("connection lost: %w", err)
		case msg := <-frames:
			apply(&st, msg)
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
					(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
					return nil
				}
				if ev.Key() == tcell.KeyRune && ev.Rune() == 'r' {
					send(protocol.RestartMsg{Type: protocol.TypeRestart, ProtocolVersion: protocol.Version})
					continue
				}
				if in := intentForKey(ev); in != "" {
					send(protocol.IntentMsg{Type: protocol.TypeIntent, ProtocolVersion: protocol.Version, Intent: in})
				}
			case *tcell.EventResize:
				screen.Sync()
			}
		}
		draw(screen, st)
	}
}

// apply folds one server message into st.
func apply(st *screenState, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		st.status = "bad frame from server"
		return
	}
	switch base.Type {
	case protocol.TypeWelcome:
		var m protocol.WelcomeMsg
		if json.Unmarshal(msg, &m) == nil {
			st.rows, st.cols = m.Grid.Rows, m.Grid.Cols
			st.gameID = m.GameID
			st.state = nil
			st.over = nil
			st.status = ""
		}
	case protocol.TypeState:
		var m protocol.StateMsg
		if json.Unmarshal(msg, &m) == nil {
			if m.GameID != st.gameID && st.gameID != "" {
				// A restart from another client.
				st.over = nil
			}
			st.gameID = m.GameID
			st.state = &m
		}
	case protocol.TypeGameOver:
		var m protocol.GameOverMsg
		if json.Unmarshal(msg, &m) == nil && m.GameID == st.gameID {
			st.over = &m
		}
	case protocol.TypeError:
		var m protocol.ErrorMsg
		if json.Unmarshal(msg, &m) == nil {
			st.status = m.Code + ": " + m.Message
		}
	}
}
