package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"stackfall.dev/internal/protocol"
	"stackfall.dev/internal/sim/session"
)

// Server speaks the player protocol: HELLO/WELCOME, then INTENT and RESTART
// from the client, STATE and GAMEOVER frames from the current game.
type Server struct {
	host *session.Host
	log  *zap.Logger

	upgrader websocket.Upgrader
}

func NewServer(h *session.Host, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		host: h,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		name, ok := s.handshake(conn)
		if !ok {
			return
		}
		log := s.log.With(zap.String("player", name), zap.String("remote", r.RemoteAddr))
		log.Info("player connected")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		hub := s.host.Broadcaster()
		frames := hub.Subscribe()
		defer hub.Unsubscribe(frames)
		direct := make(chan []byte, 8)

		// Writer goroutine.
		go func() {
			for {
				var b []byte
				select {
				case <-ctx.Done():
					return
				case b = <-direct:
				case f, ok := <-frames:
					if !ok {
						return
					}
					b = f
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return
				}
			}
		}()

		s.sendCurrent(ctx, direct)

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				queue(direct, errorMsg(protocol.ErrProtoBadRequest, "malformed message"))
				continue
			}
			if base.ProtocolVersion != protocol.Version {
				queue(direct, errorMsg(protocol.ErrProtoVersion, "bad protocol_version"))
				continue
			}
			switch base.Type {
			case protocol.TypeIntent:
				var m protocol.IntentMsg
				if err := json.Unmarshal(msg, &m); err != nil {
					queue(direct, errorMsg(protocol.ErrProtoBadRequest, "malformed INTENT"))
					continue
				}
				in, err := session.ParseIntent(m.Intent)
				if err != nil {
					queue(direct, errorMsg(protocol.ErrBadIntent, err.Error()))
					continue
				}
				cur := s.host.Current()
				if cur == nil {
					queue(direct, errorMsg(protocol.ErrNoGame, "no game running"))
					continue
				}
				// The resulting STATE arrives through the broadcaster.
				cur.Apply(in)
			case protocol.TypeRestart:
				if s.host.Restart() == nil {
					queue(direct, errorMsg(protocol.ErrNoGame, "server shutting down"))
					continue
				}
				log.Info("restart requested")
				s.sendCurrent(ctx, direct)
			default:
				queue(direct, errorMsg(protocol.ErrProtoBadRequest, "unexpected type "+base.Type))
			}
		}
		log.Info("player disconnected")
	}
}

func (s *Server) handshake(conn *websocket.Conn) (name string, ok bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", false
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", false
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", false
	}
	if hello.PlayerName == "" {
		hello.PlayerName = "player"
	}
	return hello.PlayerName, true
}

// sendCurrent queues WELCOME and a full STATE of the current game.
func (s *Server) sendCurrent(ctx context.Context, out chan []byte) {
	cur := s.host.Current()
	if cur == nil {
		queue(out, errorMsg(protocol.ErrNoGame, "no game running"))
		return
	}
	cfg := cur.Config()
	queue(out, protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		GameID:          cfg.ID,
		Grid: protocol.GridParams{
			Rows:   cfg.Rows,
			Cols:   cfg.Cols,
			TickMs: int(cfg.TickDelay / time.Millisecond),
		},
		Seed: cfg.Seed,
	})
	vctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	v, err := cur.View(vctx)
	if err != nil {
		return
	}
	queue(out, v.StateMsg())
}

func errorMsg(code, message string) protocol.ErrorMsg {
	return protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         message,
	}
}

// queue encodes v onto out, dropping it if the writer is backed up.
func queue(out chan []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}
