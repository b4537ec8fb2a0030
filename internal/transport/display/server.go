package display

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"stackfall.dev/internal/protocol"
)

// PanelServer accepts display links and applies their frames to a Panel,
// standing in for the LED hardware.
type PanelServer struct {
	panel *Panel
	log   *zap.Logger

	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
	// OnFrame, if set, runs after every applied frame.
	OnFrame func(frame string)
}

func NewPanelServer(p *Panel, logger *zap.Logger) *PanelServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PanelServer{
		panel: p,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

func (s *PanelServer) Panel() *Panel { return s.panel }

func (s *PanelServer) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.conns, conn)
			s.mu.Unlock()
		}()

		log := s.log.With(zap.String("remote", r.RemoteAddr))
		log.Info("display link connected")
		for {
			typ, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Info("display link closed")
				} else {
					log.Info("display link dropped", zap.Error(err))
				}
				return
			}
			if typ != websocket.TextMessage {
				continue
			}
			frame := string(msg)
			if err := s.panel.Apply(frame); err != nil {
				log.Warn("bad frame", zap.Error(err))
				continue
			}
			if s.OnFrame != nil {
				s.OnFrame(frame)
			}
		}
	}
}

// SendGameOver tells every connected link to stop sending.
func (s *PanelServer) SendGameOver() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for conn := range s.conns {
		_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(protocol.DisplayGameOverPrefix)); err == nil {
			n++
		}
	}
	return n
}
