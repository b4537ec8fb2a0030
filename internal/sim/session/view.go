package session

import (
	"stackfall.dev/internal/protocol"
	"stackfall.dev/internal/sim/board"
)

// View is a copy of a session's state. Nothing in it aliases the board.
type View struct {
	GameID   string
	Tick     uint64
	Lines    int
	Over     bool
	Settled  []*board.Piece
	Falling  *board.Piece
	Next     *board.Piece
	Snapshot board.Snapshot
}

func (v View) StateMsg() protocol.StateMsg {
	msg := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		GameID:          v.GameID,
		Tick:            v.Tick,
		Lines:           v.Lines,
		Over:            v.Over,
		Settled:         []protocol.CellJSON{},
		Falling:         pieceJSON(v.Falling),
		Next:            pieceJSON(v.Next),
	}
	for _, p := range v.Settled {
		for _, c := range p.Cells() {
			msg.Settled = append(msg.Settled, protocol.CellJSON{Row: c.Row, Col: c.Col, Color: c.Color})
		}
	}
	return msg
}

func pieceJSON(p *board.Piece) *protocol.PieceJSON {
	if p == nil {
		return nil
	}
	out := &protocol.PieceJSON{
		Shape:       p.Shape().String(),
		Orientation: p.Orientation().String(),
		Color:       p.Color(),
	}
	for _, c := range p.Cells() {
		out.Cells = append(out.Cells, [2]int{c.Row, c.Col})
	}
	return out
}
