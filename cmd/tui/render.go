package main

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"stackfall.dev/internal/protocol"
	"stackfall.dev/internal/sim/board"
)

const (
	originX   = 1
	originY   = 1
	cellWidth = 2
)

// screenState is everything the client draws.
type screenState struct {
	rows, cols int
	gameID     string
	state      *protocol.StateMsg
	over       *protocol.GameOverMsg
	status     string
}

var (
	borderStyle = tcell.StyleDefault.Foreground(tcell.ColorGray)
	textStyle   = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	alertStyle  = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
)

func cellStyle(hex string) tcell.Style {
	return tcell.StyleDefault.Foreground(tcell.GetColor("#" + hex))
}

func draw(s tcell.Screen, st screenState) {
	s.Clear()

	w := st.cols*cellWidth + 2
	h := st.rows + 2
	for x := 0; x < w; x++ {
		s.SetContent(originX-1+x, originY-1, '─', nil, borderStyle)
		s.SetContent(originX-1+x, originY-1+h-1, '─', nil, borderStyle)
	}
	for y := 0; y < h; y++ {
		s.SetContent(originX-1, originY-1+y, '│', nil, borderStyle)
		s.SetContent(originX-1+w-1, originY-1+y, '│', nil, borderStyle)
	}

	if st.state != nil {
		for _, c := range st.state.Settled {
			drawCell(s, originX+c.Col*cellWidth, originY+c.Row, c.Color)
		}
		if f := st.state.Falling; f != nil {
			for _, rc := range f.Cells {
				if rc[0] < 0 || rc[0] >= st.rows {
					continue
				}
				drawCell(s, originX+rc[1]*cellWidth, originY+rc[0], f.Color)
			}
		}
	}

	side := originX + w + 2
	drawText(s, side, originY, textStyle, "NEXT")
	if st.state != nil {
		if p := pieceFromJSON(st.state.Next); p != nil {
			drawPreview(s, side, originY+1, p)
		}
		drawText(s, side, originY+7, textStyle, fmt.Sprintf("LINES %d", st.state.Lines))
		drawText(s, side, originY+8, textStyle, fmt.Sprintf("TICK  %d", st.state.Tick))
	}
	drawText(s, side, originY+10, borderStyle, st.gameID)
	if st.over != nil {
		drawText(s, side, originY+12, alertStyle, fmt.Sprintf("GAME OVER: %d lines", st.over.Lines))
		drawText(s, side, originY+13, textStyle, "r to restart")
	}
	drawText(s, side, originY+15, borderStyle, "←/→ move  ↑ rotate  space drop  q quit")
	if st.status != "" {
		drawText(s, originX, originY+h, alertStyle, st.status)
	}
	s.Show()
}

func drawCell(s tcell.Screen, x, y int, hex string) {
	style := cellStyle(hex)
	for i := 0; i < cellWidth; i++ {
		s.SetContent(x+i, y, '█', nil, style)
	}
}

// drawPreview centers p in a 4x4 box whose top-left corner is (x, y).
func drawPreview(s tcell.Screen, x, y int, p *board.Piece) {
	offX, _, cells := board.Preview(p, cellWidth, board.PreviewBoxCells)
	_, offY, _ := board.Preview(p, 1, board.PreviewBoxCells)
	for _, c := range cells {
		drawCell(s, x+offX+c.Col*cellWidth, y+offY+c.Row, p.Color())
	}
}

func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) {
	for i, r := range []rune(text) {
		s.SetContent(x+i, y, r, nil, style)
	}
}

// pieceFromJSON rebuilds a board piece from its wire form, or nil when
// there is nothing to draw.
func pieceFromJSON(pj *protocol.PieceJSON) *board.Piece {
	if pj == nil || len(pj.Cells) == 0 {
		return nil
	}
	shape := board.Shape(0)
	for _, sh := range board.Shapes {
		if sh.String() == pj.Shape {
			shape = sh
			break
		}
	}
	cells := make([]board.Cell, 0, len(pj.Cells))
	for _, rc := range pj.Cells {
		cells = append(cells, board.Cell{Row: rc[0], Col: rc[1]})
	}
	return board.NewPiece(shape, pj.Color, board.OrientNone, cells)
}

// intentForKey maps a key press to a protocol intent, or "" for keys the
// game ignores.
func intentForKey(ev *tcell.EventKey) string {
	switch ev.Key() {
	case tcell.KeyLeft:
		return protocol.IntentLeft
	case tcell.KeyRight:
		return protocol.IntentRight
	case tcell.KeyUp:
		return protocol.IntentRotate
	case tcell.KeyDown:
		return protocol.IntentDrop
	case tcell.KeyRune:
		switch ev.Rune() {
		case ' ':
			return protocol.IntentDrop
		case 'a', 'h':
			return protocol.IntentLeft
		case 'd', 'l':
			return protocol.IntentRight
		case 'w', 'k':
			return protocol.IntentRotate
		}
	}
	return ""
}
