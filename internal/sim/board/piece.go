package board

import "fmt"

// Shape identifies one of the five fixed piece geometries.
type Shape uint8

const (
	ShapeSquare Shape = iota + 1
	ShapeBar          // four tall
	ShapeJ            // three across, one below the middle
	ShapeL            // three tall, one to the right of the bottom
	ShapeS            // offset pair of pairs
)

func (s Shape) String() string {
	switch s {
	case ShapeSquare:
		return "SQUARE"
	case ShapeBar:
		return "BAR"
	case ShapeJ:
		return "J"
	case ShapeL:
		return "L"
	case ShapeS:
		return "S"
	default:
		return fmt.Sprintf("Shape(%d)", uint8(s))
	}
}

type Orientation uint8

const (
	OrientNone Orientation = iota
	OrientUp
	OrientDown
	OrientLeft
	OrientRight
)

func (o Orientation) String() string {
	switch o {
	case OrientNone:
		return "NONE"
	case OrientUp:
		return "UP"
	case OrientDown:
		return "DOWN"
	case OrientLeft:
		return "LEFT"
	case OrientRight:
		return "RIGHT"
	default:
		return fmt.Sprintf("Orientation(%d)", uint8(o))
	}
}

// CellsPerPiece is the cell count of every shape at construction.
const CellsPerPiece = 4

// Piece is the movable unit. Its cells are rewritten in place as it moves;
// line clears may shrink the cell list of a settled piece but never grow it.
type Piece struct {
	cells  []Cell
	shape  Shape
	color  string
	orient Orientation
}

// NewPiece takes ownership of cells and paints them with color.
// It panics on an empty cell list.
func NewPiece(shape Shape, color string, orient Orientation, cells []Cell) *Piece {
	if len(cells) == 0 {
		panic("board: piece with zero cells")
	}
	for i := range cells {
		cells[i].Color = color
	}
	return &Piece{cells: cells, shape: shape, color: color, orient: orient}
}

func (p *Piece) Shape() Shape             { return p.shape }
func (p *Piece) Color() string            { return p.color }
func (p *Piece) Orientation() Orientation { return p.orient }
func (p *Piece) Len() int                 { return len(p.cells) }

// Cells returns a copy of the piece's cells in construction order.
func (p *Piece) Cells() []Cell {
	out := make([]Cell, len(p.cells))
	copy(out, p.cells)
	return out
}

// Clone returns a deep copy.
func (p *Piece) Clone() *Piece {
	if p == nil {
		return nil
	}
	cp := *p
	cp.cells = p.Cells()
	return &cp
}

// Translate shifts every cell. Validity is the board's job.
func (p *Piece) Translate(dRow, dCol int) {
	for i := range p.cells {
		p.cells[i].Row += dRow
		p.cells[i].Col += dCol
	}
}

// CollidesWith reports whether moving p down one row would put any of its
// cells exactly on a cell of other.
func (p *Piece) CollidesWith(other *Piece) bool {
	for _, c := range p.cells {
		for _, o := range other.cells {
			if c.Row+1 == o.Row && c.Col == o.Col {
				return true
			}
		}
	}
	return false
}

func (p *Piece) BoundingWidth() int {
	lo, hi := p.cells[0].Col, p.cells[0].Col
	for _, c := range p.cells[1:] {
		lo = min(lo, c.Col)
		hi = max(hi, c.Col)
	}
	return hi - lo + 1
}

func (p *Piece) BoundingHeight() int {
	lo, hi := p.cells[0].Row, p.cells[0].Row
	for _, c := range p.cells[1:] {
		lo = min(lo, c.Row)
		hi = max(hi, c.Row)
	}
	return hi - lo + 1
}

// removeRow drops the cells on row r and reports how many were removed.
func (p *Piece) removeRow(r int) int {
	kept := p.cells[:0]
	for _, c := range p.cells {
		if c.Row != r {
			kept = append(kept, c)
		}
	}
	n := len(p.cells) - len(kept)
	p.cells = kept
	return n
}

// dropAbove moves every cell with a row strictly less than r down one row.
func (p *Piece) dropAbove(r int) {
	for i := range p.cells {
		if p.cells[i].Row < r {
			p.cells[i].Row++
		}
	}
}
