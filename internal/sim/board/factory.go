package board

import (
	"fmt"
	"math/rand/v2"
)

// Palette is the fixed set of piece colors.
var Palette = []string{
	"ff0000", // red
	"00ff00", // green
	"0000ff", // blue
	"ffa500", // orange
	"800080", // purple
	"ff69b4", // pink
}

// Shapes lists every shape in factory draw order.
var Shapes = []Shape{ShapeSquare, ShapeBar, ShapeJ, ShapeL, ShapeS}

// PieceSource supplies the board with new pieces.
type PieceSource interface {
	Next() *Piece
}

// Factory builds pieces at random start columns. It is deterministic for a
// given seed, which is what makes tick logs replayable.
type Factory struct {
	rng  *rand.Rand
	cols int
}

func NewFactory(seed int64, cols int) *Factory {
	if cols < 3 {
		panic(fmt.Sprintf("board: factory needs at least 3 columns, got %d", cols))
	}
	s := uint64(seed)
	return &Factory{
		rng:  rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15)),
		cols: cols,
	}
}

// Next implements PieceSource.
func (f *Factory) Next() *Piece { return f.Random() }

// Random picks a shape uniformly, then a start column and a color.
func (f *Factory) Random() *Piece {
	shape := Shapes[f.rng.IntN(len(Shapes))]
	return BuildPiece(shape, f.startCol(shape), Palette[f.rng.IntN(len(Palette))])
}

// startCol draws from the column range that keeps the spawned shape inside
// [0, cols).
func (f *Factory) startCol(shape Shape) int {
	switch shape {
	case ShapeJ:
		return f.rng.IntN(f.cols - 2)
	case ShapeS:
		return f.rng.IntN(f.cols-2) + 1
	default:
		return f.rng.IntN(f.cols - 1)
	}
}

// BuildPiece constructs shape on its spawn rows with start column s, in the
// orientation its rotation table starts from.
func BuildPiece(shape Shape, s int, color string) *Piece {
	var (
		cells  []Cell
		orient Orientation
	)
	switch shape {
	case ShapeSquare:
		cells = []Cell{{Row: 0, Col: s}, {Row: 0, Col: s + 1}, {Row: 1, Col: s}, {Row: 1, Col: s + 1}}
		orient = OrientNone
	case ShapeBar:
		cells = []Cell{{Row: 0, Col: s}, {Row: 1, Col: s}, {Row: 2, Col: s}, {Row: 3, Col: s}}
		orient = OrientDown
	case ShapeJ:
		cells = []Cell{{Row: 0, Col: s}, {Row: 0, Col: s + 1}, {Row: 0, Col: s + 2}, {Row: 1, Col: s + 1}}
		orient = OrientDown
	case ShapeL:
		cells = []Cell{{Row: 0, Col: s}, {Row: 1, Col: s}, {Row: 2, Col: s}, {Row: 2, Col: s + 1}}
		orient = OrientUp
	case ShapeS:
		cells = []Cell{{Row: 0, Col: s}, {Row: 0, Col: s + 1}, {Row: 1, Col: s - 1}, {Row: 1, Col: s}}
		orient = OrientUp
	default:
		panic(fmt.Sprintf("board: unknown shape %d", shape))
	}
	return NewPiece(shape, color, orient, cells)
}
