package board

// Rotation is table driven. Each (shape, orientation) entry names the
// boundary guards and probe cells that must be clear and the per-cell
// deltas to apply. One cell per entry is the pivot and has a zero delta.
// There are no wall kicks: a blocked rotation is simply refused.

type edge uint8

const (
	edgeTop edge = iota
	edgeBottom
	edgeLeft
	edgeRight
)

// anyCell makes a guard apply to every cell of the piece.
const anyCell = -1

// guard refuses the rotation when the chosen cell lies within reach rows or
// columns of the given edge.
type guard struct {
	cell  int
	edge  edge
	reach int
}

// probe is a board position, relative to one of the piece's current cells,
// that the rotated piece will occupy and that must not be full.
type probe struct {
	cell       int
	dRow, dCol int
}

type delta struct {
	dRow, dCol int
}

type turn struct {
	guards []guard
	probes []probe
	moves  [CellsPerPiece]delta
	to     Orientation
}

type turnKey struct {
	shape Shape
	from  Orientation
}

var turns = map[turnKey]turn{
	// Bar: vertical (DOWN) <-> horizontal (UP), pivot on cell 0.
	{ShapeBar, OrientDown}: {
		guards: []guard{{anyCell, edgeRight, 3}},
		probes: []probe{{0, 0, 1}, {0, 0, 2}, {0, 0, 3}},
		moves:  [4]delta{{0, 0}, {-1, 1}, {-2, 2}, {-3, 3}},
		to:     OrientUp,
	},
	{ShapeBar, OrientUp}: {
		guards: []guard{{anyCell, edgeBottom, 3}},
		probes: []probe{{0, 1, 0}, {0, 2, 0}, {0, 3, 0}},
		moves:  [4]delta{{0, 0}, {1, -1}, {2, -2}, {3, -3}},
		to:     OrientDown,
	},

	// J: DOWN -> LEFT -> UP -> RIGHT -> DOWN, pivot on cell 1.
	{ShapeJ, OrientDown}: {
		guards: []guard{{anyCell, edgeTop, 1}},
		probes: []probe{{0, -1, 1}},
		moves:  [4]delta{{-1, 1}, {0, 0}, {1, -1}, {-1, -1}},
		to:     OrientLeft,
	},
	{ShapeJ, OrientLeft}: {
		guards: []guard{{anyCell, edgeRight, 1}},
		probes: []probe{{0, 1, 1}},
		moves:  [4]delta{{1, 1}, {0, 0}, {-1, -1}, {-1, 1}},
		to:     OrientUp,
	},
	{ShapeJ, OrientUp}: {
		probes: []probe{{0, 1, -1}},
		moves:  [4]delta{{1, -1}, {0, 0}, {-1, 1}, {1, 1}},
		to:     OrientRight,
	},
	{ShapeJ, OrientRight}: {
		guards: []guard{{anyCell, edgeLeft, 1}},
		probes: []probe{{0, -1, -1}},
		moves:  [4]delta{{-1, -1}, {0, 0}, {1, 1}, {1, -1}},
		to:     OrientDown,
	},

	// L: UP -> RIGHT -> DOWN -> LEFT -> UP, pivot on cell 1.
	{ShapeL, OrientUp}: {
		guards: []guard{{anyCell, edgeLeft, 1}},
		probes: []probe{{1, 0, -1}, {1, 0, 1}, {2, 0, -1}},
		moves:  [4]delta{{1, 1}, {0, 0}, {-1, -1}, {0, -2}},
		to:     OrientRight,
	},
	{ShapeL, OrientRight}: {
		guards: []guard{{1, edgeTop, 1}},
		probes: []probe{{3, 0, 1}, {2, -1, 0}, {2, -1, 1}},
		moves:  [4]delta{{1, -1}, {0, 0}, {-1, 1}, {-2, 0}},
		to:     OrientDown,
	},
	{ShapeL, OrientDown}: {
		guards: []guard{{1, edgeRight, 1}},
		probes: []probe{{1, 0, -1}, {2, 0, 1}, {1, 0, 1}},
		moves:  [4]delta{{-1, -1}, {0, 0}, {1, 1}, {0, 2}},
		to:     OrientLeft,
	},
	{ShapeL, OrientLeft}: {
		guards: []guard{{0, edgeBottom, 1}},
		probes: []probe{{3, 0, -1}, {1, 1, 0}, {3, 2, 0}},
		moves:  [4]delta{{-1, 1}, {0, 0}, {1, -1}, {2, 0}},
		to:     OrientUp,
	},

	// S: UP -> RIGHT -> DOWN -> LEFT -> UP, pivot on cell 0.
	{ShapeS, OrientUp}: {
		guards: []guard{{0, edgeTop, 1}},
		probes: []probe{{0, -1, -1}, {0, 0, -1}},
		moves:  [4]delta{{0, 0}, {1, -1}, {-2, 0}, {-1, -1}},
		to:     OrientRight,
	},
	{ShapeS, OrientRight}: {
		guards: []guard{{0, edgeRight, 1}},
		probes: []probe{{2, 0, 1}, {2, 0, 2}},
		moves:  [4]delta{{0, 0}, {-1, -1}, {0, 2}, {-1, 1}},
		to:     OrientDown,
	},
	{ShapeS, OrientDown}: {
		guards: []guard{{0, edgeBottom, 1}},
		probes: []probe{{2, 1, 0}, {2, 2, 0}},
		moves:  [4]delta{{0, 0}, {-1, 1}, {2, 0}, {1, 1}},
		to:     OrientLeft,
	},
	{ShapeS, OrientLeft}: {
		guards: []guard{{0, edgeLeft, 1}},
		probes: []probe{{2, 0, -1}, {2, 0, -2}},
		moves:  [4]delta{{0, 0}, {1, 1}, {0, -2}, {1, -1}},
		to:     OrientUp,
	},
}

func (g guard) blocks(c Cell, rows, cols int) bool {
	switch g.edge {
	case edgeTop:
		return c.Row < g.reach
	case edgeBottom:
		return c.Row > rows-1-g.reach
	case edgeLeft:
		return c.Col < g.reach
	default:
		return c.Col > cols-1-g.reach
	}
}

// Rotate turns the falling piece a quarter turn if its table entry allows
// it. The square and any blocked rotation leave the piece untouched.
func (b *Board) Rotate() bool {
	if !b.live() {
		return false
	}
	p := b.falling
	t, ok := turns[turnKey{p.shape, p.orient}]
	if !ok || len(p.cells) != CellsPerPiece {
		return false
	}
	if !b.turnClear(p, t) {
		return false
	}
	for i, d := range t.moves {
		p.cells[i].Row += d.dRow
		p.cells[i].Col += d.dCol
	}
	p.orient = t.to
	return true
}

func (b *Board) turnClear(p *Piece, t turn) bool {
	for _, g := range t.guards {
		if g.cell == anyCell {
			for _, c := range p.cells {
				if g.blocks(c, b.rows, b.cols) {
					return false
				}
			}
			continue
		}
		if g.blocks(p.cells[g.cell], b.rows, b.cols) {
			return false
		}
	}
	for _, pr := range t.probes {
		c := p.cells[pr.cell]
		if b.IsCellFull(c.Row+pr.dRow, c.Col+pr.dCol) {
			return false
		}
	}
	return true
}
