package board

import "github.com/kamstrup/intmap"

const (
	Rows = 20
	Cols = 10
)

// Board holds the settled pieces, the falling piece and the next piece.
// It is not safe for concurrent use; callers serialize every operation
// (see internal/sim/session).
type Board struct {
	rows, cols int

	src PieceSource

	settled []*Piece
	// occupied maps rowCol keys of settled cells to their owning piece.
	occupied *intmap.Map[int, *Piece]

	falling *Piece
	next    *Piece

	lines int
	over  bool
}

// New builds a standard 20x10 board fed by src.
func New(src PieceSource) *Board {
	return NewSized(Rows, Cols, src)
}

func NewSized(rows, cols int, src PieceSource) *Board {
	b := &Board{
		rows:     rows,
		cols:     cols,
		src:      src,
		occupied: intmap.New[int, *Piece](rows * cols),
	}
	b.next = src.Next()
	b.spawn()
	return b
}

func (b *Board) Rows() int { return b.rows }
func (b *Board) Cols() int { return b.cols }

// LinesCleared is the running line counter. It never decreases.
func (b *Board) LinesCleared() int { return b.lines }

// Over reports whether the terminal game-over state was reached by Tick.
func (b *Board) Over() bool { return b.over }

// Settled returns copies of the settled pieces in lock order.
func (b *Board) Settled() []*Piece {
	out := make([]*Piece, 0, len(b.settled))
	for _, p := range b.settled {
		out = append(out, p.Clone())
	}
	return out
}

func (b *Board) Falling() *Piece { return b.falling.Clone() }
func (b *Board) Next() *Piece    { return b.next.Clone() }

func (b *Board) key(r, c int) int { return r*b.cols + c }

func (b *Board) inBounds(r, c int) bool {
	return r >= 0 && r < b.rows && c >= 0 && c < b.cols
}

// IsCellFull treats everything outside the grid as full. The falling piece
// never counts, so it cannot block itself.
func (b *Board) IsCellFull(r, c int) bool {
	if !b.inBounds(r, c) {
		return true
	}
	_, ok := b.occupied.Get(b.key(r, c))
	return ok
}

func (b *Board) settledAt(r, c int) bool {
	if !b.inBounds(r, c) {
		return false
	}
	_, ok := b.occupied.Get(b.key(r, c))
	return ok
}

func (b *Board) MoveLeft() bool  { return b.shift(-1) }
func (b *Board) MoveRight() bool { return b.shift(1) }

// shift moves the falling piece one column. A single blocked cell vetoes
// the whole move.
func (b *Board) shift(dCol int) bool {
	if !b.live() {
		return false
	}
	for _, c := range b.falling.cells {
		col := c.Col + dCol
		if col < 0 || col >= b.cols {
			return false
		}
		if b.settledAt(c.Row, col) {
			return false
		}
	}
	b.falling.Translate(0, dCol)
	return true
}

// landed is the lock test: the falling piece would collide one step down
// with a settled piece, or already touches the last row.
func (b *Board) landed() bool {
	for _, c := range b.falling.cells {
		if c.Row >= b.rows-1 {
			return true
		}
	}
	for _, p := range b.settled {
		if b.falling.CollidesWith(p) {
			return true
		}
	}
	return false
}

// StepDown is one gravity step. The lock decision comes before the move, so
// a piece that locks does not move on that step and the piece spawned by
// the lock waits for the next step.
func (b *Board) StepDown() bool {
	if !b.live() {
		return false
	}
	if b.landed() {
		b.lock()
		return true
	}
	b.falling.Translate(1, 0)
	return true
}

// HardDrop moves the falling piece down until it lands, then locks it once.
func (b *Board) HardDrop() bool {
	if !b.live() {
		return false
	}
	for !b.landed() {
		b.falling.Translate(1, 0)
	}
	b.lock()
	return true
}

// Tick is the scheduled driver: one gravity step followed by the game-over
// check. A falling piece that already overlaps the stack (spawned by a hard
// drop since the previous tick) ends the game before it can lock.
func (b *Board) Tick() bool {
	if b.over {
		return false
	}
	if b.IsGameOver() {
		b.over = true
		return true
	}
	changed := b.StepDown()
	if b.IsGameOver() {
		b.over = true
		changed = true
	}
	return changed
}

// live reports whether the falling piece may still be moved. A piece that
// already sits on the stack is frozen until Tick ends the game, so it can
// never be locked on top of settled cells.
func (b *Board) live() bool {
	return !b.over && !b.IsGameOver()
}

// IsGameOver reports whether the falling piece is missing, above the grid,
// or sitting on a full cell.
func (b *Board) IsGameOver() bool {
	if b.falling == nil {
		return true
	}
	for _, c := range b.falling.cells {
		if c.Row < 0 {
			return true
		}
		if b.IsCellFull(c.Row, c.Col) {
			return true
		}
	}
	return false
}

func (b *Board) lock() {
	p := b.falling
	b.falling = nil
	b.settle(p)
	b.clearFullRows()
	b.spawn()
}

func (b *Board) spawn() {
	b.falling = b.next
	b.next = b.src.Next()
}

// settle appends p to the settled list and indexes its cells.
func (b *Board) settle(p *Piece) {
	b.settled = append(b.settled, p)
	for _, c := range p.cells {
		if b.inBounds(c.Row, c.Col) {
			b.occupied.Put(b.key(c.Row, c.Col), p)
		}
	}
}

func (b *Board) reindex() {
	b.occupied.Clear()
	for _, p := range b.settled {
		for _, c := range p.cells {
			if b.inBounds(c.Row, c.Col) {
				b.occupied.Put(b.key(c.Row, c.Col), p)
			}
		}
	}
}
