package board

// Pos is a grid coordinate. Row 0 is the top row.
type Pos struct {
	Row int
	Col int
}

// Cell is one occupied square. Two cells at the same Pos are the same cell
// regardless of color.
type Cell struct {
	Row   int
	Col   int
	Color string
}

func (c Cell) Pos() Pos { return Pos{Row: c.Row, Col: c.Col} }

func (c Cell) SamePos(o Cell) bool { return c.Row == o.Row && c.Col == o.Col }

// VacantColor is the color sent for cells that became empty.
const VacantColor = "000000"
