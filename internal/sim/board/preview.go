package board

// PreviewBoxCells is the side of the square box the next piece is drawn in;
// the largest shape fits a 4x4 box.
const PreviewBoxCells = 4

// Preview normalizes p so its top-left bounding corner is (0,0) and returns
// the offset, in units of unit, that centers it inside a box of boxCells
// cells per side. Renderers pass their cell size as unit.
func Preview(p *Piece, unit, boxCells int) (offX, offY int, cells []Pos) {
	if p == nil || len(p.cells) == 0 {
		return 0, 0, nil
	}
	minRow, minCol := p.cells[0].Row, p.cells[0].Col
	for _, c := range p.cells[1:] {
		minRow = min(minRow, c.Row)
		minCol = min(minCol, c.Col)
	}
	cells = make([]Pos, 0, len(p.cells))
	for _, c := range p.cells {
		cells = append(cells, Pos{Row: c.Row - minRow, Col: c.Col - minCol})
	}
	box := boxCells * unit
	offX = (box - p.BoundingWidth()*unit) / 2
	offY = (box - p.BoundingHeight()*unit) / 2
	return offX, offY, cells
}
