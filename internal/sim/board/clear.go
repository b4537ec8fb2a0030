package board

func (b *Board) rowFull(r int) bool {
	for c := 0; c < b.cols; c++ {
		if !b.IsCellFull(r, c) {
			return false
		}
	}
	return true
}

// clearFullRows collects the full rows once, top to bottom, and counts
// them. Each collected row is then cleared and everything above it dropped
// by one before the next row is handled. Rows are processed in ascending
// order, so a later (lower) row is never disturbed by an earlier shift.
func (b *Board) clearFullRows() int {
	var full []int
	for r := 0; r < b.rows; r++ {
		if b.rowFull(r) {
			full = append(full, r)
			b.lines++
		}
	}
	if len(full) == 0 {
		return 0
	}
	for _, r := range full {
		b.clearRow(r)
		for _, p := range b.settled {
			p.dropAbove(r)
		}
	}
	b.pruneEmpty()
	b.reindex()
	return len(full)
}

// clearRow removes row r from the pieces that own its cells. Owners come
// straight from the occupancy index, which still reflects row r here:
// only rows above r have moved since the index was last rebuilt.
func (b *Board) clearRow(r int) {
	seen := make(map[*Piece]struct{}, b.cols)
	for c := 0; c < b.cols; c++ {
		owner, ok := b.occupied.Get(b.key(r, c))
		if !ok {
			continue
		}
		b.occupied.Del(b.key(r, c))
		if _, dup := seen[owner]; dup {
			continue
		}
		seen[owner] = struct{}{}
		owner.removeRow(r)
	}
}

// pruneEmpty drops settled pieces whose every cell has been cleared.
func (b *Board) pruneEmpty() {
	kept := b.settled[:0]
	for _, p := range b.settled {
		if len(p.cells) > 0 {
			kept = append(kept, p)
		}
	}
	for i := len(kept); i < len(b.settled); i++ {
		b.settled[i] = nil
	}
	b.settled = kept
}
