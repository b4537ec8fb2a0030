package board

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Snapshot is a value copy of every cell on the board at capture time:
// settled pieces in lock order, then the falling piece. Where two cells
// share a position the later one is the one shown.
type Snapshot struct {
	cells []Cell
	at    map[Pos]string
}

func newSnapshot(cells []Cell) Snapshot {
	at := make(map[Pos]string, len(cells))
	for _, c := range cells {
		at[c.Pos()] = c.Color
	}
	return Snapshot{cells: cells, at: at}
}

// SnapshotOf builds a snapshot from an explicit cell list.
func SnapshotOf(cells []Cell) Snapshot {
	cp := make([]Cell, len(cells))
	copy(cp, cells)
	return newSnapshot(cp)
}

func (b *Board) Snapshot() Snapshot {
	n := CellsPerPiece
	for _, p := range b.settled {
		n += len(p.cells)
	}
	cells := make([]Cell, 0, n)
	for _, p := range b.settled {
		cells = append(cells, p.cells...)
	}
	if b.falling != nil {
		cells = append(cells, b.falling.cells...)
	}
	return newSnapshot(cells)
}

func (s Snapshot) Cells() []Cell {
	out := make([]Cell, len(s.cells))
	copy(out, s.cells)
	return out
}

func (s Snapshot) Len() int { return len(s.cells) }

// ColorAt returns the color of the cell at (r, c), if any.
func (s Snapshot) ColorAt(r, c int) (string, bool) {
	color, ok := s.at[Pos{Row: r, Col: c}]
	return color, ok
}

// Digest is a stable hash of the snapshot, used to verify replays.
func (s Snapshot) Digest(lines int) string {
	h := sha256.New()
	fmt.Fprintf(h, "lines=%d;", lines)
	for _, c := range s.cells {
		fmt.Fprintf(h, "%d,%d,%s;", c.Row, c.Col, c.Color)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// CellChange is one entry of the display payload. Cleared changes carry
// VacantColor.
type CellChange struct {
	Row     int
	Col     int
	Cleared bool
	Color   string
}

// Diff lists the cells that became occupied (or changed color) in cur, in
// cur's order, followed by the cells of prev that are no longer occupied,
// in prev's order. Each position appears once, with its shown color.
func Diff(prev, cur Snapshot) []CellChange {
	var out []CellChange
	sent := make(map[Pos]struct{}, len(cur.cells))
	for _, c := range cur.cells {
		pos := c.Pos()
		if _, dup := sent[pos]; dup {
			continue
		}
		sent[pos] = struct{}{}
		color := cur.at[pos]
		if was, ok := prev.at[pos]; ok && was == color {
			continue
		}
		out = append(out, CellChange{Row: c.Row, Col: c.Col, Color: color})
	}
	vacated := make(map[Pos]struct{})
	for _, c := range prev.cells {
		if _, ok := cur.at[c.Pos()]; ok {
			continue
		}
		if _, dup := vacated[c.Pos()]; dup {
			continue
		}
		vacated[c.Pos()] = struct{}{}
		out = append(out, CellChange{Row: c.Row, Col: c.Col, Cleared: true, Color: VacantColor})
	}
	return out
}

// EncodeChanges renders changes as comma-joined "(row,col,flag,color)"
// tuples, flag 1 meaning the cell was cleared.
func EncodeChanges(changes []CellChange) string {
	var sb strings.Builder
	for i, ch := range changes {
		if i > 0 {
			sb.WriteByte(',')
		}
		flag := '0'
		if ch.Cleared {
			flag = '1'
		}
		sb.WriteByte('(')
		sb.WriteString(strconv.Itoa(ch.Row))
		sb.WriteByte(',')
		sb.WriteString(strconv.Itoa(ch.Col))
		sb.WriteByte(',')
		sb.WriteRune(flag)
		sb.WriteByte(',')
		sb.WriteString(ch.Color)
		sb.WriteByte(')')
	}
	return sb.String()
}

// DecodeChanges parses a payload produced by EncodeChanges.
func DecodeChanges(payload string) ([]CellChange, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, nil
	}
	var out []CellChange
	rest := payload
	for rest != "" {
		if rest[0] != '(' {
			return nil, fmt.Errorf("decode changes: expected '(' at %q", rest)
		}
		end := strings.IndexByte(rest, ')')
		if end < 0 {
			return nil, fmt.Errorf("decode changes: unterminated tuple %q", rest)
		}
		fields := strings.Split(rest[1:end], ",")
		if len(fields) != 4 {
			return nil, fmt.Errorf("decode changes: tuple %q: want 4 fields, got %d", rest[:end+1], len(fields))
		}
		row, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("decode changes: row: %w", err)
		}
		col, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("decode changes: col: %w", err)
		}
		var cleared bool
		switch fields[2] {
		case "0":
		case "1":
			cleared = true
		default:
			return nil, fmt.Errorf("decode changes: bad flag %q", fields[2])
		}
		out = append(out, CellChange{Row: row, Col: col, Cleared: cleared, Color: fields[3]})

		rest = rest[end+1:]
		if rest == "" {
			break
		}
		if rest[0] != ',' {
			return nil, fmt.Errorf("decode changes: expected ',' at %q", rest)
		}
		rest = rest[1:]
	}
	return out, nil
}
