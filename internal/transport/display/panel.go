package display

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"stackfall.dev/internal/protocol"
	"stackfall.dev/internal/sim/board"
)

// Panel is an in-memory LED matrix that understands the display frames.
// It is safe for concurrent use.
type Panel struct {
	rows, cols int

	mu        sync.Mutex
	cells     []string
	over      bool
	lines     int
	frames    int
	outOfGrid int
}

func NewPanel(rows, cols int) *Panel {
	return &Panel{rows: rows, cols: cols, cells: make([]string, rows*cols)}
}

// Apply interprets one text frame: cell tuples, GAMEOVER,<lines> or
// TURN_OFF. Tuples outside the grid are counted and skipped.
func (p *Panel) Apply(frame string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case frame == protocol.DisplayTurnOff:
		p.clearLocked()
		p.over = false
		p.lines = 0
		p.frames++
		return nil
	case protocol.IsGameOverFrame(frame):
		lines := 0
		if rest, ok := strings.CutPrefix(frame, protocol.DisplayGameOverPrefix+","); ok {
			n, err := strconv.Atoi(rest)
			if err != nil {
				return fmt.Errorf("panel: bad game over frame %q: %w", frame, err)
			}
			lines = n
		}
		p.over = true
		p.lines = lines
		p.frames++
		return nil
	}

	changes, err := board.DecodeChanges(frame)
	if err != nil {
		return fmt.Errorf("panel: %w", err)
	}
	for _, ch := range changes {
		if ch.Row < 0 || ch.Row >= p.rows || ch.Col < 0 || ch.Col >= p.cols {
			p.outOfGrid++
			continue
		}
		if ch.Cleared {
			p.cells[ch.Row*p.cols+ch.Col] = ""
		} else {
			p.cells[ch.Row*p.cols+ch.Col] = ch.Color
		}
	}
	p.frames++
	return nil
}

func (p *Panel) clearLocked() {
	for i := range p.cells {
		p.cells[i] = ""
	}
}

// ColorAt returns the lit color at (r, c), or "" when the cell is dark.
func (p *Panel) ColorAt(r, c int) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r < 0 || r >= p.rows || c < 0 || c >= p.cols {
		return ""
	}
	return p.cells[r*p.cols+c]
}

func (p *Panel) Lit() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.cells {
		if c != "" {
			n++
		}
	}
	return n
}

// GameOver reports whether a GAMEOVER frame was shown, and its line count.
func (p *Panel) GameOver() (bool, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.over, p.lines
}

func (p *Panel) Frames() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames
}

// Render draws the panel as text, '#' for lit cells.
func (p *Panel) Render() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var sb strings.Builder
	for r := 0; r < p.rows; r++ {
		for c := 0; c < p.cols; c++ {
			if p.cells[r*p.cols+c] != "" {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	if p.over {
		fmt.Fprintf(&sb, "GAME OVER lines=%d\n", p.lines)
	}
	return sb.String()
}
