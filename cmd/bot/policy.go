package main

import (
	"math/rand/v2"

	"stackfall.dev/internal/protocol"
)

// policy steers each falling piece to a random column, maybe rotates it
// once, then drops it. It is fed every STATE and returns at most one
// intent per STATE.
type policy struct {
	rng *rand.Rand

	cols    int
	lastTop int
	target  int
	rotate  bool
	pieceOn bool
}

func newPolicy(seed uint64, cols int) *policy {
	return &policy{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), cols: cols}
}

func (p *policy) next(st *protocol.StateMsg) string {
	if st == nil || st.Over || st.Falling == nil || len(st.Falling.Cells) == 0 {
		p.pieceOn = false
		return ""
	}
	top, left, right := st.Falling.Cells[0][0], st.Falling.Cells[0][1], st.Falling.Cells[0][1]
	for _, rc := range st.Falling.Cells[1:] {
		top = min(top, rc[0])
		left = min(left, rc[1])
		right = max(right, rc[1])
	}
	// A piece whose top moved up is a new piece.
	if !p.pieceOn || top < p.lastTop {
		width := right - left + 1
		p.target = p.rng.IntN(max(1, p.cols-width+1))
		p.rotate = p.rng.IntN(3) == 0
		p.pieceOn = true
	}
	p.lastTop = top

	switch {
	case p.rotate:
		p.rotate = false
		return protocol.IntentRotate
	case left > p.target:
		return protocol.IntentLeft
	case left < p.target:
		return protocol.IntentRight
	default:
		return protocol.IntentDrop
	}
}
