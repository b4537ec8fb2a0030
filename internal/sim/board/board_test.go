package board

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted hands out a fixed queue of pieces, then squares at column 4.
type scripted struct {
	queue []*Piece
}

func (s *scripted) Next() *Piece {
	if len(s.queue) == 0 {
		return BuildPiece(ShapeSquare, 4, "ff69b4")
	}
	p := s.queue[0]
	s.queue = s.queue[1:]
	return p
}

func newTestBoard(pieces ...*Piece) *Board {
	return New(&scripted{queue: pieces})
}

// settleCells drops a piece owning exactly cells straight into the stack.
func settleCells(b *Board, cells ...Pos) *Piece {
	cs := make([]Cell, 0, len(cells))
	for _, p := range cells {
		cs = append(cs, Cell{Row: p.Row, Col: p.Col})
	}
	p := NewPiece(ShapeSquare, "800080", OrientNone, cs)
	b.settle(p)
	return p
}

func rowOf(r int, cols ...int) []Pos {
	out := make([]Pos, 0, len(cols))
	for _, c := range cols {
		out = append(out, Pos{Row: r, Col: c})
	}
	return out
}

func span(lo, hi int) []int {
	var out []int
	for c := lo; c <= hi; c++ {
		out = append(out, c)
	}
	return out
}

func settledPositions(b *Board) map[Pos]int {
	out := map[Pos]int{}
	for _, p := range b.settled {
		for _, c := range p.cells {
			out[c.Pos()]++
		}
	}
	return out
}

func requireSettledUnique(t *testing.T, b *Board) {
	t.Helper()
	for pos, n := range settledPositions(b) {
		require.Equalf(t, 1, n, "cell %v settled %d times", pos, n)
		require.Truef(t, b.inBounds(pos.Row, pos.Col), "cell %v outside the grid", pos)
	}
}

func TestIsCellFull_OutsideGridIsFull(t *testing.T) {
	b := newTestBoard()
	for r := -1; r <= Rows; r++ {
		assert.True(t, b.IsCellFull(r, -1))
		assert.True(t, b.IsCellFull(r, Cols))
	}
	for c := -1; c <= Cols; c++ {
		assert.True(t, b.IsCellFull(-1, c))
		assert.True(t, b.IsCellFull(Rows, c))
	}
	assert.False(t, b.IsCellFull(Rows-1, 0))
}

func TestIsCellFull_IgnoresFallingPiece(t *testing.T) {
	b := newTestBoard(BuildPiece(ShapeSquare, 0, "ff0000"))
	for _, c := range b.falling.cells {
		assert.False(t, b.IsCellFull(c.Row, c.Col))
	}
	settleCells(b, Pos{Row: 10, Col: 3})
	assert.True(t, b.IsCellFull(10, 3))
}

func TestMoveLeft_VetoedAtColumnZero(t *testing.T) {
	b := newTestBoard(BuildPiece(ShapeL, 0, "00ff00"))
	before := b.Falling().Cells()

	assert.False(t, b.MoveLeft())
	assert.Equal(t, before, b.Falling().Cells())
}

func TestMoveLeft_BlockedMoveIsIdempotent(t *testing.T) {
	b := newTestBoard(BuildPiece(ShapeSquare, 3, "ff0000"))
	b.falling.Translate(5, 0) // rows 5-6, cols 3-4
	settleCells(b, Pos{Row: 6, Col: 2})
	before := b.Falling().Cells()

	for i := 0; i < 3; i++ {
		assert.False(t, b.MoveLeft())
		assert.Equal(t, before, b.Falling().Cells())
	}
	assert.True(t, b.MoveRight())
	assert.Equal(t, 4, b.falling.cells[0].Col)
}

func TestMoveRight_VetoedAtLastColumn(t *testing.T) {
	b := newTestBoard(BuildPiece(ShapeBar, Cols-1, "0000ff"))
	assert.False(t, b.MoveRight())
	assert.True(t, b.MoveLeft())
	assert.Equal(t, Cols-2, b.falling.cells[0].Col)
}

func TestRotate_SquareIsNoOp(t *testing.T) {
	b := newTestBoard(BuildPiece(ShapeSquare, 4, "ff0000"))
	b.falling.Translate(6, 0)
	before := b.Falling().Cells()

	assert.False(t, b.Rotate())
	assert.Equal(t, before, b.Falling().Cells())
	assert.Equal(t, OrientNone, b.falling.Orientation())
}

func TestRotate_FourTurnsRestorePiece(t *testing.T) {
	for _, shape := range []Shape{ShapeBar, ShapeJ, ShapeL, ShapeS} {
		t.Run(shape.String(), func(t *testing.T) {
			b := newTestBoard(BuildPiece(shape, 4, "ffa500"))
			b.falling.Translate(8, 0)
			start := b.Falling()

			for i := 0; i < 4; i++ {
				require.Truef(t, b.Rotate(), "turn %d refused", i+1)
				seen := map[Pos]bool{}
				for _, c := range b.falling.cells {
					require.Truef(t, b.inBounds(c.Row, c.Col), "turn %d left the grid: %v", i+1, c)
					require.Falsef(t, seen[c.Pos()], "turn %d stacked cells at %v", i+1, c.Pos())
					seen[c.Pos()] = true
					require.Equal(t, "ffa500", c.Color)
				}
			}
			assert.Equal(t, start.Cells(), b.Falling().Cells())
			assert.Equal(t, start.Orientation(), b.falling.Orientation())
		})
	}
}

func TestRotate_LShapeVisitsEveryOrientation(t *testing.T) {
	b := newTestBoard(BuildPiece(ShapeL, 4, "ff0000"))
	b.falling.Translate(8, 0)

	want := []Orientation{OrientRight, OrientDown, OrientLeft, OrientUp}
	for _, o := range want {
		require.True(t, b.Rotate())
		assert.Equal(t, o, b.falling.Orientation())
	}
}

func TestRotate_BarRefusedNearRightEdge(t *testing.T) {
	b := newTestBoard(BuildPiece(ShapeBar, Cols-3, "0000ff"))
	b.falling.Translate(5, 0)
	before := b.Falling().Cells()

	assert.False(t, b.Rotate())
	assert.Equal(t, before, b.Falling().Cells())
	assert.Equal(t, OrientDown, b.falling.Orientation())
}

func TestRotate_RefusedWhenTargetCellFull(t *testing.T) {
	b := newTestBoard(BuildPiece(ShapeBar, 0, "0000ff"))
	b.falling.Translate(8, 0)
	settleCells(b, Pos{Row: 8, Col: 2})
	before := b.Falling().Cells()

	assert.False(t, b.Rotate())
	assert.Equal(t, before, b.Falling().Cells())
}

func TestRotationTable_CyclesAreClosed(t *testing.T) {
	for key, first := range turns {
		pivots := 0
		for _, d := range first.moves {
			if d == (delta{}) {
				pivots++
			}
		}
		assert.Equalf(t, 1, pivots, "%v %v: want exactly one pivot", key.shape, key.from)

		var sum [CellsPerPiece]delta
		from := key.from
		for i := 0; i < 4; i++ {
			tr, ok := turns[turnKey{key.shape, from}]
			require.Truef(t, ok, "%v has no entry for %v", key.shape, from)
			for j, d := range tr.moves {
				sum[j].dRow += d.dRow
				sum[j].dCol += d.dCol
			}
			from = tr.to
		}
		assert.Equalf(t, key.from, from, "%v: four turns end in %v", key.shape, from)
		assert.Equalf(t, [CellsPerPiece]delta{}, sum, "%v %v: four turns drift", key.shape, key.from)
	}
}

type edgeCase struct {
	refused, allowed []Pos
}

// boardWithPiece starts a board whose falling piece owns exactly cells.
func boardWithPiece(shape Shape, orient Orientation, cells []Pos) *Board {
	cs := make([]Cell, 0, len(cells))
	for _, p := range cells {
		cs = append(cs, Cell{Row: p.Row, Col: p.Col})
	}
	return newTestBoard(NewPiece(shape, "ffa500", orient, cs))
}

func fallingPositions(b *Board) []Pos {
	var out []Pos
	for _, c := range b.Falling().Cells() {
		out = append(out, c.Pos())
	}
	return out
}

// Every rotation entry, pinned: the cells after a free turn, each edge
// placement that refuses it next to one that allows it, and each cell the
// turn needs free.
func TestRotate_EveryEntry(t *testing.T) {
	cases := []struct {
		shape    Shape
		from, to Orientation
		cells    []Pos
		want     []Pos
		needs    []Pos
		edges    []edgeCase
	}{
		{
			shape: ShapeBar, from: OrientDown, to: OrientUp,
			cells: []Pos{{8, 4}, {9, 4}, {10, 4}, {11, 4}},
			want:  []Pos{{8, 4}, {8, 5}, {8, 6}, {8, 7}},
			needs: []Pos{{8, 5}, {8, 6}, {8, 7}},
			edges: []edgeCase{
				{refused: []Pos{{8, 7}, {9, 7}, {10, 7}, {11, 7}}, allowed: []Pos{{8, 6}, {9, 6}, {10, 6}, {11, 6}}},
			},
		},
		{
			shape: ShapeBar, from: OrientUp, to: OrientDown,
			cells: []Pos{{8, 4}, {8, 5}, {8, 6}, {8, 7}},
			want:  []Pos{{8, 4}, {9, 4}, {10, 4}, {11, 4}},
			needs: []Pos{{9, 4}, {10, 4}, {11, 4}},
			edges: []edgeCase{
				{refused: []Pos{{17, 4}, {17, 5}, {17, 6}, {17, 7}}, allowed: []Pos{{16, 4}, {16, 5}, {16, 6}, {16, 7}}},
			},
		},
		{
			shape: ShapeJ, from: OrientDown, to: OrientLeft,
			cells: []Pos{{8, 4}, {8, 5}, {8, 6}, {9, 5}},
			want:  []Pos{{7, 5}, {8, 5}, {9, 5}, {8, 4}},
			needs: []Pos{{7, 5}},
			edges: []edgeCase{
				{refused: []Pos{{0, 4}, {0, 5}, {0, 6}, {1, 5}}, allowed: []Pos{{1, 4}, {1, 5}, {1, 6}, {2, 5}}},
			},
		},
		{
			shape: ShapeJ, from: OrientLeft, to: OrientUp,
			cells: []Pos{{7, 5}, {8, 5}, {9, 5}, {8, 4}},
			want:  []Pos{{8, 6}, {8, 5}, {8, 4}, {7, 5}},
			needs: []Pos{{8, 6}},
			edges: []edgeCase{
				{refused: []Pos{{7, 9}, {8, 9}, {9, 9}, {8, 8}}, allowed: []Pos{{7, 8}, {8, 8}, {9, 8}, {8, 7}}},
			},
		},
		{
			shape: ShapeJ, from: OrientUp, to: OrientRight,
			cells: []Pos{{8, 6}, {8, 5}, {8, 4}, {7, 5}},
			want:  []Pos{{9, 5}, {8, 5}, {7, 5}, {8, 6}},
			needs: []Pos{{9, 5}},
		},
		{
			shape: ShapeJ, from: OrientRight, to: OrientDown,
			cells: []Pos{{9, 5}, {8, 5}, {7, 5}, {8, 6}},
			want:  []Pos{{8, 4}, {8, 5}, {8, 6}, {9, 5}},
			needs: []Pos{{8, 4}},
			edges: []edgeCase{
				{refused: []Pos{{9, 0}, {8, 0}, {7, 0}, {8, 1}}, allowed: []Pos{{9, 1}, {8, 1}, {7, 1}, {8, 2}}},
			},
		},
		{
			shape: ShapeL, from: OrientUp, to: OrientRight,
			cells: []Pos{{8, 4}, {9, 4}, {10, 4}, {10, 5}},
			want:  []Pos{{9, 5}, {9, 4}, {9, 3}, {10, 3}},
			needs: []Pos{{9, 3}, {9, 5}, {10, 3}},
			edges: []edgeCase{
				{refused: []Pos{{8, 0}, {9, 0}, {10, 0}, {10, 1}}, allowed: []Pos{{8, 1}, {9, 1}, {10, 1}, {10, 2}}},
			},
		},
		{
			shape: ShapeL, from: OrientRight, to: OrientDown,
			cells: []Pos{{9, 5}, {9, 4}, {9, 3}, {10, 3}},
			want:  []Pos{{10, 4}, {9, 4}, {8, 4}, {8, 3}},
			needs: []Pos{{10, 4}, {8, 3}, {8, 4}},
			edges: []edgeCase{
				{refused: []Pos{{0, 5}, {0, 4}, {0, 3}, {1, 3}}, allowed: []Pos{{1, 5}, {1, 4}, {1, 3}, {2, 3}}},
			},
		},
		{
			shape: ShapeL, from: OrientDown, to: OrientLeft,
			cells: []Pos{{10, 4}, {9, 4}, {8, 4}, {8, 3}},
			want:  []Pos{{9, 3}, {9, 4}, {9, 5}, {8, 5}},
			needs: []Pos{{9, 3}, {8, 5}, {9, 5}},
			edges: []edgeCase{
				{refused: []Pos{{10, 9}, {9, 9}, {8, 9}, {8, 8}}, allowed: []Pos{{10, 8}, {9, 8}, {8, 8}, {8, 7}}},
			},
		},
		{
			shape: ShapeL, from: OrientLeft, to: OrientUp,
			cells: []Pos{{9, 3}, {9, 4}, {9, 5}, {8, 5}},
			want:  []Pos{{8, 4}, {9, 4}, {10, 4}, {10, 5}},
			needs: []Pos{{8, 4}, {10, 4}, {10, 5}},
			edges: []edgeCase{
				{refused: []Pos{{19, 3}, {19, 4}, {19, 5}, {18, 5}}, allowed: []Pos{{18, 3}, {18, 4}, {18, 5}, {17, 5}}},
			},
		},
		{
			shape: ShapeS, from: OrientUp, to: OrientRight,
			cells: []Pos{{8, 4}, {8, 5}, {9, 3}, {9, 4}},
			want:  []Pos{{8, 4}, {9, 4}, {7, 3}, {8, 3}},
			needs: []Pos{{7, 3}, {8, 3}},
			edges: []edgeCase{
				{refused: []Pos{{0, 4}, {0, 5}, {1, 3}, {1, 4}}, allowed: []Pos{{1, 4}, {1, 5}, {2, 3}, {2, 4}}},
			},
		},
		{
			shape: ShapeS, from: OrientRight, to: OrientDown,
			cells: []Pos{{8, 4}, {9, 4}, {7, 3}, {8, 3}},
			want:  []Pos{{8, 4}, {8, 3}, {7, 5}, {7, 4}},
			needs: []Pos{{7, 4}, {7, 5}},
			edges: []edgeCase{
				{refused: []Pos{{8, 9}, {9, 9}, {7, 8}, {8, 8}}, allowed: []Pos{{8, 8}, {9, 8}, {7, 7}, {8, 7}}},
			},
		},
		{
			shape: ShapeS, from: OrientDown, to: OrientLeft,
			cells: []Pos{{8, 4}, {8, 3}, {7, 5}, {7, 4}},
			want:  []Pos{{8, 4}, {7, 4}, {9, 5}, {8, 5}},
			needs: []Pos{{8, 5}, {9, 5}},
			edges: []edgeCase{
				{refused: []Pos{{19, 4}, {19, 3}, {18, 5}, {18, 4}}, allowed: []Pos{{18, 4}, {18, 3}, {17, 5}, {17, 4}}},
			},
		},
		{
			shape: ShapeS, from: OrientLeft, to: OrientUp,
			cells: []Pos{{8, 4}, {7, 4}, {9, 5}, {8, 5}},
			want:  []Pos{{8, 4}, {8, 5}, {9, 3}, {9, 4}},
			needs: []Pos{{9, 4}, {9, 3}},
			edges: []edgeCase{
				{refused: []Pos{{8, 0}, {7, 0}, {9, 1}, {8, 1}}, allowed: []Pos{{8, 1}, {7, 1}, {9, 2}, {8, 2}}},
			},
		},
	}

	covered := map[turnKey]bool{}
	for _, tc := range cases {
		covered[turnKey{tc.shape, tc.from}] = true
		t.Run(fmt.Sprintf("%v_%v", tc.shape, tc.from), func(t *testing.T) {
			b := boardWithPiece(tc.shape, tc.from, tc.cells)
			require.True(t, b.Rotate())
			assert.Equal(t, tc.want, fallingPositions(b))
			assert.Equal(t, tc.to, b.Falling().Orientation())

			for _, e := range tc.edges {
				b := boardWithPiece(tc.shape, tc.from, e.refused)
				assert.Falsef(t, b.Rotate(), "turned at %v", e.refused)
				assert.Equal(t, e.refused, fallingPositions(b))
				assert.Equal(t, tc.from, b.Falling().Orientation())

				b = boardWithPiece(tc.shape, tc.from, e.allowed)
				assert.Truef(t, b.Rotate(), "refused at %v", e.allowed)
			}

			for _, need := range tc.needs {
				b := boardWithPiece(tc.shape, tc.from, tc.cells)
				settleCells(b, need)
				assert.Falsef(t, b.Rotate(), "turned onto full cell %v", need)
				assert.Equal(t, tc.cells, fallingPositions(b))
			}
		})
	}
	for key := range turns {
		assert.Truef(t, covered[key], "no case for %v %v", key.shape, key.from)
	}
}

func TestTick_LocksSquareOnLastRowWithoutOvershoot(t *testing.T) {
	first := BuildPiece(ShapeSquare, 0, "ff0000")
	second := BuildPiece(ShapeSquare, 6, "00ff00")
	b := newTestBoard(first, second)

	for i := 0; i < Rows-2; i++ {
		require.True(t, b.Tick())
	}
	assert.Empty(t, b.settled)
	for _, c := range b.falling.cells {
		assert.LessOrEqual(t, c.Row, Rows-1)
	}

	require.True(t, b.Tick())
	require.Len(t, b.settled, 1)
	assert.ElementsMatch(t, rowOf(Rows-2, 0, 1), []Pos{b.settled[0].cells[0].Pos(), b.settled[0].cells[1].Pos()})
	assert.ElementsMatch(t, rowOf(Rows-1, 0, 1), []Pos{b.settled[0].cells[2].Pos(), b.settled[0].cells[3].Pos()})

	// The spawned piece has not taken a gravity step yet.
	assert.Equal(t, "00ff00", b.falling.Color())
	assert.Equal(t, 0, b.falling.cells[0].Row)
	assert.False(t, b.Over())
}

func TestStepDown_LocksOnTopOfStack(t *testing.T) {
	b := newTestBoard(BuildPiece(ShapeBar, 2, "0000ff"))
	b.falling.Translate(10, 0) // rows 10-13
	settleCells(b, Pos{Row: 14, Col: 2})

	require.True(t, b.StepDown())
	require.Len(t, b.settled, 2)
	assert.Equal(t, 1, settledPositions(b)[Pos{Row: 13, Col: 2}])
	requireSettledUnique(t, b)
}

func TestHardDrop_ClearsSingleRowAndShiftsAbove(t *testing.T) {
	b := newTestBoard(BuildPiece(ShapeBar, Cols-1, "0000ff"))
	settleCells(b, rowOf(Rows-1, span(0, 4)...)...)
	settleCells(b, rowOf(Rows-1, span(5, Cols-2)...)...)
	above := settleCells(b, Pos{Row: Rows - 2, Col: 0})

	require.True(t, b.HardDrop())

	assert.Equal(t, 1, b.LinesCleared())
	// The two pieces that only owned the cleared row are gone.
	require.Len(t, b.settled, 2)
	assert.Same(t, above, b.settled[0])
	assert.Equal(t, Pos{Row: Rows - 1, Col: 0}, above.cells[0].Pos())

	want := map[Pos]int{
		{Row: Rows - 1, Col: 0}:        1,
		{Row: Rows - 3, Col: Cols - 1}: 1,
		{Row: Rows - 2, Col: Cols - 1}: 1,
		{Row: Rows - 1, Col: Cols - 1}: 1,
	}
	assert.Equal(t, want, settledPositions(b))
	assert.False(t, b.IsCellFull(Rows-1, 5))
	assert.True(t, b.IsCellFull(Rows-1, 0))
}

func TestClearFullRows_TwoRowsAndPartialPiece(t *testing.T) {
	b := newTestBoard()
	settleCells(b, rowOf(19, span(0, 9)...)...)
	settleCells(b, rowOf(18, 0, 1, 2, 3, 5, 6, 7, 8, 9)...)
	split := settleCells(b, Pos{Row: 17, Col: 4}, Pos{Row: 18, Col: 4})
	c := settleCells(b, Pos{Row: 17, Col: 3})
	d := settleCells(b, Pos{Row: 16, Col: 5})

	require.Equal(t, 2, b.clearFullRows())

	assert.Equal(t, 2, b.LinesCleared())
	require.Len(t, b.settled, 3)
	assert.Equal(t, []Cell{{Row: 19, Col: 4, Color: "800080"}}, split.cells)
	assert.Equal(t, Pos{Row: 19, Col: 3}, c.cells[0].Pos())
	assert.Equal(t, Pos{Row: 18, Col: 5}, d.cells[0].Pos())
	assert.True(t, b.IsCellFull(19, 4))
	assert.False(t, b.IsCellFull(18, 4))
	requireSettledUnique(t, b)
}

func TestTick_GameOverWhenSpawnOverlapsStack(t *testing.T) {
	b := newTestBoard(BuildPiece(ShapeSquare, 0, "ff0000"))
	settleCells(b, Pos{Row: 1, Col: 0})

	assert.True(t, b.IsGameOver())
	assert.False(t, b.MoveRight())
	assert.False(t, b.Rotate())

	assert.True(t, b.Tick())
	assert.True(t, b.Over())
	assert.False(t, b.Tick())
	assert.False(t, b.HardDrop())
	assert.False(t, b.MoveLeft())
}

func TestHardDrop_OverlappingSpawnEndsGameWithoutLocking(t *testing.T) {
	b := newTestBoard(
		BuildPiece(ShapeBar, 0, "0000ff"),
		BuildPiece(ShapeSquare, 4, "ff0000"),
	)
	settleCells(b, Pos{Row: 1, Col: 4})

	require.True(t, b.HardDrop())
	require.Len(t, b.settled, 2)
	assert.True(t, b.IsGameOver())
	assert.False(t, b.HardDrop())

	require.True(t, b.Tick())
	assert.True(t, b.Over())
	assert.Len(t, b.settled, 2)
	requireSettledUnique(t, b)
}

func TestLinesCleared_StartsAtZero(t *testing.T) {
	b := New(NewFactory(1, Cols))
	assert.Equal(t, 0, b.LinesCleared())
	assert.False(t, b.Over())
	assert.NotNil(t, b.Falling())
	assert.NotNil(t, b.Next())
}

func TestRandomPlay_SettledCellsStayUnique(t *testing.T) {
	for seed := int64(1); seed <= 8; seed++ {
		b := New(NewFactory(seed, Cols))
		rng := rand.New(rand.NewPCG(uint64(seed), 7))
		for step := 0; step < 4000 && !b.Over(); step++ {
			linesBefore := b.LinesCleared()
			switch rng.IntN(8) {
			case 0:
				b.MoveLeft()
			case 1:
				b.MoveRight()
			case 2, 3:
				b.Rotate()
			case 4:
				b.HardDrop()
			default:
				b.Tick()
			}
			require.GreaterOrEqual(t, b.LinesCleared(), linesBefore)
			requireSettledUnique(t, b)
			if !b.IsGameOver() {
				for _, c := range b.falling.cells {
					require.Truef(t, b.inBounds(c.Row, c.Col), "seed %d step %d: falling cell %v outside", seed, step, c)
				}
			}
		}
	}
}

func TestSettled_ReturnsCopies(t *testing.T) {
	b := newTestBoard()
	settleCells(b, Pos{Row: 19, Col: 0})

	got := b.Settled()
	got[0].Translate(-5, 0)
	assert.Equal(t, 19, b.settled[0].cells[0].Row)

	f := b.Falling()
	f.Translate(3, 0)
	assert.Equal(t, 0, b.falling.cells[0].Row)
}
