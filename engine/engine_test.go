package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequenceRand deals the given piece types in order, cycling.
type sequenceRand struct {
	types []PieceType
	i     int
}

func (r *sequenceRand) IntN(n int) int {
	t := r.types[r.i%len(r.types)]
	r.i++
	return int(t-I) % n
}

func newTestEngine(types ...PieceType) *Engine {
	return New(DefaultConfig(), &sequenceRand{types: types})
}

func assertCellsValid(t *testing.T, b Board) {
	t.Helper()
	for y := range b {
		for x := range b[y] {
			cell := b[y][x]
			assert.True(t, cell == None || cell.Valid(), "cell %d,%d holds %d", x, y, cell)
		}
	}
}

func TestNewStartsRunning(t *testing.T) {
	e := newTestEngine(T, S)
	snap := e.Snapshot()

	assert.Equal(t, Running, snap.Status)
	assert.Equal(t, 0, snap.Score)
	assert.True(t, snap.Board.Empty())
	assert.Equal(t, Piece{Type: T, X: SpawnX, Y: SpawnY}, snap.Current)
	assert.Equal(t, S, snap.Next)
	assert.Equal(t, 700*time.Millisecond, snap.Interval)
}

func TestTickMovesDown(t *testing.T) {
	e := newTestEngine(T)
	e.Tick()
	e.SoftDrop()
	assert.Equal(t, 2, e.Snapshot().Current.Y)
}

func TestMoveRejectedAtWall(t *testing.T) {
	e := newTestEngine(O)
	// O occupies columns x+1 and x+2
	for i := 0; i < 10; i++ {
		e.MoveLeft()
	}
	assert.Equal(t, -1, e.Snapshot().Current.X)

	for i := 0; i < 20; i++ {
		e.MoveRight()
	}
	assert.Equal(t, 7, e.Snapshot().Current.X)
}

func TestMoveRejectedByLockedCell(t *testing.T) {
	e := newTestEngine(O)
	e.board[1][3] = Z
	before := e.Snapshot()

	e.MoveLeft()
	assert.Equal(t, before, e.Snapshot())
}

func TestRotateCycles(t *testing.T) {
	for _, typ := range []PieceType{I, O, T, S, Z, J, L} {
		e := newTestEngine(typ)
		e.current.Y = 5
		start := e.Snapshot().Current

		n := Rotations(typ)
		for i := 0; i < n; i++ {
			e.Rotate()
			if i < n-1 {
				assert.Equal(t, i+1, e.current.Rotation, "%s", typ)
			}
		}
		assert.Equal(t, start, e.Snapshot().Current, "%s", typ)
	}
}

func TestRotateRefusedWithoutKick(t *testing.T) {
	e := newTestEngine(I)
	// horizontal I resting on the floor, the vertical state would poke below
	e.current.Y = 18
	e.Rotate()
	assert.Equal(t, 0, e.current.Rotation)
	assert.Equal(t, 18, e.current.Y)

	// vertical I against the right wall cannot turn horizontal
	e = newTestEngine(I)
	e.current = Piece{Type: I, Rotation: 1, X: 7, Y: 5}
	e.Rotate()
	assert.Equal(t, Piece{Type: I, Rotation: 1, X: 7, Y: 5}, e.current)
}

func TestHardDropOnEmptyBoard(t *testing.T) {
	e := newTestEngine(T, J, S)
	e.HardDrop()
	snap := e.Snapshot()

	// T rotation 0 has its lowest cells in the second mask row
	assert.Equal(t, T, snap.Board[19][3])
	assert.Equal(t, T, snap.Board[19][4])
	assert.Equal(t, T, snap.Board[19][5])
	assert.Equal(t, T, snap.Board[18][4])
	assert.Equal(t, Piece{Type: J, X: SpawnX, Y: SpawnY}, snap.Current)
	assert.Equal(t, S, snap.Next)
	assert.Equal(t, Running, snap.Status)
	assert.Equal(t, 0, snap.Score)
}

func TestTickLocksWhenBlocked(t *testing.T) {
	e := newTestEngine(O, T)
	for i := 0; i < 18; i++ {
		e.Tick()
	}
	require.Equal(t, 18, e.current.Y)
	require.Equal(t, O, e.current.Type)

	e.Tick()
	assert.Equal(t, O, e.board[18][4])
	assert.Equal(t, O, e.board[19][5])
	assert.Equal(t, T, e.current.Type)
	assert.Equal(t, 0, e.current.Y)
}

func TestSingleLineClear(t *testing.T) {
	e := newTestEngine(O, T)
	fillRow(&e.board, 19, L, 8, 9)
	e.current.X = 7 // O fills columns 8 and 9

	e.HardDrop()
	snap := e.Snapshot()

	assert.Equal(t, 100, snap.Score)
	assert.Equal(t, 1, snap.Lines)
	assert.Equal(t, [Cols]PieceType{}, snap.Board[0])
	var want [Cols]PieceType
	want[8], want[9] = O, O
	assert.Equal(t, want, snap.Board[19])
	assert.Equal(t, [Cols]PieceType{}, snap.Board[18])
	assert.Equal(t, 690*time.Millisecond, snap.Interval)
	assertCellsValid(t, snap.Board)
}

func TestTetrisScores800(t *testing.T) {
	e := newTestEngine(I, T)
	for y := 16; y < Rows; y++ {
		fillRow(&e.board, y, Z, 5)
	}
	e.current = Piece{Type: I, Rotation: 1, X: 3, Y: 0}

	e.HardDrop()
	snap := e.Snapshot()

	assert.Equal(t, 800, snap.Score)
	assert.Equal(t, 4, snap.Lines)
	assert.True(t, snap.Board.Empty())
	assert.Equal(t, 660*time.Millisecond, snap.Interval)
}

func TestIntervalFloor(t *testing.T) {
	cfg := Config{InitialInterval: 220 * time.Millisecond, MinInterval: 200 * time.Millisecond, IntervalStep: 10 * time.Millisecond}
	e := New(cfg, &sequenceRand{types: []PieceType{I}})
	for y := 16; y < Rows; y++ {
		fillRow(&e.board, y, Z, 5)
	}
	e.current = Piece{Type: I, Rotation: 1, X: 3, Y: 0}
	e.HardDrop()
	assert.Equal(t, 200*time.Millisecond, e.Interval())
}

func TestSpawnCollisionEndsGame(t *testing.T) {
	e := newTestEngine(O, T, S)
	fillRow(&e.board, 1, J, 7, 8, 9)
	e.current.X = 7

	e.HardDrop()
	require.Equal(t, GameOver, e.Status())

	frozen := e.Snapshot()
	e.Tick()
	e.SoftDrop()
	e.MoveLeft()
	e.MoveRight()
	e.Rotate()
	e.HardDrop()
	assert.Equal(t, frozen, e.Snapshot())
}

func TestRestartResetsEverything(t *testing.T) {
	e := newTestEngine(O, T, S)
	fillRow(&e.board, 1, J, 7, 8, 9)
	e.score = 1250
	e.lines = 7
	e.interval = 300 * time.Millisecond
	e.current.X = 7
	e.HardDrop()
	require.Equal(t, GameOver, e.Status())

	e.Restart()
	snap := e.Snapshot()
	assert.Equal(t, Running, snap.Status)
	assert.Equal(t, 0, snap.Score)
	assert.Equal(t, 0, snap.Lines)
	assert.True(t, snap.Board.Empty())
	assert.Equal(t, 700*time.Millisecond, snap.Interval)

	// restart from a running game behaves the same
	e.HardDrop()
	e.Restart()
	assert.True(t, e.Snapshot().Board.Empty())
	assert.Equal(t, Running, e.Status())
}

func TestRandomGameKeepsCellsValid(t *testing.T) {
	e := New(DefaultConfig(), NewRand(42))
	moves := []func(){e.MoveLeft, e.MoveRight, e.Rotate, e.Tick, e.SoftDrop, e.HardDrop}
	rng := NewRand(7)
	for i := 0; i < 5000 && e.Status() == Running; i++ {
		lastScore := e.Score()
		moves[rng.IntN(len(moves))]()
		assertCellsValid(t, e.Snapshot().Board)
		assert.GreaterOrEqual(t, e.Score(), lastScore)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	e := newTestEngine(T)
	snap := e.Snapshot()
	snap.Board[0][0] = I
	snap.Current.X = 9
	assert.Equal(t, None, e.board[0][0])
	assert.Equal(t, SpawnX, e.current.X)
}
