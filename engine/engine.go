// Package engine implements the falling-block board: shape tables,
// collision, locking, line clearing and the Running/GameOver state machine.
//
// An Engine is a plain value owner with no goroutines or locks. Callers must
// serialise every method call; the room package does this by running all
// engine calls on the room loop.
package engine

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Status is the engine's game state.
type Status int

const (
	Running Status = iota
	GameOver
)

func (s Status) String() string {
	if s == GameOver {
		return "game_over"
	}
	return "running"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "running":
		*s = Running
	case "game_over":
		*s = GameOver
	default:
		return fmt.Errorf("unknown status %q", text)
	}
	return nil
}

// Rand supplies piece randomness. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	// IntN returns a uniform value in [0, n).
	IntN(n int) int
}

// NewRand returns a seeded PCG source.
func NewRand(seed uint64) Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Config controls gravity speed.
type Config struct {
	InitialInterval time.Duration
	MinInterval     time.Duration
	IntervalStep    time.Duration
}

// DefaultConfig starts at 700ms per row and speeds up 10ms per cleared line
// down to 200ms.
func DefaultConfig() Config {
	return Config{
		InitialInterval: 700 * time.Millisecond,
		MinInterval:     200 * time.Millisecond,
		IntervalStep:    10 * time.Millisecond,
	}
}

var lineScores = [...]int{0, 100, 250, 500, 800, 1200}

// ScoreForLines returns the points for clearing n lines with one lock.
func ScoreForLines(n int) int {
	if n <= 0 {
		return 0
	}
	if n >= len(lineScores) {
		return lineScores[len(lineScores)-1]
	}
	return lineScores[n]
}

// Snapshot is a read-only copy of the engine state.
type Snapshot struct {
	Board    Board         `json:"board"`
	Current  Piece         `json:"current"`
	Blocks   []Point       `json:"blocks"`
	Next     PieceType     `json:"next"`
	Score    int           `json:"score"`
	Lines    int           `json:"lines"`
	Interval time.Duration `json:"interval"`
	Status   Status        `json:"status"`
}

type Engine struct {
	cfg      Config
	rng      Rand
	board    Board
	current  Piece
	next     Piece
	score    int
	lines    int
	interval time.Duration
	status   Status
}

// New returns an engine with a fresh game already started.
func New(cfg Config, rng Rand) *Engine {
	if cfg.InitialInterval <= 0 {
		cfg = DefaultConfig()
	}
	if rng == nil {
		rng = NewRand(uint64(time.Now().UnixNano()))
	}
	e := &Engine{cfg: cfg, rng: rng}
	e.Restart()
	return e
}

// Restart clears the board and score, resets the interval and draws a new
// current and next piece. Valid in any state.
func (e *Engine) Restart() {
	e.board = Board{}
	e.score = 0
	e.lines = 0
	e.interval = e.cfg.InitialInterval
	e.status = Running
	e.current = e.newPiece()
	e.next = e.newPiece()
}

// Tick applies one step of gravity.
func (e *Engine) Tick() {
	if e.status != Running {
		return
	}
	if !e.board.Collides(e.current, 0, 1) {
		e.current.Y++
		return
	}
	e.lock()
}

// SoftDrop moves the piece down one row, locking it if it cannot move.
func (e *Engine) SoftDrop() {
	e.Tick()
}

func (e *Engine) MoveLeft() {
	e.shift(-1)
}

func (e *Engine) MoveRight() {
	e.shift(1)
}

func (e *Engine) shift(dx int) {
	if e.status != Running {
		return
	}
	if !e.board.Collides(e.current, dx, 0) {
		e.current.X += dx
	}
}

// Rotate advances to the next orientation if it fits in place. There is no
// wall kick.
func (e *Engine) Rotate() {
	if e.status != Running {
		return
	}
	next := (e.current.Rotation + 1) % Rotations(e.current.Type)
	if !e.board.Collides(e.current.WithRotation(next), 0, 0) {
		e.current.Rotation = next
	}
}

// HardDrop drops the piece as far as it goes and locks it.
func (e *Engine) HardDrop() {
	if e.status != Running {
		return
	}
	for !e.board.Collides(e.current, 0, 1) {
		e.current.Y++
	}
	e.lock()
}

func (e *Engine) lock() {
	e.board.Merge(e.current)
	n := e.board.ClearLines()
	if n > 0 {
		e.score += ScoreForLines(n)
		e.lines += n
		e.interval -= time.Duration(n) * e.cfg.IntervalStep
		if e.interval < e.cfg.MinInterval {
			e.interval = e.cfg.MinInterval
		}
	}
	e.spawn()
}

func (e *Engine) spawn() {
	e.current = e.next
	e.current.X, e.current.Y, e.current.Rotation = SpawnX, SpawnY, 0
	e.next = e.newPiece()
	if e.board.Collides(e.current, 0, 0) {
		e.status = GameOver
	}
}

func (e *Engine) newPiece() Piece {
	return Piece{
		Type: PieceType(e.rng.IntN(NumTypes)) + I,
		X:    SpawnX,
		Y:    SpawnY,
	}
}

func (e *Engine) Status() Status {
	return e.status
}

func (e *Engine) Score() int {
	return e.score
}

func (e *Engine) Lines() int {
	return e.lines
}

// Interval is the gravity period the host should tick at.
func (e *Engine) Interval() time.Duration {
	return e.interval
}

// Snapshot copies the current state.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		Board:    e.board,
		Current:  e.current,
		Blocks:   e.current.Blocks(),
		Next:     e.next.Type,
		Score:    e.score,
		Lines:    e.lines,
		Interval: e.interval,
		Status:   e.status,
	}
}
