package engine

import "fmt"

// PieceType tags a tetromino. The zero value None marks an empty board cell.
type PieceType uint8

const (
	None PieceType = iota
	I
	O
	T
	S
	Z
	J
	L
)

// NumTypes is the number of real piece types (None excluded).
const NumTypes = 7

var typeNames = [...]string{None: "", I: "I", O: "O", T: "T", S: "S", Z: "Z", J: "J", L: "L"}

func (t PieceType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "?"
}

// MarshalText encodes the type as its letter; empty cells encode as "".
func (t PieceType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts the letters produced by MarshalText.
func (t *PieceType) UnmarshalText(text []byte) error {
	for i, name := range typeNames {
		if name == string(text) {
			*t = PieceType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown piece type %q", text)
}

// Valid reports whether t is one of the seven piece types.
func (t PieceType) Valid() bool {
	return t >= I && t <= L
}

// Mask is one orientation of a piece inside a Size×Size bounding box.
type Mask struct {
	Size  int
	Cells [4][4]bool
}

// Occupied reports whether the mask cell at row, col is filled.
func (m Mask) Occupied(row, col int) bool {
	return row < m.Size && col < m.Size && m.Cells[row][col]
}

func mask(rows ...string) Mask {
	m := Mask{Size: len(rows)}
	for r, line := range rows {
		for c, ch := range line {
			m.Cells[r][c] = ch == '#'
		}
	}
	return m
}

// rotations holds every orientation reachable per type. O has one state,
// I, S and Z two, T, J and L four.
var rotations = [...][]Mask{
	I: {
		mask(
			"....",
			"####",
			"....",
			"....",
		),
		mask(
			"..#.",
			"..#.",
			"..#.",
			"..#.",
		),
	},
	O: {
		mask(
			".##.",
			".##.",
			"....",
			"....",
		),
	},
	T: {
		mask(".#.", "###", "..."),
		mask(".#.", ".##", ".#."),
		mask("...", "###", ".#."),
		mask(".#.", "##.", ".#."),
	},
	S: {
		mask(".##", "##.", "..."),
		mask(".#.", ".##", "..#"),
	},
	Z: {
		mask("##.", ".##", "..."),
		mask("..#", ".##", ".#."),
	},
	J: {
		mask("#..", "###", "..."),
		mask(".##", ".#.", ".#."),
		mask("...", "###", "..#"),
		mask(".#.", ".#.", "##."),
	},
	L: {
		mask("..#", "###", "..."),
		mask(".#.", ".#.", ".##"),
		mask("...", "###", "#.."),
		mask("##.", ".#.", ".#."),
	},
}

// Rotations returns the number of orientations of t, or 0 for None.
func Rotations(t PieceType) int {
	if !t.Valid() {
		return 0
	}
	return len(rotations[t])
}

// MaskOf returns orientation rotation of t, wrapping modulo the table length.
func MaskOf(t PieceType, rotation int) Mask {
	states := rotations[t]
	n := len(states)
	return states[((rotation%n)+n)%n]
}
