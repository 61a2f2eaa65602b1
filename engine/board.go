package engine

const (
	Cols = 10
	Rows = 20

	// SpawnX and SpawnY place a new piece's bounding box.
	SpawnX = 3
	SpawnY = 0
)

// Point is a board coordinate; Y grows downwards from row 0.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Piece is the falling tetromino. X and Y locate the top-left corner of its
// bounding box and Y may be negative while it is above the visible board.
type Piece struct {
	Type     PieceType `json:"type"`
	Rotation int       `json:"rotation"`
	X        int       `json:"x"`
	Y        int       `json:"y"`
}

// Mask returns the piece's current orientation.
func (p Piece) Mask() Mask {
	return MaskOf(p.Type, p.Rotation)
}

// Moved returns a copy of p translated by dx, dy.
func (p Piece) Moved(dx, dy int) Piece {
	p.X += dx
	p.Y += dy
	return p
}

// WithRotation returns a copy of p using orientation rotation.
func (p Piece) WithRotation(rotation int) Piece {
	p.Rotation = rotation
	return p
}

// Blocks lists the absolute coordinates of every occupied cell of p,
// including those outside the board.
func (p Piece) Blocks() []Point {
	m := p.Mask()
	blocks := make([]Point, 0, 4)
	for row := 0; row < m.Size; row++ {
		for col := 0; col < m.Size; col++ {
			if m.Cells[row][col] {
				blocks = append(blocks, Point{X: p.X + col, Y: p.Y + row})
			}
		}
	}
	return blocks
}

// Board is the playfield. Each cell is None or the type of the piece that
// locked there.
type Board [Rows][Cols]PieceType

// Collides reports whether p moved by dx, dy would leave the side walls,
// go below the floor or overlap a locked cell. Cells above row 0 only
// collide with the walls.
func (b *Board) Collides(p Piece, dx, dy int) bool {
	for _, pt := range p.Moved(dx, dy).Blocks() {
		if pt.X < 0 || pt.X >= Cols || pt.Y >= Rows {
			return true
		}
		if pt.Y >= 0 && b[pt.Y][pt.X] != None {
			return true
		}
	}
	return false
}

// Merge locks p into the board. Cells outside the board are dropped.
func (b *Board) Merge(p Piece) {
	for _, pt := range p.Blocks() {
		if pt.Y >= 0 && pt.Y < Rows && pt.X >= 0 && pt.X < Cols {
			b[pt.Y][pt.X] = p.Type
		}
	}
}

// ClearLines removes every full row, shifting the rows above it down and
// inserting empty rows at the top, and returns the number removed.
func (b *Board) ClearLines() int {
	cleared := 0
	for y := Rows - 1; y >= 0; y-- {
		if !b.rowFull(y) {
			continue
		}
		copy(b[1:y+1], b[0:y])
		b[0] = [Cols]PieceType{}
		cleared++
		// the row above now sits at y
		y++
	}
	return cleared
}

func (b *Board) rowFull(y int) bool {
	for _, cell := range b[y] {
		if cell == None {
			return false
		}
	}
	return true
}

// Empty reports whether no cell is occupied.
func (b Board) Empty() bool {
	return b == Board{}
}
