package flowinter

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrGeometry   = errors.New("invalid block geometry")
	ErrTime       = errors.New("time fraction out of range")
	ErrDirection  = errors.New("wrong vector direction")
	ErrFieldShape = errors.New("vector field does not match geometry")
	ErrPlane      = errors.New("invalid plane")
	ErrOptions    = errors.New("invalid interpolation options")
)

// Direction tells which way a vector field was searched.
type Direction int

const (
	// Forward vectors point from the earlier frame into the later one.
	Forward Direction = iota
	// Backward vectors point from the later frame into the earlier one.
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// MV is a motion vector in sub-pixel units together with its match cost.
type MV struct {
	X   int   `json:"x"`
	Y   int   `json:"y"`
	SAD int64 `json:"sad"`
}

// Block is one estimated block of a vector field.
type Block struct {
	Col, Row int // grid position
	MV
	Usable bool
}

// Field is a read-only view over the blocks of one direction and temporal
// distance. Blocks are stored row-major, index bx + by*BlkX.
type Field struct {
	Direction Direction
	Delta     int
	BlkX      int
	BlkY      int
	Usable    bool

	blocks []Block
}

// NewField checks that blocks cover the blkX*blkY grid exactly once, in
// row-major order, and that every vector fits in 16 bits.
func NewField(dir Direction, delta, blkX, blkY int, blocks []Block, usable bool) (*Field, error) {
	if blkX <= 0 || blkY <= 0 {
		return nil, fmt.Errorf("%w: %dx%d blocks", ErrFieldShape, blkX, blkY)
	}

	if len(blocks) != blkX*blkY {
		return nil, fmt.Errorf("%w: got %d blocks, expected %d", ErrFieldShape, len(blocks), blkX*blkY)
	}

	for i, b := range blocks {
		if b.Col != i%blkX || b.Row != i/blkX {
			return nil, fmt.Errorf("%w: block %d has position (%d,%d)", ErrFieldShape, i, b.Col, b.Row)
		}
		if !fitsInt16(b.X) || !fitsInt16(b.Y) {
			return nil, fmt.Errorf("%w: block %d vector (%d,%d) exceeds 16 bits", ErrFieldShape, i, b.X, b.Y)
		}
	}

	return &Field{
		Direction: dir,
		Delta:     delta,
		BlkX:      blkX,
		BlkY:      blkY,
		Usable:    usable,
		blocks:    blocks,
	}, nil
}

func fitsInt16(v int) bool {
	return v >= math.MinInt16 && v <= math.MaxInt16
}

func (f *Field) Len() int { return len(f.blocks) }

func (f *Field) Block(i int) Block { return f.blocks[i] }

func (f *Field) BlockAt(bx, by int) Block { return f.blocks[bx+by*f.BlkX] }

// usable reports whether f exists and carries trustworthy vectors.
func (f *Field) usable() bool {
	return f != nil && f.Usable
}

// checkField verifies that f was searched in the expected direction over the
// grid described by g.
func checkField(f *Field, want Direction, g Geometry) error {
	if f == nil {
		return nil
	}

	if f.Direction != want {
		return fmt.Errorf("%w: got %s field where %s was expected", ErrDirection, f.Direction, want)
	}

	if f.Delta <= 0 {
		return fmt.Errorf("%w: %s field has non-positive frame delta %d", ErrDirection, f.Direction, f.Delta)
	}

	bx, by := g.Blocks()
	if f.BlkX != bx || f.BlkY != by {
		return fmt.Errorf("%w: %s field is %dx%d, geometry is %dx%d", ErrFieldShape, f.Direction, f.BlkX, f.BlkY, bx, by)
	}

	return nil
}
