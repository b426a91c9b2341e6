package flowinter

import (
	"fmt"
	"math/bits"
)

// Geometry describes the block layout the vectors were estimated with and the
// shape of the frames they apply to. It is fixed for a session.
type Geometry struct {
	Width       int `json:"width" yaml:"width"`
	Height      int `json:"height" yaml:"height"`
	BlockWidth  int `json:"blockWidth" yaml:"blockWidth"`
	BlockHeight int `json:"blockHeight" yaml:"blockHeight"`
	OverlapX    int `json:"overlapX" yaml:"overlapX"`
	OverlapY    int `json:"overlapY" yaml:"overlapY"`
	Pel         int `json:"pel" yaml:"pel"`
	XRatioUV    int `json:"xRatioUV" yaml:"xRatioUV"`
	YRatioUV    int `json:"yRatioUV" yaml:"yRatioUV"`
	HPad        int `json:"hPad" yaml:"hPad"`
	VPad        int `json:"vPad" yaml:"vPad"`
}

func isPow2Upto4(v int) bool {
	return v == 1 || v == 2 || v == 4
}

// Validate rejects layouts the pipeline cannot process.
func (g Geometry) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("%w: frame size %dx%d", ErrGeometry, g.Width, g.Height)
	}

	if g.BlockWidth <= 0 || g.BlockHeight <= 0 {
		return fmt.Errorf("%w: block size %dx%d", ErrGeometry, g.BlockWidth, g.BlockHeight)
	}

	if g.OverlapX < 0 || g.OverlapY < 0 || g.OverlapX > g.BlockWidth/2 || g.OverlapY > g.BlockHeight/2 {
		return fmt.Errorf("%w: overlap %dx%d for block %dx%d", ErrGeometry, g.OverlapX, g.OverlapY, g.BlockWidth, g.BlockHeight)
	}

	if g.Width < g.BlockWidth || g.Height < g.BlockHeight {
		return fmt.Errorf("%w: frame %dx%d smaller than one block", ErrGeometry, g.Width, g.Height)
	}

	if !isPow2Upto4(g.Pel) {
		return fmt.Errorf("%w: pel must be 1, 2 or 4, got %d", ErrGeometry, g.Pel)
	}

	if !isPow2Upto4(g.XRatioUV) || !isPow2Upto4(g.YRatioUV) {
		return fmt.Errorf("%w: chroma ratio %dx%d", ErrGeometry, g.XRatioUV, g.YRatioUV)
	}

	if g.HPad < 0 || g.VPad < 0 {
		return fmt.Errorf("%w: negative padding %dx%d", ErrGeometry, g.HPad, g.VPad)
	}

	return nil
}

// Blocks returns the size of the estimated block grid.
func (g Geometry) Blocks() (int, int) {
	stepX := g.BlockWidth - g.OverlapX
	stepY := g.BlockHeight - g.OverlapY
	return (g.Width - g.OverlapX) / stepX, (g.Height - g.OverlapY) / stepY
}

// PaddedBlocks returns the smallest grid that covers the whole frame.
func (g Geometry) PaddedBlocks() (int, int) {
	stepX := g.BlockWidth - g.OverlapX
	stepY := g.BlockHeight - g.OverlapY

	nBlkXP, nBlkYP := g.Blocks()
	for nBlkXP*stepX+g.OverlapX < g.Width {
		nBlkXP++
	}
	for nBlkYP*stepY+g.OverlapY < g.Height {
		nBlkYP++
	}

	return nBlkXP, nBlkYP
}

// PaddedSize returns the luma size covered by the padded grid.
func (g Geometry) PaddedSize() (int, int) {
	nBlkXP, nBlkYP := g.PaddedBlocks()
	return nBlkXP*(g.BlockWidth-g.OverlapX) + g.OverlapX, nBlkYP*(g.BlockHeight-g.OverlapY) + g.OverlapY
}

func (g Geometry) pelShift() uint {
	return uint(bits.TrailingZeros(uint(g.Pel)))
}

// Grid is a sparse per-block array, Stride elements per row.
type Grid[T int16 | uint8] struct {
	W, H   int
	Stride int
	Data   []T
}

func newGrid[T int16 | uint8](w, h int) *Grid[T] {
	return &Grid[T]{W: w, H: h, Stride: w, Data: make([]T, w*h)}
}

func (g *Grid[T]) At(x, y int) T { return g.Data[x+y*g.Stride] }

// PadVectors writes the vectors of f into the padded grids vx and vy and fills
// the columns and rows past the estimated grid with the nearest real block.
func PadVectors(f *Field, vx, vy *Grid[int16]) {
	for by := 0; by < f.BlkY; by++ {
		for bx := 0; bx < f.BlkX; bx++ {
			b := f.BlockAt(bx, by)
			vx.Data[bx+by*vx.Stride] = int16(b.X)
			vy.Data[bx+by*vy.Stride] = int16(b.Y)
		}
	}

	padGrid(vx, f.BlkX, f.BlkY)
	padGrid(vy, f.BlkX, f.BlkY)
}

// PadMask replicates the edge of a blkX*blkY mask over the rest of m.
func PadMask(m *Grid[uint8], blkX, blkY int) {
	padGrid(m, blkX, blkY)
}

func padGrid[T int16 | uint8](g *Grid[T], blkX, blkY int) {
	for by := 0; by < blkY; by++ {
		row := g.Data[by*g.Stride : by*g.Stride+g.W]
		for bx := blkX; bx < g.W; bx++ {
			row[bx] = row[blkX-1]
		}
	}

	last := g.Data[(blkY-1)*g.Stride : (blkY-1)*g.Stride+g.W]
	for by := blkY; by < g.H; by++ {
		copy(g.Data[by*g.Stride:by*g.Stride+g.W], last)
	}
}
