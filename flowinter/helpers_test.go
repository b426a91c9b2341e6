package flowinter

import (
	"math/rand"
	"testing"
)

func uniformField(t *testing.T, dir Direction, blkX, blkY, vx, vy int) *Field {
	t.Helper()
	return fieldFrom(t, dir, blkX, blkY, func(bx, by int) MV { return MV{X: vx, Y: vy} })
}

func fieldFrom(t *testing.T, dir Direction, blkX, blkY int, mv func(bx, by int) MV) *Field {
	t.Helper()
	blocks := make([]Block, 0, blkX*blkY)
	for by := 0; by < blkY; by++ {
		for bx := 0; bx < blkX; bx++ {
			blocks = append(blocks, Block{Col: bx, Row: by, MV: mv(bx, by), Usable: true})
		}
	}
	f, err := NewField(dir, 1, blkX, blkY, blocks, true)
	if err != nil {
		t.Fatalf("NewField: %v", err)
	}
	return f
}

func randomField(t *testing.T, rng *rand.Rand, dir Direction, blkX, blkY, spread int) *Field {
	t.Helper()
	return fieldFrom(t, dir, blkX, blkY, func(bx, by int) MV {
		return MV{X: rng.Intn(2*spread+1) - spread, Y: rng.Intn(2*spread+1) - spread, SAD: rng.Int63n(1000)}
	})
}

// fillFrame sets every sample of f, padding included.
func fillFrame[P Pixel](f *Frame[P], v func(i int) P) {
	for _, p := range f.Planes {
		for i := range p.Data {
			p.Data[i] = v(i)
		}
	}
}

func randomFrame[P Pixel](g Geometry, nplanes int, rng *rand.Rand) *Frame[P] {
	f := NewFrame[P](g, nplanes, g.HPad, g.VPad, g.Pel)
	fillFrame(f, func(int) P { return randomPixel[P](rng) })
	return f
}

func randomPixel[P Pixel](rng *rand.Rand) P {
	var zero P
	switch any(zero).(type) {
	case uint8:
		return P(rng.Intn(256))
	case uint16:
		return P(rng.Intn(1024))
	default:
		return P(rng.Float32())
	}
}

func outputFrame[P Pixel](g Geometry, nplanes int) *Frame[P] {
	return NewFrame[P](g, nplanes, 0, 0, 1)
}

func equalFrames[P Pixel](t *testing.T, got, want *Frame[P]) {
	t.Helper()
	for i := range want.Planes {
		gp, wp := got.Planes[i], want.Planes[i]
		for y := 0; y < wp.Height; y++ {
			for x := 0; x < wp.Width; x++ {
				if gp.At(x, y) != wp.At(x, y) {
					t.Fatalf("plane %d (%d,%d): got %v, want %v", i, x, y, gp.At(x, y), wp.At(x, y))
				}
			}
		}
	}
}

// singleBlock is a 16x16 frame covered by exactly one block.
var singleBlock = Geometry{
	Width: 16, Height: 16,
	BlockWidth: 16, BlockHeight: 16,
	Pel: 1, XRatioUV: 1, YRatioUV: 1,
	HPad: 8, VPad: 8,
}

// multiBlock has overlap, a remainder strip and subsampled chroma.
var multiBlock = Geometry{
	Width: 72, Height: 40,
	BlockWidth: 16, BlockHeight: 8,
	OverlapX: 4, OverlapY: 2,
	Pel: 2, XRatioUV: 2, YRatioUV: 2,
	HPad: 16, VPad: 16,
}
