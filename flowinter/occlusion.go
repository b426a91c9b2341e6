package flowinter

import (
	"context"
	"math"
)

// OcclusionParams controls how vector discontinuities turn into mask values.
type OcclusionParams struct {
	// TimeWeight is 256-t for the backward mask and t for the forward one.
	TimeWeight int
	// StepX and StepY are the block spacing (size minus overlap).
	StepX, StepY int
	// MaskNorm is the vector difference, in pixels*10, that saturates the mask.
	MaskNorm float64
	Gamma    float64
	Pel      int
}

func (p OcclusionParams) norm() float64 {
	return 10 / p.MaskNorm / float64(p.Pel)
}

// Contribution is one mask update: Mask[Index] = max(Mask[Index], Value).
type Contribution struct {
	Index int
	Value uint8
}

func occlusionValue(occlusion int, occnorm, gamma float64) uint8 {
	var v float64
	if gamma == 1.0 {
		v = float64(255*occlusion) * occnorm
	} else {
		v = 255 * math.Pow(float64(occlusion)*occnorm, gamma)
	}
	// clamp before converting, out of range float to int is undefined
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

// horizontalOcclusion emits the contributions of block row by against each
// right neighbour. All of them land in row by.
func horizontalOcclusion(f *Field, p OcclusionParams, pitch, by int, emit func(int, uint8)) {
	occnorm := p.norm()
	time4096X := p.TimeWeight * 16 / p.StepX
	for bx := 0; bx < f.BlkX-1; bx++ {
		vx := f.BlockAt(bx, by).X
		vx1 := f.BlockAt(bx+1, by).X
		if vx1 >= vx {
			continue
		}

		v := occlusionValue(vx-vx1, occnorm, p.Gamma)
		for bxi := bx + vx1*time4096X/4096; bxi <= bx+vx*time4096X/4096+1 && bxi >= 0 && bxi < f.BlkX; bxi++ {
			emit(bxi+by*pitch, v)
		}
	}
}

// verticalOcclusion emits the contributions of block column bx against each
// bottom neighbour. All of them land in column bx.
func verticalOcclusion(f *Field, p OcclusionParams, pitch, bx int, emit func(int, uint8)) {
	occnorm := p.norm()
	time4096Y := p.TimeWeight * 16 / p.StepY
	for by := 0; by < f.BlkY-1; by++ {
		vy := f.BlockAt(bx, by).Y
		vy1 := f.BlockAt(bx, by+1).Y
		if vy1 >= vy {
			continue
		}

		v := occlusionValue(vy-vy1, occnorm, p.Gamma)
		for byi := by + vy1*time4096Y/4096; byi <= by+vy*time4096Y/4096+1 && byi >= 0 && byi < f.BlkY; byi++ {
			emit(bx+byi*pitch, v)
		}
	}
}

// OcclusionContributions lists every mask update f produces, for a mask with
// the given row pitch.
func OcclusionContributions(f *Field, p OcclusionParams, pitch int) []Contribution {
	var out []Contribution
	emit := func(i int, v uint8) {
		out = append(out, Contribution{Index: i, Value: v})
	}

	for by := 0; by < f.BlkY; by++ {
		horizontalOcclusion(f, p, pitch, by, emit)
	}
	for bx := 0; bx < f.BlkX; bx++ {
		verticalOcclusion(f, p, pitch, bx, emit)
	}
	return out
}

// ApplyOcclusion raises mask entries to the contributed values.
func ApplyOcclusion(mask []uint8, cs []Contribution) {
	for _, c := range cs {
		mask[c.Index] = max(mask[c.Index], c.Value)
	}
}

// BuildOcclusionMask clears the estimated area of mask and fills it from the
// vector discontinuities of f. Rows are processed in parallel for the
// horizontal pass and columns for the vertical one.
func BuildOcclusionMask(ctx context.Context, f *Field, p OcclusionParams, mask *Grid[uint8], workers int) error {
	for by := 0; by < f.BlkY; by++ {
		clear(mask.Data[by*mask.Stride : by*mask.Stride+f.BlkX])
	}

	apply := func(i int, v uint8) {
		mask.Data[i] = max(mask.Data[i], v)
	}

	err := parallelRanges(ctx, workers, f.BlkY, func(lo, hi int) {
		for by := lo; by < hi; by++ {
			horizontalOcclusion(f, p, mask.Stride, by, apply)
		}
	})
	if err != nil {
		return err
	}

	return parallelRanges(ctx, workers, f.BlkX, func(lo, hi int) {
		for bx := lo; bx < hi; bx++ {
			verticalOcclusion(f, p, mask.Stride, bx, apply)
		}
	})
}
