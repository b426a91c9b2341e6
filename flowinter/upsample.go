package flowinter

import (
	"context"
	"math/bits"
)

const denseAlign = 16

// Dense is a per-pixel field. Rows are Stride elements apart; Stride may be
// larger than Width.
type Dense[T int16 | uint8] struct {
	Width, Height int
	Stride        int
	Data          []T
}

func newDense[T int16 | uint8](w, h int) *Dense[T] {
	stride := (w + denseAlign - 1) / denseAlign * denseAlign
	return &Dense[T]{Width: w, Height: h, Stride: stride, Data: make([]T, stride*h)}
}

func (d *Dense[T]) At(x, y int) T { return d.Data[x+y*d.Stride] }

func (d *Dense[T]) row(y int) []T { return d.Data[y*d.Stride : y*d.Stride+d.Width] }

// tap is a two-point bilinear sample: (src[i0]*(256-w) + src[i1]*w) / 256.
type tap struct {
	i0, i1 int
	w      int
}

// makeTaps maps every destination sample centre onto the source grid, where
// source samples sit at block centres. Positions before the first or past the
// last centre are clamped to the edge sample.
func makeTaps(dst, src int) []tap {
	taps := make([]tap, dst)
	for x := 0; x < dst; x++ {
		num := ((2*x+1)*src - dst) * 256
		if num <= 0 {
			taps[x] = tap{}
			continue
		}

		pos := num / (2 * dst)
		i := pos >> 8
		if i >= src-1 {
			taps[x] = tap{i0: src - 1, i1: src - 1}
			continue
		}
		taps[x] = tap{i0: i, i1: i + 1, w: pos & 255}
	}
	return taps
}

func lerp8(a, b, w int) int {
	return (a*(256-w) + b*w + 128) >> 8
}

// Upsampler expands a padded block grid to pixel resolution with separable
// bilinear interpolation. One Upsampler serves one plane size.
type Upsampler struct {
	dstW, dstH int
	srcW, srcH int
	hTaps      []tap
	vTaps      []tap
}

func NewUpsampler(dstW, dstH, srcW, srcH int) *Upsampler {
	return &Upsampler{
		dstW:  dstW,
		dstH:  dstH,
		srcW:  srcW,
		srcH:  srcH,
		hTaps: makeTaps(dstW, srcW),
		vTaps: makeTaps(dstH, srcH),
	}
}

// VectorLimit keeps a displaced sample inside the padded reference plane.
// Size is the visible plane extent along the vector axis, Pad the padding on
// each side, both in pixels.
type VectorLimit struct {
	Horizontal bool
	Size       int
	Pad        int
	Pel        int
}

func (l VectorLimit) clamp(x, y, v int) int {
	pos := y
	if l.Horizontal {
		pos = x
	}
	lo := -(pos + l.Pad) * l.Pel
	hi := (l.Size - 1 - pos + l.Pad) * l.Pel
	return max(lo, min(v, hi))
}

// Vectors expands one vector component. Values are sub-pixel displacements
// and are clamped per pixel by lim.
func (u *Upsampler) Vectors(ctx context.Context, dst *Dense[int16], src *Grid[int16], lim VectorLimit, workers int) error {
	return parallelRanges(ctx, workers, u.dstH, func(lo, hi int) {
		for y := lo; y < hi; y++ {
			tv := u.vTaps[y]
			r0 := src.Data[tv.i0*src.Stride:]
			r1 := src.Data[tv.i1*src.Stride:]
			out := dst.row(y)
			for x := range out {
				th := u.hTaps[x]
				a := lerp8(int(r0[th.i0]), int(r0[th.i1]), th.w)
				b := lerp8(int(r1[th.i0]), int(r1[th.i1]), th.w)
				out[x] = int16(lim.clamp(x, y, lerp8(a, b, tv.w)))
			}
		}
	})
}

// Mask expands an occlusion mask.
func (u *Upsampler) Mask(ctx context.Context, dst *Dense[uint8], src *Grid[uint8], workers int) error {
	return parallelRanges(ctx, workers, u.dstH, func(lo, hi int) {
		for y := lo; y < hi; y++ {
			tv := u.vTaps[y]
			r0 := src.Data[tv.i0*src.Stride:]
			r1 := src.Data[tv.i1*src.Stride:]
			out := dst.row(y)
			for x := range out {
				th := u.hTaps[x]
				a := lerp8(int(r0[th.i0]), int(r0[th.i1]), th.w)
				b := lerp8(int(r1[th.i0]), int(r1[th.i1]), th.w)
				out[x] = uint8(lerp8(a, b, tv.w))
			}
		}
	})
}

// ChromaVectors rescales a luma vector grid for a plane subsampled by ratio.
func ChromaVectors(dst, src *Grid[int16], ratio int) {
	shift := uint(bits.TrailingZeros(uint(ratio)))
	for i, v := range src.Data {
		dst.Data[i] = v >> shift
	}
}
