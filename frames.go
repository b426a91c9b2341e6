package main

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Zelak312/mflowinter/flowinter"
)

// sampleCodec returns the little-endian decoder and encoder for P.
func sampleCodec[P flowinter.Pixel]() (func([]byte) P, func([]byte, P)) {
	var zero P
	switch any(zero).(type) {
	case uint8:
		dec := func(b []byte) uint8 { return b[0] }
		enc := func(b []byte, v uint8) { b[0] = v }
		return any(dec).(func([]byte) P), any(enc).(func([]byte, P))
	case uint16:
		dec := binary.LittleEndian.Uint16
		enc := binary.LittleEndian.PutUint16
		return any(dec).(func([]byte) P), any(enc).(func([]byte, P))
	default:
		dec := func(b []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b)) }
		enc := func(b []byte, v float32) { binary.LittleEndian.PutUint32(b, math.Float32bits(v)) }
		return any(dec).(func([]byte) P), any(enc).(func([]byte, P))
	}
}

// sampleBytes is the width of one raw sample of type P.
func sampleBytes[P flowinter.Pixel]() int {
	var zero P
	switch any(zero).(type) {
	case uint8:
		return 1
	case uint16:
		return 2
	default:
		return 4
	}
}

// rawToFrame copies a planar raw frame into the visible full-pel samples of f.
func rawToFrame[P flowinter.Pixel](raw []byte, f *flowinter.Frame[P]) error {
	dec, _ := sampleCodec[P]()
	bps := sampleBytes[P]()

	off := 0
	for i, p := range f.Planes {
		need := p.Width * p.Height * bps
		if off+need > len(raw) {
			return fmt.Errorf("raw frame too short for plane %d: %d bytes, need %d", i, len(raw)-off, need)
		}
		for y := 0; y < p.Height; y++ {
			for x := 0; x < p.Width; x++ {
				p.Set(x, y, dec(raw[off:]))
				off += bps
			}
		}
	}

	if off != len(raw) {
		return fmt.Errorf("raw frame has %d trailing bytes", len(raw)-off)
	}
	return nil
}

// frameToRaw is the inverse of rawToFrame.
func frameToRaw[P flowinter.Pixel](f *flowinter.Frame[P], raw []byte) error {
	_, enc := sampleCodec[P]()
	bps := sampleBytes[P]()

	off := 0
	for i, p := range f.Planes {
		need := p.Width * p.Height * bps
		if off+need > len(raw) {
			return fmt.Errorf("raw buffer too short for plane %d", i)
		}
		for y := 0; y < p.Height; y++ {
			for x := 0; x < p.Width; x++ {
				enc(raw[off:], p.At(x, y))
				off += bps
			}
		}
	}

	return nil
}

// padPlane replicates the edge samples of a pel 1 plane into its padding.
func padPlane[P flowinter.Pixel](p *flowinter.Plane[P]) {
	left := p.Offset % p.Stride
	top := p.Offset / p.Stride
	rows := len(p.Data) / p.Stride
	right := left + p.Width

	for y := top; y < top+p.Height; y++ {
		row := p.Data[y*p.Stride : (y+1)*p.Stride]
		for x := 0; x < left; x++ {
			row[x] = row[left]
		}
		for x := right; x < p.Stride; x++ {
			row[x] = row[right-1]
		}
	}

	first := p.Data[top*p.Stride : (top+1)*p.Stride]
	for y := 0; y < top; y++ {
		copy(p.Data[y*p.Stride:(y+1)*p.Stride], first)
	}

	last := p.Data[(top+p.Height-1)*p.Stride : (top+p.Height)*p.Stride]
	for y := top + p.Height; y < rows; y++ {
		copy(p.Data[y*p.Stride:(y+1)*p.Stride], last)
	}
}

func blerp(c00, c10, c01, c11, tx, ty float64) float64 {
	top := c00 + (c10-c00)*tx
	bottom := c01 + (c11-c01)*tx
	return top + (bottom-top)*ty
}

// refinePlane fills dst, a plane of the same visible size and padding as the
// pel 1 plane src, with bilinear sub-pixel samples. Full-pel samples of dst
// equal the samples of src.
func refinePlane[P flowinter.Pixel](dst, src *flowinter.Plane[P]) {
	pel := dst.Pel
	if pel == 1 {
		copy(dst.Data, src.Data)
		return
	}

	var zero P
	_, isFloat := any(zero).(float32)

	srcRows := len(src.Data) / src.Stride
	dstRows := len(dst.Data) / dst.Stride
	step := 1 / float64(pel)

	for y := 0; y < dstRows; y++ {
		sy := y / pel
		sy1 := min(sy+1, srcRows-1)
		ty := float64(y%pel) * step
		row0 := src.Data[sy*src.Stride : (sy+1)*src.Stride]
		row1 := src.Data[sy1*src.Stride : (sy1+1)*src.Stride]
		out := dst.Data[y*dst.Stride : (y+1)*dst.Stride]

		for x := range out {
			sx := x / pel
			sx1 := min(sx+1, src.Stride-1)
			tx := float64(x%pel) * step
			v := blerp(float64(row0[sx]), float64(row0[sx1]), float64(row1[sx]), float64(row1[sx1]), tx, ty)
			if !isFloat {
				v = math.Round(v)
			}
			out[x] = P(v)
		}
	}
}

// frameLoader turns raw ffmpeg frames into padded, refined reference frames.
type frameLoader[P flowinter.Pixel] struct {
	g      flowinter.Geometry
	planes int
	coarse *flowinter.Frame[P]
}

func newFrameLoader[P flowinter.Pixel](g flowinter.Geometry, planes int) *frameLoader[P] {
	return &frameLoader[P]{
		g:      g,
		planes: planes,
		coarse: flowinter.NewFrame[P](g, planes, g.HPad, g.VPad, 1),
	}
}

// NewReference allocates a frame laid out the way the interpolator reads
// its Src and Ref frames.
func (l *frameLoader[P]) NewReference() *flowinter.Frame[P] {
	return flowinter.NewFrame[P](l.g, l.planes, l.g.HPad, l.g.VPad, l.g.Pel)
}

// NewOutput allocates an unpadded output frame.
func (l *frameLoader[P]) NewOutput() *flowinter.Frame[P] {
	return flowinter.NewFrame[P](l.g, l.planes, 0, 0, 1)
}

// Load decodes raw into dst, pads it and refines it to the geometry's pel.
func (l *frameLoader[P]) Load(raw []byte, dst *flowinter.Frame[P]) error {
	if err := rawToFrame(raw, l.coarse); err != nil {
		return err
	}

	for i, p := range l.coarse.Planes {
		padPlane(p)
		refinePlane(dst.Planes[i], p)
	}

	return nil
}
