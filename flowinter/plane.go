package flowinter

import "fmt"

// Pixel is a sample type the blender can work with: 8-bit, high bit depth
// stored in 16 bits, or normalized float.
type Pixel interface {
	uint8 | uint16 | float32
}

// Plane is one channel of a frame. Reference planes carry HPad/VPad pixels of
// padding on each side and, when Pel > 1, are refined so that Pel*Pel samples
// exist per pixel; output planes use Pel 1 and may have no padding.
type Plane[P Pixel] struct {
	Data   []P
	Width  int // visible width in pixels
	Height int // visible height in pixels
	Stride int // elements between refined rows
	Offset int // index of visible pixel (0,0)
	Pel    int
}

// NewPlane allocates a zeroed plane with the given padding and refinement.
func NewPlane[P Pixel](width, height, hPad, vPad, pel int) *Plane[P] {
	stride := (width + 2*hPad) * pel
	rows := (height + 2*vPad) * pel
	return &Plane[P]{
		Data:   make([]P, stride*rows),
		Width:  width,
		Height: height,
		Stride: stride,
		Offset: vPad*pel*stride + hPad*pel,
		Pel:    pel,
	}
}

func (p *Plane[P]) index(x, y int) int {
	return p.Offset + y*p.Stride*p.Pel + x*p.Pel
}

// At returns the full-pixel sample at visible position (x, y).
func (p *Plane[P]) At(x, y int) P { return p.Data[p.index(x, y)] }

func (p *Plane[P]) Set(x, y int, v P) { p.Data[p.index(x, y)] = v }

// covers reports whether p holds at least hPad/vPad of padding around a
// width x height visible area at refinement pel.
func (p *Plane[P]) covers(width, height, hPad, vPad, pel int) error {
	if p == nil {
		return fmt.Errorf("%w: missing plane", ErrPlane)
	}

	if p.Width != width || p.Height != height {
		return fmt.Errorf("%w: plane is %dx%d, expected %dx%d", ErrPlane, p.Width, p.Height, width, height)
	}

	if p.Pel != pel {
		return fmt.Errorf("%w: plane pel %d, expected %d", ErrPlane, p.Pel, pel)
	}

	left := p.Offset % p.Stride
	top := p.Offset / p.Stride
	if left < hPad*pel || p.Stride-left-(width-1)*pel < (hPad+1)*pel {
		return fmt.Errorf("%w: horizontal padding below %d", ErrPlane, hPad)
	}

	rows := len(p.Data) / p.Stride
	if top < vPad*pel || rows-top-(height-1)*pel < (vPad+1)*pel {
		return fmt.Errorf("%w: vertical padding below %d", ErrPlane, vPad)
	}

	return nil
}

// Frame is a set of independent planes: luma followed by optional chroma.
type Frame[P Pixel] struct {
	Planes []*Plane[P]
}

// NewFrame allocates a frame of nplanes planes, chroma planes subsampled by
// the geometry's ratios.
func NewFrame[P Pixel](g Geometry, nplanes, hPad, vPad, pel int) *Frame[P] {
	f := &Frame[P]{Planes: make([]*Plane[P], nplanes)}
	for i := range f.Planes {
		w, h, hp, vp := g.Width, g.Height, hPad, vPad
		if i > 0 {
			w, h, hp, vp = w/g.XRatioUV, h/g.YRatioUV, hp/g.XRatioUV, vp/g.YRatioUV
		}
		f.Planes[i] = NewPlane[P](w, h, hp, vp, pel)
	}
	return f
}
