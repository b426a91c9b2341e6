package flowinter

import "cmp"

// arith is the numeric policy of the blend kernels. Integer policies work on
// 0..255 masks with a +255 rounding bias and power-of-two shifts; the float
// policy works on masks scaled to [0,1] and needs no bias.
type arith[P Pixel] interface {
	// toward moves x toward y by mask m.
	toward(x, y P, m uint8) P
	// fallback moves x toward (y moved toward zero by my) by mx, keeping
	// the inner product unnormalized.
	fallback(x, y, zero P, mx, my uint8) P
	// lerp weighs a by 256-t and b by t.
	lerp(a, b P, t int) P
	// half is lerp at t == 128.
	half(a, b P) P
}

// fixed is the integer policy. Intermediates are int64 so that 16-bit
// samples times two 8-bit masks cannot overflow.
type fixed[P uint8 | uint16] struct{}

func (fixed[P]) toward(x, y P, m uint8) P {
	return P((int64(x)*(255-int64(m)) + int64(y)*int64(m) + 255) >> 8)
}

func (fixed[P]) fallback(x, y, zero P, mx, my uint8) P {
	inner := int64(y)*(255-int64(my)) + int64(my)*int64(zero)
	return P((int64(x)*(255-int64(mx)) + ((int64(mx)*inner + 255) >> 8) + 255) >> 8)
}

func (fixed[P]) lerp(a, b P, t int) P {
	return P((int64(a)*int64(256-t) + int64(b)*int64(t)) >> 8)
}

func (fixed[P]) half(a, b P) P {
	return P((int64(a) + int64(b)) >> 1)
}

// floating is the float32 policy. Every product is rounded to float32
// explicitly so the compiler cannot fuse it into a multiply-add and the
// midpoint path stays identical to lerp at 128.
type floating struct{}

const maskScale = float32(1.0 / 255.0)

func (floating) toward(x, y float32, m uint8) float32 {
	mf := float32(m) * maskScale
	return float32(x*(1-mf)) + float32(y*mf)
}

func (floating) fallback(x, y, zero float32, mx, my uint8) float32 {
	mxf := float32(mx) * maskScale
	myf := float32(my) * maskScale
	inner := float32(y*(1-myf)) + float32(myf*zero)
	return float32(x*(1-mxf)) + float32(mxf*inner)
}

func (floating) lerp(a, b float32, t int) float32 {
	tf := float32(t) / 256
	return float32(a*(1-tf)) + float32(b*tf)
}

func (floating) half(a, b float32) float32 {
	return float32(a*0.5) + float32(b*0.5)
}

// Median3r is the median of a, b, c when a <= c is already known.
func Median3r[T cmp.Ordered](a, b, c T) T {
	if b <= a {
		return a
	}
	if c <= b {
		return c
	}
	return b
}

// Median3 is the median of three values in any order.
func Median3[T cmp.Ordered](a, b, c T) T {
	if (b <= a && a <= c) || (c <= a && a <= b) {
		return a
	}
	if (a <= b && b <= c) || (c <= b && b <= a) {
		return b
	}
	return c
}
