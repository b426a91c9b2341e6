package flowinter

// kernelArgs is everything one blend pass over one plane needs. The dense
// fields share one stride; fwd and bwd are the padded reference planes.
type kernelArgs[P Pixel] struct {
	dst *Plane[P]
	fwd *Plane[P] // frame at t=0, sampled with F (and FF) vectors
	bwd *Plane[P] // frame at t=256, sampled with B (and BB) vectors

	vxF, vyF   *Dense[int16]
	vxB, vyB   *Dense[int16]
	vxFF, vyFF *Dense[int16]
	vxBB, vyBB *Dense[int16]
	maskF      *Dense[uint8]
	maskB      *Dense[uint8]

	width, height int
	time256       int
	shift         uint
	mid           bool
}

// scaleF scales a forward displacement by t.
func (k *kernelArgs[P]) scaleF(v int16) int {
	if k.mid {
		return int(v) >> 1
	}
	return (int(v) * k.time256) >> 8
}

// scaleB scales a backward displacement by 256-t.
func (k *kernelArgs[P]) scaleB(v int16) int {
	if k.mid {
		return int(v) >> 1
	}
	return (int(v) * (256 - k.time256)) >> 8
}

// origin is the index of the full-pel sample under pixel (x, y) of p.
func origin[P Pixel](p *Plane[P], x, y int, shift uint) int {
	return p.Offset + y*(p.Stride<<shift) + x<<shift
}

// sample reads p displaced by (vx, vy) sub-pixel units from base.
func sample[P Pixel](p *Plane[P], base, vx, vy int) P {
	return p.Data[base+vy*p.Stride+vx]
}

// taps holds the samples every kernel starts from.
type taps[P Pixel] struct {
	dstF, dstF0 P
	dstB, dstB0 P
	baseF       int
	baseB       int
	i           int
}

func (k *kernelArgs[P]) load(x, y int) taps[P] {
	i := x + y*k.vxF.Stride
	baseF := origin(k.fwd, x, y, k.shift)
	baseB := origin(k.bwd, x, y, k.shift)
	return taps[P]{
		dstF:  sample(k.fwd, baseF, k.scaleF(k.vxF.Data[i]), k.scaleF(k.vyF.Data[i])),
		dstF0: k.fwd.Data[baseF],
		dstB:  sample(k.bwd, baseB, k.scaleB(k.vxB.Data[i]), k.scaleB(k.vyB.Data[i])),
		dstB0: k.bwd.Data[baseB],
		baseF: baseF,
		baseB: baseB,
		i:     i,
	}
}

func combine[P Pixel, A arith[P]](k *kernelArgs[P], a, b P) P {
	var ar A
	if k.mid {
		return ar.half(a, b)
	}
	return ar.lerp(a, b, k.time256)
}

// interPixel falls back toward the zero-motion sample of the same frame as
// the occlusion masks rise.
func interPixel[P Pixel, A arith[P]](k *kernelArgs[P], x, y int) P {
	var ar A
	s := k.load(x, y)
	mf, mb := k.maskF.Data[s.i], k.maskB.Data[s.i]
	a := ar.fallback(s.dstF, s.dstB, s.dstF0, mf, mb)
	b := ar.fallback(s.dstB, s.dstF, s.dstB0, mb, mf)
	return combine[P, A](k, a, b)
}

// simplePixel moves each flow sample toward the other direction's.
func simplePixel[P Pixel, A arith[P]](k *kernelArgs[P], x, y int) P {
	var ar A
	s := k.load(x, y)
	a := ar.toward(s.dstF, s.dstB, k.maskF.Data[s.i])
	b := ar.toward(s.dstB, s.dstF, k.maskB.Data[s.i])
	return combine[P, A](k, a, b)
}

// extraPixel replaces the risky sample of each direction with the
// extrapolated one, clamped between the two flow samples.
func extraPixel[P Pixel, A arith[P]](k *kernelArgs[P], x, y int) P {
	var ar A
	s := k.load(x, y)
	dstFF := sample(k.fwd, s.baseF, k.scaleF(k.vxFF.Data[s.i]), k.scaleF(k.vyFF.Data[s.i]))
	dstBB := sample(k.bwd, s.baseB, k.scaleB(k.vxBB.Data[s.i]), k.scaleB(k.vyBB.Data[s.i]))

	minfb, maxfb := s.dstF, s.dstB
	if s.dstF > s.dstB {
		minfb, maxfb = s.dstB, s.dstF
	}

	a := ar.toward(s.dstF, Median3r(minfb, dstBB, maxfb), k.maskF.Data[s.i])
	b := ar.toward(s.dstB, Median3r(minfb, dstFF, maxfb), k.maskB.Data[s.i])
	return combine[P, A](k, a, b)
}

// blendPixel mixes the two frames without motion compensation.
func blendPixel[P Pixel, A arith[P]](k *kernelArgs[P], x, y int) P {
	a := k.fwd.Data[origin(k.fwd, x, y, k.shift)]
	b := k.bwd.Data[origin(k.bwd, x, y, k.shift)]
	return combine[P, A](k, a, b)
}

type pixelFunc[P Pixel] func(k *kernelArgs[P], x, y int) P

// rowFunc writes output rows [y0, y1).
type rowFunc[P Pixel] func(k *kernelArgs[P], y0, y1 int)

func rows[P Pixel](px pixelFunc[P], unroll int) rowFunc[P] {
	switch unroll {
	case 8:
		return func(k *kernelArgs[P], y0, y1 int) {
			for y := y0; y < y1; y++ {
				out := k.dst.Data[k.dst.Offset+y*k.dst.Stride:]
				x := 0
				for ; x+8 <= k.width; x += 8 {
					out[x] = px(k, x, y)
					out[x+1] = px(k, x+1, y)
					out[x+2] = px(k, x+2, y)
					out[x+3] = px(k, x+3, y)
					out[x+4] = px(k, x+4, y)
					out[x+5] = px(k, x+5, y)
					out[x+6] = px(k, x+6, y)
					out[x+7] = px(k, x+7, y)
				}
				for ; x < k.width; x++ {
					out[x] = px(k, x, y)
				}
			}
		}
	case 4:
		return func(k *kernelArgs[P], y0, y1 int) {
			for y := y0; y < y1; y++ {
				out := k.dst.Data[k.dst.Offset+y*k.dst.Stride:]
				x := 0
				for ; x+4 <= k.width; x += 4 {
					out[x] = px(k, x, y)
					out[x+1] = px(k, x+1, y)
					out[x+2] = px(k, x+2, y)
					out[x+3] = px(k, x+3, y)
				}
				for ; x < k.width; x++ {
					out[x] = px(k, x, y)
				}
			}
		}
	default:
		return func(k *kernelArgs[P], y0, y1 int) {
			for y := y0; y < y1; y++ {
				out := k.dst.Data[k.dst.Offset+y*k.dst.Stride:]
				for x := 0; x < k.width; x++ {
					out[x] = px(k, x, y)
				}
			}
		}
	}
}

// kernelSet is one resolved implementation of every blend kernel.
type kernelSet[P Pixel] struct {
	inter  rowFunc[P]
	simple rowFunc[P]
	extra  rowFunc[P]
	blend  rowFunc[P]
}

func buildKernels[P Pixel, A arith[P]](unroll int) kernelSet[P] {
	return kernelSet[P]{
		inter:  rows[P](interPixel[P, A], unroll),
		simple: rows[P](simplePixel[P, A], unroll),
		extra:  rows[P](extraPixel[P, A], unroll),
		blend:  rows[P](blendPixel[P, A], unroll),
	}
}
