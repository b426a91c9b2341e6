package flowinter

import (
	"context"
	"fmt"
	"runtime"
)

// Mode selects the blend kernel.
type Mode int

const (
	// ModeInter blends each direction toward its zero-motion sample where
	// the flow is occluded.
	ModeInter Mode = iota
	// ModeSimple blends each direction toward the other direction's sample.
	ModeSimple
	// ModeExtra reconciles occluded samples against the BB/FF fields.
	ModeExtra
)

var modeNames = [...]string{"inter", "simple", "extra"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("mode(%d)", int(m))
	}
	return modeNames[m]
}

func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if s == name {
			return Mode(i), nil
		}
	}
	return ModeInter, fmt.Errorf("unknown interpolation mode %q", s)
}

// Outcome tells which path produced a frame.
type Outcome int

const (
	OutcomeFlow Outcome = iota
	OutcomeExtra
	OutcomeBlend
	OutcomeCopy
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFlow:
		return "flow"
	case OutcomeExtra:
		return "extra"
	case OutcomeBlend:
		return "blend"
	case OutcomeCopy:
		return "copy"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

type Options struct {
	Geometry Geometry
	Mode     Mode
	// MaskNorm is the vector difference that saturates the occlusion mask.
	// Defaults to 100.
	MaskNorm float64
	// Gamma shapes occlusion contributions. Defaults to 1.
	Gamma float64
	// Blend makes frames with unusable vectors a time-weighted blend of the
	// two references instead of a copy of the first one.
	Blend bool
	// Workers is the number of goroutines each stage of one frame uses.
	// Defaults to GOMAXPROCS.
	Workers int
	// Concurrency is the number of frames that may be interpolated at the
	// same time. Defaults to 1.
	Concurrency int
	Level       Level
}

func (o *Options) setDefaults() {
	if o.MaskNorm == 0 {
		o.MaskNorm = 100
	}
	if o.Gamma == 0 {
		o.Gamma = 1
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
}

func (o *Options) validate() error {
	if err := o.Geometry.Validate(); err != nil {
		return err
	}

	if o.Mode < ModeInter || o.Mode > ModeExtra {
		return fmt.Errorf("%w: %s", ErrOptions, o.Mode)
	}

	if o.MaskNorm <= 0 || o.Gamma <= 0 {
		return fmt.Errorf("%w: mask norm %v and gamma %v must be positive", ErrOptions, o.MaskNorm, o.Gamma)
	}

	if _, ok := levelNames[o.Level]; !ok {
		return fmt.Errorf("%w: %s", ErrOptions, o.Level)
	}

	return nil
}

// vectorGrids is one set of padded block grids.
type vectorGrids struct {
	vxF, vyF, vxB, vyB     *Grid[int16]
	vxFF, vyFF, vxBB, vyBB *Grid[int16]
}

func newVectorGrids(w, h int, extra bool) vectorGrids {
	g := vectorGrids{
		vxF: newGrid[int16](w, h), vyF: newGrid[int16](w, h),
		vxB: newGrid[int16](w, h), vyB: newGrid[int16](w, h),
	}
	if extra {
		g.vxFF, g.vyFF = newGrid[int16](w, h), newGrid[int16](w, h)
		g.vxBB, g.vyBB = newGrid[int16](w, h), newGrid[int16](w, h)
	}
	return g
}

// denseFields holds the per-pixel fields of one plane group.
type denseFields struct {
	vxF, vyF, vxB, vyB     *Dense[int16]
	vxFF, vyFF, vxBB, vyBB *Dense[int16]
	maskF, maskB           *Dense[uint8]
	up                     *Upsampler
}

func newDenseFields(w, h, srcW, srcH int, extra bool) denseFields {
	d := denseFields{
		vxF: newDense[int16](w, h), vyF: newDense[int16](w, h),
		vxB: newDense[int16](w, h), vyB: newDense[int16](w, h),
		maskF: newDense[uint8](w, h), maskB: newDense[uint8](w, h),
		up: NewUpsampler(w, h, srcW, srcH),
	}
	if extra {
		d.vxFF, d.vyFF = newDense[int16](w, h), newDense[int16](w, h)
		d.vxBB, d.vyBB = newDense[int16](w, h), newDense[int16](w, h)
	}
	return d
}

// arena is the scratch memory of one in-flight frame.
type arena struct {
	luma, chroma       vectorGrids
	maskF, maskB       *Grid[uint8]
	lumaDense, chDense denseFields
}

// Interpolator synthesizes frames of pixel type P for one geometry. It is
// safe for concurrent use; at most Options.Concurrency frames are computed
// at once.
type Interpolator[P Pixel] struct {
	opts    Options
	level   Level
	kernels kernelSet[P]
	arenas  chan *arena
}

func New[P Pixel](opts Options) (*Interpolator[P], error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	ip := &Interpolator[P]{
		opts:    opts,
		level:   opts.Level.resolve(),
		kernels: kernelsFor[P](opts.Level),
		arenas:  make(chan *arena, opts.Concurrency),
	}

	for i := 0; i < opts.Concurrency; i++ {
		ip.arenas <- ip.newArena()
	}

	return ip, nil
}

func (ip *Interpolator[P]) newArena() *arena {
	g := ip.opts.Geometry
	extra := ip.opts.Mode == ModeExtra
	bxp, byp := g.PaddedBlocks()
	wp, hp := g.PaddedSize()

	return &arena{
		luma:      newVectorGrids(bxp, byp, extra),
		chroma:    newVectorGrids(bxp, byp, extra),
		maskF:     newGrid[uint8](bxp, byp),
		maskB:     newGrid[uint8](bxp, byp),
		lumaDense: newDenseFields(wp, hp, bxp, byp, extra),
		chDense:   newDenseFields(wp/g.XRatioUV, hp/g.YRatioUV, bxp, byp, extra),
	}
}

// Level reports the instruction tier the kernels were resolved for.
func (ip *Interpolator[P]) Level() Level { return ip.level }

func (ip *Interpolator[P]) Geometry() Geometry { return ip.opts.Geometry }

// Request is one frame to synthesize. Src is the frame at t=0 and Ref the
// frame at t=256; both must be padded and refined per the geometry. Dst
// receives the result and needs no padding.
type Request[P Pixel] struct {
	Src, Ref, Dst *Frame[P]

	// Backward vectors are sampled from Ref, Forward from Src.
	Backward, Forward *Field
	// BackwardExtra and ForwardExtra come from the neighbouring frame pairs
	// and are only read in ModeExtra.
	BackwardExtra, ForwardExtra *Field

	Time256 int
}

func (ip *Interpolator[P]) validate(req *Request[P]) error {
	g := ip.opts.Geometry

	if req.Time256 < 0 || req.Time256 > 256 {
		return fmt.Errorf("%w: %d not in [0,256]", ErrTime, req.Time256)
	}

	checks := []struct {
		f   *Field
		dir Direction
	}{
		{req.Backward, Backward},
		{req.Forward, Forward},
		{req.BackwardExtra, Backward},
		{req.ForwardExtra, Forward},
	}
	for _, c := range checks {
		if err := checkField(c.f, c.dir, g); err != nil {
			return err
		}
	}

	if req.Src == nil || req.Ref == nil || req.Dst == nil {
		return fmt.Errorf("%w: source, reference and destination frames are required", ErrPlane)
	}

	n := len(req.Src.Planes)
	if n == 0 || len(req.Ref.Planes) != n || len(req.Dst.Planes) != n {
		return fmt.Errorf("%w: plane counts %d/%d/%d", ErrPlane, n, len(req.Ref.Planes), len(req.Dst.Planes))
	}

	for i := 0; i < n; i++ {
		w, h, hp, vp := g.Width, g.Height, g.HPad, g.VPad
		if i > 0 {
			w, h, hp, vp = w/g.XRatioUV, h/g.YRatioUV, hp/g.XRatioUV, vp/g.YRatioUV
		}
		if err := req.Src.Planes[i].covers(w, h, hp, vp, g.Pel); err != nil {
			return fmt.Errorf("source plane %d: %w", i, err)
		}
		if err := req.Ref.Planes[i].covers(w, h, hp, vp, g.Pel); err != nil {
			return fmt.Errorf("reference plane %d: %w", i, err)
		}
		if err := req.Dst.Planes[i].covers(w, h, 0, 0, 1); err != nil {
			return fmt.Errorf("destination plane %d: %w", i, err)
		}
	}

	return nil
}

// Interpolate writes the frame at req.Time256 into req.Dst. Configuration
// problems are returned as errors; unusable vector fields are not errors and
// are reported through the Outcome.
func (ip *Interpolator[P]) Interpolate(ctx context.Context, req Request[P]) (Outcome, error) {
	if err := ip.validate(&req); err != nil {
		return OutcomeCopy, err
	}

	if !req.Backward.usable() || !req.Forward.usable() {
		return ip.degraded(ctx, &req)
	}

	var a *arena
	select {
	case a = <-ip.arenas:
	case <-ctx.Done():
		return OutcomeFlow, ctx.Err()
	}
	defer func() { ip.arenas <- a }()

	mode, outcome := ip.opts.Mode, OutcomeFlow
	if mode == ModeExtra {
		if req.BackwardExtra.usable() && req.ForwardExtra.usable() {
			outcome = OutcomeExtra
		} else {
			mode = ModeInter
		}
	}

	if err := ip.prepare(ctx, a, &req, mode == ModeExtra); err != nil {
		return outcome, err
	}

	run := ip.kernelFor(mode)
	for i, dst := range req.Dst.Planes {
		k := ip.planeArgs(a, &req, i)
		err := parallelRanges(ctx, ip.opts.Workers, dst.Height, func(lo, hi int) {
			run(k, lo, hi)
		})
		if err != nil {
			return outcome, err
		}
	}

	return outcome, nil
}

// planeArgs binds plane i of req to the dense fields of its plane group.
func (ip *Interpolator[P]) planeArgs(a *arena, req *Request[P], i int) *kernelArgs[P] {
	d := &a.lumaDense
	if i > 0 {
		d = &a.chDense
	}
	dst := req.Dst.Planes[i]
	return &kernelArgs[P]{
		dst: dst, fwd: req.Src.Planes[i], bwd: req.Ref.Planes[i],
		vxF: d.vxF, vyF: d.vyF, vxB: d.vxB, vyB: d.vyB,
		vxFF: d.vxFF, vyFF: d.vyFF, vxBB: d.vxBB, vyBB: d.vyBB,
		maskF: d.maskF, maskB: d.maskB,
		width: dst.Width, height: dst.Height,
		time256: req.Time256,
		shift:   ip.opts.Geometry.pelShift(),
		mid:     req.Time256 == 128,
	}
}

func (ip *Interpolator[P]) kernelFor(m Mode) rowFunc[P] {
	switch m {
	case ModeSimple:
		return ip.kernels.simple
	case ModeExtra:
		return ip.kernels.extra
	default:
		return ip.kernels.inter
	}
}

// prepare pads the block fields, builds both occlusion masks and expands
// everything to per-pixel fields for every plane group of req.
func (ip *Interpolator[P]) prepare(ctx context.Context, a *arena, req *Request[P], extra bool) error {
	g := ip.opts.Geometry
	workers := ip.opts.Workers

	PadVectors(req.Backward, a.luma.vxB, a.luma.vyB)
	PadVectors(req.Forward, a.luma.vxF, a.luma.vyF)
	if extra {
		PadVectors(req.BackwardExtra, a.luma.vxBB, a.luma.vyBB)
		PadVectors(req.ForwardExtra, a.luma.vxFF, a.luma.vyFF)
	}

	params := OcclusionParams{
		StepX:    g.BlockWidth - g.OverlapX,
		StepY:    g.BlockHeight - g.OverlapY,
		MaskNorm: ip.opts.MaskNorm,
		Gamma:    ip.opts.Gamma,
		Pel:      g.Pel,
	}

	params.TimeWeight = 256 - req.Time256
	if err := BuildOcclusionMask(ctx, req.Backward, params, a.maskB, workers); err != nil {
		return err
	}
	PadMask(a.maskB, req.Backward.BlkX, req.Backward.BlkY)

	params.TimeWeight = req.Time256
	if err := BuildOcclusionMask(ctx, req.Forward, params, a.maskF, workers); err != nil {
		return err
	}
	PadMask(a.maskF, req.Forward.BlkX, req.Forward.BlkY)

	lumaLimits := [2]VectorLimit{
		{Horizontal: true, Size: g.Width, Pad: g.HPad, Pel: g.Pel},
		{Horizontal: false, Size: g.Height, Pad: g.VPad, Pel: g.Pel},
	}
	if err := ip.expand(ctx, &a.lumaDense, &a.luma, a, lumaLimits, extra); err != nil {
		return err
	}

	if len(req.Dst.Planes) == 1 {
		return nil
	}

	scale := func(dst, src *Grid[int16], ratio int) {
		if src != nil {
			ChromaVectors(dst, src, ratio)
		}
	}
	scale(a.chroma.vxF, a.luma.vxF, g.XRatioUV)
	scale(a.chroma.vyF, a.luma.vyF, g.YRatioUV)
	scale(a.chroma.vxB, a.luma.vxB, g.XRatioUV)
	scale(a.chroma.vyB, a.luma.vyB, g.YRatioUV)
	if extra {
		scale(a.chroma.vxFF, a.luma.vxFF, g.XRatioUV)
		scale(a.chroma.vyFF, a.luma.vyFF, g.YRatioUV)
		scale(a.chroma.vxBB, a.luma.vxBB, g.XRatioUV)
		scale(a.chroma.vyBB, a.luma.vyBB, g.YRatioUV)
	}

	chromaLimits := [2]VectorLimit{
		{Horizontal: true, Size: g.Width / g.XRatioUV, Pad: g.HPad / g.XRatioUV, Pel: g.Pel},
		{Horizontal: false, Size: g.Height / g.YRatioUV, Pad: g.VPad / g.YRatioUV, Pel: g.Pel},
	}
	return ip.expand(ctx, &a.chDense, &a.chroma, a, chromaLimits, extra)
}

func (ip *Interpolator[P]) expand(ctx context.Context, d *denseFields, v *vectorGrids, a *arena, lim [2]VectorLimit, extra bool) error {
	type job struct {
		dst *Dense[int16]
		src *Grid[int16]
		lim VectorLimit
	}
	jobs := []job{
		{d.vxF, v.vxF, lim[0]}, {d.vyF, v.vyF, lim[1]},
		{d.vxB, v.vxB, lim[0]}, {d.vyB, v.vyB, lim[1]},
	}
	if extra {
		jobs = append(jobs,
			job{d.vxFF, v.vxFF, lim[0]}, job{d.vyFF, v.vyFF, lim[1]},
			job{d.vxBB, v.vxBB, lim[0]}, job{d.vyBB, v.vyBB, lim[1]},
		)
	}

	for _, j := range jobs {
		if err := d.up.Vectors(ctx, j.dst, j.src, j.lim, ip.opts.Workers); err != nil {
			return err
		}
	}

	if err := d.up.Mask(ctx, d.maskF, a.maskF, ip.opts.Workers); err != nil {
		return err
	}
	return d.up.Mask(ctx, d.maskB, a.maskB, ip.opts.Workers)
}

// degraded handles frames whose vectors cannot be trusted.
func (ip *Interpolator[P]) degraded(ctx context.Context, req *Request[P]) (Outcome, error) {
	shift := ip.opts.Geometry.pelShift()

	if !ip.opts.Blend {
		for i, dst := range req.Dst.Planes {
			copyPlane(dst, req.Src.Planes[i], shift)
		}
		return OutcomeCopy, nil
	}

	for i, dst := range req.Dst.Planes {
		k := &kernelArgs[P]{
			dst: dst, fwd: req.Src.Planes[i], bwd: req.Ref.Planes[i],
			width: dst.Width, height: dst.Height,
			time256: req.Time256,
			shift:   shift,
			mid:     req.Time256 == 128,
		}
		err := parallelRanges(ctx, ip.opts.Workers, dst.Height, func(lo, hi int) {
			ip.kernels.blend(k, lo, hi)
		})
		if err != nil {
			return OutcomeBlend, err
		}
	}
	return OutcomeBlend, nil
}

// copyPlane writes the full-pel samples of src into dst.
func copyPlane[P Pixel](dst, src *Plane[P], shift uint) {
	for y := 0; y < dst.Height; y++ {
		out := dst.Data[dst.Offset+y*dst.Stride : dst.Offset+y*dst.Stride+dst.Width]
		if shift == 0 {
			base := src.Offset + y*src.Stride
			copy(out, src.Data[base:base+dst.Width])
			continue
		}
		for x := range out {
			out[x] = src.Data[origin(src, x, y, shift)]
		}
	}
}
