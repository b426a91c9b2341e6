package flowinter

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"golang.org/x/sync/errgroup"
)

func newInterpolator[P Pixel](t *testing.T, opts Options) *Interpolator[P] {
	t.Helper()
	ip, err := New[P](opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ip
}

func TestInterpolateMidpointAverages(t *testing.T) {
	g := singleBlock
	ip := newInterpolator[uint8](t, Options{Geometry: g})

	src := NewFrame[uint8](g, 1, g.HPad, g.VPad, g.Pel)
	ref := NewFrame[uint8](g, 1, g.HPad, g.VPad, g.Pel)
	fillFrame(src, func(i int) uint8 { return uint8(i * 7) })
	fillFrame(ref, func(i int) uint8 { return uint8(255 - i*3) })
	dst := outputFrame[uint8](g, 1)

	outcome, err := ip.Interpolate(context.Background(), Request[uint8]{
		Src: src, Ref: ref, Dst: dst,
		Backward: uniformField(t, Backward, 1, 1, 0, 0),
		Forward:  uniformField(t, Forward, 1, 1, 0, 0),
		Time256:  128,
	})
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeFlow {
		t.Errorf("outcome: got %s, want flow", outcome)
	}

	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			s, r := int(src.Planes[0].At(x, y)), int(ref.Planes[0].At(x, y))
			want := uint8((s + r) >> 1)
			if got := dst.Planes[0].At(x, y); got != want {
				t.Fatalf("(%d,%d): got %d, want %d", x, y, got, want)
			}
		}
	}
}

func checkEndpoints[P Pixel](t *testing.T, g Geometry, nplanes int, mode Mode) {
	rng := rand.New(rand.NewSource(11))
	bx, by := g.Blocks()
	ip := newInterpolator[P](t, Options{Geometry: g, Mode: mode, Workers: 3})

	src := randomFrame[P](g, nplanes, rng)
	ref := randomFrame[P](g, nplanes, rng)
	req := Request[P]{
		Src: src, Ref: ref,
		Backward:      uniformField(t, Backward, bx, by, 3, -2),
		Forward:       uniformField(t, Forward, bx, by, -3, 2),
		BackwardExtra: uniformField(t, Backward, bx, by, 1, 1),
		ForwardExtra:  uniformField(t, Forward, bx, by, -1, -1),
	}

	for _, tc := range []struct {
		time256 int
		want    *Frame[P]
	}{
		{0, src},
		{256, ref},
	} {
		req.Time256 = tc.time256
		req.Dst = outputFrame[P](g, nplanes)
		if _, err := ip.Interpolate(context.Background(), req); err != nil {
			t.Fatal(err)
		}
		equalFrames(t, req.Dst, tc.want)
	}
}

func TestInterpolateEndpoints(t *testing.T) {
	for _, mode := range []Mode{ModeInter, ModeSimple, ModeExtra} {
		t.Run(mode.String(), func(t *testing.T) {
			checkEndpoints[uint8](t, singleBlock, 1, mode)
			checkEndpoints[uint8](t, multiBlock, 3, mode)
			checkEndpoints[float32](t, multiBlock, 3, mode)
		})
	}
}

// runKernels fills dst through ip's prepared arena with mid forced to the
// given value.
func runKernels[P Pixel](t *testing.T, ip *Interpolator[P], req Request[P], run rowFunc[P], mid bool) {
	t.Helper()
	a := <-ip.arenas
	defer func() { ip.arenas <- a }()

	if err := ip.prepare(context.Background(), a, &req, ip.opts.Mode == ModeExtra); err != nil {
		t.Fatal(err)
	}
	for i := range req.Dst.Planes {
		k := ip.planeArgs(a, &req, i)
		k.mid = mid
		run(k, 0, k.height)
	}
}

func checkMidpoint[P Pixel](t *testing.T, mode Mode) {
	rng := rand.New(rand.NewSource(int64(mode) + 5))
	g := multiBlock
	bx, by := g.Blocks()
	ip := newInterpolator[P](t, Options{Geometry: g, Mode: mode, Workers: 1})

	for round := 0; round < 5; round++ {
		req := Request[P]{
			Src:           randomFrame[P](g, 3, rng),
			Ref:           randomFrame[P](g, 3, rng),
			Backward:      randomField(t, rng, Backward, bx, by, 30),
			Forward:       randomField(t, rng, Forward, bx, by, 30),
			BackwardExtra: randomField(t, rng, Backward, bx, by, 30),
			ForwardExtra:  randomField(t, rng, Forward, bx, by, 30),
			Time256:       128,
		}
		run := ip.kernelFor(mode)

		fast, general := outputFrame[P](g, 3), outputFrame[P](g, 3)
		req.Dst = fast
		runKernels(t, ip, req, run, true)
		req.Dst = general
		runKernels(t, ip, req, run, false)

		equalFrames(t, fast, general)
	}
}

func TestMidpointMatchesGeneral(t *testing.T) {
	for _, mode := range []Mode{ModeInter, ModeSimple, ModeExtra} {
		t.Run(mode.String(), func(t *testing.T) {
			checkMidpoint[uint8](t, mode)
			checkMidpoint[uint16](t, mode)
			checkMidpoint[float32](t, mode)
		})
	}
}

func TestLevelsProduceIdenticalFrames(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	g := multiBlock
	bx, by := g.Blocks()
	ip := newInterpolator[uint16](t, Options{Geometry: g, Mode: ModeExtra})

	req := Request[uint16]{
		Src:           randomFrame[uint16](g, 3, rng),
		Ref:           randomFrame[uint16](g, 3, rng),
		Backward:      randomField(t, rng, Backward, bx, by, 24),
		Forward:       randomField(t, rng, Forward, bx, by, 24),
		BackwardExtra: randomField(t, rng, Backward, bx, by, 24),
		ForwardExtra:  randomField(t, rng, Forward, bx, by, 24),
		Time256:       90,
	}

	pick := []func(kernelSet[uint16]) rowFunc[uint16]{
		func(ks kernelSet[uint16]) rowFunc[uint16] { return ks.inter },
		func(ks kernelSet[uint16]) rowFunc[uint16] { return ks.simple },
		func(ks kernelSet[uint16]) rowFunc[uint16] { return ks.extra },
		func(ks kernelSet[uint16]) rowFunc[uint16] { return ks.blend },
	}

	for _, kernel := range pick {
		var want *Frame[uint16]
		for _, n := range []int{1, 4, 8} {
			req.Dst = outputFrame[uint16](g, 3)
			runKernels(t, ip, req, kernel(buildKernels[uint16, fixed[uint16]](n)), false)
			if want == nil {
				want = req.Dst
				continue
			}
			equalFrames(t, req.Dst, want)
		}
	}
}

func TestWorkersDoNotChangeOutput(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	g := multiBlock
	bx, by := g.Blocks()

	req := Request[uint8]{
		Src:           randomFrame[uint8](g, 3, rng),
		Ref:           randomFrame[uint8](g, 3, rng),
		Backward:      randomField(t, rng, Backward, bx, by, 40),
		Forward:       randomField(t, rng, Forward, bx, by, 40),
		BackwardExtra: randomField(t, rng, Backward, bx, by, 40),
		ForwardExtra:  randomField(t, rng, Forward, bx, by, 40),
		Time256:       77,
	}

	var want *Frame[uint8]
	for _, workers := range []int{1, 2, 7, 64} {
		ip := newInterpolator[uint8](t, Options{Geometry: g, Mode: ModeExtra, Workers: workers})
		req.Dst = outputFrame[uint8](g, 3)
		outcome, err := ip.Interpolate(context.Background(), req)
		if err != nil {
			t.Fatal(err)
		}
		if outcome != OutcomeExtra {
			t.Fatalf("outcome: got %s, want extra", outcome)
		}
		if want == nil {
			want = req.Dst
			continue
		}
		equalFrames(t, req.Dst, want)
	}
}

func TestConcurrentInterpolate(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	g := multiBlock
	bx, by := g.Blocks()
	ip := newInterpolator[float32](t, Options{Geometry: g, Concurrency: 2, Workers: 2})

	reqs := make([]Request[float32], 6)
	wants := make([]*Frame[float32], len(reqs))
	for i := range reqs {
		reqs[i] = Request[float32]{
			Src:      randomFrame[float32](g, 3, rng),
			Ref:      randomFrame[float32](g, 3, rng),
			Backward: randomField(t, rng, Backward, bx, by, 20),
			Forward:  randomField(t, rng, Forward, bx, by, 20),
			Dst:      outputFrame[float32](g, 3),
			Time256:  40 * i,
		}
		if _, err := ip.Interpolate(context.Background(), reqs[i]); err != nil {
			t.Fatal(err)
		}
		wants[i] = reqs[i].Dst
	}

	var eg errgroup.Group
	got := make([]*Frame[float32], len(reqs))
	for i := range reqs {
		i := i
		req := reqs[i]
		req.Dst = outputFrame[float32](g, 3)
		got[i] = req.Dst
		eg.Go(func() error {
			_, err := ip.Interpolate(context.Background(), req)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatal(err)
	}

	for i := range reqs {
		equalFrames(t, got[i], wants[i])
	}
}

func TestDegradedFrames(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	g := multiBlock
	bx, by := g.Blocks()

	src := randomFrame[uint8](g, 3, rng)
	ref := randomFrame[uint8](g, 3, rng)
	unusable, err := NewField(Backward, 1, bx, by, uniformField(t, Backward, bx, by, 0, 0).blocks, false)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		blend    bool
		backward *Field
		want     Outcome
		pixel    func(s, r int) int
	}{
		{"blend", true, unusable, OutcomeBlend, func(s, r int) int { return (s*192 + r*64) >> 8 }},
		{"copy", false, unusable, OutcomeCopy, func(s, r int) int { return s }},
		{"missing field", false, nil, OutcomeCopy, func(s, r int) int { return s }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip := newInterpolator[uint8](t, Options{Geometry: g, Blend: tt.blend})
			dst := outputFrame[uint8](g, 3)
			outcome, err := ip.Interpolate(context.Background(), Request[uint8]{
				Src: src, Ref: ref, Dst: dst,
				Backward: tt.backward,
				Forward:  uniformField(t, Forward, bx, by, 5, 5),
				Time256:  64,
			})
			if err != nil {
				t.Fatal(err)
			}
			if outcome != tt.want {
				t.Errorf("outcome: got %s, want %s", outcome, tt.want)
			}

			for i, p := range dst.Planes {
				for y := 0; y < p.Height; y++ {
					for x := 0; x < p.Width; x++ {
						s, r := int(src.Planes[i].At(x, y)), int(ref.Planes[i].At(x, y))
						if got, want := int(p.At(x, y)), tt.pixel(s, r); got != want {
							t.Fatalf("plane %d (%d,%d): got %d, want %d", i, x, y, got, want)
						}
					}
				}
			}
		})
	}
}

func TestExtraFallsBackToInter(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	g := multiBlock
	bx, by := g.Blocks()

	req := Request[uint8]{
		Src:      randomFrame[uint8](g, 3, rng),
		Ref:      randomFrame[uint8](g, 3, rng),
		Backward: randomField(t, rng, Backward, bx, by, 16),
		Forward:  randomField(t, rng, Forward, bx, by, 16),
		Time256:  100,
	}

	req.Dst = outputFrame[uint8](g, 3)
	outcome, err := newInterpolator[uint8](t, Options{Geometry: g, Mode: ModeExtra}).Interpolate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeFlow {
		t.Errorf("outcome: got %s, want flow", outcome)
	}
	extra := req.Dst

	req.Dst = outputFrame[uint8](g, 3)
	if _, err := newInterpolator[uint8](t, Options{Geometry: g, Mode: ModeInter}).Interpolate(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	equalFrames(t, extra, req.Dst)
}

func TestNewRejectsOptions(t *testing.T) {
	bad := singleBlock
	bad.Pel = 3

	tests := []struct {
		name string
		opts Options
		want error
	}{
		{"geometry", Options{Geometry: bad}, ErrGeometry},
		{"mode", Options{Geometry: singleBlock, Mode: Mode(9)}, ErrOptions},
		{"mask norm", Options{Geometry: singleBlock, MaskNorm: -1}, ErrOptions},
		{"gamma", Options{Geometry: singleBlock, Gamma: -2}, ErrOptions},
		{"level", Options{Geometry: singleBlock, Level: Level(42)}, ErrOptions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New[uint8](tt.opts); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestInterpolateRejectsRequests(t *testing.T) {
	g := singleBlock
	ip := newInterpolator[uint8](t, Options{Geometry: g})

	valid := func() Request[uint8] {
		return Request[uint8]{
			Src:      NewFrame[uint8](g, 1, g.HPad, g.VPad, g.Pel),
			Ref:      NewFrame[uint8](g, 1, g.HPad, g.VPad, g.Pel),
			Dst:      outputFrame[uint8](g, 1),
			Backward: uniformField(t, Backward, 1, 1, 0, 0),
			Forward:  uniformField(t, Forward, 1, 1, 0, 0),
			Time256:  128,
		}
	}

	tests := []struct {
		name   string
		modify func(r *Request[uint8])
		want   error
	}{
		{"time above range", func(r *Request[uint8]) { r.Time256 = 257 }, ErrTime},
		{"negative time", func(r *Request[uint8]) { r.Time256 = -1 }, ErrTime},
		{"swapped directions", func(r *Request[uint8]) { r.Backward, r.Forward = r.Forward, r.Backward }, ErrDirection},
		{"extra direction", func(r *Request[uint8]) { r.ForwardExtra = uniformField(t, Backward, 1, 1, 0, 0) }, ErrDirection},
		{"field shape", func(r *Request[uint8]) { r.Forward = uniformField(t, Forward, 2, 1, 0, 0) }, ErrFieldShape},
		{"unpadded source", func(r *Request[uint8]) { r.Src = NewFrame[uint8](g, 1, 0, 0, 1) }, ErrPlane},
		{"plane count", func(r *Request[uint8]) { r.Dst = outputFrame[uint8](g, 2) }, ErrPlane},
		{"missing destination", func(r *Request[uint8]) { r.Dst = nil }, ErrPlane},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.modify(&req)
			if _, err := ip.Interpolate(context.Background(), req); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := ip.Interpolate(context.Background(), valid()); err != nil {
		t.Fatalf("valid request: %v", err)
	}
}

func TestInterpolateCancelled(t *testing.T) {
	g := singleBlock
	ip := newInterpolator[uint8](t, Options{Geometry: g})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ip.Interpolate(ctx, Request[uint8]{
		Src:      NewFrame[uint8](g, 1, g.HPad, g.VPad, g.Pel),
		Ref:      NewFrame[uint8](g, 1, g.HPad, g.VPad, g.Pel),
		Dst:      outputFrame[uint8](g, 1),
		Backward: uniformField(t, Backward, 1, 1, 0, 0),
		Forward:  uniformField(t, Forward, 1, 1, 0, 0),
		Time256:  10,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}
