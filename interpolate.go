package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/Zelak312/mflowinter/flowinter"
	"github.com/cespare/xxhash/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// frameIO is the raw frame stream of one job.
type frameIO interface {
	ReadFrame(buf []byte) error
	WriteFrame(buf []byte) error
}

type interpolationJob struct {
	logger      *logrus.Entry
	io          frameIO
	store       *VectorStore
	options     flowinter.Options
	pixelFormat PixelFormat
	width       int
	height      int
	frameCount  int64
	targetCount int64
	progress    chan<- float64
}

// outputTime maps output frame i to its source frame and 8-bit time fraction.
func outputTime(i int64, scale float64, frameCount int64) (int64, int) {
	fx := float64(i) * scale
	sx := int64(math.Floor(fx))
	t := int(math.Round((fx - float64(sx)) * 256))

	if t == 256 {
		sx++
		t = 0
	}

	if sx >= frameCount-1 {
		return frameCount - 2, 256
	}

	return sx, t
}

type outputSlot struct {
	index int64
	time  int
}

// groupOutputs collects the output frames that fall between the same pair of
// source frames, in output order.
func groupOutputs(targetCount int64, scale float64, frameCount int64) map[int64][]outputSlot {
	groups := make(map[int64][]outputSlot)
	for i := int64(0); i < targetCount; i++ {
		sx, t := outputTime(i, scale, frameCount)
		groups[sx] = append(groups[sx], outputSlot{index: i, time: t})
	}
	return groups
}

func runInterpolation(ctx context.Context, job *interpolationJob) (uint64, error) {
	switch {
	case job.pixelFormat.Float:
		return interpolateFrames[float32](ctx, job)
	case job.pixelFormat.BytesPerSample == 2:
		return interpolateFrames[uint16](ctx, job)
	default:
		return interpolateFrames[uint8](ctx, job)
	}
}

// interpolateFrames streams the source frames, writes every output frame in
// order and returns the xxhash digest of the written bytes.
func interpolateFrames[P flowinter.Pixel](ctx context.Context, job *interpolationJob) (uint64, error) {
	g := job.options.Geometry
	if g.Width != job.width || g.Height != job.height {
		return 0, fmt.Errorf("vector geometry is %dx%d, video is %dx%d", g.Width, g.Height, job.width, job.height)
	}

	if g.XRatioUV != job.pixelFormat.XRatioUV || g.YRatioUV != job.pixelFormat.YRatioUV {
		return 0, fmt.Errorf("vector chroma ratio %dx%d does not match %s", g.XRatioUV, g.YRatioUV, job.pixelFormat.Name)
	}

	if job.frameCount < 2 {
		return 0, fmt.Errorf("need at least two frames, got %d", job.frameCount)
	}

	ip, err := flowinter.New[P](job.options)
	if err != nil {
		return 0, err
	}

	job.logger.WithFields(logrus.Fields{
		"level":       ip.Level().String(),
		"mode":        job.options.Mode.String(),
		"concurrency": job.options.Concurrency,
	}).Info("Interpolator ready")

	loader := newFrameLoader[P](g, job.pixelFormat.Planes)
	frameSize := job.pixelFormat.FrameSize(job.width, job.height)
	raw1 := make([]byte, frameSize)
	raw2 := make([]byte, frameSize)
	src, ref := loader.NewReference(), loader.NewReference()

	if err := job.io.ReadFrame(raw1); err != nil {
		return 0, fmt.Errorf("reading frame 0: %w", err)
	}
	if err := job.io.ReadFrame(raw2); err != nil {
		return 0, fmt.Errorf("reading frame 1: %w", err)
	}

	concurrency := max(job.options.Concurrency, 1)
	outputs := make([]*flowinter.Frame[P], concurrency)
	outRaw := make([][]byte, concurrency)
	for i := range outputs {
		outputs[i] = loader.NewOutput()
		outRaw[i] = make([]byte, frameSize)
	}

	scale := float64(job.frameCount) / float64(job.targetCount)
	groups := groupOutputs(job.targetCount, scale, job.frameCount)
	digest := xxhash.New()
	write := func(b []byte) error {
		_, _ = digest.Write(b)
		return job.io.WriteFrame(b)
	}

	current := int64(0)
	loaded := false
	written := int64(0)
	eof := false

	for n := int64(0); n < job.frameCount-1 && !eof; n++ {
		for current < n {
			raw1, raw2 = raw2, raw1
			if err := job.io.ReadFrame(raw2); err != nil {
				if errors.Is(err, io.EOF) {
					job.logger.Warn("Video ended before the probed frame count")
					eof = true
					break
				}
				return 0, fmt.Errorf("reading frame %d: %w", current+2, err)
			}
			current++
			loaded = false
		}
		if eof {
			break
		}

		slots := groups[n]
		if len(slots) == 0 {
			continue
		}

		if !loaded {
			if err := loader.Load(raw1, src); err != nil {
				return 0, err
			}
			if err := loader.Load(raw2, ref); err != nil {
				return 0, err
			}
			loaded = true
		}

		bwd, fwd, bwdExtra, fwdExtra := job.store.Pair(int(n), 1)
		for lo := 0; lo < len(slots); lo += concurrency {
			batch := slots[lo:min(lo+concurrency, len(slots))]

			eg, egCtx := errgroup.WithContext(ctx)
			eg.SetLimit(concurrency)
			for j, slot := range batch {
				j, slot := j, slot
				if slot.time == 0 || slot.time == 256 {
					continue
				}
				eg.Go(func() error {
					outcome, err := ip.Interpolate(egCtx, flowinter.Request[P]{
						Src: src, Ref: ref, Dst: outputs[j],
						Backward: bwd, Forward: fwd,
						BackwardExtra: bwdExtra, ForwardExtra: fwdExtra,
						Time256: slot.time,
					})
					if err != nil {
						return fmt.Errorf("output frame %d: %w", slot.index, err)
					}
					if outcome != flowinter.OutcomeFlow && outcome != flowinter.OutcomeExtra {
						job.logger.WithField("frame", slot.index).Debugf("Vectors unusable, %s", outcome)
					}
					return frameToRaw(outputs[j], outRaw[j])
				})
			}

			if err := eg.Wait(); err != nil {
				return 0, err
			}

			for j, slot := range batch {
				out := outRaw[j]
				switch slot.time {
				case 0:
					out = raw1
				case 256:
					out = raw2
				}
				if err := write(out); err != nil {
					return 0, fmt.Errorf("writing output frame %d: %w", slot.index, err)
				}
				written++
			}
		}

		if job.progress != nil {
			job.progress <- float64(written) / float64(job.targetCount) * 100
		}
	}

	entry := job.logger.WithFields(logrus.Fields{"frames": written, "target": job.targetCount})
	if written < job.targetCount {
		entry.Warn("Output is shorter than the target frame count")
	} else {
		entry.Info("Finished interpolation loop")
	}
	return digest.Sum64(), nil
}
