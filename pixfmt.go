package main

import (
	"fmt"
	"sort"
	"strings"
)

// PixelFormat describes a planar raw layout ffmpeg can pipe to us.
type PixelFormat struct {
	Name           string
	Planes         int
	XRatioUV       int
	YRatioUV       int
	BytesPerSample int
	Float          bool
}

var pixelFormats = map[string]PixelFormat{
	"gray":        {Planes: 1, XRatioUV: 1, YRatioUV: 1, BytesPerSample: 1},
	"gray10le":    {Planes: 1, XRatioUV: 1, YRatioUV: 1, BytesPerSample: 2},
	"gray16le":    {Planes: 1, XRatioUV: 1, YRatioUV: 1, BytesPerSample: 2},
	"grayf32le":   {Planes: 1, XRatioUV: 1, YRatioUV: 1, BytesPerSample: 4, Float: true},
	"yuv420p":     {Planes: 3, XRatioUV: 2, YRatioUV: 2, BytesPerSample: 1},
	"yuv422p":     {Planes: 3, XRatioUV: 2, YRatioUV: 1, BytesPerSample: 1},
	"yuv444p":     {Planes: 3, XRatioUV: 1, YRatioUV: 1, BytesPerSample: 1},
	"yuv420p10le": {Planes: 3, XRatioUV: 2, YRatioUV: 2, BytesPerSample: 2},
	"yuv422p10le": {Planes: 3, XRatioUV: 2, YRatioUV: 1, BytesPerSample: 2},
	"yuv444p16le": {Planes: 3, XRatioUV: 1, YRatioUV: 1, BytesPerSample: 2},
}

func ParsePixelFormat(name string) (PixelFormat, error) {
	pf, ok := pixelFormats[name]
	if !ok {
		names := make([]string, 0, len(pixelFormats))
		for n := range pixelFormats {
			names = append(names, n)
		}
		sort.Strings(names)
		return PixelFormat{}, fmt.Errorf("unsupported pixel format %q, expected one of %s", name, strings.Join(names, ", "))
	}

	pf.Name = name
	return pf, nil
}

// PlaneSize returns the size in samples of plane i for a width x height frame.
func (pf PixelFormat) PlaneSize(i, width, height int) (int, int) {
	if i == 0 {
		return width, height
	}
	return width / pf.XRatioUV, height / pf.YRatioUV
}

// FrameSize is the number of bytes one raw frame takes.
func (pf PixelFormat) FrameSize(width, height int) int {
	total := 0
	for i := 0; i < pf.Planes; i++ {
		w, h := pf.PlaneSize(i, width, height)
		total += w * h
	}
	return total * pf.BytesPerSample
}

// CheckSize rejects frame sizes the chroma subsampling cannot split evenly.
func (pf PixelFormat) CheckSize(width, height int) error {
	if width%pf.XRatioUV != 0 || height%pf.YRatioUV != 0 {
		return fmt.Errorf("%dx%d is not divisible by the %s chroma subsampling", width, height, pf.Name)
	}
	return nil
}
