package main

import (
	"io"
	"testing"

	"github.com/Zelak312/mflowinter/flowinter"
	"github.com/sirupsen/logrus"
)

func discardLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// grayGeometry is a 16x16 gray frame split into four 8x8 blocks.
var grayGeometry = flowinter.Geometry{
	Width: 16, Height: 16,
	BlockWidth: 8, BlockHeight: 8,
	Pel: 1, XRatioUV: 1, YRatioUV: 1,
}

func zeroVectorFile(g flowinter.Geometry, frames int) *VectorFile {
	bx, by := g.Blocks()
	file := &VectorFile{Geometry: g}
	for n := 0; n < frames; n++ {
		for _, dir := range []string{"forward", "backward"} {
			file.Fields = append(file.Fields, VectorFileField{
				Frame:     n,
				Direction: dir,
				Delta:     1,
				Vectors:   make([][3]int64, bx*by),
			})
		}
	}
	return file
}

func zeroVectorStore(t *testing.T, g flowinter.Geometry, frames int) *VectorStore {
	t.Helper()
	store, err := NewVectorStore(zeroVectorFile(g, frames))
	if err != nil {
		t.Fatalf("NewVectorStore: %v", err)
	}
	return store
}

func constantRaw(size int, v byte) []byte {
	raw := make([]byte, size)
	for i := range raw {
		raw[i] = v
	}
	return raw
}
