/*
Package flowinter synthesizes intermediate video frames from two reference
frames and the block motion vectors estimated between them.

Basic usage:

	geom := flowinter.Geometry{
	    Width: 1280, Height: 720,
	    BlockWidth: 16, BlockHeight: 16,
	    Pel: 1, XRatioUV: 2, YRatioUV: 2,
	    HPad: 32, VPad: 32,
	}
	ip, err := flowinter.New[uint8](flowinter.Options{Geometry: geom})
	if err != nil {
	    log.Fatal(err)
	}

	// src is the frame at t=0, ref the frame at t=256
	outcome, err := ip.Interpolate(ctx, flowinter.Request[uint8]{
	    Src: src, Ref: ref, Dst: dst,
	    Backward: bw, Forward: fw,
	    Time256: 128,
	})

Reference planes must be padded by at least HPad/VPad pixels on every side
and, for Pel > 1, refined to the sub-pixel grid (see Plane).
*/
package flowinter
