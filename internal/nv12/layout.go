// Package nv12 computes the memory layout the video encoder hardware expects
// for NV12 frames: a luma plane followed by an interleaved chroma plane, both
// padded to the alignment the driver mandates.
package nv12

import "fmt"

const (
	// strideAlign is the row alignment of both the Y and UV planes.
	strideAlign = 128
	// scanlineAlign is the row count alignment of the Y plane.
	scanlineAlign = 32
	// uvScanlineAlign is the row count alignment of the UV plane.
	uvScanlineAlign = 16

	// BufferRows is the number of stride-sized rows the encoder driver reports
	// as the image size of a single NV12 frame.
	BufferRows = 2346
)

// Info describes an aligned NV12 frame.
type Info struct {
	Width       int
	Height      int
	Stride      int // bytes per row, same for Y and UV
	Scanlines   int // rows in the Y plane
	UVScanlines int // rows in the UV plane
	UVOffset    int // offset of the UV plane from the start of the buffer
	Size        int // total buffer size in bytes
}

// Layout returns the aligned layout for a width x height NV12 frame.
//
// It panics when the dimensions break the alignment invariants, since every
// buffer sized from the result would be wrong.
func Layout(width, height int) Info {
	if width <= 0 || height <= 0 {
		panic(fmt.Sprintf("nv12: invalid frame size %dx%d", width, height))
	}

	stride := YStride(width)
	scanlines := YScanlines(height)
	uvStride := UVStride(width)
	uvScanlines := UVScanlines(height)

	if stride != uvStride {
		panic(fmt.Sprintf("nv12: luma stride %d != chroma stride %d for width %d", stride, uvStride, width))
	}
	if scanlines/2 != uvScanlines {
		panic(fmt.Sprintf("nv12: luma scanlines %d / 2 != chroma scanlines %d for height %d", scanlines, uvScanlines, height))
	}

	rows := BufferRows
	if planes := scanlines + uvScanlines; planes > rows {
		rows = planes
	}

	return Info{
		Width:       width,
		Height:      height,
		Stride:      stride,
		Scanlines:   scanlines,
		UVScanlines: uvScanlines,
		UVOffset:    stride * scanlines,
		Size:        stride * rows,
	}
}

// YStride returns the aligned luma row size for width.
func YStride(width int) int {
	return align(width, strideAlign)
}

// UVStride returns the aligned chroma row size for width. Chroma samples are
// interleaved, so a row holds width bytes like the luma plane.
func UVStride(width int) int {
	return align(width, strideAlign)
}

// YScanlines returns the aligned luma row count for height.
func YScanlines(height int) int {
	return align(height, scanlineAlign)
}

// UVScanlines returns the aligned chroma row count for height.
func UVScanlines(height int) int {
	return align((height+1)>>1, uvScanlineAlign)
}

// PlaneSize returns the number of bytes a tightly packed (unaligned) frame
// occupies.
func PlaneSize(width, height int) int {
	return width*height + width*((height+1)>>1)
}

func align(v, to int) int {
	return (v + to - 1) / to * to
}
