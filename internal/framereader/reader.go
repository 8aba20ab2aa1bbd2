// Package framereader provides frame sources that fill aligned NV12 buffers
// by frame index.
package framereader

import (
	"io"
	"os"
	"sync"

	"github.com/logreplay/camserve/internal/nv12"
	"github.com/logreplay/camserve/internal/vipc"
	"github.com/pkg/errors"
)

var (
	// ErrFrameOutOfRange is returned when a segment id is past the last frame.
	ErrFrameOutOfRange = errors.New("frame out of range")
	// ErrBufferTooSmall is returned when a buffer cannot hold the frame.
	ErrBufferTooSmall = errors.New("buffer too small for frame")
)

// File reads tightly packed NV12 frames stored back to back in one file.
// Decode is safe for concurrent use.
type File struct {
	path      string
	width     int
	height    int
	frameSize int64
	frames    uint32

	mu     sync.Mutex
	f      *os.File
	closed bool
}

// Open opens a raw NV12 file of width x height frames.
func Open(path string, width, height int) (*File, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid frame size %dx%d", width, height)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open frame file %s", path)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "failed to stat frame file %s", path)
	}

	frameSize := int64(nv12.PlaneSize(width, height))
	frames := st.Size() / frameSize
	if frames == 0 {
		f.Close()
		return nil, errors.Errorf("frame file %s holds no complete %dx%d frame", path, width, height)
	}

	return &File{
		path:      path,
		width:     width,
		height:    height,
		frameSize: frameSize,
		frames:    uint32(frames),
		f:         f,
	}, nil
}

func (r *File) Width() int  { return r.width }
func (r *File) Height() int { return r.height }

// Frames returns the number of complete frames in the file.
func (r *File) Frames() uint32 { return r.frames }

// Decode copies frame segmentID into buf, honoring its stride and UV offset.
func (r *File) Decode(segmentID uint32, buf *vipc.Buf) error {
	if segmentID >= r.frames {
		return errors.Wrapf(ErrFrameOutOfRange, "frame %d of %d in %s", segmentID, r.frames, r.path)
	}
	if err := checkBuffer(buf, r.width, r.height); err != nil {
		return err
	}

	r.mu.Lock()
	f, closed := r.f, r.closed
	r.mu.Unlock()
	if closed {
		return errors.Errorf("frame file %s is closed", r.path)
	}

	sr := io.NewSectionReader(f, int64(segmentID)*r.frameSize, r.frameSize)
	y := buf.Y()
	for row := 0; row < r.height; row++ {
		if _, err := io.ReadFull(sr, y[row*buf.Stride:row*buf.Stride+r.width]); err != nil {
			return errors.Wrapf(err, "failed to read luma row %d of frame %d", row, segmentID)
		}
	}
	uv := buf.UV()
	for row := 0; row < (r.height+1)/2; row++ {
		if _, err := io.ReadFull(sr, uv[row*buf.Stride:row*buf.Stride+r.width]); err != nil {
			return errors.Wrapf(err, "failed to read chroma row %d of frame %d", row, segmentID)
		}
	}
	return nil
}

// Close releases the file.
func (r *File) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.f.Close()
}

func checkBuffer(buf *vipc.Buf, width, height int) error {
	if buf == nil {
		return errors.New("nil buffer")
	}
	need := buf.UVOffset + buf.Stride*((height+1)/2)
	if buf.Stride < width || buf.UVOffset < buf.Stride*height || len(buf.Data) < need {
		return errors.Wrapf(ErrBufferTooSmall, "%dx%d frame into stride %d, %d bytes", width, height, buf.Stride, len(buf.Data))
	}
	return nil
}
