package framereader

import (
	"github.com/logreplay/camserve/internal/vipc"
	"github.com/pkg/errors"
)

// Pattern synthesizes frames: a diagonal luma gradient that moves one pixel
// per frame over neutral chroma. Useful when no recording is at hand.
type Pattern struct {
	width  int
	height int
	frames uint32 // 0 means unbounded
}

// NewPattern creates a synthetic source. frames <= 0 yields an endless source.
func NewPattern(width, height, frames int) *Pattern {
	p := &Pattern{width: width, height: height}
	if frames > 0 {
		p.frames = uint32(frames)
	}
	return p
}

func (p *Pattern) Width() int  { return p.width }
func (p *Pattern) Height() int { return p.height }

// Decode renders frame segmentID into buf.
func (p *Pattern) Decode(segmentID uint32, buf *vipc.Buf) error {
	if p.frames > 0 && segmentID >= p.frames {
		return errors.Wrapf(ErrFrameOutOfRange, "pattern frame %d of %d", segmentID, p.frames)
	}
	if err := checkBuffer(buf, p.width, p.height); err != nil {
		return err
	}

	y := buf.Y()
	for row := 0; row < p.height; row++ {
		line := y[row*buf.Stride : row*buf.Stride+p.width]
		for col := range line {
			line[col] = byte(row + col + int(segmentID))
		}
	}
	uv := buf.UV()
	for row := 0; row < (p.height+1)/2; row++ {
		line := uv[row*buf.Stride : row*buf.Stride+p.width]
		for i := range line {
			line[i] = 128
		}
	}
	return nil
}
