package camera

import "github.com/logreplay/camserve/internal/vipc"

type cacheState int

const (
	cacheEmpty  cacheState = iota // nothing prefetched since start or last reinit
	cacheReady                    // buf holds the decoded frame
	cacheFailed                   // prefetch was attempted and failed
)

// cacheSlot holds the frame a worker prefetched for its next request.
type cacheSlot struct {
	state      cacheState
	segmentID  uint32
	segmentNum int32
	buf        *vipc.Buf
}

// lookup returns the cached buffer if it holds exactly this frame.
func (c *cacheSlot) lookup(segmentID uint32, segmentNum int32) (*vipc.Buf, bool) {
	if c.state != cacheReady || c.segmentID != segmentID || c.segmentNum != segmentNum {
		return nil, false
	}
	return c.buf, true
}

func (c *cacheSlot) store(segmentID uint32, segmentNum int32, buf *vipc.Buf) {
	c.segmentID = segmentID
	c.segmentNum = segmentNum
	c.buf = buf
	if buf == nil {
		c.state = cacheFailed
	} else {
		c.state = cacheReady
	}
}

func (c *cacheSlot) invalidate() {
	*c = cacheSlot{}
}
