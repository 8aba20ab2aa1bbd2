package camera

import (
	"fmt"
	"sync"

	"github.com/logreplay/camserve/internal/eventmsg"
	"github.com/logreplay/camserve/internal/nv12"
	"github.com/logreplay/camserve/internal/vipc"
)

type sentFrame struct {
	stream  vipc.StreamType
	meta    vipc.FrameMeta
	frameID uint32 // stamped on the buffer
	first   byte   // first pixel byte, written by fakeReader
}

// fakeBroker allocates a fresh buffer per GetBuffer call and records sends.
type fakeBroker struct {
	mu        sync.Mutex
	layouts   map[vipc.StreamType]nv12.Info
	counts    map[vipc.StreamType]int
	sent      []sentFrame
	listening bool
	closed    bool
	noBuffers bool
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		layouts: make(map[vipc.StreamType]nv12.Info),
		counts:  make(map[vipc.StreamType]int),
	}
}

func (b *fakeBroker) CreateBuffers(stream vipc.StreamType, count int, layout nv12.Info) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.layouts[stream] = layout
	b.counts[stream] = count
}

func (b *fakeBroker) GetBuffer(stream vipc.StreamType) *vipc.Buf {
	b.mu.Lock()
	defer b.mu.Unlock()
	layout, ok := b.layouts[stream]
	if !ok || b.noBuffers {
		return nil
	}
	return &vipc.Buf{
		Stream:   stream,
		Width:    layout.Width,
		Height:   layout.Height,
		Stride:   layout.Stride,
		UVOffset: layout.UVOffset,
		Data:     make([]byte, 16),
	}
}

func (b *fakeBroker) Send(buf *vipc.Buf, meta vipc.FrameMeta) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return vipc.ErrServerClosed
	}
	b.sent = append(b.sent, sentFrame{stream: buf.Stream, meta: meta, frameID: buf.FrameID, first: buf.Data[0]})
	return nil
}

func (b *fakeBroker) StartListener() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listening = true
	return nil
}

func (b *fakeBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBroker) sends() []sentFrame {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]sentFrame(nil), b.sent...)
}

func (b *fakeBroker) layout(stream vipc.StreamType) (nv12.Info, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.layouts[stream]
	return l, ok
}

// brokerRecorder is a BrokerFactory that keeps every broker it created.
type brokerRecorder struct {
	mu       sync.Mutex
	brokers  []*fakeBroker
	busNames []string
	onCreate func()
}

func (r *brokerRecorder) factory(busName string) Broker {
	if r.onCreate != nil {
		r.onCreate()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b := newFakeBroker()
	r.brokers = append(r.brokers, b)
	r.busNames = append(r.busNames, busName)
	return b
}

func (r *brokerRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.brokers)
}

func (r *brokerRecorder) last() *fakeBroker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.brokers[len(r.brokers)-1]
}

// fakeReader counts decodes. Frames listed in fail cannot be decoded; when
// gate is set every decode waits for it to be closed.
type fakeReader struct {
	width, height int
	fail          map[uint32]bool
	gate          chan struct{}

	mu      sync.Mutex
	decoded []uint32
}

func newFakeReader(width, height int) *fakeReader {
	return &fakeReader{width: width, height: height, fail: map[uint32]bool{}}
}

func (r *fakeReader) Width() int  { return r.width }
func (r *fakeReader) Height() int { return r.height }

func (r *fakeReader) Decode(segmentID uint32, buf *vipc.Buf) error {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	r.decoded = append(r.decoded, segmentID)
	r.mu.Unlock()

	if r.fail[segmentID] {
		return fmt.Errorf("frame %d unreadable", segmentID)
	}
	buf.Data[0] = byte(segmentID)
	return nil
}

func (r *fakeReader) decodes() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint32(nil), r.decoded...)
}

func frameEvent(which eventmsg.Which, segmentID uint32) []byte {
	return typedEvent(which, eventmsg.TypeFullHEVC, segmentID)
}

func typedEvent(which eventmsg.Which, typ eventmsg.IndexType, segmentID uint32) []byte {
	return eventmsg.MustEncode(&eventmsg.Event{
		Valid: true,
		Which: which,
		EncodeIdx: eventmsg.EncodeIndex{
			FrameID:      segmentID + 1000,
			Type:         typ,
			SegmentNum:   2,
			SegmentID:    segmentID,
			TimestampSof: uint64(segmentID) * 50_000_000,
			TimestampEof: uint64(segmentID)*50_000_000 + 1_000_000,
		},
	})
}
