package vipc

// Buf is one pooled frame buffer owned by a Server.
type Buf struct {
	Stream   StreamType
	Idx      int // index inside the stream's pool
	Width    int
	Height   int
	Stride   int
	UVOffset int
	Data     []byte

	// FrameID is stamped by the producer before the buffer is sent.
	FrameID uint32
}

// Y returns the luma plane, including row padding.
func (b *Buf) Y() []byte {
	return b.Data[:b.UVOffset]
}

// UV returns the interleaved chroma plane and the trailing padding.
func (b *Buf) UV() []byte {
	return b.Data[b.UVOffset:]
}

// FrameMeta is the per-frame metadata sent along with a buffer.
type FrameMeta struct {
	FrameID      uint32
	TimestampSof uint64
	TimestampEof uint64
	Valid        bool
}

// Frame is what subscribers receive for every sent buffer.
type Frame struct {
	Stream   StreamType
	Meta     FrameMeta
	Width    int
	Height   int
	Stride   int
	UVOffset int
	Data     []byte // copy of the buffer contents, safe to retain
}
