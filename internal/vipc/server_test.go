package vipc

import (
	"testing"
	"time"

	"github.com/logreplay/camserve/internal/nv12"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBufferCyclesPool(t *testing.T) {
	s := NewServer("test")
	defer s.Close()

	layout := nv12.Layout(64, 32)
	s.CreateBuffers(StreamRoad, 3, layout)

	var idx []int
	for i := 0; i < 7; i++ {
		buf := s.GetBuffer(StreamRoad)
		require.NotNil(t, buf)
		assert.Equal(t, StreamRoad, buf.Stream)
		assert.Len(t, buf.Data, layout.Size)
		assert.Equal(t, layout.Stride, buf.Stride)
		assert.Equal(t, layout.UVOffset, len(buf.Y()))
		idx = append(idx, buf.Idx)
	}
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2, 0}, idx)
}

func TestGetBufferWithoutPool(t *testing.T) {
	s := NewServer("test")
	assert.Nil(t, s.GetBuffer(StreamDriver))

	s.CreateBuffers(StreamDriver, 1, nv12.Layout(16, 16))
	require.NoError(t, s.Close())
	assert.Nil(t, s.GetBuffer(StreamDriver), "closed server hands out no buffers")
}

func TestSendDeliversToStreamSubscribers(t *testing.T) {
	s := NewServer("test")
	defer s.Close()

	s.CreateBuffers(StreamRoad, 2, nv12.Layout(16, 16))
	s.CreateBuffers(StreamDriver, 2, nv12.Layout(16, 16))

	road := s.Subscribe("road-sub", StreamRoad, 4)
	driver := s.Subscribe("driver-sub", StreamDriver, 4)

	buf := s.GetBuffer(StreamRoad)
	buf.Data[0] = 0xAB
	buf.FrameID = 9
	meta := FrameMeta{FrameID: 9, TimestampSof: 100, TimestampEof: 200, Valid: true}
	require.NoError(t, s.Send(buf, meta))

	select {
	case frame := <-road:
		assert.Equal(t, meta, frame.Meta)
		assert.Equal(t, StreamRoad, frame.Stream)
		assert.Equal(t, byte(0xAB), frame.Data[0])

		buf.Data[0] = 0
		assert.Equal(t, byte(0xAB), frame.Data[0], "subscribers get a copy")
	case <-time.After(time.Second):
		t.Fatal("road subscriber got no frame")
	}

	select {
	case frame := <-driver:
		t.Fatalf("driver subscriber got a road frame: %+v", frame.Meta)
	default:
	}
}

func TestSendErrors(t *testing.T) {
	s := NewServer("test")

	assert.Error(t, s.Send(nil, FrameMeta{}))
	assert.ErrorIs(t, s.Send(&Buf{Stream: StreamWideRoad}, FrameMeta{}), ErrUnknownStream)

	s.CreateBuffers(StreamRoad, 1, nv12.Layout(16, 16))
	buf := s.GetBuffer(StreamRoad)
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Send(buf, FrameMeta{}), ErrServerClosed)
}

func TestCloseClosesSubscribers(t *testing.T) {
	s := NewServer("test")
	ch := s.Subscribe("a", StreamRoad, 1)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	_, ok := <-ch
	assert.False(t, ok)

	late := s.Subscribe("b", StreamRoad, 1)
	_, ok = <-late
	assert.False(t, ok, "subscriptions after close are closed immediately")
}

func TestStreams(t *testing.T) {
	s := NewServer("test")
	defer s.Close()

	s.CreateBuffers(StreamWideRoad, 2, nv12.Layout(1928, 1208))
	s.CreateBuffers(StreamRoad, 3, nv12.Layout(1928, 1208))

	streams := s.Streams()
	require.Len(t, streams, 2)
	assert.Equal(t, "road", streams[0].Name)
	assert.Equal(t, 3, streams[0].Buffers)
	assert.Equal(t, "wideRoad", streams[1].Name)
	assert.Equal(t, 2048, streams[1].Stride)
}

func TestStreamNames(t *testing.T) {
	for _, stream := range []StreamType{StreamRoad, StreamDriver, StreamWideRoad} {
		got, ok := StreamByName(stream.String())
		require.True(t, ok)
		assert.Equal(t, stream, got)
	}

	_, ok := StreamByName("rear")
	assert.False(t, ok)
	assert.Equal(t, "stream(9)", StreamType(9).String())
}
