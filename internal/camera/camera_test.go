package camera

import (
	"testing"
	"time"

	"github.com/logreplay/camserve/internal/vipc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCameraNames(t *testing.T) {
	for _, tt := range []struct {
		cam  CameraType
		name string
	}{
		{RoadCam, "road"},
		{DriverCam, "driver"},
		{WideRoadCam, "wideRoad"},
	} {
		assert.Equal(t, tt.name, tt.cam.String())
		got, ok := CameraByName(tt.name)
		require.True(t, ok)
		assert.Equal(t, tt.cam, got)
	}

	_, ok := CameraByName("rear")
	assert.False(t, ok)
	assert.Equal(t, "camera(5)", CameraType(5).String())
}

func TestCacheSlot(t *testing.T) {
	var c cacheSlot
	_, ok := c.lookup(0, 0)
	assert.False(t, ok, "empty slot never hits")

	buf := &vipc.Buf{}
	c.store(4, 1, buf)
	got, ok := c.lookup(4, 1)
	require.True(t, ok)
	assert.Same(t, buf, got)

	_, ok = c.lookup(4, 2)
	assert.False(t, ok)
	_, ok = c.lookup(5, 1)
	assert.False(t, ok)

	c.store(5, 1, nil)
	assert.Equal(t, cacheFailed, c.state)
	_, ok = c.lookup(5, 1)
	assert.False(t, ok, "failed prefetch misses")

	c.invalidate()
	assert.Equal(t, cacheEmpty, c.state)
}

func TestRequestQueueOrder(t *testing.T) {
	q := newRequestQueue()
	r := newFakeReader(8, 8)
	q.push(frameRequest{reader: r, event: []byte{1}})
	q.push(frameRequest{reader: r, event: []byte{2}})
	q.push(frameRequest{})

	assert.Equal(t, []byte{1}, q.pop().event)
	assert.Equal(t, []byte{2}, q.pop().event)
	assert.True(t, q.pop().isSentinel())
}

func TestInFlightWait(t *testing.T) {
	f := newInFlight()
	f.wait() // zero does not block

	f.add()
	f.add()
	done := make(chan struct{})
	go func() {
		f.wait()
		close(done)
	}()

	f.done()
	select {
	case <-done:
		t.Fatal("wait returned with one request in flight")
	case <-time.After(20 * time.Millisecond):
	}

	f.done()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait did not return")
	}
	assert.Equal(t, int64(0), f.load())
	assert.Panics(t, f.done)
}
