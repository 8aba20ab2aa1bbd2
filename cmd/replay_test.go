package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/logreplay/camserve/internal/camera"
	"github.com/logreplay/camserve/internal/eventmsg"
	"github.com/logreplay/camserve/internal/nv12"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCameraSource(t *testing.T) {
	cam, size, path, err := parseCameraSource("driver:640x480")
	require.NoError(t, err)
	assert.Equal(t, camera.DriverCam, cam)
	assert.Equal(t, camera.Size{Width: 640, Height: 480}, size)
	assert.Empty(t, path)

	cam, _, path, err = parseCameraSource("wideRoad:640x480:/tmp/a:b.nv12")
	require.NoError(t, err)
	assert.Equal(t, camera.WideRoadCam, cam)
	assert.Equal(t, "/tmp/a:b.nv12", path)

	for _, bad := range []string{"road", "rear:640x480", "road:640"} {
		_, _, _, err := parseCameraSource(bad)
		assert.Error(t, err, bad)
	}
}

func TestOpenSourcesRejectsDuplicates(t *testing.T) {
	_, err := openSources([]string{"road:64x48", "road:64x48"}, 1)
	assert.Error(t, err)
}

func TestReplayEvent(t *testing.T) {
	src := &replaySource{cam: camera.DriverCam}
	ev, err := eventmsg.Decode(replayEvent(src, 7, 3, 1, 0))
	require.NoError(t, err)

	assert.Equal(t, eventmsg.WhichDriverEncodeIdx, ev.Which)
	assert.Equal(t, eventmsg.TypeFullHEVC, ev.EncodeIdx.Type)
	assert.Equal(t, uint32(7), ev.EncodeIdx.FrameID)
	assert.Equal(t, uint32(3), ev.EncodeIdx.SegmentID)
	assert.Equal(t, int32(1), ev.EncodeIdx.SegmentNum)
	assert.Greater(t, ev.EncodeIdx.TimestampEof, ev.EncodeIdx.TimestampSof)
}

func TestExecuteReplay(t *testing.T) {
	const width, height = 64, 48
	path := filepath.Join(t.TempDir(), "road.nv12")
	require.NoError(t, os.WriteFile(path, make([]byte, 3*nv12.PlaneSize(width, height)), 0o644))

	opts := &ReplayOptions{
		Cameras: []string{"road:64x48:" + path, "driver:64x48"},
		FPS:     1000,
		Frames:  5,
	}
	var out bytes.Buffer
	require.NoError(t, ExecuteReplay(context.Background(), &out, opts))

	text := out.String()
	assert.Contains(t, text, "Pushed 8 frame(s)")
	assert.Contains(t, text, "road")
	assert.Contains(t, text, "driver")
	assert.NotContains(t, text, "wideRoad")
}

func TestExecuteReplayStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := &ReplayOptions{
		Cameras: []string{"road:64x48"},
		FPS:     20,
		Frames:  0,
		Loop:    true,
	}
	var out bytes.Buffer
	require.NoError(t, ExecuteReplay(ctx, &out, opts))
	assert.Contains(t, out.String(), "Pushed 1 frame(s)")
}

func TestExecuteReplayValidatesOptions(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, ExecuteReplay(context.Background(), &out, &ReplayOptions{Cameras: []string{"road:64x48"}}))
	assert.Error(t, ExecuteReplay(context.Background(), &out, &ReplayOptions{FPS: 20}))
	assert.Error(t, ExecuteReplay(context.Background(), &out, &ReplayOptions{
		Cameras: []string{"road:64x48:" + filepath.Join(t.TempDir(), "missing.nv12")},
		FPS:     20,
	}))
}
