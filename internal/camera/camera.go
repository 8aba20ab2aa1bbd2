// Package camera republishes recorded camera frames onto a video bus during
// log replay.
//
// Each camera channel has its own worker goroutine. A caller pushes
// (frame reader, index event) pairs with Server.PushFrame; the channel's worker
// resolves the event to a decoded buffer, sends it on the bus with its timing
// metadata and prefetches the next frame so sequential playback rarely waits
// on the decoder.
package camera

import (
	"fmt"

	"github.com/logreplay/camserve/internal/vipc"
)

// CameraType identifies a camera channel.
type CameraType int

const (
	RoadCam CameraType = iota
	DriverCam
	WideRoadCam

	// NumCameras is the size of the fixed channel table.
	NumCameras = 3
)

// BufferCount is the number of buffers allocated per stream on the bus.
const BufferCount = 20

// DefaultBusName is the bus the server publishes on unless configured otherwise.
const DefaultBusName = "camerad"

var cameraStreams = [NumCameras]vipc.StreamType{
	RoadCam:     vipc.StreamRoad,
	DriverCam:   vipc.StreamDriver,
	WideRoadCam: vipc.StreamWideRoad,
}

// Stream returns the bus stream the camera publishes on.
func (c CameraType) Stream() vipc.StreamType {
	return cameraStreams[c]
}

func (c CameraType) valid() bool {
	return c >= 0 && c < NumCameras
}

func (c CameraType) String() string {
	if !c.valid() {
		return fmt.Sprintf("camera(%d)", int(c))
	}
	return c.Stream().String()
}

// CameraByName resolves "road", "driver" or "wideRoad".
func CameraByName(name string) (CameraType, bool) {
	stream, ok := vipc.StreamByName(name)
	if !ok {
		return 0, false
	}
	for cam, s := range cameraStreams {
		if s == stream {
			return CameraType(cam), true
		}
	}
	return 0, false
}

// Size is a frame geometry in pixels.
type Size struct {
	Width  int
	Height int
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}
