package vipc

import (
	"fmt"

	"github.com/vishalkuo/bimap"
)

// StreamType identifies a video stream on the bus.
type StreamType int

const (
	StreamRoad StreamType = iota
	StreamDriver
	StreamWideRoad
)

var streamNames = newStreamNames()

func newStreamNames() *bimap.BiMap[StreamType, string] {
	m := bimap.NewBiMap[StreamType, string]()
	m.Insert(StreamRoad, "road")
	m.Insert(StreamDriver, "driver")
	m.Insert(StreamWideRoad, "wideRoad")
	m.MakeImmutable()
	return m
}

func (s StreamType) String() string {
	if name, ok := streamNames.Get(s); ok {
		return name
	}
	return fmt.Sprintf("stream(%d)", int(s))
}

// StreamByName resolves a stream name such as "road" to its type.
func StreamByName(name string) (StreamType, bool) {
	return streamNames.GetInverse(name)
}
