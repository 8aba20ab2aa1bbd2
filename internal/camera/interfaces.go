package camera

import (
	"github.com/logreplay/camserve/internal/nv12"
	"github.com/logreplay/camserve/internal/vipc"
)

// Broker is the video bus the server publishes on. *vipc.Server implements it.
type Broker interface {
	// CreateBuffers allocates a pool of count buffers for stream
	CreateBuffers(stream vipc.StreamType, count int, layout nv12.Info)

	// GetBuffer hands out a pool buffer, nil when none is available
	GetBuffer(stream vipc.StreamType) *vipc.Buf

	// Send publishes a filled buffer with its frame metadata
	Send(buf *vipc.Buf, meta vipc.FrameMeta) error

	// StartListener lets downstream clients attach
	StartListener() error

	// Close releases the bus
	Close() error
}

// BrokerFactory creates a broker bound to the named bus.
type BrokerFactory func(busName string) Broker

// FrameReader decodes recorded frames by their index in a segment.
//
// The server does not own readers. A reader passed to PushFrame must stay
// usable until WaitForSent or Close has returned.
type FrameReader interface {
	Width() int
	Height() int

	// Decode writes frame segmentID into buf
	Decode(segmentID uint32, buf *vipc.Buf) error
}

func defaultBrokerFactory(listenAddr string) BrokerFactory {
	return func(busName string) Broker {
		var opts []vipc.ServerOption
		if listenAddr != "" {
			opts = append(opts, vipc.WithListenAddr(listenAddr))
		}
		return vipc.NewServer(busName, opts...)
	}
}
