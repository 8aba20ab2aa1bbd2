// Package vipc is an in-process video buffer broker. Producers allocate fixed
// pools of frame buffers per stream, fill them and send them; subscribers and
// remote listeners receive every sent frame.
package vipc

import (
	"net"
	"net/http"
	"sync"

	"github.com/logreplay/camserve/internal/nv12"
	"github.com/logreplay/camserve/internal/util"
	"github.com/pkg/errors"
	"k8s.io/utils/keymutex"
)

var (
	// ErrServerClosed is returned by Send after Close.
	ErrServerClosed = errors.New("vipc server closed")
	// ErrUnknownStream is returned when a stream has no buffer pool.
	ErrUnknownStream = errors.New("unknown stream")
)

type pool struct {
	layout nv12.Info
	bufs   []*Buf
	next   int
}

// Server owns the buffer pools of one bus.
type Server struct {
	name       string
	listenAddr string

	mu         sync.RWMutex
	pools      map[StreamType]*pool
	streamLock keymutex.KeyMutex
	closed     bool

	pipeline *Pipeline

	httpServer *http.Server
	listener   net.Listener
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithListenAddr makes StartListener serve streams on addr.
func WithListenAddr(addr string) ServerOption {
	return func(s *Server) {
		s.listenAddr = addr
	}
}

// NewServer creates a broker bound to the bus called name.
func NewServer(name string, opts ...ServerOption) *Server {
	s := &Server{
		name:       name,
		pools:      make(map[StreamType]*pool),
		streamLock: keymutex.NewHashed(0),
		pipeline:   NewPipeline(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateBuffers allocates count buffers for stream, replacing any previous pool.
func (s *Server) CreateBuffers(stream StreamType, count int, layout nv12.Info) {
	bufs := make([]*Buf, count)
	for i := range bufs {
		bufs[i] = &Buf{
			Stream:   stream,
			Idx:      i,
			Width:    layout.Width,
			Height:   layout.Height,
			Stride:   layout.Stride,
			UVOffset: layout.UVOffset,
			Data:     make([]byte, layout.Size),
		}
	}

	s.mu.Lock()
	s.pools[stream] = &pool{layout: layout, bufs: bufs}
	s.mu.Unlock()

	util.GetLogger().Debug("Created buffer pool", "bus", s.name, "stream", stream,
		"count", count, "width", layout.Width, "height", layout.Height, "size", layout.Size)
}

// GetBuffer returns the next buffer of stream's pool, cycling through it.
// It returns nil when the stream has no pool or the server is closed.
func (s *Server) GetBuffer(stream StreamType) *Buf {
	s.mu.RLock()
	p, ok := s.pools[stream]
	closed := s.closed
	s.mu.RUnlock()
	if !ok || closed || len(p.bufs) == 0 {
		return nil
	}

	key := stream.String()
	s.streamLock.LockKey(key)
	defer s.streamLock.UnlockKey(key)

	buf := p.bufs[p.next]
	p.next = (p.next + 1) % len(p.bufs)
	return buf
}

// Send publishes buf with its metadata to every subscriber of its stream.
func (s *Server) Send(buf *Buf, meta FrameMeta) error {
	if buf == nil {
		return errors.New("nil buffer")
	}

	s.mu.RLock()
	_, ok := s.pools[buf.Stream]
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrServerClosed
	}
	if !ok {
		return errors.Wrapf(ErrUnknownStream, "send on %s", buf.Stream)
	}

	if !s.pipeline.HasSubscribers(buf.Stream) {
		return nil
	}

	data := make([]byte, len(buf.Data))
	copy(data, buf.Data)
	s.pipeline.Publish(Frame{
		Stream:   buf.Stream,
		Meta:     meta,
		Width:    buf.Width,
		Height:   buf.Height,
		Stride:   buf.Stride,
		UVOffset: buf.UVOffset,
		Data:     data,
	})
	return nil
}

// Subscribe registers an in-process consumer of stream.
func (s *Server) Subscribe(id string, stream StreamType, bufferSize int) <-chan Frame {
	return s.pipeline.Subscribe(id, stream, bufferSize)
}

// Unsubscribe removes a consumer registered with Subscribe.
func (s *Server) Unsubscribe(id string) {
	s.pipeline.Unsubscribe(id)
}

// StreamInfo describes an allocated stream.
type StreamInfo struct {
	Name     string `json:"name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Stride   int    `json:"stride"`
	UVOffset int    `json:"uv_offset"`
	Size     int    `json:"size"`
	Buffers  int    `json:"buffers"`
}

// Streams lists the allocated streams ordered by stream type.
func (s *Server) Streams() []StreamInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]StreamInfo, 0, len(s.pools))
	for _, stream := range []StreamType{StreamRoad, StreamDriver, StreamWideRoad} {
		p, ok := s.pools[stream]
		if !ok {
			continue
		}
		infos = append(infos, StreamInfo{
			Name:     stream.String(),
			Width:    p.layout.Width,
			Height:   p.layout.Height,
			Stride:   p.layout.Stride,
			UVOffset: p.layout.UVOffset,
			Size:     p.layout.Size,
			Buffers:  len(p.bufs),
		})
	}
	return infos
}

// Close stops the listener, disconnects subscribers and rejects further sends.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.stopListener()
	s.pipeline.Close()
	util.GetLogger().Debug("Vipc server closed", "bus", s.name)
	return err
}
