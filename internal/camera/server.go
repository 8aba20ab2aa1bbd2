package camera

import (
	"log/slog"
	"sync"

	"github.com/logreplay/camserve/internal/nv12"
	"github.com/logreplay/camserve/internal/telemetry"
	"github.com/logreplay/camserve/internal/util"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc"
)

// ErrServerClosed is returned by PushFrame after Close.
var ErrServerClosed = errors.New("camera server closed")

// Server owns the camera channels, their workers and the video bus.
type Server struct {
	busName    string
	listenAddr string
	newBroker  BrokerFactory
	metrics    *telemetry.Metrics
	logger     *slog.Logger

	// mu serializes PushFrame, reinitialization and Close.
	mu       sync.Mutex
	channels [NumCameras]*channel
	closed   bool

	// broker is replaced only while every worker is drained.
	brokerMu sync.RWMutex
	broker   Broker

	inflight *inFlight
	workers  conc.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithBusName sets the bus the broker is bound to.
func WithBusName(name string) Option {
	return func(s *Server) {
		s.busName = name
	}
}

// WithListenAddr makes the default broker serve downstream clients on addr.
func WithListenAddr(addr string) Option {
	return func(s *Server) {
		s.listenAddr = addr
	}
}

// WithBrokerFactory replaces the default in-process broker.
func WithBrokerFactory(f BrokerFactory) Option {
	return func(s *Server) {
		s.newBroker = f
	}
}

// WithMetrics records telemetry on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the logger. Defaults to util.GetLogger().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer creates the channel table from sizes, starts the broker and
// starts a worker for every channel with a valid size.
func NewServer(sizes [NumCameras]Size, opts ...Option) *Server {
	s := &Server{
		busName:  DefaultBusName,
		inflight: newInFlight(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = util.GetLogger()
	}
	if s.newBroker == nil {
		s.newBroker = defaultBrokerFactory(s.listenAddr)
	}

	for cam := range s.channels {
		size := sizes[cam]
		if !size.Valid() {
			size = Size{}
		}
		s.channels[cam] = newChannel(CameraType(cam), size)
	}

	s.mu.Lock()
	s.startBroker()
	s.mu.Unlock()
	return s
}

// PushFrame queues event for the camera's worker. When fr's geometry differs
// from the channel's, it first waits for all queued work and rebuilds the bus
// for the new size.
//
// fr and event are borrowed: the caller must keep fr usable and must not
// modify event until WaitForSent or Close returns.
func (s *Server) PushFrame(cam CameraType, fr FrameReader, event []byte) error {
	if !cam.valid() {
		return errors.Errorf("unknown camera %d", int(cam))
	}
	size, err := readerSize(fr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServerClosed
	}

	ch := s.channels[cam]
	if size != ch.size {
		if !size.Valid() {
			return errors.Errorf("invalid frame size %s for %s camera", size, ch.name)
		}
		s.logger.Info("Camera frame size changed", "camera", ch.name, "from", ch.size, "to", size)
		ch.size = size
		s.WaitForSent()
		s.startBroker()
	}

	s.inflight.add()
	s.metrics.InFlight(ch.name, 1)
	ch.queue.push(frameRequest{reader: fr, event: event})
	return nil
}

// readerSize reads fr's geometry. A typed nil reader panics on its first
// method call; that is reported as an error instead.
func readerSize(fr FrameReader) (size Size, err error) {
	if fr == nil {
		return Size{}, errors.New("nil frame reader")
	}
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("unusable frame reader %T: %v", fr, r)
		}
	}()
	return Size{Width: fr.Width(), Height: fr.Height()}, nil
}

// WaitForSent blocks until every pushed request has been processed.
func (s *Server) WaitForSent() {
	s.inflight.wait()
}

// InFlight returns the number of pushed requests not yet processed.
func (s *Server) InFlight() int64 {
	return s.inflight.load()
}

// Size returns the geometry currently configured for cam.
func (s *Server) Size(cam CameraType) Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channels[cam].size
}

// Stats returns per-camera counters keyed by camera name.
func (s *Server) Stats() map[string]ChannelStats {
	stats := make(map[string]ChannelStats, NumCameras)
	for _, ch := range s.channels {
		stats[ch.name] = ch.stats.snapshot()
	}
	return stats
}

// Close stops the workers after they finish queued requests, then releases
// the broker. It is safe to call more than once.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for _, ch := range s.channels {
		if ch.started {
			ch.queue.push(frameRequest{})
		}
	}
	s.workers.Wait()

	s.brokerMu.Lock()
	broker := s.broker
	s.broker = nil
	s.brokerMu.Unlock()

	if broker != nil {
		if err := broker.Close(); err != nil {
			return errors.Wrap(err, "failed to close broker")
		}
	}
	s.logger.Info("Camera server stopped")
	return nil
}

func (s *Server) currentBroker() Broker {
	s.brokerMu.RLock()
	defer s.brokerMu.RUnlock()
	return s.broker
}

// startBroker replaces the broker and allocates buffers for every configured
// channel. Callers hold s.mu and have drained all workers.
func (s *Server) startBroker() {
	broker := s.newBroker(s.busName)

	s.brokerMu.Lock()
	old := s.broker
	s.broker = broker
	s.brokerMu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			s.logger.Warn("Failed to close previous broker", "bus", s.busName, "error", err)
		}
	}

	for _, ch := range s.channels {
		ch.cache.invalidate()
		if !ch.size.Valid() {
			continue
		}

		layout := nv12.Layout(ch.size.Width, ch.size.Height)
		broker.CreateBuffers(ch.stream, BufferCount, layout)
		s.logger.Debug("Camera buffers allocated", "camera", ch.name, "size", ch.size,
			"stride", layout.Stride, "buffer_size", layout.Size)

		if !ch.started {
			s.startWorker(ch)
		}
	}

	if err := broker.StartListener(); err != nil {
		s.logger.Error("Failed to start broker listener", "bus", s.busName, "error", err)
	}
	s.metrics.BrokerReinit()
}

func (s *Server) startWorker(ch *channel) {
	ch.started = true
	w := &worker{
		ch:       ch,
		inflight: s.inflight,
		broker:   s.currentBroker,
		metrics:  s.metrics,
		logger:   s.logger.With("camera", ch.name),
	}
	s.workers.Go(w.run)
}
