package vipc

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/logreplay/camserve/internal/util"
	"github.com/pkg/errors"
)

// FrameHeaderSize is the size of the header preceding pixel data in every
// websocket frame message.
const FrameHeaderSize = 40

const subscriberBufferSize = 4

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// FrameHeader is the fixed little-endian header of a streamed frame.
type FrameHeader struct {
	FrameID      uint32
	TimestampSof uint64
	TimestampEof uint64
	Width        uint32
	Height       uint32
	Stride       uint32
	UVOffset     uint32
}

// MarshalFrame encodes frame as header followed by pixel data.
func MarshalFrame(frame Frame) []byte {
	msg := make([]byte, FrameHeaderSize+len(frame.Data))
	binary.LittleEndian.PutUint32(msg[0:], frame.Meta.FrameID)
	binary.LittleEndian.PutUint64(msg[8:], frame.Meta.TimestampSof)
	binary.LittleEndian.PutUint64(msg[16:], frame.Meta.TimestampEof)
	binary.LittleEndian.PutUint32(msg[24:], uint32(frame.Width))
	binary.LittleEndian.PutUint32(msg[28:], uint32(frame.Height))
	binary.LittleEndian.PutUint32(msg[32:], uint32(frame.Stride))
	binary.LittleEndian.PutUint32(msg[36:], uint32(frame.UVOffset))
	copy(msg[FrameHeaderSize:], frame.Data)
	return msg
}

// UnmarshalFrameHeader decodes the header of a streamed frame and returns
// the pixel data that follows it.
func UnmarshalFrameHeader(msg []byte) (FrameHeader, []byte, error) {
	if len(msg) < FrameHeaderSize {
		return FrameHeader{}, nil, errors.Errorf("frame message too short: %d bytes", len(msg))
	}
	h := FrameHeader{
		FrameID:      binary.LittleEndian.Uint32(msg[0:]),
		TimestampSof: binary.LittleEndian.Uint64(msg[8:]),
		TimestampEof: binary.LittleEndian.Uint64(msg[16:]),
		Width:        binary.LittleEndian.Uint32(msg[24:]),
		Height:       binary.LittleEndian.Uint32(msg[28:]),
		Stride:       binary.LittleEndian.Uint32(msg[32:]),
		UVOffset:     binary.LittleEndian.Uint32(msg[36:]),
	}
	return h, msg[FrameHeaderSize:], nil
}

// Handler returns the HTTP handler serving the stream listing and the
// per-stream websocket endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /streams", s.handleStreams)
	mux.HandleFunc("GET /streams/{name}", s.handleStream)
	return mux
}

// StartListener starts serving downstream clients on the configured address.
// Without an address it is a no-op.
func (s *Server) StartListener() error {
	if s.listenAddr == "" {
		util.GetLogger().Debug("No listen address, listener disabled", "bus", s.name)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServerClosed
	}
	if s.httpServer != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.listenAddr)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:     s.Handler(),
		ReadTimeout: 0, // streaming connections
		IdleTimeout: 0,
	}

	srv := s.httpServer
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.GetLogger().Error("Vipc listener stopped", "bus", s.name, "error", err)
		}
	}()

	util.GetLogger().Info("Vipc listener started", "bus", s.name, "addr", ln.Addr().String())
	return nil
}

// Addr returns the listener address, or nil when not listening.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) stopListener() error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.listener = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		util.GetLogger().Warn("Vipc listener shutdown error", "bus", s.name, "error", err)
		if err := srv.Close(); err != nil {
			return errors.Wrap(err, "failed to close vipc listener")
		}
	}
	return nil
}

func (s *Server) handleStreams(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Streams()); err != nil {
		util.GetLogger().Warn("Failed to write stream list", "error", err)
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	logger := util.GetLogger()

	name := r.PathValue("name")
	stream, ok := StreamByName(name)
	if !ok {
		http.Error(w, "unknown stream "+name, http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade to WebSocket", "stream", name, "error", err)
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	frames := s.Subscribe(id, stream, subscriberBufferSize)
	defer s.Unsubscribe(id)
	logger.Info("Stream client attached", "stream", name, "subscriber", id, "remote", r.RemoteAddr)

	// Clients only send close frames; reading is needed to notice them.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				logger.Debug("Stream client read error", "subscriber", id, "error", err)
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			logger.Info("Stream client detached", "stream", name, "subscriber", id)
			return

		case frame, ok := <-frames:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "bus closed"),
					time.Now().Add(time.Second))
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, MarshalFrame(frame)); err != nil {
				logger.Error("Failed to write frame", "stream", name, "subscriber", id, "error", err)
				return
			}
		}
	}
}
