package vipc

import (
	"sync"

	"github.com/logreplay/camserve/internal/util"
)

type subscriber struct {
	stream StreamType
	ch     chan Frame
}

// Pipeline fans sent frames out to subscribers of each stream.
type Pipeline struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	closed      bool
}

// NewPipeline creates a new pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		subscribers: make(map[string]*subscriber),
	}
}

// Subscribe adds a subscriber for stream. The returned channel is closed on
// Unsubscribe or Close.
func (p *Pipeline) Subscribe(id string, stream StreamType, bufferSize int) <-chan Frame {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan Frame, bufferSize)
	if p.closed {
		close(ch)
		return ch
	}

	if old, exists := p.subscribers[id]; exists {
		close(old.ch)
	}
	p.subscribers[id] = &subscriber{stream: stream, ch: ch}
	util.GetLogger().Debug("Frame subscriber added", "id", id, "stream", stream, "total", len(p.subscribers))
	return ch
}

// Unsubscribe removes a subscriber.
func (p *Pipeline) Unsubscribe(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if sub, exists := p.subscribers[id]; exists {
		close(sub.ch)
		delete(p.subscribers, id)
		util.GetLogger().Debug("Frame subscriber removed", "id", id, "total", len(p.subscribers))
	}
}

// HasSubscribers reports whether anyone listens on stream.
func (p *Pipeline) HasSubscribers(stream StreamType) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, sub := range p.subscribers {
		if sub.stream == stream {
			return true
		}
	}
	return false
}

// Publish delivers frame to every subscriber of its stream. Slow subscribers
// miss frames rather than stall the publisher.
func (p *Pipeline) Publish(frame Frame) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for id, sub := range p.subscribers {
		if sub.stream != frame.Stream {
			continue
		}
		select {
		case sub.ch <- frame:
		default:
			util.GetLogger().Warn("Frame channel full, dropping frame", "subscriber", id, "stream", frame.Stream, "frame_id", frame.Meta.FrameID)
		}
	}
}

// Close closes every subscriber channel. Later subscriptions get a closed channel.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	for id, sub := range p.subscribers {
		close(sub.ch)
		delete(p.subscribers, id)
	}
}
