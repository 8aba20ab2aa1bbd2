package camera

import (
	"log/slog"

	"github.com/logreplay/camserve/internal/eventmsg"
	"github.com/logreplay/camserve/internal/telemetry"
	"github.com/logreplay/camserve/internal/vipc"
)

// channel is the state of one camera. queue and started are owned by the
// server; cache is owned by the worker except during reinit, when the worker
// is known to be idle.
type channel struct {
	cam     CameraType
	name    string
	stream  vipc.StreamType
	size    Size
	queue   requestQueue
	cache   cacheSlot
	started bool
	stats   channelStats
}

func newChannel(cam CameraType, size Size) *channel {
	return &channel{
		cam:    cam,
		name:   cam.String(),
		stream: cam.Stream(),
		size:   size,
		queue:  newRequestQueue(),
	}
}

type worker struct {
	ch       *channel
	inflight *inFlight
	broker   func() Broker
	metrics  *telemetry.Metrics
	logger   *slog.Logger
}

func (w *worker) run() {
	w.logger.Debug("Camera worker started")
	for {
		req := w.ch.queue.pop()
		if req.isSentinel() {
			w.logger.Debug("Camera worker stopped")
			return
		}

		w.process(req)

		w.metrics.InFlight(w.ch.name, -1)
		w.inflight.done()
	}
}

func (w *worker) process(req frameRequest) {
	ev, err := eventmsg.Decode(req.event)
	if err != nil {
		w.logger.Warn("Dropping malformed frame event", "error", err)
		w.ch.stats.malformed.Add(1)
		w.metrics.FrameSkipped(w.ch.name)
		return
	}

	idx := ev.EncodeIdx
	if idx.Type != eventmsg.TypeFullHEVC {
		w.logger.Debug("Skipping frame event", "type", idx.Type, "frame_id", idx.FrameID)
		w.ch.stats.skipped.Add(1)
		w.metrics.FrameSkipped(w.ch.name)
		return
	}

	broker := w.broker()
	if buf := w.resolve(broker, req.reader, idx); buf != nil {
		buf.FrameID = idx.FrameID
		meta := vipc.FrameMeta{
			FrameID:      idx.FrameID,
			TimestampSof: idx.TimestampSof,
			TimestampEof: idx.TimestampEof,
			Valid:        true,
		}
		if err := broker.Send(buf, meta); err != nil {
			w.logger.Warn("Failed to send frame", "frame_id", idx.FrameID, "error", err)
			w.ch.stats.failed.Add(1)
			w.metrics.FrameFailed(w.ch.name)
		} else {
			w.ch.stats.published.Add(1)
			w.metrics.FramePublished(w.ch.name)
		}
	} else {
		w.logger.Error("Camera failed to get frame", "segment_id", idx.SegmentID, "segment_num", idx.SegmentNum)
		w.ch.stats.failed.Add(1)
		w.metrics.FrameFailed(w.ch.name)
	}

	w.prefetch(broker, req.reader, idx.SegmentID+1, idx.SegmentNum)
}

// resolve returns the decoded buffer for idx, from the cache when possible.
func (w *worker) resolve(broker Broker, fr FrameReader, idx eventmsg.EncodeIndex) *vipc.Buf {
	if buf, ok := w.ch.cache.lookup(idx.SegmentID, idx.SegmentNum); ok {
		w.ch.stats.cacheHits.Add(1)
		w.metrics.CacheHit(w.ch.name)
		return buf
	}

	w.ch.stats.cacheMisses.Add(1)
	w.metrics.CacheMiss(w.ch.name)
	return w.decode(broker, fr, idx.SegmentID)
}

// prefetch decodes the frame expected next into the cache slot. A failed
// decode leaves a failed slot, which can only miss.
func (w *worker) prefetch(broker Broker, fr FrameReader, segmentID uint32, segmentNum int32) {
	w.ch.cache.store(segmentID, segmentNum, w.decode(broker, fr, segmentID))
}

func (w *worker) decode(broker Broker, fr FrameReader, segmentID uint32) *vipc.Buf {
	buf := broker.GetBuffer(w.ch.stream)
	if buf == nil {
		w.logger.Warn("No buffer available", "stream", w.ch.stream, "segment_id", segmentID)
		return nil
	}
	if err := fr.Decode(segmentID, buf); err != nil {
		w.logger.Debug("Frame decode failed", "segment_id", segmentID, "error", err)
		return nil
	}
	return buf
}
