package camera

import "sync/atomic"

// ChannelStats is a snapshot of one channel's counters.
type ChannelStats struct {
	Published   uint64
	Failed      uint64 // frame could not be resolved or sent
	Skipped     uint64 // index type is not a full hardware-encoded frame
	Malformed   uint64 // event bytes could not be decoded
	CacheHits   uint64
	CacheMisses uint64
}

type channelStats struct {
	published   atomic.Uint64
	failed      atomic.Uint64
	skipped     atomic.Uint64
	malformed   atomic.Uint64
	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64
}

func (s *channelStats) snapshot() ChannelStats {
	return ChannelStats{
		Published:   s.published.Load(),
		Failed:      s.failed.Load(),
		Skipped:     s.skipped.Load(),
		Malformed:   s.malformed.Load(),
		CacheHits:   s.cacheHits.Load(),
		CacheMisses: s.cacheMisses.Load(),
	}
}
