package camera

import (
	"sync"
	"sync/atomic"
)

// inFlight counts requests that were pushed but not yet fully processed,
// prefetch included. It reaches zero only when every worker is idle.
type inFlight struct {
	n    atomic.Int64
	mu   sync.Mutex
	cond *sync.Cond
}

func newInFlight() *inFlight {
	f := &inFlight{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *inFlight) add() {
	f.n.Add(1)
}

func (f *inFlight) done() {
	n := f.n.Add(-1)
	if n < 0 {
		panic("camera: in-flight counter went negative")
	}
	if n == 0 {
		f.mu.Lock()
		f.cond.Broadcast()
		f.mu.Unlock()
	}
}

func (f *inFlight) load() int64 {
	return f.n.Load()
}

// wait blocks until the counter is zero.
func (f *inFlight) wait() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.n.Load() != 0 {
		f.cond.Wait()
	}
}
