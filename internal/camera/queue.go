package camera

// requestQueueSize bounds the number of requests waiting per channel.
const requestQueueSize = 64

// frameRequest borrows the caller's reader and event bytes. The zero value is
// the shutdown sentinel.
type frameRequest struct {
	reader FrameReader
	event  []byte
}

func (r frameRequest) isSentinel() bool {
	return r.reader == nil
}

// requestQueue is a FIFO hand-off between the server (single producer) and a
// channel worker (single consumer).
type requestQueue chan frameRequest

func newRequestQueue() requestQueue {
	return make(requestQueue, requestQueueSize)
}

// push blocks while the queue is full.
func (q requestQueue) push(req frameRequest) {
	q <- req
}

// pop blocks until a request or the sentinel arrives.
func (q requestQueue) pop() frameRequest {
	return <-q
}
