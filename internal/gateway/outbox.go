package gateway

import "sync"

// Outbox is a bounded, thread-safe ring queue of outgoing frames for one
// connection. When full, Push evicts the oldest pending frame rather than
// blocking or growing; the continuous stream of subsequent snapshots makes
// the dropped frame redundant.
type Outbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    [][]byte
	head   int // read position
	tail   int // write position
	count  int
	closed bool

	// Stats
	totalPushed int64
	totalPopped int64
	dropped     int64
}

// NewOutbox creates an outbox with the given fixed capacity.
func NewOutbox(capacity int) *Outbox {
	if capacity < 1 {
		capacity = 1
	}
	o := &Outbox{
		buf: make([][]byte, capacity),
	}
	o.cond = sync.NewCond(&o.mu)
	return o
}

// Push enqueues a frame, evicting the oldest pending frame if the outbox
// is full. Returns true if an eviction occurred. Pushing to a closed
// outbox is a no-op.
func (o *Outbox) Push(frame []byte) (evicted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return false
	}

	capacity := len(o.buf)
	if o.count == capacity {
		// Drop oldest.
		o.buf[o.head] = nil
		o.head = (o.head + 1) % capacity
		o.count--
		o.dropped++
		evicted = true
	}

	o.buf[o.tail] = frame
	o.tail = (o.tail + 1) % capacity
	o.count++
	o.totalPushed++

	o.cond.Signal()
	return evicted
}

// Pop removes and returns the oldest frame, blocking until one is
// available or the outbox is closed. Returns nil, false once closed and
// drained.
func (o *Outbox) Pop() ([]byte, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for o.count == 0 && !o.closed {
		o.cond.Wait()
	}

	if o.count == 0 {
		return nil, false
	}

	frame := o.buf[o.head]
	o.buf[o.head] = nil
	o.head = (o.head + 1) % len(o.buf)
	o.count--
	o.totalPopped++

	return frame, true
}

// Close closes the outbox. Pending frames remain poppable; blocked
// poppers wake once drained.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.closed = true
	o.cond.Broadcast()
}

// Len returns the number of queued frames.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.count
}

// Dropped returns how many frames were evicted due to overflow.
func (o *Outbox) Dropped() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}
