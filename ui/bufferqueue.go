package ui

import (
	"context"
	"io"
	"sync"
)

// Default buffer layout: 8 buffers of 8192 int16 values.
const (
	DefaultBufferCount = 8
	DefaultBufferLen   = 8192
)

// BufferQueue is a fixed set of sample buffers cycling between a producer
// and an audio device. The producer acquires free buffers and submits them
// filled; the device drains submitted buffers in order through Read, which
// returns each buffer to the free list once it is consumed.
type BufferQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	free   [][]int16
	queued [][]int16
	// readPos is the sample index into queued[0].
	readPos int
	closed  bool

	// completed is signalled whenever a buffer returns to the free list.
	completed chan struct{}
}

// NewBufferQueue creates count buffers of size int16 values each.
func NewBufferQueue(count, size int) *BufferQueue {
	if count <= 0 {
		count = DefaultBufferCount
	}
	if size <= 0 {
		size = DefaultBufferLen
	}
	q := &BufferQueue{
		free:      make([][]int16, 0, count),
		queued:    make([][]int16, 0, count),
		completed: make(chan struct{}, 1),
	}
	for i := 0; i < count; i++ {
		q.free = append(q.free, make([]int16, size))
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Acquire returns a free buffer, or nil if every buffer is queued.
func (q *BufferQueue) Acquire() []int16 {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.free)
	if n == 0 || q.closed {
		return nil
	}
	buf := q.free[n-1]
	q.free = q.free[:n-1]
	return buf
}

// Submit queues a filled buffer. A zero length slice of an acquired buffer
// hands it back unused.
func (q *BufferQueue) Submit(buf []int16) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(buf) == 0 || q.closed {
		q.release(buf)
		return
	}
	q.queued = append(q.queued, buf)
	q.cond.Signal()
}

// Busy reports whether any submitted buffer has not been fully read.
func (q *BufferQueue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queued) > 0
}

// Free returns the number of buffers available to Acquire.
func (q *BufferQueue) Free() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.free)
}

// Buffered returns the number of queued bytes not yet read.
func (q *BufferQueue) Buffered() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := -q.readPos
	for _, b := range q.queued {
		n += len(b)
	}
	return n * 2
}

// Wait blocks until a buffer is free, the queue is closed or ctx ends.
func (q *BufferQueue) Wait(ctx context.Context) error {
	for {
		q.mu.Lock()
		ready := len(q.free) > 0 || q.closed
		q.mu.Unlock()
		if ready {
			return nil
		}

		select {
		case <-q.completed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WaitIdle blocks until every queued buffer has been read, the queue is
// closed or ctx ends.
func (q *BufferQueue) WaitIdle(ctx context.Context) error {
	for {
		q.mu.Lock()
		idle := len(q.queued) == 0 || q.closed
		q.mu.Unlock()
		if idle {
			return nil
		}

		select {
		case <-q.completed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Read implements io.Reader with little-endian int16 samples. It blocks
// until a buffer is queued and returns io.EOF once closed and drained.
func (q *BufferQueue) Read(p []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.queued) == 0 {
		if q.closed {
			return 0, io.EOF
		}
		q.cond.Wait()
	}

	n := 0
	for n+1 < len(p) && len(q.queued) > 0 {
		buf := q.queued[0]
		for q.readPos < len(buf) && n+1 < len(p) {
			s := buf[q.readPos]
			p[n] = byte(s)
			p[n+1] = byte(s >> 8)
			n += 2
			q.readPos++
		}
		if q.readPos == len(buf) {
			q.queued = q.queued[1:]
			q.readPos = 0
			q.release(buf)
		}
	}
	return n, nil
}

// Clear drops all queued samples, returning their buffers to the free list.
func (q *BufferQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, b := range q.queued {
		q.release(b)
	}
	q.queued = q.queued[:0]
	q.readPos = 0
}

// Close releases readers and waiters. Queued samples can still be read.
func (q *BufferQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
	q.notify()
}

// release must be called with mu held.
func (q *BufferQueue) release(buf []int16) {
	if cap(buf) == 0 {
		return
	}
	q.free = append(q.free, buf[:cap(buf)])
	q.notify()
}

func (q *BufferQueue) notify() {
	select {
	case q.completed <- struct{}{}:
	default:
	}
}
