// Package queue implements the per-device frame queue: an unbounded FIFO
// handing frames from the capture callback thread to polling callers.
package queue

import (
	"sync"
	"time"

	"github.com/google/uuid"

	mvswrapper "github.com/giim-hf-lab/MVSWrapper"
)

// compactThreshold bounds how many consumed slots Pop leaves at the head of
// the backing slice before shifting the live frames down.
const compactThreshold = 64

// Queue is a mutex-guarded FIFO of frames with monotonic ids.
//
// Every mutation (push, pop, reset) happens under one mutex. The mutex is
// never held across a blocking call or while an image is being converted.
type Queue struct {
	mu      sync.Mutex
	frames  []mvswrapper.Frame
	head    int
	counter uint64

	pushed  uint64
	popped  uint64
	cleared uint64
}

// Stats is a snapshot of queue counters
type Stats struct {
	Pending int    // Frames waiting to be popped
	LastID  uint64 // Id of the most recent push in the current session
	Pushed  uint64 // Frames pushed since construction
	Popped  uint64 // Frames popped since construction
	Cleared uint64 // Frames discarded by Reset since construction
}

// New creates an empty queue
func New() *Queue {
	return &Queue{}
}

// Push appends img as a new frame with id = ++counter and returns the frame.
// The queue takes ownership of img.
func (q *Queue) Push(img *mvswrapper.Image) mvswrapper.Frame {
	traceID := uuid.New().String()

	q.mu.Lock()
	q.counter++
	f := mvswrapper.Frame{
		ID:        q.counter,
		Timestamp: time.Now(),
		Content:   img,
		TraceID:   traceID,
	}
	q.frames = append(q.frames, f)
	q.pushed++
	q.mu.Unlock()

	return f
}

// Pop removes and returns the oldest frame. ok is false when the queue is empty.
func (q *Queue) Pop() (f mvswrapper.Frame, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head == len(q.frames) {
		return mvswrapper.Frame{}, false
	}

	f = q.frames[q.head]
	q.frames[q.head] = mvswrapper.Frame{}
	q.head++
	q.popped++

	switch {
	case q.head == len(q.frames):
		q.frames = q.frames[:0]
		q.head = 0
	case q.head >= compactThreshold && q.head*2 >= len(q.frames):
		n := copy(q.frames, q.frames[q.head:])
		clear(q.frames[n:])
		q.frames = q.frames[:n]
		q.head = 0
	}
	return f, true
}

// Reset discards every pending frame and restarts ids at 1. It returns the
// number of frames discarded.
func (q *Queue) Reset() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.frames) - q.head
	q.frames = nil
	q.head = 0
	q.counter = 0
	q.cleared += uint64(n)
	return n
}

// Len returns the number of pending frames
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames) - q.head
}

// Stats returns a snapshot of the queue counters
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pending: len(q.frames) - q.head,
		LastID:  q.counter,
		Pushed:  q.pushed,
		Popped:  q.popped,
		Cleared: q.cleared,
	}
}
