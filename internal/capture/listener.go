// Package capture holds the pieces every backend composes: the capture
// listener that normalises, rotates and queues frames, and the lifecycle
// state machine behind the public Device contract.
package capture

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	mvswrapper "github.com/giim-hf-lab/MVSWrapper"
	"github.com/giim-hf-lab/MVSWrapper/internal/queue"
)

// ProduceFunc converts one vendor frame into an image in the target format.
// The returned image may alias vendor memory: the listener copies it while
// rotating, before the vendor callback returns.
type ProduceFunc func(target mvswrapper.PixelFormat) (*mvswrapper.Image, error)

// Listener turns vendor "frame ready" callbacks into queued frames.
//
// The attach gate is lock-free on the frame path: a callback registers itself
// as in flight and then checks the gate. Detach closes the gate and sleeps on
// idle until the in flight count reaches zero. Once Detach returns no callback
// can push.
type Listener struct {
	component string
	queue     *queue.Queue
	target    mvswrapper.PixelFormat
	rotation  atomic.Int32

	attached atomic.Bool
	inFlight atomic.Int64
	idleMu   sync.Mutex
	idle     *sync.Cond

	delivered atomic.Uint64
	rejected  atomic.Uint64
	failed    atomic.Uint64
}

// ListenerStats is a snapshot of listener counters
type ListenerStats struct {
	Delivered uint64 // Frames pushed to the queue
	Rejected  uint64 // Callbacks ignored because the listener was detached
	Failed    uint64 // Callbacks whose conversion failed
}

// NewListener creates a detached listener pushing into q
func NewListener(component string, q *queue.Queue, colour bool) *Listener {
	l := &Listener{
		component: component,
		queue:     q,
		target:    mvswrapper.TargetFormat(colour),
	}
	l.idle = sync.NewCond(&l.idleMu)
	return l
}

// Target returns the pixel format frames are normalised to
func (l *Listener) Target() mvswrapper.PixelFormat {
	return l.target
}

// Rotation returns the rotation applied to the next frame
func (l *Listener) Rotation() mvswrapper.RotationDirection {
	return mvswrapper.RotationDirection(l.rotation.Load())
}

// SetRotation changes the rotation used for subsequent frames
func (l *Listener) SetRotation(r mvswrapper.RotationDirection) error {
	if !r.Valid() {
		return fmt.Errorf("%s: %w: %d", l.component, mvswrapper.ErrInvalidRotation, int(r))
	}
	l.rotation.Store(int32(r))
	return nil
}

// Attached reports whether callbacks currently reach the queue
func (l *Listener) Attached() bool {
	return l.attached.Load()
}

// Attach clears the queue, restarts frame ids and opens the gate
func (l *Listener) Attach() {
	if dropped := l.queue.Reset(); dropped > 0 {
		slog.Debug(l.component+": discarded stale frames on subscribe", "frames", dropped)
	}
	l.attached.Store(true)
}

// Detach closes the gate and waits for in-flight callbacks to finish.
// It must not be called from inside a callback.
func (l *Listener) Detach() {
	l.attached.Store(false)

	l.idleMu.Lock()
	defer l.idleMu.Unlock()
	for l.inFlight.Load() > 0 {
		l.idle.Wait()
	}
}

// leave unregisters a callback and wakes Detach when it was the last one.
// A callback that still sees the gate open finished before Detach looked.
func (l *Listener) leave() {
	if l.inFlight.Add(-1) > 0 || l.attached.Load() {
		return
	}
	l.idleMu.Lock()
	l.idle.Broadcast()
	l.idleMu.Unlock()
}

// Handle processes one vendor callback: it converts the frame through
// produce, rotates it by the current rotation and pushes it to the queue.
//
// Handle never blocks on the consumer. A conversion error drops the frame and
// is logged; a panic inside produce (driver compatibility fault) propagates
// to the caller after the callback is unregistered from the gate.
func (l *Listener) Handle(produce ProduceFunc) (mvswrapper.Frame, bool) {
	l.inFlight.Add(1)
	defer l.leave()

	if !l.attached.Load() {
		l.rejected.Add(1)
		return mvswrapper.Frame{}, false
	}

	img, err := produce(l.target)
	if err != nil {
		l.failed.Add(1)
		slog.Warn(l.component+": frame conversion failed, skipping frame", "error", err)
		return mvswrapper.Frame{}, false
	}

	rotated, err := mvswrapper.Rotate(img, l.Rotation())
	if err != nil {
		l.failed.Add(1)
		slog.Warn(l.component+": frame rotation failed, skipping frame", "error", err)
		return mvswrapper.Frame{}, false
	}

	f := l.queue.Push(rotated)
	l.delivered.Add(1)

	slog.Debug(l.component+": frame queued",
		"frame_id", f.ID,
		"size", rotated.String(),
		"trace_id", f.TraceID,
	)
	return f, true
}

// Stats returns a snapshot of the listener counters
func (l *Listener) Stats() ListenerStats {
	return ListenerStats{
		Delivered: l.delivered.Load(),
		Rejected:  l.rejected.Load(),
		Failed:    l.failed.Load(),
	}
}
