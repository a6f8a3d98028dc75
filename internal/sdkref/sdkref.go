// Package sdkref models a process-wide vendor runtime that must be
// initialised once before first use and torn down after the last user.
package sdkref

import (
	"fmt"
	"log/slog"
	"sync"
)

// Runtime reference-counts users of a process-wide SDK.
//
// The first Acquire runs init; the Release that drops the count to zero runs
// teardown. A failed init leaves the count at zero so a later Acquire retries.
type Runtime struct {
	name     string
	init     func() error
	teardown func() error

	mu    sync.Mutex
	users int
}

// New creates a runtime guard. teardown may be nil for runtimes that are
// never unloaded.
func New(name string, init, teardown func() error) *Runtime {
	return &Runtime{name: name, init: init, teardown: teardown}
}

// Acquire registers a user, initialising the runtime on first use
func (r *Runtime) Acquire() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.users == 0 && r.init != nil {
		if err := r.init(); err != nil {
			return fmt.Errorf("%s: runtime init: %w", r.name, err)
		}
		slog.Debug(r.name + ": runtime initialised")
	}
	r.users++
	return nil
}

// Release unregisters a user, tearing the runtime down after the last one.
// Releasing more often than acquiring is a no-op.
func (r *Runtime) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.users == 0 {
		return nil
	}
	r.users--
	if r.users > 0 || r.teardown == nil {
		return nil
	}
	if err := r.teardown(); err != nil {
		return fmt.Errorf("%s: runtime teardown: %w", r.name, err)
	}
	slog.Debug(r.name + ": runtime terminated")
	return nil
}

// Users returns the number of active users
func (r *Runtime) Users() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users
}
