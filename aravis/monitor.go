package aravis

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
)

// ErrorStats counts pipeline errors per category
type ErrorStats struct {
	Network uint64
	Format  uint64
	Access  uint64
	Unknown uint64
}

type errorCounters struct {
	network atomic.Uint64
	format  atomic.Uint64
	access  atomic.Uint64
	unknown atomic.Uint64
}

func (c *errorCounters) add(category ErrorCategory) {
	switch category {
	case ErrCategoryNetwork:
		c.network.Add(1)
	case ErrCategoryFormat:
		c.format.Add(1)
	case ErrCategoryAccess:
		c.access.Add(1)
	default:
		c.unknown.Add(1)
	}
}

func (c *errorCounters) snapshot() ErrorStats {
	return ErrorStats{
		Network: c.network.Load(),
		Format:  c.format.Load(),
		Access:  c.access.Load(),
		Unknown: c.unknown.Load(),
	}
}

// monitorBus watches the pipeline bus while grabbing. An error is counted,
// logged and kept as the stream's last error; the monitor then exits.
// There is no reconnection here: recovery is the caller's decision.
func (s *stream) monitorBus(ctx context.Context, pipeline *gst.Pipeline) {
	defer s.wg.Done()

	bus := pipeline.GetPipelineBus()
	startedAt := time.Now()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("aravis: stopping pipeline monitor", "serial", s.serial)
			return
		default:
		}

		// short timeout keeps shutdown responsive
		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			slog.Info("aravis: end of stream received",
				"serial", s.serial,
				"uptime", time.Since(startedAt),
			)
			return

		case gst.MessageError:
			gerr := msg.ParseError()
			category := ClassifyGStreamerError(gerr)
			s.counters.add(category)
			s.lastErr.Store(sdkError("pipeline", gerr, nil))

			slog.Error("aravis: pipeline error",
				"serial", s.serial,
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
				"category", category.String(),
				"uptime", time.Since(startedAt),
			)
			return

		case gst.MessageStateChanged:
			if msg.Source() == pipeline.GetName() {
				old, new := msg.ParseStateChanged()
				slog.Debug("aravis: pipeline state changed", "serial", s.serial, "from", old, "to", new)
			}
		}
	}
}

// popError drains the bus for up to timeout looking for the error that
// explains a failed state change.
func popError(pipeline *gst.Pipeline, timeout time.Duration) *gst.GError {
	bus := pipeline.GetPipelineBus()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		msg := bus.TimedPop(time.Until(deadline))
		if msg == nil {
			return nil
		}
		if msg.Type() == gst.MessageError {
			return msg.ParseError()
		}
	}
	return nil
}

// lastError returns the most recent pipeline error, or nil
func (s *stream) lastError() error {
	if e := s.lastErr.Load(); e != nil {
		return e
	}
	return nil
}
