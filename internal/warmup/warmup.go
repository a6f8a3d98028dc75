package warmup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// PollFunc pops one frame without blocking. ok is false when nothing was queued.
type PollFunc func() (id uint64, ts time.Time, ok bool, err error)

// Poll drains frames through next for the given duration, sleeping pollInterval
// whenever the queue is empty, and returns frame-rate statistics.
//
// Returns an error if:
//   - next fails
//   - fewer than 2 frames arrive
//   - the stream is unstable (see CalculateFPSStats)
//
// Context cancellation ends the window early; the frames collected so far are
// still analysed.
func Poll(ctx context.Context, next PollFunc, duration, pollInterval time.Duration) (*Stats, error) {
	if pollInterval <= 0 {
		pollInterval = time.Millisecond
	}

	slog.Info("warmup: starting",
		"duration", duration,
		"poll_interval", pollInterval,
	)

	start := time.Now()
	frameTimes := make([]time.Time, 0, 64)

	windowCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

collect:
	for {
		for {
			id, ts, ok, err := next()
			if err != nil {
				return nil, fmt.Errorf("warmup: poll failed: %w", err)
			}
			if !ok {
				break
			}
			frameTimes = append(frameTimes, ts)
			slog.Debug("warmup: frame received",
				"frame_id", id,
				"frames_collected", len(frameTimes),
			)
		}

		select {
		case <-windowCtx.Done():
			break collect
		case <-ticker.C:
		}
	}

	elapsed := time.Since(start)
	if len(frameTimes) < 2 {
		return nil, fmt.Errorf(
			"warmup: not enough frames received (got %d, need at least 2)",
			len(frameTimes),
		)
	}

	stats := CalculateFPSStats(frameTimes, elapsed)

	slog.Info("warmup: complete",
		"frames", stats.FramesReceived,
		"duration", stats.Duration,
		"fps_mean", fmt.Sprintf("%.2f", stats.FPSMean),
		"fps_stddev", fmt.Sprintf("%.2f", stats.FPSStdDev),
		"fps_range", fmt.Sprintf("%.1f-%.1f", stats.FPSMin, stats.FPSMax),
		"jitter_mean", fmt.Sprintf("%.3fs", stats.JitterMean),
		"stable", stats.IsStable,
	)

	if !stats.IsStable {
		return stats, fmt.Errorf(
			"warmup: frame rate unstable (mean=%.2f Hz, stddev=%.2f, jitter=%.3fs)",
			stats.FPSMean,
			stats.FPSStdDev,
			stats.JitterMean,
		)
	}
	return stats, nil
}
