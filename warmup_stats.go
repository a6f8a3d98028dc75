package mvswrapper

import (
	"context"
	"fmt"
	"time"

	"github.com/giim-hf-lab/MVSWrapper/internal/warmup"
)

// WarmupStats contains frame-rate statistics collected by Warmup
type WarmupStats = warmup.Stats

// CalculateFPSStats calculates FPS and jitter statistics from frame timestamps.
//
// A sequence is stable when the FPS standard deviation is below 15% of the
// mean and the mean jitter is below 20% of the expected interval.
//
// Example: 20 FPS mean → stable if stddev < 3 AND jitter < 10ms
func CalculateFPSStats(frameTimes []time.Time, totalDuration time.Duration) *WarmupStats {
	return warmup.CalculateFPSStats(frameTimes, totalDuration)
}

// Warmup polls d for the given duration, discarding frames, and reports
// whether the device delivers a stable frame rate. The device must already be
// subscribed and grabbing.
//
// When the rate is unstable the statistics are returned together with the
// error so callers can log them.
func Warmup(ctx context.Context, d Device, duration, pollInterval time.Duration) (*WarmupStats, error) {
	if d.State() != StateGrabbing || !d.Subscribed() {
		return nil, fmt.Errorf("%w: warmup needs a grabbing, subscribed device (state %s, subscribed %t)",
			ErrInvalidState, d.State(), d.Subscribed())
	}
	return warmup.Poll(ctx, func() (uint64, time.Time, bool, error) {
		f, err := d.NextImage()
		if err != nil {
			return 0, time.Time{}, false, err
		}
		return f.ID, f.Timestamp, f.Valid(), nil
	}, duration, pollInterval)
}
