package warmup

import (
	"math"
	"time"
)

const (
	// fpsStabilityThreshold is the maximum FPS standard deviation as a fraction of mean FPS.
	// Example: 10 FPS mean → stable if stddev < 1.5 FPS
	fpsStabilityThreshold = 0.15

	// jitterStabilityThreshold is the maximum mean jitter as a fraction of the expected interval.
	// Example: 10 FPS (100ms interval) → stable if jitter < 20ms
	jitterStabilityThreshold = 0.20
)

// Stats contains frame-rate statistics over a polling window
type Stats struct {
	FramesReceived int           // Number of frames observed
	Duration       time.Duration // Observation window
	FPSMean        float64       // Frames over window
	FPSStdDev      float64       // Standard deviation of instantaneous FPS around FPSMean
	FPSMin         float64       // Minimum instantaneous FPS
	FPSMax         float64       // Maximum instantaneous FPS
	IsStable       bool          // FPS stddev < 15% of mean AND jitter < 20% of interval
	JitterMean     float64       // Mean deviation from the expected interval (seconds)
	JitterStdDev   float64       // Standard deviation of jitter (seconds)
	JitterMax      float64       // Maximum jitter observed (seconds)
}

// CalculateFPSStats derives frame-rate statistics from frame timestamps.
//
// Instantaneous FPS is measured per positive interval. Jitter is the absolute
// difference between each interval and the interval implied by the mean FPS.
// Fewer than two frames yield an unstable result with zeroed spreads.
func CalculateFPSStats(frameTimes []time.Time, totalDuration time.Duration) *Stats {
	n := len(frameTimes)
	stats := &Stats{FramesReceived: n, Duration: totalDuration}
	if n == 0 || totalDuration <= 0 {
		return stats
	}
	stats.FPSMean = float64(n) / totalDuration.Seconds()

	intervals := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		intervals = append(intervals, frameTimes[i].Sub(frameTimes[i-1]).Seconds())
	}

	instant := make([]float64, 0, len(intervals))
	for _, iv := range intervals {
		if iv > 0 {
			instant = append(instant, 1.0/iv)
		}
	}
	if len(instant) == 0 {
		return stats
	}

	stats.FPSMin, stats.FPSMax = instant[0], instant[0]
	for _, fps := range instant {
		stats.FPSMin = math.Min(stats.FPSMin, fps)
		stats.FPSMax = math.Max(stats.FPSMax, fps)
	}
	stats.FPSStdDev = spread(instant, stats.FPSMean)

	expected := 1.0 / stats.FPSMean
	jitters := make([]float64, 0, len(intervals))
	for _, iv := range intervals {
		j := math.Abs(iv - expected)
		jitters = append(jitters, j)
		stats.JitterMax = math.Max(stats.JitterMax, j)
	}
	stats.JitterMean = mean(jitters)
	stats.JitterStdDev = spread(jitters, stats.JitterMean)

	stats.IsStable = stats.FPSStdDev < stats.FPSMean*fpsStabilityThreshold &&
		stats.JitterMean < expected*jitterStabilityThreshold
	return stats
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// spread is the root mean square deviation of values around center
func spread(values []float64, center float64) float64 {
	var sumSquares float64
	for _, v := range values {
		d := v - center
		sumSquares += d * d
	}
	return math.Sqrt(sumSquares / float64(len(values)))
}
