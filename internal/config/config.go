// Package config loads the YAML configuration of the capture tools.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	mvswrapper "github.com/giim-hf-lab/MVSWrapper"
)

// Backend names accepted in configuration
const (
	BackendBasler    = "basler"
	BackendHikVision = "hikvision"
	BackendHuaray    = "huaray"
	BackendAravis    = "aravis"
	BackendSimulator = "simulator"
)

// Output formats accepted in configuration
const (
	FormatPNG     = "png"
	FormatJPEG    = "jpeg"
	FormatMsgpack = "msgpack"
)

// Config represents a capture session
type Config struct {
	Backend   string          `yaml:"backend"`
	Serials   []string        `yaml:"serials"`
	Transport string          `yaml:"transport"` // any, usb, gige
	Colour    bool            `yaml:"colour"`
	Rotation  string          `yaml:"rotation"` // original, cw90, 180, ccw90
	Capture   CaptureConfig   `yaml:"capture"`
	Simulator SimulatorConfig `yaml:"simulator"`
	Output    OutputConfig    `yaml:"output"`
	Retry     RetryConfig     `yaml:"retry"`
}

// CaptureConfig contains acquisition settings
type CaptureConfig struct {
	LatestOnly     bool          `yaml:"latest_only"`
	Append         bool          `yaml:"append"` // subscribe without replacing other listeners
	Warmup         time.Duration `yaml:"warmup"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	MaxFrames      int           `yaml:"max_frames"` // 0 means until interrupted
	ExposureTimeUs float64       `yaml:"exposure_time_us"`
	Gain           float64       `yaml:"gain"`
}

// SimulatorConfig contains playback settings
type SimulatorConfig struct {
	BaseDir        string `yaml:"base_dir"`
	BaseIntervalMs int    `yaml:"base_interval_ms"`
	OffsetRangeMs  int    `yaml:"offset_range_ms"`
	Random         bool   `yaml:"random"`
	Seed           uint64 `yaml:"seed"`
}

// OutputConfig controls where frames are written
type OutputConfig struct {
	Dir         string `yaml:"dir"` // empty disables saving
	Format      string `yaml:"format"`
	JPEGQuality int    `yaml:"jpeg_quality"`
	Every       int    `yaml:"every"` // save every Nth frame
}

// RetryConfig controls open retries in the tools
type RetryConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay"`
}

// Default returns a configuration for the simulator with sensible defaults
func Default() *Config {
	return &Config{
		Backend:   BackendSimulator,
		Transport: "any",
		Rotation:  "original",
		Capture: CaptureConfig{
			Warmup:       2 * time.Second,
			PollInterval: 5 * time.Millisecond,
		},
		Simulator: SimulatorConfig{
			BaseDir:        "testdata/cameras",
			BaseIntervalMs: 50,
		},
		Output: OutputConfig{
			Format:      FormatPNG,
			JPEGQuality: 90,
			Every:       1,
		},
		Retry: RetryConfig{
			MaxRetries:    3,
			RetryDelay:    500 * time.Millisecond,
			MaxRetryDelay: 5 * time.Second,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration and reports every problem found
func (c *Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendBasler, BackendHikVision, BackendHuaray, BackendAravis, BackendSimulator:
	default:
		errs = append(errs, fmt.Errorf("backend %q unknown (basler, hikvision, huaray, aravis, simulator)", c.Backend))
	}

	if _, err := mvswrapper.ParseTransport(c.Transport); err != nil {
		errs = append(errs, fmt.Errorf("transport %q: %w", c.Transport, err))
	}
	if _, err := mvswrapper.ParseRotation(c.Rotation); err != nil {
		errs = append(errs, fmt.Errorf("rotation %q: %w", c.Rotation, err))
	}

	if c.Capture.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("capture.poll_interval must be > 0"))
	}
	if c.Capture.Warmup < 0 {
		errs = append(errs, fmt.Errorf("capture.warmup must be >= 0"))
	}
	if c.Capture.MaxFrames < 0 {
		errs = append(errs, fmt.Errorf("capture.max_frames must be >= 0"))
	}

	if c.Backend == BackendSimulator {
		if c.Simulator.BaseDir == "" {
			errs = append(errs, fmt.Errorf("simulator.base_dir is required"))
		}
		if c.Simulator.BaseIntervalMs <= 0 {
			errs = append(errs, fmt.Errorf("simulator.base_interval_ms must be > 0"))
		}
		if c.Simulator.OffsetRangeMs < 0 || c.Simulator.OffsetRangeMs >= c.Simulator.BaseIntervalMs {
			errs = append(errs, fmt.Errorf("simulator.offset_range_ms must be in [0, base_interval_ms)"))
		}
	}

	switch c.Output.Format {
	case FormatPNG, FormatJPEG, FormatMsgpack:
	default:
		errs = append(errs, fmt.Errorf("output.format %q unknown (png, jpeg, msgpack)", c.Output.Format))
	}
	if c.Output.Format == FormatJPEG && (c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100) {
		errs = append(errs, fmt.Errorf("output.jpeg_quality must be 1-100"))
	}
	if c.Output.Every <= 0 {
		c.Output.Every = 1
	}

	if c.Retry.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("retry.max_retries must be >= 0"))
	}

	return errors.Join(errs...)
}

// TransportValue returns the parsed transport. Call after Validate.
func (c *Config) TransportValue() mvswrapper.Transport {
	t, _ := mvswrapper.ParseTransport(c.Transport)
	return t
}

// RotationValue returns the parsed rotation. Call after Validate.
func (c *Config) RotationValue() mvswrapper.RotationDirection {
	r, _ := mvswrapper.ParseRotation(c.Rotation)
	return r
}

// GrabStrategy maps capture.latest_only to a grab strategy
func (c *Config) GrabStrategy() mvswrapper.GrabStrategy {
	if c.Capture.LatestOnly {
		return mvswrapper.GrabLatestOnly
	}
	return mvswrapper.GrabOneByOne
}

// SubscribeMode maps capture.append to a subscribe mode
func (c *Config) SubscribeMode() mvswrapper.SubscribeMode {
	if c.Capture.Append {
		return mvswrapper.SubscribeAppend
	}
	return mvswrapper.SubscribeExclusive
}
