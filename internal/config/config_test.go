package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mvswrapper "github.com/giim-hf-lab/MVSWrapper"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
backend: hikvision
serials: [K1, K2]
transport: gige
colour: true
rotation: ccw90
capture:
  latest_only: true
  warmup: 3s
output:
  dir: /tmp/frames
  format: msgpack
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Backend != BackendHikVision || len(cfg.Serials) != 2 || !cfg.Colour {
		t.Errorf("unexpected top level %+v", cfg)
	}
	if cfg.TransportValue() != mvswrapper.TransportGigE {
		t.Errorf("transport %v", cfg.TransportValue())
	}
	if cfg.RotationValue() != mvswrapper.RotationCounterClockwise90 {
		t.Errorf("rotation %v", cfg.RotationValue())
	}
	if cfg.GrabStrategy() != mvswrapper.GrabLatestOnly {
		t.Errorf("strategy %v", cfg.GrabStrategy())
	}
	if cfg.Capture.Warmup != 3*time.Second {
		t.Errorf("warmup %v", cfg.Capture.Warmup)
	}
	// defaults survive partial files
	if cfg.Capture.PollInterval != 5*time.Millisecond || cfg.Retry.MaxRetries != 3 {
		t.Errorf("defaults lost: poll %v retries %d", cfg.Capture.PollInterval, cfg.Retry.MaxRetries)
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Backend = "gopro"
	cfg.Transport = "firewire"
	cfg.Rotation = "45"
	cfg.Output.Format = "gif"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() should fail")
	}
	for _, want := range []string{"backend", "transport", "rotation", "output.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidate_Simulator(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"no base dir", func(c *Config) { c.Simulator.BaseDir = "" }, true},
		{"zero interval", func(c *Config) { c.Simulator.BaseIntervalMs = 0 }, true},
		{"offset too large", func(c *Config) { c.Simulator.OffsetRangeMs = 50 }, true},
		{"offset ok", func(c *Config) { c.Simulator.OffsetRangeMs = 10 }, false},
		{"jpeg quality", func(c *Config) { c.Output.Format = FormatJPEG; c.Output.JPEGQuality = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
