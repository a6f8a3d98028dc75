package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	mvswrapper "github.com/giim-hf-lab/MVSWrapper"
	"github.com/giim-hf-lab/MVSWrapper/aravis"
	"github.com/giim-hf-lab/MVSWrapper/internal/config"
	"github.com/giim-hf-lab/MVSWrapper/internal/retry"
	"github.com/giim-hf-lab/MVSWrapper/simulator"
)

// Version information
const version = "v0.1.0"

func main() {
	configPath := flag.String("config", "", "YAML configuration file (optional)")
	backend := flag.String("backend", "", "Backend: aravis, simulator (basler, hikvision, huaray need a vendor SDK binding)")
	serials := flag.String("serial", "", "Comma-separated serial numbers (empty = all cameras)")
	transport := flag.String("transport", "", "Transport: any, usb, gige")
	colour := flag.Bool("colour", false, "Capture BGR8 instead of Mono8")
	rotation := flag.String("rotation", "", "Rotation: original, cw90, 180, ccw90")
	latestOnly := flag.Bool("latest-only", false, "Keep only the newest frame in the SDK")
	baseDir := flag.String("base-dir", "", "Simulator image directory (one sub-directory per serial)")
	outputDir := flag.String("output", "", "Directory to save captured frames (optional)")
	outputFormat := flag.String("format", "", "Output format: png, jpeg, msgpack")
	jpegQuality := flag.Int("jpeg-quality", 0, "JPEG quality (1-100, only for jpeg format)")
	maxFrames := flag.Int("max-frames", 0, "Maximum frames to capture per device (0 = unlimited)")
	statsInterval := flag.Int("stats-interval", 10, "Seconds between stats reports")
	skipWarmup := flag.Bool("skip-warmup", false, "Skip FPS stability warmup")
	readArchive := flag.String("read-archive", "", "Print the records of a msgpack archive and exit")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("test-capture %s\n", version)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if *readArchive != "" {
		if err := dumpArchive(*readArchive); err != nil {
			log.Fatalf("Failed to read archive: %v", err)
		}
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		cfg = loaded
	}

	// explicitly set flags override the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Backend = *backend
		case "serial":
			cfg.Serials = splitSerials(*serials)
		case "transport":
			cfg.Transport = *transport
		case "colour":
			cfg.Colour = *colour
		case "rotation":
			cfg.Rotation = *rotation
		case "latest-only":
			cfg.Capture.LatestOnly = *latestOnly
		case "base-dir":
			cfg.Simulator.BaseDir = *baseDir
		case "output":
			cfg.Output.Dir = *outputDir
		case "format":
			cfg.Output.Format = *outputFormat
		case "jpeg-quality":
			cfg.Output.JPEGQuality = *jpegQuality
		case "max-frames":
			cfg.Capture.MaxFrames = *maxFrames
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║            Camera Capture Test - MVSWrapper              ║\n")
	fmt.Printf("║                      Version %s                        ║\n", version)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Backend:       %s\n", cfg.Backend)
	if len(cfg.Serials) > 0 {
		fmt.Printf("  Serials:       %s\n", strings.Join(cfg.Serials, ", "))
	} else {
		fmt.Printf("  Serials:       (all)\n")
	}
	fmt.Printf("  Transport:     %s\n", cfg.TransportValue())
	fmt.Printf("  Format:        %s\n", mvswrapper.TargetFormat(cfg.Colour))
	fmt.Printf("  Rotation:      %s\n", cfg.RotationValue())
	fmt.Printf("  Grab Strategy: %s\n", cfg.GrabStrategy())
	if cfg.Output.Dir != "" {
		fmt.Printf("  Output Dir:    %s (%s)\n", cfg.Output.Dir, cfg.Output.Format)
	} else {
		fmt.Printf("  Output Dir:    (none - frames not saved)\n")
	}
	if cfg.Capture.MaxFrames > 0 {
		fmt.Printf("  Max Frames:    %d per device\n", cfg.Capture.MaxFrames)
	} else {
		fmt.Printf("  Max Frames:    unlimited\n")
	}
	fmt.Printf("\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Printf("\n\nReceived interrupt signal, shutting down...\n")
		cancel()
	}()

	devices, err := findDevices(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to find devices: %v", err)
	}
	if len(devices) == 0 {
		log.Fatalf("No camera found (backend %s, serials %v)", cfg.Backend, cfg.Serials)
	}
	defer func() {
		for _, d := range devices {
			if err := d.Release(); err != nil {
				slog.Error("Error releasing device", "serial", d.Serial(), "error", err)
			}
		}
	}()

	for _, d := range devices {
		if err := startDevice(ctx, d, cfg); err != nil {
			slog.Error("Failed to start device", "serial", d.Serial(), "error", err)
			return
		}
	}

	if !*skipWarmup && cfg.Capture.Warmup > 0 {
		for _, d := range devices {
			runWarmup(ctx, d, cfg)
		}
	}

	var sink frameSink
	if cfg.Output.Dir != "" {
		sink, err = newSink(cfg.Output)
		if err != nil {
			slog.Error("Failed to open output", "error", err)
			return
		}
		defer func() {
			if err := sink.Close(); err != nil {
				slog.Error("Failed to close output", "error", err)
			}
		}()
	}

	fmt.Printf("Starting frame capture...\n")
	fmt.Printf("Press Ctrl+C to stop gracefully\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n\n")

	interval := time.Duration(*statsInterval) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	session := newSession(devices, sink, cfg)
	session.run(ctx, interval)

	slog.Info("Stopping devices...")
	for _, d := range devices {
		if err := d.Close(); err != nil {
			slog.Error("Error closing device", "serial", d.Serial(), "error", err)
		}
	}
	session.printFinal()

	slog.Info("Test capture completed successfully")
}

func splitSerials(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// findDevices discovers devices for the configured backend. The proprietary
// backends take an SDK binding this tool does not link.
func findDevices(ctx context.Context, cfg *config.Config) ([]mvswrapper.Device, error) {
	var out []mvswrapper.Device
	switch cfg.Backend {
	case config.BackendSimulator:
		opts := simulator.Options{
			BaseDir:      cfg.Simulator.BaseDir,
			Colour:       cfg.Colour,
			BaseInterval: time.Duration(cfg.Simulator.BaseIntervalMs) * time.Millisecond,
			OffsetRange:  time.Duration(cfg.Simulator.OffsetRangeMs) * time.Millisecond,
			Random:       cfg.Simulator.Random,
			Seed:         cfg.Simulator.Seed,
		}
		devices, err := simulator.Find(opts, cfg.Serials)
		if err != nil {
			return nil, err
		}
		for _, d := range devices {
			out = append(out, d)
		}

	case config.BackendAravis:
		devices, err := aravis.Find(ctx, nil, cfg.Serials, cfg.TransportValue(), cfg.Colour)
		if err != nil {
			return nil, err
		}
		for _, d := range devices {
			out = append(out, d)
		}

	default:
		return nil, fmt.Errorf("backend %s needs a vendor SDK binding, which this tool does not link (use aravis or simulator)", cfg.Backend)
	}
	return out, nil
}

// startDevice opens (with retries), configures, subscribes and starts d
func startDevice(ctx context.Context, d mvswrapper.Device, cfg *config.Config) error {
	retryCfg := retry.Config{
		MaxRetries:    cfg.Retry.MaxRetries,
		RetryDelay:    cfg.Retry.RetryDelay,
		MaxRetryDelay: cfg.Retry.MaxRetryDelay,
	}
	attempts, err := retry.Do(ctx, "open "+d.Serial(), retryCfg, func(context.Context) error {
		return d.Open()
	})
	if err != nil {
		var sdkErr *mvswrapper.SDKError
		if errors.As(err, &sdkErr) {
			slog.Error("Vendor SDK refused to open the camera",
				"serial", d.Serial(),
				"vendor", sdkErr.Vendor,
				"op", sdkErr.Op,
				"code", sdkErr.Code,
			)
		}
		return err
	}
	slog.Info("Device opened", "serial", d.Serial(), "brand", d.Brand(), "attempts", attempts)

	if err := d.SetRotation(cfg.RotationValue()); err != nil {
		return err
	}

	if setter, ok := d.(mvswrapper.ParameterSetter); ok {
		if cfg.Capture.ExposureTimeUs > 0 && !setter.SetExposureTime(cfg.Capture.ExposureTimeUs) {
			slog.Warn("Exposure time not applied", "serial", d.Serial(), "us", cfg.Capture.ExposureTimeUs)
		}
		if cfg.Capture.Gain > 0 && !setter.SetGain(cfg.Capture.Gain) {
			slog.Warn("Gain not applied", "serial", d.Serial(), "gain", cfg.Capture.Gain)
		}
	}

	if err := d.Subscribe(cfg.SubscribeMode()); err != nil {
		return err
	}
	return d.Start(cfg.GrabStrategy())
}

func runWarmup(ctx context.Context, d mvswrapper.Device, cfg *config.Config) {
	fmt.Printf("Running warmup (%s) on %s to measure frame rate stability...\n", cfg.Capture.Warmup, d.Serial())
	stats, err := mvswrapper.Warmup(ctx, d, cfg.Capture.Warmup, cfg.Capture.PollInterval)
	if stats == nil {
		slog.Warn("Warmup failed", "serial", d.Serial(), "error", err)
		return
	}

	fmt.Printf("\n")
	fmt.Printf("╭─────────────────────────────────────────────────────────╮\n")
	fmt.Printf("│ Warmup Complete: %s\n", d.Serial())
	fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
	fmt.Printf("│ Frames Received:    %6d frames\n", stats.FramesReceived)
	fmt.Printf("│ Duration:           %6.1f seconds\n", stats.Duration.Seconds())
	fmt.Printf("│ FPS Mean:           %6.2f fps\n", stats.FPSMean)
	fmt.Printf("│ FPS StdDev:         %6.2f fps\n", stats.FPSStdDev)
	fmt.Printf("│ FPS Range:          %6.1f - %.1f fps\n", stats.FPSMin, stats.FPSMax)
	fmt.Printf("│ Jitter Mean:        %6.3f s\n", stats.JitterMean)
	fmt.Printf("│ Jitter Max:         %6.3f s\n", stats.JitterMax)
	fmt.Printf("│ Stable:             %6v\n", stats.IsStable)
	fmt.Printf("╰─────────────────────────────────────────────────────────╯\n")
	if err != nil {
		fmt.Printf("\nWARNING: %v\n", err)
	}
	fmt.Printf("\n")
}

// session polls every device and tracks per-device counters
type session struct {
	devices []mvswrapper.Device
	sink    frameSink
	cfg     *config.Config

	startTime time.Time
	received  map[string]int
	saved     int
	failed    int
}

func newSession(devices []mvswrapper.Device, sink frameSink, cfg *config.Config) *session {
	return &session{
		devices:  devices,
		sink:     sink,
		cfg:      cfg,
		received: make(map[string]int, len(devices)),
	}
}

// done reports whether every device reached the frame limit
func (s *session) done() bool {
	if s.cfg.Capture.MaxFrames <= 0 {
		return false
	}
	for _, d := range s.devices {
		if s.received[d.Serial()] < s.cfg.Capture.MaxFrames {
			return false
		}
	}
	return true
}

func (s *session) run(ctx context.Context, statsInterval time.Duration) {
	s.startTime = time.Now()

	poll := time.NewTicker(s.cfg.Capture.PollInterval)
	defer poll.Stop()
	stats := time.NewTicker(statsInterval)
	defer stats.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stats.C:
			s.printStats()
		case <-poll.C:
			for _, d := range s.devices {
				if err := s.drain(d); err != nil {
					slog.Error("Failed to read frame", "serial", d.Serial(), "error", err)
					return
				}
			}
			if s.done() {
				fmt.Printf("\nReached maximum frames (%d), stopping...\n", s.cfg.Capture.MaxFrames)
				return
			}
		}
	}
}

// drain pops every queued frame of d, up to the frame limit
func (s *session) drain(d mvswrapper.Device) error {
	serial := d.Serial()
	for {
		if limit := s.cfg.Capture.MaxFrames; limit > 0 && s.received[serial] >= limit {
			return nil
		}
		frame, err := d.NextImage()
		if err != nil {
			return err
		}
		if !frame.Valid() {
			return nil
		}
		s.received[serial]++

		fmt.Printf("[%s] %-16s | Frame #%-6d | %-14s | Size: %8s | Timestamp: %s\n",
			time.Now().Format("15:04:05"),
			serial,
			frame.ID,
			frame.Content.String(),
			humanize.Bytes(uint64(frame.Content.Size())),
			frame.Timestamp.Format("15:04:05.000"),
		)

		if s.sink == nil || s.received[serial]%s.cfg.Output.Every != 0 {
			continue
		}
		if err := s.sink.Save(d, frame); err != nil {
			slog.Error("Failed to save frame", "serial", serial, "frame_id", frame.ID, "error", err)
			s.failed++
		} else {
			s.saved++
		}
	}
}

func (s *session) printStats() {
	uptime := time.Since(s.startTime)

	fmt.Printf("\n")
	fmt.Printf("╭─────────────────────────────────────────────────────────╮\n")
	fmt.Printf("│ Capture Statistics (Uptime: %s)\n", uptime.Round(time.Second))
	fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
	for _, d := range s.devices {
		n := s.received[d.Serial()]
		fmt.Printf("│ %-16s %6d frames  %6.2f fps  %s\n",
			d.Serial(), n, float64(n)/uptime.Seconds(), d.State())
	}
	if s.sink != nil {
		fmt.Printf("│ Frames Saved:       %6d frames\n", s.saved)
		fmt.Printf("│ Save Failures:      %6d frames\n", s.failed)
		fmt.Printf("│ Bytes Written:      %s\n", humanize.Bytes(s.sink.Bytes()))
	}
	fmt.Printf("╰─────────────────────────────────────────────────────────╯\n")
	fmt.Printf("\n")
}

func (s *session) printFinal() {
	uptime := time.Since(s.startTime)

	fmt.Printf("\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("                     Final Statistics                      \n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("  Total Uptime:       %s\n", uptime.Round(time.Second))
	for _, d := range s.devices {
		n := s.received[d.Serial()]
		fmt.Printf("  %-16s    %d frames (%.2f fps)\n", d.Serial(), n, float64(n)/uptime.Seconds())
	}
	if s.sink != nil {
		fmt.Printf("  Frames Saved:       %d frames\n", s.saved)
		fmt.Printf("  Save Failures:      %d frames\n", s.failed)
		fmt.Printf("  Bytes Written:      %s\n", humanize.Bytes(s.sink.Bytes()))
	}
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("\n")
}
