// Package simulator provides a Device that plays back still images from a
// directory per serial number, at a jittered interval, without hardware.
package simulator

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"

	mvswrapper "github.com/giim-hf-lab/MVSWrapper"
	"github.com/giim-hf-lab/MVSWrapper/internal/capture"
)

const component = "simulator"

// acceptedExtensions are matched case-insensitively
var acceptedExtensions = map[string]bool{
	".bmp": true,
	".jpg": true,
	".png": true,
}

// Options configures simulated cameras
type Options struct {
	// BaseDir holds one sub-directory of images per serial
	BaseDir string
	// Colour selects BGR8 output instead of Mono8
	Colour bool
	// BaseInterval is the mean time between frames
	BaseInterval time.Duration
	// OffsetRange is the maximum jitter; each interval is
	// BaseInterval + uniform[-OffsetRange, OffsetRange], in whole milliseconds
	OffsetRange time.Duration
	// Random picks pool images uniformly at random instead of in order
	Random bool
	// Seed makes jitter and selection reproducible; 0 seeds from the clock
	Seed uint64
}

// DefaultOptions returns options for 20 FPS playback without jitter
func DefaultOptions(baseDir string) Options {
	return Options{
		BaseDir:      baseDir,
		BaseInterval: 50 * time.Millisecond,
	}
}

func (o Options) validate() error {
	if o.BaseDir == "" {
		return fmt.Errorf("simulator: base directory is required")
	}
	if o.BaseInterval < time.Millisecond {
		return fmt.Errorf("simulator: base interval %v must be at least 1ms", o.BaseInterval)
	}
	if o.OffsetRange < 0 {
		return fmt.Errorf("simulator: offset range %v must not be negative", o.OffsetRange)
	}
	return nil
}

// Device is a simulated camera
type Device struct {
	*capture.Device
	gen *generator
}

var _ mvswrapper.Device = (*Device)(nil)

// PoolSize returns the number of images played back
func (d *Device) PoolSize() int {
	return len(d.gen.pool)
}

// Find loads one simulated camera per serial from BaseDir/<serial>.
//
// With no serials every sub-directory of BaseDir becomes a camera, in name
// order. Serials whose directory is missing are omitted, the same way
// hardware discovery omits unknown serials. A directory that exists but holds
// no decodable .bmp, .jpg or .png image is omitted too, since the camera
// could never produce a frame.
func Find(opts Options, serials []string) ([]*Device, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	if len(serials) == 0 {
		entries, err := os.ReadDir(opts.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("simulator: list %s: %w", opts.BaseDir, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				serials = append(serials, e.Name())
			}
		}
		sort.Strings(serials)
	}

	target := mvswrapper.TargetFormat(opts.Colour)
	seen := make(map[string]bool, len(serials))
	devices := make([]*Device, 0, len(serials))

	for i, serial := range serials {
		if seen[serial] {
			continue
		}
		seen[serial] = true

		dir := filepath.Join(opts.BaseDir, serial)
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			slog.Debug("simulator: serial not found", "serial", serial, "dir", dir)
			continue
		}

		pool, err := loadPool(dir, target)
		if err != nil {
			return nil, err
		}
		if len(pool) == 0 {
			slog.Warn("simulator: no images for serial, skipping", "serial", serial, "dir", dir)
			continue
		}

		seed := opts.Seed
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		gen := &generator{
			pool:     pool,
			base:     opts.BaseInterval.Truncate(time.Millisecond),
			offsetMs: int64(opts.OffsetRange / time.Millisecond),
			random:   opts.Random,
			rng:      rand.New(rand.NewPCG(seed, uint64(i))),
		}
		devices = append(devices, &Device{
			Device: capture.NewDevice(capture.Options{
				Component: component,
				Serial:    serial,
				Brand:     mvswrapper.BrandUnknown,
				Colour:    opts.Colour,
				Driver:    gen,
			}),
			gen: gen,
		})

		slog.Info("simulator: camera loaded", "serial", serial, "images", len(pool))
	}
	return devices, nil
}

// loadPool decodes every accepted image in dir, in name order, into target
// format. Files that fail to decode are skipped.
func loadPool(dir string, target mvswrapper.PixelFormat) ([]*mvswrapper.Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("simulator: list %s: %w", dir, err)
	}

	var pool []*mvswrapper.Image
	for _, e := range entries {
		if !e.Type().IsRegular() || !acceptedExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		path := filepath.Join(dir, e.Name())
		img, err := imaging.Open(path)
		if err != nil {
			slog.Warn("simulator: cannot decode image, skipping", "path", path, "error", err)
			continue
		}
		pool = append(pool, mvswrapper.FromImage(img, target))
	}
	return pool, nil
}

// generator is the simulator's capture.Driver: a goroutine that waits a
// jittered interval, picks a pool image and hands it to the listener.
type generator struct {
	pool     []*mvswrapper.Image
	base     time.Duration
	offsetMs int64
	random   bool

	// rng and next are only touched by the running loop; Stop joins it
	// before another Start.
	rng  *rand.Rand
	next int

	listener atomic.Pointer[capture.Listener]

	stop chan struct{}
	wg   sync.WaitGroup
}

func (g *generator) Open() error  { return nil }
func (g *generator) Close() error { return nil }

// StartGrabbing launches the playback loop. The simulator always behaves as
// one-by-one, whatever the strategy.
func (g *generator) StartGrabbing(mvswrapper.GrabStrategy) error {
	g.stop = make(chan struct{})
	g.wg.Add(1)
	go g.run(g.stop)
	return nil
}

// StopGrabbing signals the loop and waits for it to exit
func (g *generator) StopGrabbing() error {
	if g.stop == nil {
		return nil
	}
	close(g.stop)
	g.wg.Wait()
	g.stop = nil
	return nil
}

func (g *generator) Attach(l *capture.Listener, _ mvswrapper.SubscribeMode) error {
	g.listener.Store(l)
	return nil
}

func (g *generator) Detach() error {
	g.listener.Store(nil)
	return nil
}

func (g *generator) Release() error {
	g.pool = nil
	return nil
}

// interval returns base + uniform[-offset, offset] ms, never negative
func (g *generator) interval() time.Duration {
	d := g.base
	if g.offsetMs > 0 {
		d += time.Duration(g.rng.Int64N(2*g.offsetMs+1)-g.offsetMs) * time.Millisecond
	}
	return max(d, 0)
}

func (g *generator) pick() *mvswrapper.Image {
	var i int
	if g.random {
		i = g.rng.IntN(len(g.pool))
	} else {
		i = g.next
		g.next = (g.next + 1) % len(g.pool)
	}
	return g.pool[i]
}

func (g *generator) run(stop <-chan struct{}) {
	defer g.wg.Done()

	// deadlines accumulate so delivery time does not drift the schedule
	deadline := time.Now()
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		deadline = deadline.Add(g.interval())
		timer.Reset(time.Until(deadline))

		select {
		case <-stop:
			return
		case <-timer.C:
		}

		img := g.pick()
		if l := g.listener.Load(); l != nil {
			// Rotate copies, so the pool image is never handed out
			l.Handle(func(mvswrapper.PixelFormat) (*mvswrapper.Image, error) {
				return img, nil
			})
		}
	}
}
