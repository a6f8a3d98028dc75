package simulator

import (
	"image"
	"image/color"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	mvswrapper "github.com/giim-hf-lab/MVSWrapper"
)

// writeCamera creates dir/serial with one solid grey image per level
func writeCamera(t *testing.T, dir, serial string, levels ...uint8) {
	t.Helper()
	camDir := filepath.Join(dir, serial)
	if err := os.MkdirAll(camDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for i, level := range levels {
		img := imaging.New(4, 2, color.NRGBA{R: level, G: level, B: level, A: 0xff})
		name := filepath.Join(camDir, string(rune('a'+i))+".png")
		if err := imaging.Save(img, name); err != nil {
			t.Fatal(err)
		}
	}
}

func mustNoErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func startSubscribed(t *testing.T, d *Device) {
	t.Helper()
	mustNoErr(t, d.Open())
	mustNoErr(t, d.Subscribe(mvswrapper.SubscribeExclusive))
	mustNoErr(t, d.Start(mvswrapper.GrabOneByOne))
	t.Cleanup(func() { _ = d.Release() })
}

func drain(d *Device) []mvswrapper.Frame {
	var out []mvswrapper.Frame
	for {
		f, err := d.NextImage()
		if err != nil || !f.Valid() {
			return out
		}
		out = append(out, f)
	}
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	writeCamera(t, dir, "SIM-B", 10)
	writeCamera(t, dir, "SIM-A", 20, 30)
	if err := os.MkdirAll(filepath.Join(dir, "SIM-EMPTY"), 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		serials []string
		want    []string
	}{
		{"all sub-directories in name order", nil, []string{"SIM-A", "SIM-B"}},
		{"request order kept", []string{"SIM-B", "SIM-A"}, []string{"SIM-B", "SIM-A"}},
		{"missing serial omitted", []string{"SN-404", "SIM-A"}, []string{"SIM-A"}},
		{"duplicates dropped", []string{"SIM-A", "SIM-A"}, []string{"SIM-A"}},
		{"empty directory omitted", []string{"SIM-EMPTY"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devices, err := Find(DefaultOptions(dir), tt.serials)
			mustNoErr(t, err)

			var got []string
			for _, d := range devices {
				got = append(got, d.Serial())
				if d.Brand() != mvswrapper.BrandUnknown {
					t.Errorf("Brand() = %v, want unknown", d.Brand())
				}
			}
			if len(got) != len(tt.want) {
				t.Fatalf("serials = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("serials = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestFindOptionsValidation(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		opts Options
	}{
		{"no base dir", Options{BaseInterval: 50 * time.Millisecond}},
		{"zero interval", Options{BaseDir: dir}},
		{"negative offset", Options{BaseDir: dir, BaseInterval: 50 * time.Millisecond, OffsetRange: -time.Millisecond}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Find(tt.opts, []string{"SIM-A"}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPoolFiltersExtensions(t *testing.T) {
	dir := t.TempDir()
	writeCamera(t, dir, "SIM-A", 10)

	camDir := filepath.Join(dir, "SIM-A")
	upper := imaging.New(2, 2, color.NRGBA{A: 0xff})
	mustNoErr(t, imaging.Save(upper, filepath.Join(camDir, "upper.PNG")))
	mustNoErr(t, imaging.Save(upper, filepath.Join(camDir, "bitmap.bmp")))
	mustNoErr(t, os.WriteFile(filepath.Join(camDir, "notes.txt"), []byte("not an image"), 0o644))
	mustNoErr(t, os.WriteFile(filepath.Join(camDir, "broken.jpg"), []byte("not a jpeg"), 0o644))

	devices, err := Find(DefaultOptions(dir), []string{"SIM-A"})
	mustNoErr(t, err)
	if len(devices) != 1 {
		t.Fatalf("found %d devices, want 1", len(devices))
	}
	if got := devices[0].PoolSize(); got != 3 {
		t.Errorf("PoolSize() = %d, want 3", got)
	}
}

func TestFrameRate(t *testing.T) {
	dir := t.TempDir()
	writeCamera(t, dir, "SIM-A", 10, 20, 30)

	devices, err := Find(DefaultOptions(dir), []string{"SIM-A"})
	mustNoErr(t, err)
	d := devices[0]
	startSubscribed(t, d)

	time.Sleep(500 * time.Millisecond)
	mustNoErr(t, d.Stop())

	frames := drain(d)
	if n := len(frames); n < 9 || n > 11 {
		t.Errorf("got %d frames in 500ms at 50ms, want 10 +/- 1", n)
	}
	for i, f := range frames {
		if f.ID != uint64(i+1) {
			t.Fatalf("frame %d has ID %d, want %d", i, f.ID, i+1)
		}
	}
}

func TestStopIsPrompt(t *testing.T) {
	dir := t.TempDir()
	writeCamera(t, dir, "SIM-A", 10)

	opts := DefaultOptions(dir)
	opts.BaseInterval = time.Second
	devices, err := Find(opts, []string{"SIM-A"})
	mustNoErr(t, err)
	d := devices[0]
	startSubscribed(t, d)

	begin := time.Now()
	mustNoErr(t, d.Stop())
	if elapsed := time.Since(begin); elapsed > 10*time.Millisecond {
		t.Errorf("Stop() took %v, want at most 10ms", elapsed)
	}
	if d.State() != mvswrapper.StateOpen {
		t.Errorf("State() = %v, want open", d.State())
	}
}

func TestSequentialPlayback(t *testing.T) {
	dir := t.TempDir()
	writeCamera(t, dir, "SIM-A", 10, 20, 30)

	opts := DefaultOptions(dir)
	opts.BaseInterval = 5 * time.Millisecond
	devices, err := Find(opts, []string{"SIM-A"})
	mustNoErr(t, err)
	d := devices[0]
	startSubscribed(t, d)

	deadline := time.Now().Add(2 * time.Second)
	for d.QueueStats().Pending < 6 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	mustNoErr(t, d.Stop())

	frames := drain(d)
	if len(frames) < 6 {
		t.Fatalf("got %d frames, want at least 6", len(frames))
	}
	want := []uint8{10, 20, 30, 10, 20, 30}
	for i, level := range want {
		img := frames[i].Content
		if img.Format != mvswrapper.Mono8 {
			t.Fatalf("format = %v, want Mono8", img.Format)
		}
		if img.Pix[0] != level {
			t.Errorf("frame %d level = %d, want %d", i, img.Pix[0], level)
		}
	}
}

func TestRandomPlaybackIsSeeded(t *testing.T) {
	dir := t.TempDir()
	writeCamera(t, dir, "SIM-A", 10, 20, 30, 40)

	sequence := func() []uint8 {
		opts := DefaultOptions(dir)
		opts.Random = true
		opts.Seed = 42
		devices, err := Find(opts, []string{"SIM-A"})
		mustNoErr(t, err)

		g := devices[0].gen
		out := make([]uint8, 16)
		for i := range out {
			out[i] = g.pick().Pix[0]
		}
		return out
	}

	a, b := sequence(), sequence()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed gave different sequences: %v vs %v", a, b)
		}
	}
}

func newTestRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestIntervalJitter(t *testing.T) {
	g := &generator{
		base:     50 * time.Millisecond,
		offsetMs: 10,
		rng:      newTestRand(),
	}
	for i := 0; i < 1000; i++ {
		d := g.interval()
		if d < 40*time.Millisecond || d > 60*time.Millisecond {
			t.Fatalf("interval %v outside [40ms, 60ms]", d)
		}
		if d%time.Millisecond != 0 {
			t.Fatalf("interval %v is not whole milliseconds", d)
		}
	}

	g.offsetMs = 80
	for i := 0; i < 1000; i++ {
		if d := g.interval(); d < 0 {
			t.Fatalf("interval %v is negative", d)
		}
	}
}

func TestColourRotatedFrames(t *testing.T) {
	dir := t.TempDir()
	camDir := filepath.Join(dir, "SIM-C")
	mustNoErr(t, os.MkdirAll(camDir, 0o755))

	src := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	src.Set(0, 0, color.NRGBA{R: 255, A: 255})
	mustNoErr(t, imaging.Save(src, filepath.Join(camDir, "frame.png")))

	opts := DefaultOptions(dir)
	opts.Colour = true
	opts.BaseInterval = 5 * time.Millisecond
	devices, err := Find(opts, nil)
	mustNoErr(t, err)
	d := devices[0]
	mustNoErr(t, d.SetRotation(mvswrapper.RotationClockwise90))
	startSubscribed(t, d)

	var f mvswrapper.Frame
	deadline := time.Now().Add(2 * time.Second)
	for !f.Valid() && time.Now().Before(deadline) {
		f, err = d.NextImage()
		mustNoErr(t, err)
		time.Sleep(time.Millisecond)
	}
	if !f.Valid() {
		t.Fatal("no frame captured")
	}

	img := f.Content
	if img.Format != mvswrapper.BGR8 || img.Width != 2 || img.Height != 4 {
		t.Fatalf("frame = %s, want 2x4 BGR8", img)
	}
	// top-left red pixel lands top-right after a clockwise turn
	i := 1 * 3
	if got := img.Pix[i : i+3]; got[0] != 0 || got[1] != 0 || got[2] != 255 {
		t.Errorf("pixel (1,0) = %v, want BGR [0 0 255]", got)
	}
}

func TestUnsubscribedGrabbingQueuesNothing(t *testing.T) {
	dir := t.TempDir()
	writeCamera(t, dir, "SIM-A", 10)

	opts := DefaultOptions(dir)
	opts.BaseInterval = 5 * time.Millisecond
	devices, err := Find(opts, []string{"SIM-A"})
	mustNoErr(t, err)
	d := devices[0]
	t.Cleanup(func() { _ = d.Release() })

	mustNoErr(t, d.Open())
	mustNoErr(t, d.Start(mvswrapper.GrabOneByOne))
	time.Sleep(50 * time.Millisecond)
	mustNoErr(t, d.Stop())

	if n := d.QueueStats().Pending; n != 0 {
		t.Errorf("pending = %d, want 0 without a subscription", n)
	}
}
