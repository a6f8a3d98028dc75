package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	mvswrapper "github.com/giim-hf-lab/MVSWrapper"
	"github.com/giim-hf-lab/MVSWrapper/internal/archive"
	"github.com/giim-hf-lab/MVSWrapper/internal/config"
)

func TestSplitSerials(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"A", []string{"A"}},
		{"A,B", []string{"A", "B"}},
		{" A , ,B ", []string{"A", "B"}},
	}
	for _, tt := range tests {
		got := splitSerials(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitSerials(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitSerials(%q) = %v, want %v", tt.in, got, tt.want)
			}
		}
	}
}

// stubDevice satisfies mvswrapper.Device for the sinks, which only read
// Serial and Rotation
type stubDevice struct {
	mvswrapper.Device
	serial string
}

func (d stubDevice) Serial() string                         { return d.serial }
func (d stubDevice) Rotation() mvswrapper.RotationDirection { return mvswrapper.Rotation180 }

func testFrame(id uint64) mvswrapper.Frame {
	img := mvswrapper.NewImage(4, 3, mvswrapper.BGR8)
	for i := range img.Pix {
		img.Pix[i] = byte(i)
	}
	return mvswrapper.Frame{ID: id, Timestamp: time.Now(), Content: img, TraceID: "trace"}
}

func TestArchiveSink(t *testing.T) {
	dir := t.TempDir()
	sink, err := newSink(config.OutputConfig{Dir: dir, Format: config.FormatMsgpack})
	if err != nil {
		t.Fatal(err)
	}

	d := stubDevice{serial: "SIM-A"}
	for id := uint64(1); id <= 3; id++ {
		if err := sink.Save(d, testFrame(id)); err != nil {
			t.Fatal(err)
		}
	}
	if sink.Bytes() == 0 {
		t.Error("Bytes() = 0 after three records")
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "capture_*.mpk"))
	if len(matches) != 1 {
		t.Fatalf("archives = %v, want one", matches)
	}
	file, err := os.Open(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	r := archive.NewReader(file)
	for id := uint64(1); id <= 3; id++ {
		rec, err := r.Next()
		if err != nil {
			t.Fatalf("record %d: %v", id, err)
		}
		if rec.FrameID != id || rec.Serial != "SIM-A" || rec.Rotation != "180" {
			t.Errorf("record = %+v", rec)
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("after last record err = %v, want io.EOF", err)
	}

	if err := dumpArchive(matches[0]); err != nil {
		t.Errorf("dumpArchive() = %v", err)
	}
}

func TestImageSink(t *testing.T) {
	tests := []struct {
		format string
		ext    string
	}{
		{config.FormatPNG, ".png"},
		{config.FormatJPEG, ".jpeg"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			dir := t.TempDir()
			sink, err := newSink(config.OutputConfig{Dir: dir, Format: tt.format, JPEGQuality: 90})
			if err != nil {
				t.Fatal(err)
			}
			if err := sink.Save(stubDevice{serial: "SIM-A"}, testFrame(7)); err != nil {
				t.Fatal(err)
			}

			matches, _ := filepath.Glob(filepath.Join(dir, "SIM-A_frame_000007_*"+tt.ext))
			if len(matches) != 1 {
				t.Fatalf("files = %v, want one %s", matches, tt.ext)
			}
			if sink.Bytes() == 0 {
				t.Error("Bytes() = 0 after a save")
			}
		})
	}
}
