package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"

	mvswrapper "github.com/giim-hf-lab/MVSWrapper"
	"github.com/giim-hf-lab/MVSWrapper/internal/archive"
	"github.com/giim-hf-lab/MVSWrapper/internal/config"
)

// frameSink persists captured frames
type frameSink interface {
	Save(d mvswrapper.Device, f mvswrapper.Frame) error
	Close() error
	// Bytes reports how much has been written so far
	Bytes() uint64
}

func newSink(out config.OutputConfig) (frameSink, error) {
	if err := os.MkdirAll(out.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if out.Format == config.FormatMsgpack {
		return newArchiveSink(out.Dir)
	}
	return &imageSink{dir: out.Dir, format: out.Format, quality: out.JPEGQuality}, nil
}

// imageSink writes one PNG or JPEG file per frame
type imageSink struct {
	dir     string
	format  string
	quality int
	bytes   uint64
}

func (s *imageSink) Save(d mvswrapper.Device, f mvswrapper.Frame) error {
	name := fmt.Sprintf("%s_frame_%06d_%s.%s",
		d.Serial(), f.ID, f.Timestamp.Format("20060102_150405.000"), s.format)
	path := filepath.Join(s.dir, name)

	if err := imaging.Save(f.Content, path, imaging.JPEGQuality(s.quality)); err != nil {
		return fmt.Errorf("failed to encode %s: %w", s.format, err)
	}
	if info, err := os.Stat(path); err == nil {
		s.bytes += uint64(info.Size())
	}
	return nil
}

func (s *imageSink) Close() error  { return nil }
func (s *imageSink) Bytes() uint64 { return s.bytes }

// archiveSink appends every frame to a single msgpack archive
type archiveSink struct {
	file *os.File
	w    *archive.Writer
}

func newArchiveSink(dir string) (*archiveSink, error) {
	path := filepath.Join(dir, fmt.Sprintf("capture_%s.mpk", time.Now().Format("20060102_150405")))
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	return &archiveSink{file: file, w: archive.NewWriter(file)}, nil
}

func (s *archiveSink) Save(d mvswrapper.Device, f mvswrapper.Frame) error {
	rec, err := archive.NewRecord(d.Serial(), d.Rotation(), f)
	if err != nil {
		return err
	}
	return s.w.Write(rec)
}

func (s *archiveSink) Close() error {
	if err := s.w.Flush(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

func (s *archiveSink) Bytes() uint64 { return uint64(s.w.Bytes()) }

// dumpArchive prints one line per record of an archive file
func dumpArchive(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	r := archive.NewReader(file)
	var count int
	var total uint64
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("record %d: %w", count+1, err)
		}
		img, err := rec.Image()
		if err != nil {
			return err
		}

		count++
		total += uint64(len(rec.Pix))
		fmt.Printf("%-16s | Frame #%-6d | %-14s | %-8s | %8s | %s\n",
			rec.Serial,
			rec.FrameID,
			img.String(),
			rec.Rotation,
			humanize.Bytes(uint64(len(rec.Pix))),
			time.Unix(0, rec.TimestampNs).Format("15:04:05.000"),
		)
	}
	fmt.Printf("\n%d records, %s of pixels\n", count, humanize.Bytes(total))
	return nil
}
