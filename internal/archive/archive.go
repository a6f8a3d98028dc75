// Package archive stores captured frames as a stream of length-prefixed
// msgpack records (4-byte big-endian length, then the msgpack payload).
package archive

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	mvswrapper "github.com/giim-hf-lab/MVSWrapper"
)

// MaxRecordSize bounds a single record; larger length prefixes are rejected
// as corruption.
const MaxRecordSize = 256 << 20

// Record is one archived frame
type Record struct {
	Serial      string `msgpack:"serial"`
	FrameID     uint64 `msgpack:"frame_id"`
	TraceID     string `msgpack:"trace_id"`
	TimestampNs int64  `msgpack:"timestamp_ns"`
	Rotation    string `msgpack:"rotation"`
	Width       int    `msgpack:"width"`
	Height      int    `msgpack:"height"`
	Stride      int    `msgpack:"stride"`
	Format      string `msgpack:"format"`
	Pix         []byte `msgpack:"pix"`
}

// NewRecord captures a frame together with the device that produced it
func NewRecord(serial string, rotation mvswrapper.RotationDirection, f mvswrapper.Frame) (*Record, error) {
	if !f.Valid() || f.Content == nil {
		return nil, fmt.Errorf("archive: frame %d has no content", f.ID)
	}
	img := f.Content
	return &Record{
		Serial:      serial,
		FrameID:     f.ID,
		TraceID:     f.TraceID,
		TimestampNs: f.Timestamp.UnixNano(),
		Rotation:    rotation.String(),
		Width:       img.Width,
		Height:      img.Height,
		Stride:      img.Stride,
		Format:      img.Format.String(),
		Pix:         img.Pix,
	}, nil
}

// Image rebuilds the archived image, validating its geometry
func (r *Record) Image() (*mvswrapper.Image, error) {
	var format mvswrapper.PixelFormat
	switch r.Format {
	case mvswrapper.Mono8.String():
		format = mvswrapper.Mono8
	case mvswrapper.BGR8.String():
		format = mvswrapper.BGR8
	default:
		return nil, fmt.Errorf("archive: unknown pixel format %q", r.Format)
	}
	img, err := mvswrapper.WrapImage(r.Width, r.Height, r.Stride, format, r.Pix)
	if err != nil {
		return nil, fmt.Errorf("archive: record %d: %w", r.FrameID, err)
	}
	return img, nil
}

// Writer appends records to an io.Writer
type Writer struct {
	w       *bufio.Writer
	records int
	bytes   int64
}

// NewWriter wraps w with buffering. Call Flush before closing w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write encodes one record with its length prefix
func (w *Writer) Write(rec *Record) error {
	payload, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("archive: marshal record %d: %w", rec.FrameID, err)
	}
	if len(payload) > MaxRecordSize {
		return fmt.Errorf("archive: record %d is %d bytes, limit %d", rec.FrameID, len(payload), MaxRecordSize)
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.w.Write(prefix[:]); err != nil {
		return fmt.Errorf("archive: write length prefix: %w", err)
	}
	if _, err := w.w.Write(payload); err != nil {
		return fmt.Errorf("archive: write record: %w", err)
	}

	w.records++
	w.bytes += int64(len(payload)) + 4
	return nil
}

// Flush writes buffered data to the underlying writer
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Records returns how many records were written
func (w *Writer) Records() int { return w.records }

// Bytes returns how many bytes were written, prefixes included
func (w *Writer) Bytes() int64 { return w.bytes }

// Reader decodes records written by Writer
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r with buffering
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next record, or io.EOF at a clean end of stream. A stream
// that ends inside a record returns io.ErrUnexpectedEOF.
func (r *Reader) Next() (*Record, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r.r, prefix[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("archive: read length prefix: %w", err)
	}

	n := binary.BigEndian.Uint32(prefix[:])
	if n > MaxRecordSize {
		return nil, fmt.Errorf("archive: record length %d exceeds limit %d", n, MaxRecordSize)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("archive: read record: %w", err)
	}

	var rec Record
	if err := msgpack.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("archive: unmarshal record: %w", err)
	}
	return &rec, nil
}
