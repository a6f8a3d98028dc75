package mvswrapper

import (
	"fmt"
	"image"
	"image/color"
)

// PixelFormat is the normalised layout of Image.Pix
type PixelFormat int

const (
	// Mono8 is one byte per pixel, luminance
	Mono8 PixelFormat = iota
	// BGR8 is three bytes per pixel, blue first
	BGR8
)

// Channels returns the number of bytes per pixel
func (p PixelFormat) Channels() int {
	if p == BGR8 {
		return 3
	}
	return 1
}

// String returns a human-readable string representation of the format
func (p PixelFormat) String() string {
	switch p {
	case Mono8:
		return "Mono8"
	case BGR8:
		return "BGR8"
	default:
		return "invalid"
	}
}

// TargetFormat returns the format a capture listener produces for a device
// constructed with the given colour flag.
func TargetFormat(colour bool) PixelFormat {
	if colour {
		return BGR8
	}
	return Mono8
}

// Image is a packed 8-bit image in one of the normalised pixel formats.
//
// Image implements image.Image so frames can be encoded with the standard
// codecs or any image library without a conversion step.
type Image struct {
	Width  int
	Height int
	// Stride is the number of bytes between vertically adjacent pixels
	Stride int
	Format PixelFormat
	Pix    []byte
}

// NewImage allocates a zeroed image with a tight stride
func NewImage(width, height int, format PixelFormat) *Image {
	stride := width * format.Channels()
	return &Image{
		Width:  width,
		Height: height,
		Stride: stride,
		Format: format,
		Pix:    make([]byte, stride*height),
	}
}

// WrapImage validates a vendor buffer and returns an Image that aliases it.
//
// The result must not outlive the vendor buffer. Rotate and Clone produce
// owned copies, which is what capture listeners queue.
func WrapImage(width, height, stride int, format PixelFormat, pix []byte) (*Image, error) {
	rowBytes := width * format.Channels()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("mvswrapper: invalid geometry %dx%d", width, height)
	}
	if stride < rowBytes {
		return nil, fmt.Errorf("mvswrapper: stride %d shorter than row %d", stride, rowBytes)
	}
	if need := stride*(height-1) + rowBytes; len(pix) < need {
		return nil, fmt.Errorf("mvswrapper: buffer holds %d bytes, need %d", len(pix), need)
	}
	return &Image{
		Width:  width,
		Height: height,
		Stride: stride,
		Format: format,
		Pix:    pix,
	}, nil
}

// Clone returns a deep copy
func (m *Image) Clone() *Image {
	out := *m
	out.Pix = make([]byte, len(m.Pix))
	copy(out.Pix, m.Pix)
	return &out
}

// Size returns the number of pixel bytes held
func (m *Image) Size() int {
	return len(m.Pix)
}

// String returns "WIDTHxHEIGHT FORMAT"
func (m *Image) String() string {
	return fmt.Sprintf("%dx%d %s", m.Width, m.Height, m.Format)
}

// Equal reports whether both images have the same geometry, format and pixels
func (m *Image) Equal(o *Image) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.Width != o.Width || m.Height != o.Height || m.Format != o.Format {
		return false
	}
	rowBytes := m.Width * m.Format.Channels()
	for y := 0; y < m.Height; y++ {
		a := m.Pix[y*m.Stride : y*m.Stride+rowBytes]
		b := o.Pix[y*o.Stride : y*o.Stride+rowBytes]
		if string(a) != string(b) {
			return false
		}
	}
	return true
}

func (m *Image) ColorModel() color.Model {
	if m.Format == BGR8 {
		return color.NRGBAModel
	}
	return color.GrayModel
}

func (m *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

func (m *Image) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		if m.Format == BGR8 {
			return color.NRGBA{}
		}
		return color.Gray{}
	}
	i := y*m.Stride + x*m.Format.Channels()
	if m.Format == BGR8 {
		return color.NRGBA{R: m.Pix[i+2], G: m.Pix[i+1], B: m.Pix[i], A: 0xff}
	}
	return color.Gray{Y: m.Pix[i]}
}

// FromImage converts any image.Image into the requested normalised format.
// Colour to Mono8 uses the standard library's luminance weights.
func FromImage(src image.Image, format PixelFormat) *Image {
	b := src.Bounds()
	dst := NewImage(b.Dx(), b.Dy(), format)

	for y := 0; y < dst.Height; y++ {
		row := dst.Pix[y*dst.Stride:]
		for x := 0; x < dst.Width; x++ {
			c := src.At(b.Min.X+x, b.Min.Y+y)
			if format == Mono8 {
				row[x] = color.GrayModel.Convert(c).(color.Gray).Y
				continue
			}
			n := color.NRGBAModel.Convert(c).(color.NRGBA)
			row[x*3] = n.B
			row[x*3+1] = n.G
			row[x*3+2] = n.R
		}
	}
	return dst
}
