package mvswrapper

import "fmt"

// Rotate returns a rotated copy of src. It never aliases src, since the
// source buffer may belong to a vendor SDK that reuses it.
//
//   - RotationOriginal: plain copy
//   - RotationClockwise90: transpose, then horizontal flip
//   - Rotation180: flip both axes
//   - RotationCounterClockwise90: transpose, then vertical flip
//
// Any other direction returns ErrInvalidRotation.
func Rotate(src *Image, r RotationDirection) (*Image, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRotation, int(r))
	}
	if src == nil {
		return nil, fmt.Errorf("mvswrapper: rotate nil image")
	}

	ch := src.Format.Channels()
	w, h := src.Width, src.Height

	var dst *Image
	switch r {
	case RotationOriginal, Rotation180:
		dst = NewImage(w, h, src.Format)
	default:
		dst = NewImage(h, w, src.Format)
	}

	if r == RotationOriginal {
		rowBytes := w * ch
		for y := 0; y < h; y++ {
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+rowBytes], src.Pix[y*src.Stride:])
		}
		return dst, nil
	}

	for y := 0; y < h; y++ {
		srow := src.Pix[y*src.Stride:]
		for x := 0; x < w; x++ {
			var dx, dy int
			switch r {
			case RotationClockwise90:
				dx, dy = h-1-y, x
			case Rotation180:
				dx, dy = w-1-x, h-1-y
			case RotationCounterClockwise90:
				dx, dy = y, w-1-x
			}
			di := dy*dst.Stride + dx*ch
			copy(dst.Pix[di:di+ch], srow[x*ch:x*ch+ch])
		}
	}
	return dst, nil
}
