package aravis

import (
	"fmt"
	"log/slog"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	mvswrapper "github.com/giim-hf-lab/MVSWrapper"
)

// onNewSample is the appsink callback, running on the GStreamer streaming
// thread. The sample is always pulled so the sink never stalls, then handed
// to the listener, which drops it when detached.
func (s *stream) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		// a single bad sample should not stop the pipeline
		slog.Warn("aravis: failed to pull sample from appsink, skipping frame", "serial", s.serial)
		return gst.FlowOK
	}

	l := s.listener.Load()
	if l == nil {
		return gst.FlowOK
	}
	l.Handle(func(target mvswrapper.PixelFormat) (*mvswrapper.Image, error) {
		return imageFromSample(sample, target)
	})
	return gst.FlowOK
}

// imageFromSample reads the negotiated geometry from the sample caps and
// copies the mapped buffer out before the mapping ends.
func imageFromSample(sample *gst.Sample, target mvswrapper.PixelFormat) (*mvswrapper.Image, error) {
	caps := sample.GetCaps()
	if caps == nil || caps.GetSize() == 0 {
		return nil, fmt.Errorf("aravis: sample without caps")
	}
	width, height, err := capsGeometry(caps.GetStructureAt(0))
	if err != nil {
		return nil, err
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return nil, fmt.Errorf("aravis: sample without buffer")
	}
	mapInfo := buffer.Map(gst.MapRead)
	defer buffer.Unmap()

	data := mapInfo.Bytes()
	if len(data) == 0 {
		return nil, fmt.Errorf("aravis: empty buffer received")
	}
	return wrapFrame(width, height, target, data), nil
}

func capsGeometry(st *gst.Structure) (width, height int, err error) {
	if st == nil {
		return 0, 0, fmt.Errorf("aravis: caps without structure")
	}
	if val, err := st.GetValue("width"); err == nil {
		width, _ = val.(int)
	}
	if val, err := st.GetValue("height"); err == nil {
		height, _ = val.(int)
	}
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("aravis: caps %s carry no geometry", st.Name())
	}
	return width, height, nil
}

// wrapFrame copies one raw frame laid out with GStreamer's default stride.
// A buffer that does not match the negotiated caps is a plugin fault and
// panics rather than producing a corrupt frame.
func wrapFrame(width, height int, target mvswrapper.PixelFormat, data []byte) *mvswrapper.Image {
	img, err := mvswrapper.WrapImage(width, height, defaultStride(width, target), target, data)
	if err != nil {
		panic(fmt.Sprintf("aravis: buffer does not match negotiated caps: %v", err))
	}
	return img.Clone()
}
