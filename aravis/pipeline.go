package aravis

import (
	"fmt"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	mvswrapper "github.com/giim-hf-lab/MVSWrapper"
)

// SourceFactory creates the element that produces raw camera frames
type SourceFactory func() (*gst.Element, error)

// CameraSource returns a factory for an aravissrc bound to one camera id
// (as printed by arv-tool, e.g. "Basler-21234567").
func CameraSource(id string) SourceFactory {
	return func() (*gst.Element, error) {
		src, err := gst.NewElement("aravissrc")
		if err != nil {
			return nil, fmt.Errorf("failed to create aravissrc: %w", err)
		}
		src.SetProperty("camera-name", id)
		return src, nil
	}
}

// pipelineElements holds references needed for state changes and cleanup
type pipelineElements struct {
	Pipeline *gst.Pipeline
	Source   *gst.Element
	AppSink  *app.Sink
}

// rawCaps returns the caps that pin videoconvert to the target layout
func rawCaps(target mvswrapper.PixelFormat) string {
	if target == mvswrapper.BGR8 {
		return "video/x-raw,format=BGR"
	}
	return "video/x-raw,format=GRAY8"
}

// defaultStride is GStreamer's default row stride for packed 8-bit raw
// video: rows padded to a multiple of four bytes.
func defaultStride(width int, target mvswrapper.PixelFormat) int {
	return (width*target.Channels() + 3) &^ 3
}

// createPipeline builds, but does not start:
//
//	source → videoconvert → capsfilter → appsink
func createPipeline(source SourceFactory, target mvswrapper.PixelFormat) (*pipelineElements, error) {
	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	src, err := source()
	if err != nil {
		return nil, err
	}

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}
	converter.SetProperty("n-threads", 0)

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("failed to create capsfilter: %w", err)
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString(rawCaps(target)))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)

	pipeline.AddMany(src, converter, capsfilter, appsink.Element)
	if err := gst.ElementLinkMany(src, converter, capsfilter, appsink.Element); err != nil {
		return nil, fmt.Errorf("failed to link pipeline elements: %w", err)
	}

	return &pipelineElements{
		Pipeline: pipeline,
		Source:   src,
		AppSink:  appsink,
	}, nil
}

// applyStrategy maps the grab strategy onto appsink buffering: latest-only
// keeps a single buffer and drops older ones before they reach the callback.
func applyStrategy(sink *app.Sink, strategy mvswrapper.GrabStrategy) {
	if strategy == mvswrapper.GrabLatestOnly {
		sink.SetProperty("max-buffers", 1)
		sink.SetProperty("drop", true)
		return
	}
	sink.SetProperty("max-buffers", 0)
	sink.SetProperty("drop", false)
}

// destroyPipeline sets the pipeline to NULL, releasing the camera
func destroyPipeline(elements *pipelineElements) error {
	if elements == nil || elements.Pipeline == nil {
		return nil
	}
	if err := elements.Pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to set pipeline to NULL: %w", err)
	}
	return nil
}
