// Package aravis drives any GenICam camera (GigE Vision or USB3 Vision)
// through the GStreamer aravissrc element.
//
// Each device owns one pipeline:
//
//	aravissrc camera-name=<id> → videoconvert → capsfilter → appsink
//
// videoconvert produces the target layout (BGR or GRAY8) and the appsink
// new-sample callback is the capture listener. GrabLatestOnly maps to an
// appsink holding a single buffer with drop=true.
package aravis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	mvswrapper "github.com/giim-hf-lab/MVSWrapper"
	"github.com/giim-hf-lab/MVSWrapper/internal/capture"
	"github.com/giim-hf-lab/MVSWrapper/internal/sdkref"
)

const component = "aravis"

// stateChangeTimeout bounds the wait for the error explaining a failed
// state change
const stateChangeTimeout = 2 * time.Second

// gstRuntime initialises GStreamer once per process. GStreamer cannot be
// re-initialised after gst_deinit, so it is never torn down.
var gstRuntime = sdkref.New(component, initGStreamer, nil)

func initGStreamer() error {
	gst.Init(nil)

	elem, err := gst.NewElement("fakesrc")
	if err != nil {
		return fmt.Errorf("GStreamer not available or not properly installed: %w", err)
	}
	elem.SetState(gst.StateNull)
	return nil
}

// checkAravisAvailable fails fast when the aravis plugin is missing, before
// any camera is listed
func checkAravisAvailable() error {
	elem, err := gst.NewElement("aravissrc")
	if err != nil {
		return fmt.Errorf("aravis: aravissrc not available (install the aravis GStreamer plugin): %w", err)
	}
	elem.SetState(gst.StateNull)
	return nil
}

// Device is a GenICam camera behind aravissrc. It implements
// mvswrapper.Device and mvswrapper.ParameterSetter; only exposure and gain
// are reachable through the element, the line setters report false.
type Device struct {
	*capture.Device
	info DeviceInfo
	str  *stream
}

var (
	_ mvswrapper.Device          = (*Device)(nil)
	_ mvswrapper.ParameterSetter = (*Device)(nil)
)

// Info returns the enumeration record the device was created from
func (d *Device) Info() DeviceInfo {
	return d.info
}

// ErrorStats returns pipeline error counts by category
func (d *Device) ErrorStats() ErrorStats {
	return d.str.counters.snapshot()
}

// LastError returns the last asynchronous pipeline error, or nil. Errors
// raised while grabbing stop frame delivery but do not change the device
// state; the caller decides whether to Stop and Start again.
func (d *Device) LastError() error {
	return d.str.lastError()
}

// stream implements capture.Driver over a GStreamer pipeline
type stream struct {
	serial   string
	source   SourceFactory
	target   mvswrapper.PixelFormat
	teardown func(*pipelineElements) error

	elements atomic.Pointer[pipelineElements]
	listener atomic.Pointer[capture.Listener]

	counters errorCounters
	lastErr  atomic.Pointer[mvswrapper.SDKError]

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// newDevice takes one runtime reference, returned by Release
func newDevice(info DeviceInfo, colour bool, source SourceFactory) (*Device, error) {
	if err := gstRuntime.Acquire(); err != nil {
		return nil, err
	}

	str := &stream{
		serial:   info.Serial,
		source:   source,
		target:   mvswrapper.TargetFormat(colour),
		teardown: destroyPipeline,
	}
	return &Device{
		Device: capture.NewDevice(capture.Options{
			Component: component,
			Serial:    info.Serial,
			Brand:     mvswrapper.BrandGenICam,
			Colour:    colour,
			Driver:    str,
		}),
		info: info,
		str:  str,
	}, nil
}

// Open builds the pipeline and pauses it, which makes aravissrc open the
// camera. A live source does not preroll, so no frame flows yet.
func (s *stream) Open() error {
	elements, err := createPipeline(s.source, s.target)
	if err != nil {
		return sdkError("create_pipeline", nil, err)
	}
	elements.AppSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: s.onNewSample,
	})

	if err := elements.Pipeline.SetState(gst.StatePaused); err != nil {
		gerr := popError(elements.Pipeline, stateChangeTimeout)
		_ = destroyPipeline(elements)
		return sdkError("set_state(PAUSED)", gerr, err)
	}

	s.elements.Store(elements)
	return nil
}

// Close keeps the pipeline when it refuses NULL, so a retry tears it down again
func (s *stream) Close() error {
	elements := s.elements.Load()
	if err := s.teardown(elements); err != nil {
		return sdkError("set_state(NULL)", nil, err)
	}
	s.elements.CompareAndSwap(elements, nil)
	return nil
}

func (s *stream) StartGrabbing(strategy mvswrapper.GrabStrategy) error {
	elements := s.elements.Load()
	if elements == nil {
		return sdkError("set_state(PLAYING)", nil, fmt.Errorf("pipeline not initialized"))
	}

	applyStrategy(elements.AppSink, strategy)
	if err := elements.Pipeline.SetState(gst.StatePlaying); err != nil {
		return sdkError("set_state(PLAYING)", popError(elements.Pipeline, stateChangeTimeout), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.lastErr.Store(nil)
	s.wg.Add(1)
	go s.monitorBus(ctx, elements.Pipeline)
	return nil
}

func (s *stream) StopGrabbing() error {
	var err error
	if elements := s.elements.Load(); elements != nil {
		if serr := elements.Pipeline.SetState(gst.StatePaused); serr != nil {
			err = sdkError("set_state(PAUSED)", nil, serr)
		}
	}
	if s.cancel != nil {
		s.cancel()
		s.wg.Wait()
		s.cancel = nil
	}
	return err
}

// Attach points the appsink callback at l. The appsink has one callback,
// so SubscribeAppend behaves like SubscribeExclusive.
func (s *stream) Attach(l *capture.Listener, mode mvswrapper.SubscribeMode) error {
	if mode == mvswrapper.SubscribeAppend {
		slog.Debug("aravis: append subscription not supported, replacing callback", "serial", s.serial)
	}
	s.listener.Store(l)
	return nil
}

func (s *stream) Detach() error {
	s.listener.Store(nil)
	return nil
}

func (s *stream) Release() error {
	return gstRuntime.Release()
}

func (d *Device) setSourceProperty(name string, value float64) bool {
	elements := d.str.elements.Load()
	if elements == nil {
		slog.Warn("aravis: cannot set property on a closed device", "serial", d.Serial(), "property", name)
		return false
	}
	if err := elements.Source.SetProperty(name, value); err != nil {
		slog.Warn("aravis: failed to set property", "serial", d.Serial(), "property", name, "value", value, "error", err)
		return false
	}
	slog.Debug("aravis: property set", "serial", d.Serial(), "property", name, "value", value)
	return true
}

// SetExposureTime sets the aravissrc exposure in microseconds. The element
// leaves auto exposure off unless exposure-auto was configured.
func (d *Device) SetExposureTime(us float64) bool {
	return d.setSourceProperty("exposure", us)
}

// SetGain sets the aravissrc gain
func (d *Device) SetGain(gain float64) bool {
	return d.setSourceProperty("gain", gain)
}

// SetLineDebouncerTime is not reachable through aravissrc
func (d *Device) SetLineDebouncerTime(line int, _ float64) bool {
	slog.Warn("aravis: line debouncer not supported", "serial", d.Serial(), "line", line)
	return false
}

// SetManualTriggerLineSource is not reachable through aravissrc
func (d *Device) SetManualTriggerLineSource(line int, _ float64) bool {
	slog.Warn("aravis: trigger line source not supported", "serial", d.Serial(), "line", line)
	return false
}
