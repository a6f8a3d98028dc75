// Package basler drives Basler cameras through pylon instant cameras and
// image event handlers.
package basler

import (
	"fmt"
	"log/slog"
	"sync"

	mvswrapper "github.com/giim-hf-lab/MVSWrapper"
	"github.com/giim-hf-lab/MVSWrapper/internal/capture"
	"github.com/giim-hf-lab/MVSWrapper/internal/sdkref"
)

const vendor = "basler"

var (
	debouncerLines = []string{"Line1", "Line2", "Line3", "Line4"}
	triggerLines   = []string{"Line1", "Line2", "Line3"}
)

var (
	runtimesMu sync.Mutex
	runtimes   = map[SDK]*sdkref.Runtime{}
)

// runtimeFor returns the process-wide pylon guard of sdk
func runtimeFor(sdk SDK) *sdkref.Runtime {
	runtimesMu.Lock()
	defer runtimesMu.Unlock()

	rt, ok := runtimes[sdk]
	if !ok {
		rt = sdkref.New("basler", sdk.Initialize, sdk.Terminate)
		runtimes[sdk] = rt
	}
	return rt
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &mvswrapper.SDKError{Vendor: vendor, Op: op, Detail: err.Error()}
}

// Device is a Basler camera. It implements mvswrapper.Device and
// mvswrapper.ParameterSetter.
type Device struct {
	*capture.Device
	drv *driver
}

var (
	_ mvswrapper.Device          = (*Device)(nil)
	_ mvswrapper.ParameterSetter = (*Device)(nil)
)

type driver struct {
	camera    Camera
	converter Converter
	runtime   *sdkref.Runtime
	handler   *imageHandler
}

// imageHandler adapts the capture listener to pylon's image event handler
type imageHandler struct {
	drv      *driver
	listener *capture.Listener
}

func (h *imageHandler) OnImageEventHandlerRegistered() {
	slog.Debug("basler: image event handler registered")
}

func (h *imageHandler) OnImageGrabbed(result GrabResult) {
	h.listener.Handle(func(target mvswrapper.PixelFormat) (*mvswrapper.Image, error) {
		return h.drv.convert(result, target)
	})
}

func (d *driver) Open() error  { return wrap("Open", d.camera.Open()) }
func (d *driver) Close() error { return wrap("Close", d.camera.Close()) }

func (d *driver) StartGrabbing(strategy mvswrapper.GrabStrategy) error {
	s := GrabStrategyOneByOne
	if strategy == mvswrapper.GrabLatestOnly {
		s = GrabStrategyLatestImageOnly
	}
	return wrap("StartGrabbing", d.camera.StartGrabbing(s))
}

func (d *driver) StopGrabbing() error {
	return wrap("StopGrabbing", d.camera.StopGrabbing())
}

// Attach registers the image handler. Exclusive subscriptions replace every
// other handler on the camera; append subscriptions keep them.
func (d *driver) Attach(l *capture.Listener, mode mvswrapper.SubscribeMode) error {
	reg := RegistrationModeReplaceAll
	if mode == mvswrapper.SubscribeAppend {
		reg = RegistrationModeAppend
	}
	d.handler = &imageHandler{drv: d, listener: l}
	return wrap("RegisterImageEventHandler", d.camera.RegisterImageEventHandler(d.handler, reg))
}

func (d *driver) Detach() error {
	h := d.handler
	d.handler = nil
	if h == nil {
		return nil
	}
	return wrap("DeregisterImageEventHandler", d.camera.DeregisterImageEventHandler(h))
}

func (d *driver) Release() error {
	err := wrap("DestroyDevice", d.camera.DestroyDevice())
	if rerr := d.runtime.Release(); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

// convert copies a grab result already in the destination format (honouring
// its stride) or runs the format converter into a fresh buffer.
func (d *driver) convert(result GrabResult, target mvswrapper.PixelFormat) (*mvswrapper.Image, error) {
	w, h := result.Width(), result.Height()

	if d.converter.ImageHasDestinationFormat(result) {
		stride, ok := result.Stride()
		if !ok {
			panic("basler: failed to get the stride of BGR/Mono image")
		}
		img, err := mvswrapper.WrapImage(w, h, stride, target, result.Buffer())
		if err != nil {
			panic(fmt.Sprintf("basler: block %d: %v", result.BlockID(), err))
		}
		return img, nil
	}

	dst := mvswrapper.NewImage(w, h, target)
	if err := d.converter.Convert(dst.Pix, result); err != nil {
		return nil, fmt.Errorf("block %d: %w", result.BlockID(), wrap("Convert", err))
	}
	return dst, nil
}

func (d *Device) logSet(key string, value any, ok bool) bool {
	if !ok {
		slog.Warn("basler: parameter write failed", "serial", d.Serial(), "key", key, "value", value)
	}
	return ok
}

func (d *Device) setEnum(key, value string) bool {
	return d.logSet(key, value, d.drv.camera.TrySetEnum(key, value))
}

func (d *Device) setFloat(key string, value float64) bool {
	return d.logSet(key, value, d.drv.camera.TrySetFloat(key, value))
}

// SetExposureTime switches ExposureAuto off and sets a timed exposure in µs
func (d *Device) SetExposureTime(us float64) bool {
	return d.setEnum("ExposureAuto", "Off") &&
		d.setFloat("ExposureTime", us) &&
		d.setEnum("ExposureMode", "Timed")
}

// SetGain switches GainAuto off and sets Gain
func (d *Device) SetGain(gain float64) bool {
	return d.setEnum("GainAuto", "Off") &&
		d.setFloat("Gain", gain)
}

// SetLineDebouncerTime sets LineDebouncerTime of Line1..Line4 (index 0..3)
func (d *Device) SetLineDebouncerTime(line int, us float64) bool {
	if line < 0 || line >= len(debouncerLines) {
		return false
	}
	return d.setEnum("LineSelector", debouncerLines[line]) &&
		d.setFloat("LineDebouncerTime", us)
}

// SetManualTriggerLineSource starts a frame burst on the rising edge of
// Line1..Line3 (index 0..2) after delayUs
func (d *Device) SetManualTriggerLineSource(line int, delayUs float64) bool {
	if line < 0 || line >= len(triggerLines) {
		return false
	}
	return d.setEnum("TriggerSelector", "FrameBurstStart") &&
		d.setEnum("TriggerSource", triggerLines[line]) &&
		d.setEnum("TriggerActivation", "RisingEdge") &&
		d.setFloat("TriggerDelay", delayUs) &&
		d.setEnum("TriggerMode", "On")
}
