// Package hikvision drives HikVision MVS cameras through the SDK's C
// callback API.
package hikvision

import (
	"fmt"
	"log/slog"

	mvswrapper "github.com/giim-hf-lab/MVSWrapper"
	"github.com/giim-hf-lab/MVSWrapper/internal/capture"
)

const vendor = "hikvision"

// Input lines addressable by the line setters
var (
	debouncerLines = []string{"Line0", "Line1", "Line2"}
	triggerLines   = []string{"Line0", "Line1", "Line2"}
)

// Device is a HikVision camera. It implements mvswrapper.Device and
// mvswrapper.ParameterSetter.
type Device struct {
	*capture.Device
	drv *driver
}

var (
	_ mvswrapper.Device          = (*Device)(nil)
	_ mvswrapper.ParameterSetter = (*Device)(nil)
)

// driver holds the MVS handle and implements capture.Driver
type driver struct {
	sdk    SDK
	handle Handle
}

func check(op string, code int) error {
	if code == MVOK {
		return nil
	}
	return &mvswrapper.SDKError{Vendor: vendor, Op: op, Code: int64(code), HexCode: true}
}

func newDevice(sdk SDK, info *DeviceInfo, colour bool) (*Device, error) {
	h, code := sdk.CreateHandleWithoutLog(info)
	if err := check("MV_CC_CreateHandleWithoutLog", code); err != nil {
		return nil, fmt.Errorf("hikvision: create handle for %s: %w", info.Serial, err)
	}

	drv := &driver{sdk: sdk, handle: h}
	return &Device{
		Device: capture.NewDevice(capture.Options{
			Component: vendor,
			Serial:    info.Serial,
			Brand:     mvswrapper.BrandHikVision,
			Colour:    colour,
			Driver:    drv,
		}),
		drv: drv,
	}, nil
}

func (d *driver) Open() error {
	return check("MV_CC_OpenDevice", d.sdk.OpenDevice(d.handle, AccessControl, 0))
}

func (d *driver) Close() error {
	return check("MV_CC_CloseDevice", d.sdk.CloseDevice(d.handle))
}

func (d *driver) StartGrabbing(strategy mvswrapper.GrabStrategy) error {
	s := GrabStrategyOneByOne
	if strategy == mvswrapper.GrabLatestOnly {
		s = GrabStrategyLatestImagesOnly
	}
	if err := check("MV_CC_SetGrabStrategy", d.sdk.SetGrabStrategy(d.handle, s)); err != nil {
		return err
	}
	return check("MV_CC_StartGrabbing", d.sdk.StartGrabbing(d.handle))
}

func (d *driver) StopGrabbing() error {
	return check("MV_CC_StopGrabbing", d.sdk.StopGrabbing(d.handle))
}

// Attach registers the image callback. MVS keeps a single callback per
// handle, so SubscribeAppend behaves like SubscribeExclusive.
func (d *driver) Attach(l *capture.Listener, mode mvswrapper.SubscribeMode) error {
	if mode == mvswrapper.SubscribeAppend {
		slog.Debug("hikvision: append subscription not supported, replacing callback")
	}
	cb := func(data []byte, info *FrameInfo) {
		l.Handle(func(target mvswrapper.PixelFormat) (*mvswrapper.Image, error) {
			return d.convert(data, info, target)
		})
	}
	return check("MV_CC_RegisterImageCallBackEx", d.sdk.RegisterImageCallBackEx(d.handle, cb))
}

func (d *driver) Detach() error {
	return check("MV_CC_RegisterImageCallBackEx", d.sdk.RegisterImageCallBackEx(d.handle, nil))
}

func (d *driver) Release() error {
	return check("MV_CC_DestroyHandle", d.sdk.DestroyHandle(d.handle))
}

func pixelType(f mvswrapper.PixelFormat) uint32 {
	if f == mvswrapper.BGR8 {
		return PixelTypeBGR8
	}
	return PixelTypeMono8
}

// convert normalises one frame. A frame already in the target format is
// wrapped in place; anything else goes through MV_CC_ConvertPixelType.
func (d *driver) convert(data []byte, info *FrameInfo, target mvswrapper.PixelFormat) (*mvswrapper.Image, error) {
	if info.PixelType == pixelType(target) {
		img, err := mvswrapper.WrapImage(info.Width, info.Height, info.Width*target.Channels(), target, data)
		if err != nil {
			// the SDK reported a geometry its own buffer does not hold
			panic(fmt.Sprintf("hikvision: frame %d: %v", info.FrameNum, err))
		}
		return img, nil
	}

	dst := mvswrapper.NewImage(info.Width, info.Height, target)
	param := &PixelConvertParam{
		Width:        info.Width,
		Height:       info.Height,
		SrcPixelType: info.PixelType,
		Src:          data,
		DstPixelType: pixelType(target),
		Dst:          dst.Pix,
		DstLen:       len(dst.Pix),
	}
	if err := check("MV_CC_ConvertPixelType", d.sdk.ConvertPixelType(d.handle, param)); err != nil {
		return nil, fmt.Errorf("frame %d pixel type 0x%08X: %w", info.FrameNum, info.PixelType, err)
	}
	return dst, nil
}

func (d *Device) setEnum(key, value string) bool {
	return d.logSet(key, value, d.drv.sdk.SetEnumValueByString(d.drv.handle, key, value))
}

func (d *Device) setFloat(key string, value float64) bool {
	return d.logSet(key, value, d.drv.sdk.SetFloatValue(d.drv.handle, key, float32(value)))
}

func (d *Device) setInt(key string, value int64) bool {
	return d.logSet(key, value, d.drv.sdk.SetIntValueEx(d.drv.handle, key, value))
}

func (d *Device) logSet(key string, value any, code int) bool {
	if err := check("set "+key, code); err != nil {
		slog.Warn("hikvision: parameter write failed",
			"serial", d.Serial(),
			"key", key,
			"value", value,
			"error", err,
		)
		return false
	}
	return true
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

// SetLineDebouncerTime sets LineDebouncerTime of Line0..Line2, in whole µs
func (d *Device) SetLineDebouncerTime(line int, us float64) bool {
	if line < 0 || line >= len(debouncerLines) {
		return false
	}
	return d.setEnum("LineSelector", debouncerLines[line]) &&
		d.setInt("LineDebouncerTime", int64(us))
}

// SetManualTriggerLineSource triggers on the rising edge of Line0..Line2
// after delayUs
func (d *Device) SetManualTriggerLineSource(line int, delayUs float64) bool {
	if line < 0 || line >= len(triggerLines) {
		return false
	}
	return d.setEnum("TriggerSource", triggerLines[line]) &&
		d.setEnum("TriggerActivation", "RisingEdge") &&
		d.setFloat("TriggerDelay", delayUs) &&
		d.setEnum("TriggerMode", "On")
}
