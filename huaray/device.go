// Package huaray drives Huaray (iRAYPLE) cameras through the IMV C API.
package huaray

import (
	"fmt"
	"log/slog"

	mvswrapper "github.com/giim-hf-lab/MVSWrapper"
	"github.com/giim-hf-lab/MVSWrapper/internal/capture"
)

const vendor = "huaray"

// Device is a Huaray camera
type Device struct {
	*capture.Device
}

var _ mvswrapper.Device = (*Device)(nil)

type driver struct {
	sdk    SDK
	handle Handle
}

func check(op string, code int) error {
	if code == IMVOK {
		return nil
	}
	return &mvswrapper.SDKError{Vendor: vendor, Op: op, Code: int64(code)}
}

func (d *driver) Open() error {
	return check("IMV_OpenEx", d.sdk.OpenEx(d.handle, AccessControl))
}

func (d *driver) Close() error {
	return check("IMV_Close", d.sdk.Close(d.handle))
}

// StartGrabbing starts acquisition. IMV exposes no grab strategy, so
// GrabLatestOnly falls back to one-by-one.
func (d *driver) StartGrabbing(strategy mvswrapper.GrabStrategy) error {
	if strategy == mvswrapper.GrabLatestOnly {
		slog.Debug("huaray: latest-only grab strategy not supported, using one-by-one")
	}
	return check("IMV_StartGrabbing", d.sdk.StartGrabbing(d.handle))
}

func (d *driver) StopGrabbing() error {
	return check("IMV_StopGrabbing", d.sdk.StopGrabbing(d.handle))
}

func (d *driver) Attach(l *capture.Listener, _ mvswrapper.SubscribeMode) error {
	cb := func(frame *Frame) {
		l.Handle(func(target mvswrapper.PixelFormat) (*mvswrapper.Image, error) {
			return d.convert(frame, target)
		})
	}
	return check("IMV_AttachGrabbing", d.sdk.AttachGrabbing(d.handle, cb))
}

func (d *driver) Detach() error {
	return check("IMV_AttachGrabbing", d.sdk.AttachGrabbing(d.handle, nil))
}

func (d *driver) Release() error {
	return check("IMV_DestroyHandle", d.sdk.DestroyHandle(d.handle))
}

func pixelFormat(f mvswrapper.PixelFormat) uint32 {
	if f == mvswrapper.BGR8 {
		return PixelBGR8
	}
	return PixelMono8
}

func (d *driver) convert(frame *Frame, target mvswrapper.PixelFormat) (*mvswrapper.Image, error) {
	if frame.PixelFormat == pixelFormat(target) {
		img, err := mvswrapper.WrapImage(frame.Width, frame.Height, frame.Width*target.Channels(), target, frame.Data)
		if err != nil {
			panic(fmt.Sprintf("huaray: block %d: %v", frame.BlockID, err))
		}
		return img, nil
	}

	dst := mvswrapper.NewImage(frame.Width, frame.Height, target)
	param := &PixelConvertParam{
		Width:          frame.Width,
		Height:         frame.Height,
		PixelFormat:    frame.PixelFormat,
		Src:            frame.Data,
		DstPixelFormat: pixelFormat(target),
		Dst:            dst.Pix,
		DstDataLen:     len(dst.Pix),
	}
	if err := check("IMV_PixelConvert", d.sdk.PixelConvert(d.handle, param)); err != nil {
		return nil, fmt.Errorf("block %d pixel format 0x%08X: %w", frame.BlockID, frame.PixelFormat, err)
	}
	return dst, nil
}

func interfaces(t mvswrapper.Transport) (uint32, error) {
	switch t {
	case mvswrapper.TransportAny:
		return InterfaceAll, nil
	case mvswrapper.TransportUSB:
		return InterfaceUSB3, nil
	case mvswrapper.TransportGigE:
		return InterfaceGigE, nil
	default:
		return 0, fmt.Errorf("huaray: %w: %v", mvswrapper.ErrInvalidTransport, t)
	}
}

// Find enumerates cameras on the given transport. Handles are created by
// enumeration index; missing serials are omitted.
func Find(sdk SDK, serials []string, transport mvswrapper.Transport, colour bool) ([]*Device, error) {
	mask, err := interfaces(transport)
	if err != nil {
		return nil, err
	}

	infos, code := sdk.EnumDevices(mask)
	if err := check("IMV_EnumDevices", code); err != nil {
		return nil, fmt.Errorf("huaray: enumerate: %w", err)
	}

	var indices []int
	if len(serials) == 0 {
		for i := range infos {
			indices = append(indices, i)
		}
	} else {
		byIndex := make(map[string]int, len(infos))
		for i, info := range infos {
			byIndex[info.Serial] = i
		}
		for _, serial := range serials {
			if i, ok := byIndex[serial]; ok {
				indices = append(indices, i)
				delete(byIndex, serial)
			}
		}
	}

	devices := make([]*Device, 0, len(indices))
	for _, i := range indices {
		h, code := sdk.CreateHandleByIndex(i)
		if err := check("IMV_CreateHandle", code); err != nil {
			for _, d := range devices {
				_ = d.Release()
			}
			return nil, fmt.Errorf("huaray: create handle for %s: %w", infos[i].Serial, err)
		}
		devices = append(devices, &Device{capture.NewDevice(capture.Options{
			Component: vendor,
			Serial:    infos[i].Serial,
			Brand:     mvswrapper.BrandHuaray,
			Colour:    colour,
			Driver:    &driver{sdk: sdk, handle: h},
		})})
	}

	slog.Info("huaray: discovery complete",
		"transport", transport,
		"enumerated", len(infos),
		"returned", len(devices),
	)
	return devices, nil
}
