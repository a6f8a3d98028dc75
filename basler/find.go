package basler

import (
	"errors"
	"fmt"
	"log/slog"

	mvswrapper "github.com/giim-hf-lab/MVSWrapper"
	"github.com/giim-hf-lab/MVSWrapper/internal/capture"
)

func tlType(t mvswrapper.Transport) (string, error) {
	switch t {
	case mvswrapper.TransportAny:
		return "", nil
	case mvswrapper.TransportUSB:
		return TLTypeUSB, nil
	case mvswrapper.TransportGigE:
		return TLTypeGigE, nil
	default:
		return "", fmt.Errorf("basler: %w: %v", mvswrapper.ErrInvalidTransport, t)
	}
}

// Find enumerates cameras through the pylon transport layer factory.
//
// The pylon runtime is initialised on first use and stays up while any
// returned Device is alive; Release on the last device terminates it.
// Requested serials are passed to pylon as enumeration filters, so missing
// serials are simply absent from the result.
func Find(sdk SDK, serials []string, transport mvswrapper.Transport, colour bool) (devices []*Device, err error) {
	tl, err := tlType(transport)
	if err != nil {
		return nil, err
	}

	rt := runtimeFor(sdk)
	if err := rt.Acquire(); err != nil {
		return nil, err
	}
	defer func() {
		// the devices hold their own references
		err = errors.Join(err, rt.Release())
	}()

	filter := []DeviceInfo{{TLType: tl}}
	if len(serials) > 0 {
		filter = make([]DeviceInfo, len(serials))
		for i, s := range serials {
			filter[i] = DeviceInfo{TLType: tl, SerialNumber: s}
		}
	}

	infos, err := sdk.EnumerateDevices(filter)
	if err != nil {
		return nil, fmt.Errorf("basler: enumerate: %w", wrap("EnumerateDevices", err))
	}
	infos = inRequestOrder(infos, serials)

	target := mvswrapper.TargetFormat(colour)
	output := PixelTypeMono8
	if target == mvswrapper.BGR8 {
		output = PixelTypeBGR8Packed
	}

	for _, info := range infos {
		cam, cerr := sdk.CreateCamera(info)
		if cerr == nil {
			if cerr = rt.Acquire(); cerr != nil {
				_ = cam.DestroyDevice()
			}
		}
		if cerr != nil {
			for _, d := range devices {
				_ = d.Release()
			}
			return nil, fmt.Errorf("basler: create device %s: %w", info.SerialNumber, wrap("CreateDevice", cerr))
		}

		drv := &driver{camera: cam, converter: sdk.NewConverter(output), runtime: rt}
		devices = append(devices, &Device{
			Device: capture.NewDevice(capture.Options{
				Component: vendor,
				Serial:    info.SerialNumber,
				Brand:     mvswrapper.BrandBasler,
				Colour:    colour,
				Driver:    drv,
			}),
			drv: drv,
		})
	}

	slog.Info("basler: discovery complete",
		"transport", transport,
		"requested", len(serials),
		"returned", len(devices),
	)
	return devices, nil
}

// inRequestOrder sorts enumerated devices by the order serials were
// requested and drops duplicates. With no serials infos is returned as-is.
func inRequestOrder(infos []DeviceInfo, serials []string) []DeviceInfo {
	if len(serials) == 0 {
		return infos
	}
	bySerial := make(map[string]DeviceInfo, len(infos))
	for _, info := range infos {
		bySerial[info.SerialNumber] = info
	}
	out := make([]DeviceInfo, 0, len(infos))
	for _, s := range serials {
		if info, ok := bySerial[s]; ok {
			out = append(out, info)
			delete(bySerial, s)
		}
	}
	return out
}
