package hikvision

import (
	"fmt"
	"log/slog"

	mvswrapper "github.com/giim-hf-lab/MVSWrapper"
)

func layers(t mvswrapper.Transport) (uint32, error) {
	switch t {
	case mvswrapper.TransportAny:
		return LayerGigE | LayerUSB, nil
	case mvswrapper.TransportUSB:
		return LayerUSB, nil
	case mvswrapper.TransportGigE:
		return LayerGigE, nil
	default:
		return 0, fmt.Errorf("hikvision: %w: %v", mvswrapper.ErrInvalidTransport, t)
	}
}

// Find enumerates cameras on the given transport.
//
// With no serials every enumerated camera is returned. Otherwise one Device is
// returned per requested serial that was found, in request order; missing
// serials are omitted. No camera is opened.
func Find(sdk SDK, serials []string, transport mvswrapper.Transport, colour bool) ([]*Device, error) {
	mask, err := layers(transport)
	if err != nil {
		return nil, err
	}

	infos, code := sdk.EnumDevices(mask)
	if err := check("MV_CC_EnumDevices", code); err != nil {
		return nil, fmt.Errorf("hikvision: enumerate: %w", err)
	}

	selected := make([]*DeviceInfo, 0, len(infos))
	if len(serials) == 0 {
		for i := range infos {
			selected = append(selected, &infos[i])
		}
	} else {
		bySerial := make(map[string]*DeviceInfo, len(infos))
		for i := range infos {
			bySerial[infos[i].Serial] = &infos[i]
		}
		for _, serial := range serials {
			info, ok := bySerial[serial]
			if !ok {
				slog.Debug("hikvision: serial not found", "serial", serial, "transport", transport)
				continue
			}
			delete(bySerial, serial)
			selected = append(selected, info)
		}
	}

	devices := make([]*Device, 0, len(selected))
	for _, info := range selected {
		dev, err := newDevice(sdk, info, colour)
		if err != nil {
			for _, d := range devices {
				_ = d.Release()
			}
			return nil, err
		}
		devices = append(devices, dev)
	}

	slog.Info("hikvision: discovery complete",
		"transport", transport,
		"enumerated", len(infos),
		"returned", len(devices),
	)
	return devices, nil
}
