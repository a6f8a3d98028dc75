package aravis

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"strings"

	mvswrapper "github.com/giim-hf-lab/MVSWrapper"
)

// ArvTool is the aravis command line tool used for enumeration
const ArvTool = "arv-tool-0.8"

// DeviceInfo is one camera as listed by arv-tool
type DeviceInfo struct {
	// ID is the aravis device id, passed to aravissrc camera-name
	ID string
	// Serial is the last dash-separated token of ID
	Serial string
	// Address is the IP address for GigE Vision cameras, the bus tag otherwise
	Address   string
	Transport mvswrapper.Transport
}

// ListFunc returns the raw device listing
type ListFunc func(ctx context.Context) ([]byte, error)

// ListWithArvTool runs arv-tool without arguments, which prints one
// "<id> (<address>)" line per camera.
func ListWithArvTool(ctx context.Context) ([]byte, error) {
	out, err := exec.CommandContext(ctx, ArvTool).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%s: %w: %s", ArvTool, err, bytes.TrimSpace(exitErr.Stderr))
		}
		return nil, fmt.Errorf("%s: %w", ArvTool, err)
	}
	return out, nil
}

// ParseDeviceList parses arv-tool output. Lines that do not describe a
// camera ("No device found") are ignored.
func ParseDeviceList(out []byte) []DeviceInfo {
	var infos []DeviceInfo
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(strings.ToLower(line), "no device") {
			continue
		}

		id, address := line, ""
		if i := strings.LastIndex(line, " ("); i > 0 && strings.HasSuffix(line, ")") {
			id = line[:i]
			address = line[i+2 : len(line)-1]
		}

		serial := id
		if i := strings.LastIndex(id, "-"); i >= 0 && i < len(id)-1 {
			serial = id[i+1:]
		}

		transport := mvswrapper.TransportUSB
		if net.ParseIP(address) != nil {
			transport = mvswrapper.TransportGigE
		}

		infos = append(infos, DeviceInfo{
			ID:        id,
			Serial:    serial,
			Address:   address,
			Transport: transport,
		})
	}
	return infos
}

// selectDevices filters by transport, then picks requested serials in
// request order. A request matches either the serial or the full id.
func selectDevices(infos []DeviceInfo, serials []string, transport mvswrapper.Transport) []DeviceInfo {
	onTransport := infos[:0:0]
	for _, info := range infos {
		if transport == mvswrapper.TransportAny || info.Transport == transport {
			onTransport = append(onTransport, info)
		}
	}
	if len(serials) == 0 {
		return onTransport
	}

	selected := make([]DeviceInfo, 0, len(serials))
	taken := make(map[string]bool, len(serials))
	for _, serial := range serials {
		found := false
		for _, info := range onTransport {
			if (info.Serial == serial || info.ID == serial) && !taken[info.ID] {
				taken[info.ID] = true
				selected = append(selected, info)
				found = true
				break
			}
		}
		if !found {
			slog.Debug("aravis: serial not found", "serial", serial, "transport", transport)
		}
	}
	return selected
}

// Find lists cameras with list (ListWithArvTool when nil) and returns one
// Device per selected camera. With no serials every camera on the transport
// is returned; otherwise requested serials that were found, in request
// order. No camera is opened.
func Find(ctx context.Context, list ListFunc, serials []string, transport mvswrapper.Transport, colour bool) ([]*Device, error) {
	if !transport.Valid() {
		return nil, fmt.Errorf("aravis: %w: %v", mvswrapper.ErrInvalidTransport, transport)
	}
	if list == nil {
		list = ListWithArvTool
	}

	if err := gstRuntime.Acquire(); err != nil {
		return nil, err
	}
	// the devices hold their own references
	defer gstRuntime.Release()

	if err := checkAravisAvailable(); err != nil {
		return nil, err
	}

	out, err := list(ctx)
	if err != nil {
		return nil, fmt.Errorf("aravis: enumerate: %w", &mvswrapper.SDKError{
			Vendor: component,
			Op:     "list_devices",
			Detail: err.Error(),
		})
	}
	infos := ParseDeviceList(out)
	selected := selectDevices(infos, serials, transport)

	devices := make([]*Device, 0, len(selected))
	for _, info := range selected {
		dev, err := newDevice(info, colour, CameraSource(info.ID))
		if err != nil {
			for _, d := range devices {
				_ = d.Release()
			}
			return nil, err
		}
		devices = append(devices, dev)
	}

	slog.Info("aravis: discovery complete",
		"transport", transport,
		"enumerated", len(infos),
		"returned", len(devices),
	)
	return devices, nil
}
