package aravis

import (
	"context"
	"errors"
	"testing"

	mvswrapper "github.com/giim-hf-lab/MVSWrapper"
)

const sampleListing = `Basler-acA1920-40gc-21234567 (192.168.1.10)
Basler-acA1300-30um-22345678 (usb3)
Aravis-Fake-GV01 (127.0.0.1)
The Imaging Source Europe GmbH-DMK 33GX174-41910001 (fe80::1)

`

func TestParseDeviceList(t *testing.T) {
	infos := ParseDeviceList([]byte(sampleListing))

	want := []DeviceInfo{
		{ID: "Basler-acA1920-40gc-21234567", Serial: "21234567", Address: "192.168.1.10", Transport: mvswrapper.TransportGigE},
		{ID: "Basler-acA1300-30um-22345678", Serial: "22345678", Address: "usb3", Transport: mvswrapper.TransportUSB},
		{ID: "Aravis-Fake-GV01", Serial: "GV01", Address: "127.0.0.1", Transport: mvswrapper.TransportGigE},
		{ID: "The Imaging Source Europe GmbH-DMK 33GX174-41910001", Serial: "41910001", Address: "fe80::1", Transport: mvswrapper.TransportGigE},
	}
	if len(infos) != len(want) {
		t.Fatalf("parsed %d devices, want %d: %+v", len(infos), len(want), infos)
	}
	for i := range want {
		if infos[i] != want[i] {
			t.Errorf("device %d = %+v, want %+v", i, infos[i], want[i])
		}
	}
}

func TestParseDeviceListEdgeCases(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []DeviceInfo
	}{
		{"empty", "", nil},
		{"no device", "No device found\n", nil},
		{"no address", "Vendor-Model-SN1\n", []DeviceInfo{
			{ID: "Vendor-Model-SN1", Serial: "SN1", Transport: mvswrapper.TransportUSB},
		}},
		{"no dash", "CAMERA (10.0.0.2)\n", []DeviceInfo{
			{ID: "CAMERA", Serial: "CAMERA", Address: "10.0.0.2", Transport: mvswrapper.TransportGigE},
		}},
		{"trailing dash", "Vendor- (10.0.0.3)\n", []DeviceInfo{
			{ID: "Vendor-", Serial: "Vendor-", Address: "10.0.0.3", Transport: mvswrapper.TransportGigE},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDeviceList([]byte(tt.in))
			if len(got) != len(tt.want) {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("device %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSelectDevices(t *testing.T) {
	infos := ParseDeviceList([]byte(sampleListing))

	tests := []struct {
		name      string
		serials   []string
		transport mvswrapper.Transport
		want      []string
	}{
		{"all", nil, mvswrapper.TransportAny, []string{"21234567", "22345678", "GV01", "41910001"}},
		{"usb only", nil, mvswrapper.TransportUSB, []string{"22345678"}},
		{"gige only", nil, mvswrapper.TransportGigE, []string{"21234567", "GV01", "41910001"}},
		{"request order", []string{"GV01", "21234567"}, mvswrapper.TransportAny, []string{"GV01", "21234567"}},
		{"by full id", []string{"Aravis-Fake-GV01"}, mvswrapper.TransportAny, []string{"GV01"}},
		{"missing serial", []string{"SN-404"}, mvswrapper.TransportAny, nil},
		{"wrong transport", []string{"22345678"}, mvswrapper.TransportGigE, nil},
		{"duplicate request", []string{"GV01", "GV01"}, mvswrapper.TransportAny, []string{"GV01"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := selectDevices(infos, tt.serials, tt.transport)
			if len(got) != len(tt.want) {
				t.Fatalf("selected %+v, want serials %v", got, tt.want)
			}
			for i := range got {
				if got[i].Serial != tt.want[i] {
					t.Errorf("selected[%d] = %s, want %s", i, got[i].Serial, tt.want[i])
				}
			}
		})
	}
}

func TestFindInvalidTransport(t *testing.T) {
	called := false
	list := func(context.Context) ([]byte, error) {
		called = true
		return nil, nil
	}
	_, err := Find(context.Background(), list, nil, mvswrapper.Transport(99), false)
	if !errors.Is(err, mvswrapper.ErrInvalidTransport) {
		t.Fatalf("err = %v, want ErrInvalidTransport", err)
	}
	if called {
		t.Error("listing ran for an invalid transport")
	}
}

func TestFindListFailure(t *testing.T) {
	requireAravis(t)

	list := func(context.Context) ([]byte, error) {
		return nil, errors.New("arv-tool-0.8: executable file not found")
	}
	_, err := Find(context.Background(), list, nil, mvswrapper.TransportAny, false)

	var sdkErr *mvswrapper.SDKError
	if !errors.As(err, &sdkErr) {
		t.Fatalf("err = %v, want *SDKError", err)
	}
	if sdkErr.Op != "list_devices" {
		t.Errorf("Op = %q, want list_devices", sdkErr.Op)
	}
}

func TestFindCreatesDevices(t *testing.T) {
	requireAravis(t)

	list := func(context.Context) ([]byte, error) {
		return []byte(sampleListing), nil
	}
	devices, err := Find(context.Background(), list, []string{"GV01", "SN-404"}, mvswrapper.TransportAny, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 1 {
		t.Fatalf("found %d devices, want 1", len(devices))
	}
	d := devices[0]
	defer d.Release()

	if d.Serial() != "GV01" || d.Info().ID != "Aravis-Fake-GV01" {
		t.Errorf("device = %s / %s", d.Serial(), d.Info().ID)
	}
	if d.Brand() != mvswrapper.BrandGenICam {
		t.Errorf("Brand() = %v, want GenICam", d.Brand())
	}
	if d.State() != mvswrapper.StateClosed {
		t.Errorf("State() = %v, want closed", d.State())
	}
}
