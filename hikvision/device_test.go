package hikvision

import (
	"errors"
	"sync"
	"testing"

	mvswrapper "github.com/giim-hf-lab/MVSWrapper"
)

// fakeSDK is an in-memory MVS implementation
type fakeSDK struct {
	mu       sync.Mutex
	devices  []DeviceInfo
	callback ImageCallback
	strategy int
	params   map[string]any
	calls    []string
	failOn   map[string]int
	handles  int
	released int
}

func newFakeSDK(devices ...DeviceInfo) *fakeSDK {
	return &fakeSDK{devices: devices, params: map[string]any{}, failOn: map[string]int{}}
}

func (f *fakeSDK) status(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	if code, ok := f.failOn[op]; ok {
		return code
	}
	return MVOK
}

func (f *fakeSDK) EnumDevices(mask uint32) ([]DeviceInfo, int) {
	var out []DeviceInfo
	for _, d := range f.devices {
		if d.Layer&mask != 0 {
			out = append(out, d)
		}
	}
	return out, f.status("EnumDevices")
}

func (f *fakeSDK) CreateHandleWithoutLog(*DeviceInfo) (Handle, int) {
	f.mu.Lock()
	f.handles++
	h := Handle(f.handles)
	f.mu.Unlock()
	return h, f.status("CreateHandle")
}

func (f *fakeSDK) DestroyHandle(Handle) int {
	f.mu.Lock()
	f.released++
	f.mu.Unlock()
	return f.status("DestroyHandle")
}

func (f *fakeSDK) OpenDevice(Handle, uint32, uint16) int { return f.status("OpenDevice") }
func (f *fakeSDK) CloseDevice(Handle) int                { return f.status("CloseDevice") }
func (f *fakeSDK) StartGrabbing(Handle) int              { return f.status("StartGrabbing") }
func (f *fakeSDK) StopGrabbing(Handle) int               { return f.status("StopGrabbing") }

func (f *fakeSDK) SetGrabStrategy(_ Handle, s int) int {
	f.mu.Lock()
	f.strategy = s
	f.mu.Unlock()
	return f.status("SetGrabStrategy")
}

func (f *fakeSDK) RegisterImageCallBackEx(_ Handle, cb ImageCallback) int {
	f.mu.Lock()
	f.callback = cb
	f.mu.Unlock()
	return f.status("RegisterImageCallBackEx")
}

// ConvertPixelType fills the destination with the low byte of the source pixel type
func (f *fakeSDK) ConvertPixelType(_ Handle, p *PixelConvertParam) int {
	for i := range p.Dst[:p.DstLen] {
		p.Dst[i] = byte(p.SrcPixelType)
	}
	return f.status("ConvertPixelType")
}

func (f *fakeSDK) SetIntValueEx(_ Handle, key string, v int64) int {
	return f.set(key, v)
}

func (f *fakeSDK) SetFloatValue(_ Handle, key string, v float32) int {
	return f.set(key, v)
}

func (f *fakeSDK) SetEnumValueByString(_ Handle, key, v string) int {
	return f.set(key, v)
}

func (f *fakeSDK) set(key string, v any) int {
	code := f.status("set " + key)
	if code == MVOK {
		f.mu.Lock()
		f.params[key] = v
		f.mu.Unlock()
	}
	return code
}

// fire delivers a frame through whatever callback is registered
func (f *fakeSDK) fire(data []byte, info FrameInfo) {
	f.mu.Lock()
	cb := f.callback
	f.mu.Unlock()
	if cb != nil {
		cb(data, &info)
	}
}

var testDevices = []DeviceInfo{
	{Layer: LayerGigE, Serial: "K0001"},
	{Layer: LayerGigE, Serial: "K0002"},
	{Layer: LayerUSB, Serial: "U0001"},
}

func TestFind(t *testing.T) {
	tests := []struct {
		name      string
		serials   []string
		transport mvswrapper.Transport
		want      []string
	}{
		{"all gige", nil, mvswrapper.TransportGigE, []string{"K0001", "K0002"}},
		{"all usb", nil, mvswrapper.TransportUSB, []string{"U0001"}},
		{"any", nil, mvswrapper.TransportAny, []string{"K0001", "K0002", "U0001"}},
		{"request order kept", []string{"K0002", "K0001"}, mvswrapper.TransportGigE, []string{"K0002", "K0001"}},
		{"missing omitted", []string{"SN-404", "K0001"}, mvswrapper.TransportGigE, []string{"K0001"}},
		{"only missing", []string{"SN-404"}, mvswrapper.TransportGigE, nil},
		{"wrong transport", []string{"U0001"}, mvswrapper.TransportGigE, nil},
		{"duplicate request", []string{"K0001", "K0001"}, mvswrapper.TransportGigE, []string{"K0001"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devices, err := Find(newFakeSDK(testDevices...), tt.serials, tt.transport, false)
			if err != nil {
				t.Fatalf("Find() error = %v", err)
			}
			if len(devices) != len(tt.want) {
				t.Fatalf("got %d devices, want %v", len(devices), tt.want)
			}
			for i, d := range devices {
				if d.Serial() != tt.want[i] {
					t.Errorf("device %d serial %s, want %s", i, d.Serial(), tt.want[i])
				}
				if d.State() != mvswrapper.StateClosed {
					t.Errorf("device %s not closed after Find", d.Serial())
				}
				if d.Brand() != mvswrapper.BrandHikVision {
					t.Errorf("brand %v", d.Brand())
				}
			}
		})
	}
}

func TestFind_EnumerationFailure(t *testing.T) {
	sdk := newFakeSDK(testDevices...)
	sdk.failOn["EnumDevices"] = ErrAccessDenied

	_, err := Find(sdk, nil, mvswrapper.TransportGigE, false)
	var sdkErr *mvswrapper.SDKError
	if !errors.As(err, &sdkErr) {
		t.Fatalf("Find() error = %v, want SDKError", err)
	}
	if want := "hikvision: MV_CC_EnumDevices failed (code 0x80000203)"; sdkErr.Error() != want {
		t.Errorf("SDKError = %q, want %q", sdkErr.Error(), want)
	}
}

func TestFind_InvalidTransport(t *testing.T) {
	_, err := Find(newFakeSDK(), nil, mvswrapper.Transport(9), false)
	if !errors.Is(err, mvswrapper.ErrInvalidTransport) {
		t.Errorf("Find() error = %v, want ErrInvalidTransport", err)
	}
}

func openSubscribed(t *testing.T, sdk *fakeSDK, colour bool) *Device {
	t.Helper()
	devices, err := Find(sdk, []string{"K0001"}, mvswrapper.TransportGigE, colour)
	if err != nil || len(devices) != 1 {
		t.Fatalf("Find() = %d devices, %v", len(devices), err)
	}
	d := devices[0]
	if err := d.Open(); err != nil {
		t.Fatal(err)
	}
	if err := d.Subscribe(mvswrapper.SubscribeExclusive); err != nil {
		t.Fatal(err)
	}
	if err := d.Start(mvswrapper.GrabLatestOnly); err != nil {
		t.Fatal(err)
	}
	return d
}

func TestDevice_NativeFrameIsCopied(t *testing.T) {
	sdk := newFakeSDK(testDevices...)
	d := openSubscribed(t, sdk, false)

	if sdk.strategy != GrabStrategyLatestImagesOnly {
		t.Errorf("grab strategy %d, want latest-images-only", sdk.strategy)
	}

	data := []byte{1, 2, 3, 4, 5, 6}
	sdk.fire(data, FrameInfo{Width: 3, Height: 2, PixelType: PixelTypeMono8, FrameLen: 6})
	data[0] = 99 // the SDK reuses its buffer

	f, err := d.NextImage()
	if err != nil || f.ID != 1 {
		t.Fatalf("NextImage() = (%d, %v)", f.ID, err)
	}
	if string(f.Content.Pix) != string([]byte{1, 2, 3, 4, 5, 6}) {
		t.Errorf("pixels %v, frame aliases the SDK buffer", f.Content.Pix)
	}
}

func TestDevice_ForeignFormatIsConverted(t *testing.T) {
	sdk := newFakeSDK(testDevices...)
	d := openSubscribed(t, sdk, true)
	_ = d.SetRotation(mvswrapper.RotationClockwise90)

	const bayer = 0x01080009 // PixelType_Gvsp_BayerRG8
	sdk.fire(make([]byte, 4*2), FrameInfo{Width: 4, Height: 2, PixelType: bayer, FrameLen: 8})

	f, _ := d.NextImage()
	if !f.Valid() {
		t.Fatal("no frame queued")
	}
	img := f.Content
	if img.Format != mvswrapper.BGR8 || img.Width != 2 || img.Height != 4 {
		t.Errorf("converted frame %v, want rotated 2x4 BGR8", img)
	}
	if img.Pix[0] != byte(bayer&0xff) {
		t.Errorf("conversion output not used: %d", img.Pix[0])
	}
}

func TestDevice_ConversionFailureDropsFrame(t *testing.T) {
	sdk := newFakeSDK(testDevices...)
	d := openSubscribed(t, sdk, true)
	sdk.failOn["ConvertPixelType"] = ErrSupport

	sdk.fire(make([]byte, 4), FrameInfo{Width: 2, Height: 2, PixelType: 0x01080009})
	if f, _ := d.NextImage(); f.Valid() {
		t.Errorf("frame %d queued despite conversion failure", f.ID)
	}
}

func TestDevice_UnsubscribeDeregisters(t *testing.T) {
	sdk := newFakeSDK(testDevices...)
	d := openSubscribed(t, sdk, false)

	if err := d.Unsubscribe(); err != nil {
		t.Fatal(err)
	}
	if sdk.callback != nil {
		t.Error("callback still registered after Unsubscribe")
	}
	if err := d.Release(); err != nil {
		t.Fatal(err)
	}
	if sdk.released != 1 {
		t.Errorf("DestroyHandle called %d times", sdk.released)
	}
}

func TestDevice_OpenFailure(t *testing.T) {
	sdk := newFakeSDK(testDevices...)
	sdk.failOn["OpenDevice"] = ErrAccessDenied
	devices, _ := Find(sdk, []string{"K0001"}, mvswrapper.TransportGigE, false)

	err := devices[0].Open()
	var sdkErr *mvswrapper.SDKError
	if !errors.As(err, &sdkErr) || sdkErr.Code != ErrAccessDenied {
		t.Fatalf("Open() error = %v", err)
	}
}

func TestDevice_ParameterSetters(t *testing.T) {
	sdk := newFakeSDK(testDevices...)
	devices, _ := Find(sdk, nil, mvswrapper.TransportGigE, false)
	d := devices[0]

	if !d.SetExposureTime(1500) {
		t.Error("SetExposureTime failed")
	}
	if sdk.params["ExposureAuto"] != "Off" || sdk.params["ExposureTime"] != float32(1500) || sdk.params["ExposureMode"] != "Timed" {
		t.Errorf("exposure params %v", sdk.params)
	}

	if !d.SetLineDebouncerTime(2, 40) || sdk.params["LineSelector"] != "Line2" || sdk.params["LineDebouncerTime"] != int64(40) {
		t.Errorf("debouncer params %v", sdk.params)
	}
	if d.SetLineDebouncerTime(3, 40) {
		t.Error("line 3 accepted")
	}

	if !d.SetManualTriggerLineSource(1, 250) || sdk.params["TriggerSource"] != "Line1" || sdk.params["TriggerMode"] != "On" {
		t.Errorf("trigger params %v", sdk.params)
	}

	sdk.failOn["set GainAuto"] = ErrParameter
	if d.SetGain(2) {
		t.Error("SetGain should fail when GainAuto cannot be switched off")
	}
	if _, ok := sdk.params["Gain"]; ok {
		t.Error("Gain written after GainAuto failure")
	}
}
