package hikvision

// Status codes, transport layers and pixel types mirror MvCameraControl.h.
// Status codes are the SDK's unsigned 32-bit values sign-extended into int.
const (
	MVOK = 0

	ErrHandle       = -0x80000000 // MV_E_HANDLE
	ErrSupport      = -0x7fffffff // MV_E_SUPPORT
	ErrParameter    = -0x7ffffffc // MV_E_PARAMETER
	ErrAccessDenied = -0x7ffffdfd // MV_E_ACCESS_DENIED
)

// Transport layer flags for EnumDevices
const (
	LayerGigE uint32 = 0x00000001 // MV_GIGE_DEVICE
	LayerUSB  uint32 = 0x00000004 // MV_USB_DEVICE
)

// Pixel types the listener produces natively
const (
	PixelTypeMono8 uint32 = 0x01080001 // PixelType_Gvsp_Mono8
	PixelTypeBGR8  uint32 = 0x02180015 // PixelType_Gvsp_BGR8_Packed
)

// Grab strategies for SetGrabStrategy
const (
	GrabStrategyOneByOne         = 0 // MV_GrabStrategy_OneByOne
	GrabStrategyLatestImagesOnly = 1 // MV_GrabStrategy_LatestImagesOnly
)

// AccessControl is MV_ACCESS_Control, the exclusive-control open mode
const AccessControl uint32 = 3

// Handle is an opaque camera handle owned by the SDK
type Handle uintptr

// DeviceInfo is the part of MV_CC_DEVICE_INFO the backend reads. Ref carries
// the binding's own pointer back into CreateHandleWithoutLog.
type DeviceInfo struct {
	Layer  uint32
	Serial string
	Model  string
	Ref    any
}

// FrameInfo is the part of MV_FRAME_OUT_INFO_EX the backend reads
type FrameInfo struct {
	Width     int
	Height    int
	PixelType uint32
	FrameLen  int
	FrameNum  uint32
}

// PixelConvertParam mirrors MV_CC_PIXEL_CONVERT_PARAM
type PixelConvertParam struct {
	Width        int
	Height       int
	SrcPixelType uint32
	Src          []byte
	DstPixelType uint32
	Dst          []byte
	DstLen       int
}

// ImageCallback receives frames on an SDK-owned thread. data is only valid
// for the duration of the call.
type ImageCallback func(data []byte, info *FrameInfo)

// SDK is the subset of the MVS C API used by this backend. A cgo binding
// implements it in production; every method returns an MV status code.
type SDK interface {
	EnumDevices(layers uint32) ([]DeviceInfo, int)
	CreateHandleWithoutLog(info *DeviceInfo) (Handle, int)
	DestroyHandle(h Handle) int
	OpenDevice(h Handle, access uint32, switchoverKey uint16) int
	CloseDevice(h Handle) int
	SetGrabStrategy(h Handle, strategy int) int
	StartGrabbing(h Handle) int
	StopGrabbing(h Handle) int
	// RegisterImageCallBackEx replaces the registered callback; nil deregisters
	RegisterImageCallBackEx(h Handle, cb ImageCallback) int
	ConvertPixelType(h Handle, param *PixelConvertParam) int
	SetIntValueEx(h Handle, key string, value int64) int
	SetFloatValue(h Handle, key string, value float32) int
	SetEnumValueByString(h Handle, key, value string) int
}
