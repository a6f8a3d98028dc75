package huaray

// Status codes mirror IMVDefines.h
const (
	IMVOK            = 0
	ErrGeneric       = -101 // IMV_ERROR
	ErrInvalidHandle = -102 // IMV_INVALID_HANDLE
	ErrInvalidParam  = -103 // IMV_INVALID_PARAM
	ErrInvalidAccess = -111 // IMV_INVALID_ACCESS
	ErrNotSupported  = -113 // IMV_NOT_SUPPORT
)

// Interface types for EnumDevices
const (
	InterfaceGigE uint32 = 0x00000001 // interfaceTypeGige
	InterfaceUSB3 uint32 = 0x00000002 // interfaceTypeUsb3
	InterfaceAll  uint32 = 0xffffffff // interfaceTypeAll
)

// Pixel formats the listener produces natively
const (
	PixelMono8 uint32 = 0x01080001 // gvspPixelMono8
	PixelBGR8  uint32 = 0x02180015 // gvspPixelBGR8
)

// AccessControl is accessPermissionControl
const AccessControl = 2

// Handle is an opaque IMV_HANDLE
type Handle uintptr

// DeviceInfo is the part of IMV_DeviceInfo the backend reads
type DeviceInfo struct {
	Interface uint32
	Serial    string
	Vendor    string
	Model     string
}

// Frame mirrors IMV_Frame. Data is only valid during the callback.
type Frame struct {
	Width       int
	Height      int
	PixelFormat uint32
	Size        int
	BlockID     uint64
	Data        []byte
}

// PixelConvertParam mirrors IMV_PixelConvertParam
type PixelConvertParam struct {
	Width          int
	Height         int
	PixelFormat    uint32
	Src            []byte
	DstPixelFormat uint32
	Dst            []byte
	DstDataLen     int
}

// FrameCallback receives frames on an SDK-owned thread
type FrameCallback func(frame *Frame)

// SDK is the subset of the IMV C API used by this backend. Every method
// returns an IMV status code.
type SDK interface {
	EnumDevices(interfaces uint32) ([]DeviceInfo, int)
	// CreateHandleByIndex is IMV_CreateHandle with modeByIndex
	CreateHandleByIndex(index int) (Handle, int)
	DestroyHandle(h Handle) int
	OpenEx(h Handle, access int) int
	Close(h Handle) int
	StartGrabbing(h Handle) int
	StopGrabbing(h Handle) int
	// AttachGrabbing replaces the frame callback; nil detaches
	AttachGrabbing(h Handle, cb FrameCallback) int
	PixelConvert(h Handle, param *PixelConvertParam) int
}
