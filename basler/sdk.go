package basler

// Transport layer names as reported by pylon's CDeviceInfo::GetTLType
const (
	TLTypeGigE = "GEV"
	TLTypeUSB  = "U3V"
)

// PixelType mirrors Pylon::EPixelType for the formats the listener produces
type PixelType uint32

const (
	PixelTypeMono8      PixelType = 0x01080001 // PixelType_Mono8
	PixelTypeBGR8Packed PixelType = 0x02180015 // PixelType_BGR8packed
)

// GrabStrategy mirrors Pylon::EGrabStrategy
type GrabStrategy int

const (
	GrabStrategyOneByOne GrabStrategy = iota
	GrabStrategyLatestImageOnly
	GrabStrategyLatestImages
	GrabStrategyUpcomingImage
)

// RegistrationMode mirrors Pylon::ERegistrationMode
type RegistrationMode int

const (
	RegistrationModeAppend RegistrationMode = iota
	RegistrationModeReplaceAll
)

// DeviceInfo is the part of Pylon::CDeviceInfo the backend reads or filters on.
// Empty fields in a filter match anything.
type DeviceInfo struct {
	SerialNumber string
	TLType       string
	ModelName    string
	Ref          any
}

// GrabResult is the view of a CBaslerUniversalGrabResultPtr used by the
// listener. Buffer is only valid during the event callback.
type GrabResult interface {
	Width() int
	Height() int
	PixelType() PixelType
	// Stride is IImage::GetStride; ok is false when pylon cannot report it
	Stride() (stride int, ok bool)
	Buffer() []byte
	BlockID() uint64
}

// ImageEventHandler is the CBaslerUniversalImageEventHandler contract
type ImageEventHandler interface {
	OnImageEventHandlerRegistered()
	OnImageGrabbed(result GrabResult)
}

// Camera is the subset of CBaslerUniversalInstantCamera used by this backend.
// Errors carry the pylon exception text.
type Camera interface {
	Open() error
	Close() error
	// StartGrabbing uses GrabLoop_ProvidedByInstantCamera
	StartGrabbing(strategy GrabStrategy) error
	StopGrabbing() error
	RegisterImageEventHandler(h ImageEventHandler, mode RegistrationMode) error
	DeregisterImageEventHandler(h ImageEventHandler) error
	// TrySetEnum and TrySetFloat mirror the parameter TrySetValue calls
	TrySetEnum(name, value string) bool
	TrySetFloat(name string, value float64) bool
	// DestroyDevice releases the pylon device (Cleanup_Delete)
	DestroyDevice() error
}

// Converter mirrors Pylon::CImageFormatConverter initialised with one output type
type Converter interface {
	ImageHasDestinationFormat(result GrabResult) bool
	Convert(dst []byte, result GrabResult) error
}

// SDK is the process-wide pylon runtime. Implementations must be comparable
// (typically a pointer), since the runtime is reference-counted per SDK value.
type SDK interface {
	// Initialize is PylonInitialize
	Initialize() error
	// Terminate is PylonTerminate
	Terminate() error
	// EnumerateDevices returns every device matching at least one filter
	EnumerateDevices(filter []DeviceInfo) ([]DeviceInfo, error)
	CreateCamera(info DeviceInfo) (Camera, error)
	NewConverter(output PixelType) Converter
}
