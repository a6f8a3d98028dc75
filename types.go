package mvswrapper

import "time"

// Frame represents a single captured image with its identity.
//
// A Frame owns its Content. The queue hands every frame out exactly once, so
// callers may keep or mutate Content without synchronisation.
type Frame struct {
	// ID is monotonically increasing within one subscription, starting at 1.
	// Zero means "no frame".
	ID uint64
	// Timestamp is when the frame was accepted by the capture listener
	Timestamp time.Time
	// Content is the normalised (Mono8 or BGR8) and rotated image
	Content *Image
	// TraceID is a unique identifier for distributed tracing
	TraceID string
}

// Valid reports whether the frame carries an image.
func (f Frame) Valid() bool {
	return f.ID != 0
}

// RotationDirection selects the rotation applied to every captured frame
type RotationDirection int

const (
	// RotationOriginal keeps the sensor orientation
	RotationOriginal RotationDirection = iota
	// RotationClockwise90 rotates 90 degrees clockwise
	RotationClockwise90
	// Rotation180 rotates 180 degrees
	Rotation180
	// RotationCounterClockwise90 rotates 90 degrees counter-clockwise
	RotationCounterClockwise90
)

// Valid reports whether r is one of the four known directions
func (r RotationDirection) Valid() bool {
	return r >= RotationOriginal && r <= RotationCounterClockwise90
}

// String returns a human-readable string representation of the rotation
func (r RotationDirection) String() string {
	switch r {
	case RotationOriginal:
		return "original"
	case RotationClockwise90:
		return "cw90"
	case Rotation180:
		return "180"
	case RotationCounterClockwise90:
		return "ccw90"
	default:
		return "invalid"
	}
}

// ParseRotation converts the configuration spelling of a rotation
func ParseRotation(s string) (RotationDirection, error) {
	switch s {
	case "", "original", "0":
		return RotationOriginal, nil
	case "cw90", "90":
		return RotationClockwise90, nil
	case "180":
		return Rotation180, nil
	case "ccw90", "270":
		return RotationCounterClockwise90, nil
	default:
		return RotationOriginal, ErrInvalidRotation
	}
}

// Transport selects the physical link used during discovery
type Transport int

const (
	// TransportAny applies no transport filter
	TransportAny Transport = iota
	// TransportUSB selects USB3 Vision devices
	TransportUSB
	// TransportGigE selects GigE Vision devices
	TransportGigE
)

// Valid reports whether t is a known transport
func (t Transport) Valid() bool {
	return t >= TransportAny && t <= TransportGigE
}

// String returns a human-readable string representation of the transport
func (t Transport) String() string {
	switch t {
	case TransportAny:
		return "any"
	case TransportUSB:
		return "usb"
	case TransportGigE:
		return "gige"
	default:
		return "invalid"
	}
}

// ParseTransport converts the configuration spelling of a transport
func ParseTransport(s string) (Transport, error) {
	switch s {
	case "", "any":
		return TransportAny, nil
	case "usb", "usb3":
		return TransportUSB, nil
	case "gige", "gig_e", "gev":
		return TransportGigE, nil
	default:
		return TransportAny, ErrInvalidTransport
	}
}

// Brand identifies the SDK family behind a Device
type Brand int

const (
	BrandUnknown Brand = iota
	BrandBasler
	BrandHikVision
	BrandHuaray
	// BrandGenICam is any GigE Vision / USB3 Vision camera driven through aravis
	BrandGenICam
)

// String returns a human-readable string representation of the brand
func (b Brand) String() string {
	switch b {
	case BrandBasler:
		return "basler"
	case BrandHikVision:
		return "hikvision"
	case BrandHuaray:
		return "huaray"
	case BrandGenICam:
		return "genicam"
	default:
		return "unknown"
	}
}

// State is the lifecycle state of a Device
type State int

const (
	// StateClosed means no hardware link is held
	StateClosed State = iota
	// StateOpen means the device is owned but not grabbing
	StateOpen
	// StateGrabbing means the device is acquiring frames
	StateGrabbing
)

// String returns a human-readable string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateGrabbing:
		return "grabbing"
	default:
		return "invalid"
	}
}

// GrabStrategy is the vendor-level policy for intermediate frames
type GrabStrategy int

const (
	// GrabOneByOne preserves every captured frame (default)
	GrabOneByOne GrabStrategy = iota
	// GrabLatestOnly asks the SDK to drop all but the newest unconsumed frame.
	// Backends without support fall back to one-by-one.
	GrabLatestOnly
)

// String returns a human-readable string representation of the strategy
func (g GrabStrategy) String() string {
	if g == GrabLatestOnly {
		return "latest_only"
	}
	return "one_by_one"
}

// SubscribeMode controls how the capture listener is registered
type SubscribeMode int

const (
	// SubscribeExclusive replaces any listener already registered (default)
	SubscribeExclusive SubscribeMode = iota
	// SubscribeAppend adds the listener next to existing ones where the SDK
	// supports several; otherwise it behaves like SubscribeExclusive.
	SubscribeAppend
)

// String returns a human-readable string representation of the mode
func (m SubscribeMode) String() string {
	if m == SubscribeAppend {
		return "append"
	}
	return "exclusive"
}
