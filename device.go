package mvswrapper

// Device is the uniform contract every camera backend implements.
//
// Lifecycle:
//
//	CLOSED --Open--> OPEN --Start--> GRABBING
//	   ^               ^                |
//	   |               +------Stop------+
//	   +---------------Close (from any state)
//
// Subscription is orthogonal to the lifecycle state. Frames are produced only
// while the device is GRABBING and SUBSCRIBED.
//
// All methods are safe for concurrent use.
type Device interface {
	// Open acquires exclusive ownership of the camera (CLOSED -> OPEN).
	// Opening an already open device is a no-op. Failures are returned as-is
	// and never retried; retry policy belongs to the caller.
	Open() error

	// Close stops grabbing and unsubscribes if needed, then releases the
	// hardware link (any state -> CLOSED). Close is idempotent.
	Close() error

	// Start begins acquisition (OPEN -> GRABBING) with the given grab
	// strategy. Starting a grabbing device is a no-op.
	Start(strategy GrabStrategy) error

	// Stop ends acquisition (GRABBING -> OPEN). Stop is idempotent.
	Stop() error

	// Subscribe attaches the capture listener. The frame queue is cleared and
	// the frame id counter reset, so the next frame has ID 1. Requires OPEN or
	// GRABBING; subscribing twice is a no-op.
	Subscribe(mode SubscribeMode) error

	// Unsubscribe detaches the capture listener. When it returns, no callback
	// is still pushing into the queue. Already queued frames are kept.
	Unsubscribe() error

	// NextImage pops the oldest undelivered frame without blocking.
	//
	// An empty queue is not a failure: NextImage returns a zero Frame (ID 0)
	// and a nil error. Use RequireNextImage to treat emptiness as an error.
	NextImage() (Frame, error)

	// Rotation returns the rotation applied to captured frames
	Rotation() RotationDirection

	// SetRotation changes the rotation. It applies to the next captured frame,
	// never to frames already queued.
	SetRotation(r RotationDirection) error

	// Serial returns the hardware or assigned serial number. It is stable for
	// the lifetime of the Device.
	Serial() string

	// Brand identifies the SDK family behind the device
	Brand() Brand

	// State returns the current lifecycle state
	State() State

	// Subscribed reports whether the capture listener is attached
	Subscribed() bool

	// Release closes the device and frees the vendor handle. A released device
	// rejects every further lifecycle call with ErrReleased.
	Release() error
}

// ParameterSetter is implemented by backends that expose acquisition
// parameters. Every setter reports success as a bool, mirroring the vendor
// property writes it wraps. Backends log the underlying failure.
type ParameterSetter interface {
	// SetExposureTime switches auto exposure off and sets exposure in microseconds
	SetExposureTime(us float64) bool
	// SetGain switches auto gain off and sets the analog gain
	SetGain(gain float64) bool
	// SetLineDebouncerTime sets the debouncer of an input line, in microseconds
	SetLineDebouncerTime(line int, us float64) bool
	// SetManualTriggerLineSource routes a hardware trigger from an input line
	// with the given delay in microseconds, turning trigger mode on
	SetManualTriggerLineSource(line int, delayUs float64) bool
}

// RequireNextImage is the strict form of Device.NextImage: it reports an empty
// queue as ErrNoFrame.
func RequireNextImage(d Device) (Frame, error) {
	f, err := d.NextImage()
	if err != nil {
		return Frame{}, err
	}
	if !f.Valid() {
		return Frame{}, ErrNoFrame
	}
	return f, nil
}

// Serials collects the serial numbers of devices, in order
func Serials(devices []Device) []string {
	out := make([]string, 0, len(devices))
	for _, d := range devices {
		out = append(out, d.Serial())
	}
	return out
}
