// Package mvswrapper provides a vendor-agnostic capture contract for industrial
// machine-vision cameras.
//
// Each vendor SDK delivers frames on its own thread, in its own pixel format,
// through its own callback registration API. This package defines one Device
// contract above all of them: a single lifecycle state machine, a
// non-blocking FIFO hand-off between the SDK callback thread and the caller,
// and one normalisation step (pixel format + rotation) applied identically to
// every backend.
//
// # Quick Start
//
// Discover a camera, open it and poll frames:
//
//	devices, err := hikvision.Find(sdk, []string{"K12345678"}, mvswrapper.TransportGigE, true)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if len(devices) == 0 {
//	    log.Fatal("camera not found")
//	}
//	cam := devices[0]
//	defer cam.Release()
//
//	if err := cam.Open(); err != nil {
//	    log.Fatal(err)
//	}
//	_ = cam.SetRotation(mvswrapper.RotationClockwise90)
//	if err := cam.Subscribe(mvswrapper.SubscribeExclusive); err != nil {
//	    log.Fatal(err)
//	}
//	if err := cam.Start(mvswrapper.GrabOneByOne); err != nil {
//	    log.Fatal(err)
//	}
//
//	for {
//	    frame, err := cam.NextImage()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    if !frame.Valid() {
//	        time.Sleep(5 * time.Millisecond) // empty queue is the steady state
//	        continue
//	    }
//	    process(frame.Content)
//	}
//
// # Backends
//
//   - basler: Basler pylon instant cameras (image event handler)
//   - hikvision: HikVision MVS cameras (C callback API)
//   - huaray: Huaray IMV cameras (C callback API)
//   - aravis: any GenICam GigE Vision / USB3 Vision camera through GStreamer aravissrc
//   - simulator: plays back image directories, no hardware required
//
// The proprietary SDK bindings are injected through each backend's SDK
// interface, so the capture core builds and tests without vendor libraries.
//
// # Lifecycle
//
//	CLOSED --Open--> OPEN --Start--> GRABBING
//	   ^               ^                |
//	   |               +------Stop------+
//	   +---------------Close (from any state)
//
// Subscribe and Unsubscribe attach and detach the capture listener
// independently of the lifecycle. Frames exist only while GRABBING and
// SUBSCRIBED. Subscribe clears the frame queue and resets ids, so the first
// frame of every subscription has ID 1. Unsubscribe is synchronous: once it
// returns no SDK callback is still pushing.
//
// # Frame Format
//
// Frames are normalised before they are queued:
//
//   - Colour devices: BGR8 (3 bytes per pixel, blue first)
//   - Monochrome devices: Mono8 (1 byte per pixel)
//   - Rotation: the device's current RotationDirection, read per frame
//
// Image implements image.Image, so a frame can be handed to image/png or any
// imaging library directly.
//
// # Backpressure
//
// The frame queue has no capacity limit. Callers either drain promptly or
// start with GrabLatestOnly, which asks the SDK to discard all but the newest
// frame before it reaches the listener (where the backend supports it).
//
// # Errors
//
// Vendor status codes are wrapped in *SDKError, one error domain for all
// backends:
//
//	var sdkErr *mvswrapper.SDKError
//	if errors.As(err, &sdkErr) {
//	    log.Printf("%s returned %d", sdkErr.Op, sdkErr.Code)
//	}
//
// NextImage on an empty queue is not an error. RequireNextImage reports it as
// ErrNoFrame for call sites that prefer that.
package mvswrapper
