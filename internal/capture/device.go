package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	mvswrapper "github.com/giim-hf-lab/MVSWrapper"
	"github.com/giim-hf-lab/MVSWrapper/internal/queue"
)

// Driver is the vendor half of a device: the SDK calls behind each lifecycle
// transition. Device calls a Driver method only when the transition is
// actually needed, so drivers need not be idempotent themselves.
type Driver interface {
	// Open establishes the hardware link
	Open() error
	// Close releases the hardware link
	Close() error
	// StartGrabbing begins acquisition with the given strategy
	StartGrabbing(strategy mvswrapper.GrabStrategy) error
	// StopGrabbing ends acquisition
	StopGrabbing() error
	// Attach registers l as the SDK callback target. The listener gate opens
	// only after Attach succeeds; callbacks fired earlier are rejected.
	Attach(l *Listener, mode mvswrapper.SubscribeMode) error
	// Detach deregisters the callback target
	Detach() error
	// Release destroys the vendor handle. The device is closed first.
	Release() error
}

// Options configures a Device
type Options struct {
	// Component prefixes log messages and errors ("hikvision", "simulator", ...)
	Component string
	Serial    string
	Brand     mvswrapper.Brand
	// Colour selects BGR8 output instead of Mono8
	Colour bool
	Driver Driver
}

// Device implements mvswrapper.Device on top of a Driver.
//
// Lifecycle calls are serialised by mu. Vendor callbacks never take mu: they
// only go through the listener gate and the queue mutex.
type Device struct {
	component string
	serial    string
	brand     mvswrapper.Brand
	driver    Driver
	queue     *queue.Queue
	listener  *Listener

	mu         sync.Mutex
	state      mvswrapper.State
	subscribed bool
	released   bool
}

var _ mvswrapper.Device = (*Device)(nil)

// NewDevice creates a closed, unsubscribed device. No hardware is touched.
func NewDevice(opts Options) *Device {
	q := queue.New()
	return &Device{
		component: opts.Component,
		serial:    opts.Serial,
		brand:     opts.Brand,
		driver:    opts.Driver,
		queue:     q,
		listener:  NewListener(opts.Component, q, opts.Colour),
	}
}

// Listener exposes the capture listener for backends and tests
func (d *Device) Listener() *Listener {
	return d.listener
}

// QueueStats returns a snapshot of the frame queue counters
func (d *Device) QueueStats() queue.Stats {
	return d.queue.Stats()
}

func (d *Device) Serial() string          { return d.serial }
func (d *Device) Brand() mvswrapper.Brand { return d.brand }

func (d *Device) State() mvswrapper.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Device) Subscribed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.subscribed
}

func (d *Device) Rotation() mvswrapper.RotationDirection {
	return d.listener.Rotation()
}

func (d *Device) SetRotation(r mvswrapper.RotationDirection) error {
	return d.listener.SetRotation(r)
}

func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.usable(); err != nil {
		return err
	}
	if d.state != mvswrapper.StateClosed {
		return nil
	}
	if err := d.driver.Open(); err != nil {
		return fmt.Errorf("%s: open %s: %w", d.component, d.serial, err)
	}
	d.state = mvswrapper.StateOpen

	slog.Info(d.component+": device opened", "serial", d.serial)
	return nil
}

func (d *Device) Start(strategy mvswrapper.GrabStrategy) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.usable(); err != nil {
		return err
	}
	switch d.state {
	case mvswrapper.StateGrabbing:
		return nil
	case mvswrapper.StateClosed:
		return fmt.Errorf("%s: %w", d.component, &mvswrapper.StateError{Op: "start", State: d.state})
	}
	if err := d.driver.StartGrabbing(strategy); err != nil {
		return fmt.Errorf("%s: start %s: %w", d.component, d.serial, err)
	}
	d.state = mvswrapper.StateGrabbing

	slog.Info(d.component+": grabbing started", "serial", d.serial, "strategy", strategy)
	return nil
}

func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopLocked()
}

func (d *Device) stopLocked() error {
	if d.state != mvswrapper.StateGrabbing {
		return nil
	}
	if err := d.driver.StopGrabbing(); err != nil {
		return fmt.Errorf("%s: stop %s: %w", d.component, d.serial, err)
	}
	d.state = mvswrapper.StateOpen

	slog.Info(d.component+": grabbing stopped", "serial", d.serial)
	return nil
}

func (d *Device) Subscribe(mode mvswrapper.SubscribeMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.usable(); err != nil {
		return err
	}
	if d.state == mvswrapper.StateClosed {
		return fmt.Errorf("%s: %w", d.component, &mvswrapper.StateError{Op: "subscribe", State: d.state})
	}
	if d.subscribed {
		return nil
	}

	// frames of the previous session stay queued until registration succeeds
	if err := d.driver.Attach(d.listener, mode); err != nil {
		return fmt.Errorf("%s: subscribe %s: %w", d.component, d.serial, err)
	}
	d.listener.Attach()
	d.subscribed = true

	slog.Info(d.component+": listener subscribed", "serial", d.serial, "mode", mode)
	return nil
}

func (d *Device) Unsubscribe() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.unsubscribeLocked()
}

// unsubscribeLocked deregisters from the SDK, then drains the gate. The gate
// is closed even when deregistration fails so no further frame is queued.
func (d *Device) unsubscribeLocked() error {
	if !d.subscribed {
		return nil
	}
	err := d.driver.Detach()
	d.listener.Detach()
	d.subscribed = false

	if err != nil {
		return fmt.Errorf("%s: unsubscribe %s: %w", d.component, d.serial, err)
	}
	slog.Info(d.component+": listener unsubscribed", "serial", d.serial)
	return nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeLocked()
}

// closeLocked stops and unsubscribes as needed before closing the link.
// Errors from those steps are joined with the close error.
func (d *Device) closeLocked() error {
	if d.state == mvswrapper.StateClosed && !d.subscribed {
		return nil
	}

	var errs []error
	if err := d.stopLocked(); err != nil {
		errs = append(errs, err)
	}
	if err := d.unsubscribeLocked(); err != nil {
		errs = append(errs, err)
	}
	if d.state != mvswrapper.StateClosed {
		if err := d.driver.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: close %s: %w", d.component, d.serial, err))
		} else {
			d.state = mvswrapper.StateClosed
			slog.Info(d.component+": device closed", "serial", d.serial)
		}
	}
	return errors.Join(errs...)
}

func (d *Device) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return nil
	}
	err := d.closeLocked()
	if rerr := d.driver.Release(); rerr != nil {
		err = errors.Join(err, fmt.Errorf("%s: release %s: %w", d.component, d.serial, rerr))
	}
	d.released = true
	d.queue.Reset()

	slog.Debug(d.component+": device released", "serial", d.serial)
	return err
}

// NextImage pops the oldest frame; an empty queue yields a zero Frame and nil
func (d *Device) NextImage() (mvswrapper.Frame, error) {
	f, ok := d.queue.Pop()
	if !ok {
		return mvswrapper.Frame{}, nil
	}
	return f, nil
}

func (d *Device) usable() error {
	if d.released {
		return fmt.Errorf("%s: %s: %w", d.component, d.serial, mvswrapper.ErrReleased)
	}
	return nil
}
