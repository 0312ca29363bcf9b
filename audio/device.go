package audio

import (
	"errors"
	"fmt"
)

// ErrDeviceNotFound is returned by Backend.Open when the named device is
// not present in the backend's device list.
var ErrDeviceNotFound = errors.New("audio device not found")

// DeviceOpenError reports a failure to open a device that does exist.
// It is fatal to that open attempt only; callers may retry or fall back.
type DeviceOpenError struct {
	Name   string
	Reason error
}

func (e *DeviceOpenError) Error() string {
	return fmt.Sprintf("failed to open device %q: %v", e.Name, e.Reason)
}

func (e *DeviceOpenError) Unwrap() error { return e.Reason }

// Device describes a discoverable audio or MIDI endpoint.
//
// Devices are immutable once reported. Identity is Name, which is assumed
// unique for the lifetime of the process.
type Device struct {
	Name     string
	Channels uint32
}

// FrameCallback is invoked by an open stream once per hardware period.
//
// The callback runs on a dedicated stream goroutine standing in for the
// host's real-time thread: it must not block on I/O, unbounded locks, or
// allocation-heavy work. Hand the frame off and return.
type FrameCallback func(Frame)

// Stream is a handle to an open device stream. Close stops callbacks and
// releases the underlying resources; it is safe to call more than once.
type Stream interface {
	Close() error
}

// Backend is the capability exposed by a native audio/MIDI host.
//
// Implementations enumerate devices and open push-style callback streams.
// The engine performs no buffering or transformation at this layer.
type Backend interface {
	// Devices lists the endpoints currently visible to the backend.
	Devices() ([]Device, error)

	// Open starts a callback stream on the named device. It returns
	// ErrDeviceNotFound for unknown names and a *DeviceOpenError when the
	// device exists but cannot be started.
	Open(name string, fn FrameCallback) (Stream, error)
}
