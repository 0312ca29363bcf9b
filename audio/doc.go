// Package audio provides the device abstraction and frame types for the
// audmon engine.
//
// The package exposes a small capability surface over whatever native
// audio/MIDI host is in use: enumerate devices, open a callback-driven
// stream, close it. Frames produced by a stream callback are handed onward
// immediately and unmodified; buffering and transformation happen in the
// layers above.
//
// Example:
//
//	backend := audio.NewSyntheticBackend(48000, 64)
//	devices, _ := backend.Devices()
//
//	stream, err := backend.Open(devices[0].Name, func(frame audio.Frame) {
//	    // invoked once per hardware period on the stream's own goroutine
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer stream.Close()
package audio
