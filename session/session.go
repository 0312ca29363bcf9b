// Package session composes the audmon engine: device abstraction,
// scripting host, and optional audio packet transport, under one
// pause/resume/stop surface.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/opd-ai/audmon/audio"
	"github.com/opd-ai/audmon/midi"
	"github.com/opd-ai/audmon/script"
	"github.com/opd-ai/audmon/transport"
)

// ErrNoDevices is returned by Run when the backend reports nothing to
// open and no remote receiver is configured.
var ErrNoDevices = errors.New("no devices available")

// Config describes one session.
type Config struct {
	// AudioBackend supplies local audio devices. Optional when Receiver
	// is set.
	AudioBackend audio.Backend

	// MidiBackend supplies local MIDI inputs. Optional.
	MidiBackend midi.Backend

	// Device is the requested device name; empty selects the first
	// discovered device.
	Device string

	// Script is an optional Lua script path loaded at start and watched
	// for changes.
	Script string

	// TimeoutMS auto-stops the session after this many milliseconds.
	// Zero means run until stopped.
	TimeoutMS uint32

	// TickInterval drives on_tick. Zero means 100ms.
	TickInterval time.Duration

	// Transmitter, when set, receives every locally captured frame via
	// Push. The session closes it on teardown.
	Transmitter *transport.Transmitter

	// Receiver, when set, contributes a remote ordered frame stream.
	// The session closes it on teardown.
	Receiver *transport.Receiver

	// CaptureDepth bounds the realtime hand-off queue. Zero means 16.
	CaptureDepth int
}

// Session is the top-level orchestrator. Create it with New, drive it
// with Run, and steer it with Pause, Resume, Connect, and Stop, the
// same surface exposed to scripts through the host API.
type Session struct {
	cfg    Config
	engine *script.Engine

	capture   *audio.Capture
	midiQueue chan midi.Message
	out       chan script.Event

	paused  atomic.Bool
	stopped atomic.Bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	devices []audio.Device
	stream  audio.Stream
	port    midi.Port
	active  string
}

// New creates a Session and its script engine. No hardware is touched
// until Run.
func New(cfg Config) *Session {
	depth := cfg.CaptureDepth
	if depth <= 0 {
		depth = 16
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 100 * time.Millisecond
	}

	s := &Session{
		cfg:       cfg,
		engine:    script.NewEngine(script.Config{TimeoutMS: cfg.TimeoutMS}),
		capture:   audio.NewCapture(depth),
		midiQueue: make(chan midi.Message, depth),
		out:       make(chan script.Event, 256),
	}

	logrus.WithFields(logrus.Fields{
		"function":      "session.New",
		"device":        cfg.Device,
		"script":        cfg.Script,
		"timeout_ms":    cfg.TimeoutMS,
		"transmitting":  cfg.Transmitter != nil,
		"has_receiver":  cfg.Receiver != nil,
		"capture_depth": depth,
	}).Info("Session created")

	return s
}

// Events exposes display and notification events for the embedding UI:
// midi/audio display decisions, script logs, alerts, and load status.
// Control events are consumed internally.
func (s *Session) Events() <-chan script.Event {
	return s.out
}

// Active returns the currently connected device name, empty before the
// first connect.
func (s *Session) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Paused reports the session's paused flag.
func (s *Session) Paused() bool {
	return s.paused.Load()
}

// Pause suspends on_midi/on_audio dispatch. Ticks keep flowing.
func (s *Session) Pause() {
	s.paused.Store(true)
}

// Resume lifts a pause.
func (s *Session) Resume() {
	s.paused.Store(false)
}

// Stop requests a graceful shutdown. It is observed at the next dispatch
// boundary and never interrupts an in-progress hook call.
func (s *Session) Stop() {
	if s.stopped.CompareAndSwap(false, true) {
		logrus.WithFields(logrus.Fields{
			"function": "Session.Stop",
		}).Info("Session stop requested")

		s.mu.Lock()
		cancel := s.cancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}
}

// Connect switches the active device, closing the previous stream first.
// Unknown names return audio.ErrDeviceNotFound.
func (s *Session) Connect(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(name)
}

func (s *Session) connectLocked(name string) error {
	var device *audio.Device
	for i := range s.devices {
		if s.devices[i].Name == name {
			device = &s.devices[i]
			break
		}
	}
	if device == nil {
		return audio.ErrDeviceNotFound
	}

	s.closeStreamsLocked()

	if s.cfg.MidiBackend != nil && device.Channels == 0 {
		port, err := s.cfg.MidiBackend.Open(name, func(msg midi.Message) {
			select {
			case s.midiQueue <- msg:
			default:
			}
		})
		if err != nil {
			return err
		}
		s.port = port
	} else if s.cfg.AudioBackend != nil {
		stream, err := s.cfg.AudioBackend.Open(name, func(frame audio.Frame) {
			s.capture.Push(frame)
		})
		if err != nil {
			return err
		}
		s.stream = stream
	}

	s.active = name
	s.engine.Connect(name)

	logrus.WithFields(logrus.Fields{
		"function": "Session.Connect",
		"device":   name,
	}).Info("Connected to device")

	return nil
}

func (s *Session) closeStreamsLocked() {
	if s.stream != nil {
		_ = s.stream.Close()
		s.stream = nil
	}
	if s.port != nil {
		_ = s.port.Close()
		s.port = nil
	}
}

// Run starts the session and blocks until it stops: by Stop, a script
// stop() call, timeout expiry, or ctx cancellation. All streams and
// sockets are released on every exit path.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	defer s.teardown()

	if s.stopped.Load() {
		return nil
	}

	if s.cfg.Script != "" {
		if err := s.engine.Load(s.cfg.Script); err != nil {
			return err
		}
	}

	if err := s.discoverAndConnect(); err != nil {
		return err
	}

	if s.cfg.TimeoutMS > 0 {
		timer := time.AfterFunc(time.Duration(s.cfg.TimeoutMS)*time.Millisecond, s.Stop)
		defer timer.Stop()
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return s.frameLoop(ctx) })
	group.Go(func() error { return s.midiLoop(ctx) })
	group.Go(func() error { return s.tickLoop(ctx) })
	group.Go(func() error { return s.eventLoop(ctx) })

	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// discoverAndConnect enumerates devices, informs the script, and opens
// the requested or default device.
func (s *Session) discoverAndConnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.devices = s.devices[:0]
	if s.cfg.AudioBackend != nil {
		devices, err := s.cfg.AudioBackend.Devices()
		if err != nil {
			return err
		}
		s.devices = append(s.devices, devices...)
	}
	if s.cfg.MidiBackend != nil {
		devices, err := s.cfg.MidiBackend.Devices()
		if err != nil {
			return err
		}
		s.devices = append(s.devices, devices...)
	}

	names := make([]string, len(s.devices))
	for i, d := range s.devices {
		names[i] = d.Name
	}
	s.engine.Discover(names)

	if len(s.devices) == 0 {
		if s.cfg.Receiver != nil {
			return nil
		}
		return ErrNoDevices
	}

	requested := s.cfg.Device
	if requested == "" {
		requested = s.devices[0].Name
	}
	return s.connectLocked(requested)
}

func (s *Session) teardown() {
	s.mu.Lock()
	s.closeStreamsLocked()
	s.mu.Unlock()

	_ = s.engine.Close()

	if s.cfg.Transmitter != nil {
		_ = s.cfg.Transmitter.Close()
	}
	if s.cfg.Receiver != nil {
		_ = s.cfg.Receiver.Close()
	}

	logrus.WithFields(logrus.Fields{
		"function": "Session.teardown",
		"dropped":  s.capture.Dropped(),
	}).Info("Session torn down")
}

// frameLoop forwards captured and received frames to the script engine
// and, when transmitting, to the transport gate. Pausing suspends hook
// dispatch but not transmission.
func (s *Session) frameLoop(ctx context.Context) error {
	var remote <-chan audio.Frame
	if s.cfg.Receiver != nil {
		remote = s.cfg.Receiver.Frames()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case frame := <-s.capture.Frames():
			if s.cfg.Transmitter != nil {
				s.cfg.Transmitter.Push(frame.Source, frame)
			}
			if !s.paused.Load() {
				s.engine.Audio(frame)
			}

		case frame := <-remote:
			if !s.paused.Load() {
				s.engine.Audio(frame)
			}
		}
	}
}

func (s *Session) midiLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-s.midiQueue:
			if !s.paused.Load() {
				s.engine.Midi(msg.Device, msg.Bytes)
			}
		}
	}
}

func (s *Session) tickLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.engine.Tick()
		}
	}
}

// eventLoop consumes script events, applying control requests to this
// session and forwarding everything else to the embedding UI. Display
// events from a stale generation are discarded.
func (s *Session) eventLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event := <-s.engine.Events():
			switch event.Kind {
			case script.EventPause:
				s.Pause()
			case script.EventResume:
				s.Resume()
			case script.EventStop:
				s.Stop()
			case script.EventConnect:
				if err := s.Connect(event.Device); err != nil {
					logrus.WithFields(logrus.Fields{
						"function": "Session.eventLoop",
						"device":   event.Device,
						"error":    err.Error(),
					}).Warn("Script connect request failed")
				}
			case script.EventMidiDisplay, script.EventAudioDisplay:
				if event.Generation != s.engine.Generation() {
					continue
				}
				s.forward(event)
			default:
				s.forward(event)
			}
		}
	}
}

func (s *Session) forward(event script.Event) {
	select {
	case s.out <- event:
	default:
	}
}
