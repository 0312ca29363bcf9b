package script

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audmon/audio"
)

// ErrInvalidScriptPath is returned by Load for paths that do not name a
// readable file.
var ErrInvalidScriptPath = errors.New("invalid script path")

// Config shapes an Engine.
type Config struct {
	// TimeoutMS is the auto-close duration passed to on_start. Zero
	// means no automatic close.
	TimeoutMS uint32

	// QueueDepth bounds the host and script event channels. Zero means
	// 1024.
	QueueDepth int
}

type hostEventKind int

const (
	hostLoad hostEventKind = iota
	hostReload
	hostDiscover
	hostConnect
	hostMidi
	hostAudio
	hostTick
	hostStop
)

type hostEvent struct {
	kind   hostEventKind
	path   string
	names  []string
	device string
	bytes  []byte
	frame  audio.Frame
}

// Engine runs the scripting host on a single goroutine.
//
// All lifecycle and data events funnel through one bounded control
// channel consumed by that goroutine, so hook calls for a given script
// generation are strictly serialized and a hot reload can never race an
// in-flight hook.
type Engine struct {
	cfg    Config
	host   chan hostEvent
	events chan Event
	quit   chan struct{}
	done   chan struct{}

	generation atomic.Uint64
	closeOnce  sync.Once

	mu      sync.Mutex
	watcher *watcher

	// Owned by the engine goroutine.
	runtime *Runtime
	path    string
	device  string
}

// NewEngine creates an Engine and starts its dispatch goroutine. No
// script is loaded yet; every hook is skipped until Load succeeds.
func NewEngine(cfg Config) *Engine {
	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = 1024
	}

	e := &Engine{
		cfg:    cfg,
		host:   make(chan hostEvent, depth),
		events: make(chan Event, depth),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go e.run()

	logrus.WithFields(logrus.Fields{
		"function":    "NewEngine",
		"timeout_ms":  cfg.TimeoutMS,
		"queue_depth": depth,
	}).Info("Script engine started")

	return e
}

// Events returns the script-to-host event stream. Consumers should
// discard events whose Generation no longer matches Generation().
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Generation returns the identifier of the currently installed script
// generation. It starts at zero and increments on every successful load.
func (e *Engine) Generation() uint64 {
	return e.generation.Load()
}

// Load requests that the script at path be loaded, watching it for
// changes afterwards. The load itself happens on the engine goroutine;
// compile failures are reported as EventLoadError.
func (e *Engine) Load(path string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ErrInvalidScriptPath
	}

	e.mu.Lock()
	if e.watcher == nil {
		w, werr := newWatcher(path, func() {
			e.post(hostEvent{kind: hostReload})
		})
		if werr != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Engine.Load",
				"path":     path,
				"error":    werr.Error(),
			}).Warn("Script watcher unavailable, hot reload disabled")
		} else {
			e.watcher = w
		}
	}
	e.mu.Unlock()

	e.post(hostEvent{kind: hostLoad, path: path})
	return nil
}

// Discover announces the discovered device names to the script.
func (e *Engine) Discover(names []string) {
	e.post(hostEvent{kind: hostDiscover, names: names})
}

// Connect announces the active device to the script.
func (e *Engine) Connect(device string) {
	e.post(hostEvent{kind: hostConnect, device: device})
}

// Midi hands one MIDI message to on_midi.
func (e *Engine) Midi(device string, bytes []byte) {
	e.post(hostEvent{kind: hostMidi, device: device, bytes: bytes})
}

// Audio hands one ordered frame to on_audio.
func (e *Engine) Audio(frame audio.Frame) {
	e.post(hostEvent{kind: hostAudio, frame: frame})
}

// Tick drives on_tick. Ticks keep flowing while the session is paused.
func (e *Engine) Tick() {
	e.post(hostEvent{kind: hostTick})
}

// StopScript calls on_stop on the current generation without unloading
// the engine.
func (e *Engine) StopScript() {
	e.post(hostEvent{kind: hostStop})
}

// Close stops the watcher and the engine goroutine, calling on_stop on
// the current generation first. It is safe to call more than once.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		if e.watcher != nil {
			e.watcher.Close()
			e.watcher = nil
		}
		e.mu.Unlock()

		close(e.quit)
		<-e.done
	})
	return nil
}

// post offers an event to the engine without blocking; the newest event
// is shed when the queue is full.
func (e *Engine) post(ev hostEvent) {
	select {
	case e.host <- ev:
	default:
		logrus.WithFields(logrus.Fields{
			"function": "Engine.post",
			"kind":     ev.kind,
		}).Warn("Engine queue full, event dropped")
	}
}

func (e *Engine) run() {
	defer close(e.done)

	for {
		select {
		case <-e.quit:
			e.teardown()
			return
		case ev := <-e.host:
			e.handle(ev)
		}
	}
}

func (e *Engine) teardown() {
	if e.runtime == nil {
		return
	}
	if err := e.runtime.OnStop(); err != nil {
		e.reportRuntimeError(err)
	}
	e.runtime.Close()
	e.runtime = nil
}

func (e *Engine) handle(ev hostEvent) {
	switch ev.kind {
	case hostLoad:
		e.loadScript(ev.path)

	case hostReload:
		if e.path != "" {
			e.loadScript(e.path)
		}

	case hostDiscover:
		if e.runtime != nil {
			if err := e.runtime.OnDiscover(ev.names); err != nil {
				e.reportRuntimeError(err)
			}
		}

	case hostConnect:
		e.device = ev.device
		if e.runtime != nil {
			if err := e.runtime.OnConnect(ev.device); err != nil {
				e.reportRuntimeError(err)
			}
		}

	case hostMidi:
		e.dispatchMidi(ev)

	case hostAudio:
		e.dispatchAudio(ev)

	case hostTick:
		if e.runtime != nil {
			if err := e.runtime.OnTick(); err != nil {
				e.reportRuntimeError(err)
			}
		}

	case hostStop:
		if e.runtime != nil {
			if err := e.runtime.OnStop(); err != nil {
				e.reportRuntimeError(err)
			}
		}
	}
}

func (e *Engine) dispatchMidi(ev hostEvent) {
	display := true
	if e.runtime != nil {
		var err error
		display, err = e.runtime.OnMidi(ev.device, ev.bytes)
		if err != nil {
			e.reportRuntimeError(err)
			return
		}
	}
	if display {
		e.emit(Event{Kind: EventMidiDisplay, Device: ev.device, Bytes: ev.bytes})
	}
}

func (e *Engine) dispatchAudio(ev hostEvent) {
	display := true
	if e.runtime != nil {
		var err error
		display, err = e.runtime.OnAudio(ev.frame.Source, ev.frame.Channels)
		if err != nil {
			e.reportRuntimeError(err)
			return
		}
	}
	if display {
		e.emit(Event{Kind: EventAudioDisplay, Device: ev.frame.Source, Frame: ev.frame})
	}
}

// loadScript compiles the script into a fresh runtime and swaps it in
// only on success. A rejected load leaves the previous generation fully
// intact and dispatching.
func (e *Engine) loadScript(path string) {
	chunk, err := os.ReadFile(path)
	if err != nil {
		e.emit(Event{Kind: EventLoadError, Message: err.Error()})
		return
	}

	nextGen := e.generation.Load() + 1
	candidate := NewRuntime(filepath.Base(path), nextGen, e.events)

	if err := candidate.Load(string(chunk)); err != nil {
		candidate.Close()
		logrus.WithFields(logrus.Fields{
			"function": "Engine.loadScript",
			"script":   path,
			"error":    err.Error(),
		}).Error("Script load rejected, previous generation keeps running")
		e.emit(Event{Kind: EventLoadError, Message: err.Error()})
		return
	}

	if e.runtime != nil {
		if err := e.runtime.OnStop(); err != nil {
			e.reportRuntimeError(err)
		}
		e.runtime.Close()
	}

	e.runtime = candidate
	e.path = path
	e.generation.Store(nextGen)

	e.emit(Event{Kind: EventLoaded, Message: filepath.Base(path)})

	if err := e.runtime.OnStart(e.cfg.TimeoutMS); err != nil {
		e.reportRuntimeError(err)
	}
}

func (e *Engine) reportRuntimeError(err error) {
	logrus.WithFields(logrus.Fields{
		"function":   "Engine.reportRuntimeError",
		"script":     e.path,
		"generation": e.generation.Load(),
		"error":      err.Error(),
	}).Warn("Script hook failed, call treated as no-op")

	e.emit(Event{Kind: EventRuntimeError, Message: err.Error()})
}

func (e *Engine) emit(event Event) {
	event.Generation = e.generation.Load()
	select {
	case e.events <- event:
	default:
		logrus.WithFields(logrus.Fields{
			"function": "Engine.emit",
			"kind":     event.Kind,
		}).Warn("Script event queue full, event dropped")
	}
}
