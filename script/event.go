package script

import "github.com/opd-ai/audmon/audio"

// EventKind identifies what a script pushed back to the host.
type EventKind int

const (
	// EventLog appends a message to the session log.
	EventLog EventKind = iota

	// EventAlert surfaces a user-visible notice.
	EventAlert

	// EventConnect asks the session to switch active device.
	EventConnect

	// EventPause and EventResume toggle the session's paused flag.
	EventPause
	EventResume

	// EventStop requests a graceful session shutdown.
	EventStop

	// EventLoaded reports that a script generation finished loading.
	EventLoaded

	// EventLoadError reports a rejected script load; the previous
	// generation, if any, keeps running.
	EventLoadError

	// EventRuntimeError reports a contained failure inside a hook call.
	EventRuntimeError

	// EventMidiDisplay and EventAudioDisplay carry data the script chose
	// to display (the hook returned true or was absent).
	EventMidiDisplay
	EventAudioDisplay
)

// Event is one message from the scripting host to the embedding session.
//
// Generation stamps the script generation that produced the event;
// consumers discard events whose generation no longer matches the
// engine's current one.
type Event struct {
	Kind       EventKind
	Generation uint64
	Message    string
	Device     string
	Bytes      []byte
	Frame      audio.Frame
}
