// Package script hosts the user-supplied Lua script that observes and
// steers an audmon session.
//
// A script defines any subset of seven hooks (on_start, on_discover,
// on_connect, on_midi, on_audio, on_tick, on_stop) and may call back into
// the engine through a small host API (log, alert, connect, pause,
// resume, stop). Every hook invocation crosses a protected call boundary:
// a runtime failure inside a hook is reported and treated as a no-op, it
// never terminates the session.
//
// All script state is owned by a single engine goroutine, so hook calls
// for a given script generation are strictly serialized. Hot reload is
// delivered as an explicit message on the same control channel: a changed
// script is compiled out-of-band and swapped in only if compilation
// succeeds, incrementing the generation counter.
package script
