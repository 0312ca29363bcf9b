package script

import (
	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"
)

// installHostAPI registers the functions a script may call back into the
// engine: log, alert, connect, pause, resume, stop.
//
// Each function pushes an Event onto the bounded events channel without
// blocking; when the channel is full the event is dropped and logged, so
// a chatty script cannot stall its own dispatch.
func (r *Runtime) installHostAPI(generation uint64, events chan<- Event) {
	emit := func(event Event) {
		event.Generation = generation
		select {
		case events <- event:
		default:
			logrus.WithFields(logrus.Fields{
				"function": "Runtime.installHostAPI",
				"script":   r.name,
				"kind":     event.Kind,
			}).Error("Script event queue full, event dropped")
		}
	}

	r.state.SetGlobal("log", r.state.NewFunction(func(L *lua.LState) int {
		emit(Event{Kind: EventLog, Message: L.CheckString(1)})
		return 0
	}))

	r.state.SetGlobal("alert", r.state.NewFunction(func(L *lua.LState) int {
		message := L.CheckString(1)
		emit(Event{Kind: EventAlert, Message: message})
		L.Push(lua.LString(message))
		return 1
	}))

	r.state.SetGlobal("connect", r.state.NewFunction(func(L *lua.LState) int {
		emit(Event{Kind: EventConnect, Device: L.CheckString(1)})
		return 0
	}))

	r.state.SetGlobal("pause", r.state.NewFunction(func(L *lua.LState) int {
		emit(Event{Kind: EventPause})
		return 0
	}))

	r.state.SetGlobal("resume", r.state.NewFunction(func(L *lua.LState) int {
		emit(Event{Kind: EventResume})
		return 0
	}))

	r.state.SetGlobal("stop", r.state.NewFunction(func(L *lua.LState) int {
		emit(Event{Kind: EventStop})
		return 0
	}))
}
