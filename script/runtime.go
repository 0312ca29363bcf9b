package script

import (
	"fmt"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"
)

// Hook names a script may define. A hook not supplied is simply skipped.
const (
	hookOnStart    = "on_start"
	hookOnDiscover = "on_discover"
	hookOnConnect  = "on_connect"
	hookOnMidi     = "on_midi"
	hookOnAudio    = "on_audio"
	hookOnTick     = "on_tick"
	hookOnStop     = "on_stop"
)

// HookTable holds the optional callables a script defined, resolved once
// at load time so dispatch never probes the global table again.
type HookTable struct {
	OnStart    *lua.LFunction
	OnDiscover *lua.LFunction
	OnConnect  *lua.LFunction
	OnMidi     *lua.LFunction
	OnAudio    *lua.LFunction
	OnTick     *lua.LFunction
	OnStop     *lua.LFunction
}

// Runtime owns one Lua state and the hook table resolved from the loaded
// chunk. It must only be used from the engine goroutine.
type Runtime struct {
	state *lua.LState
	hooks HookTable
	name  string
}

// NewRuntime creates a fresh Lua state with the host API installed.
// Events emitted by the host API are stamped with generation and pushed
// to events without blocking.
func NewRuntime(name string, generation uint64, events chan<- Event) *Runtime {
	r := &Runtime{
		state: lua.NewState(),
		name:  name,
	}
	r.installHostAPI(generation, events)
	return r
}

// Load compiles and executes the script chunk, then resolves the hook
// table. A compile or top-level execution error leaves no hooks
// installed.
func (r *Runtime) Load(chunk string) error {
	fn, err := r.state.LoadString(chunk)
	if err != nil {
		return fmt.Errorf("script compile failed: %w", err)
	}

	r.state.Push(fn)
	if err := r.state.PCall(0, lua.MultRet, nil); err != nil {
		return fmt.Errorf("script evaluation failed: %w", err)
	}

	r.hooks = HookTable{
		OnStart:    r.global(hookOnStart),
		OnDiscover: r.global(hookOnDiscover),
		OnConnect:  r.global(hookOnConnect),
		OnMidi:     r.global(hookOnMidi),
		OnAudio:    r.global(hookOnAudio),
		OnTick:     r.global(hookOnTick),
		OnStop:     r.global(hookOnStop),
	}

	logrus.WithFields(logrus.Fields{
		"function": "Runtime.Load",
		"script":   r.name,
	}).Info("Script loaded")

	return nil
}

// Close releases the Lua state.
func (r *Runtime) Close() {
	r.state.Close()
}

func (r *Runtime) global(name string) *lua.LFunction {
	if fn, ok := r.state.GetGlobal(name).(*lua.LFunction); ok {
		return fn
	}
	return nil
}

// call invokes one hook across the protected boundary. A nil hook is a
// no-op. Any failure, Lua error or Go panic alike, is returned as an
// error and the call's effect is discarded.
func (r *Runtime) call(fn *lua.LFunction, nret int, args ...lua.LValue) (result lua.LValue, err error) {
	if fn == nil {
		return lua.LNil, nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = lua.LNil
			err = fmt.Errorf("script panicked: %v", rec)
		}
	}()

	if err := r.state.CallByParam(lua.P{Fn: fn, NRet: nret, Protect: true}, args...); err != nil {
		return lua.LNil, err
	}

	if nret == 0 {
		return lua.LNil, nil
	}

	result = r.state.Get(-1)
	r.state.Pop(nret)
	return result, nil
}

// OnStart announces the session start, passing the auto-close timeout in
// milliseconds (zero means none).
func (r *Runtime) OnStart(timeoutMS uint32) error {
	_, err := r.call(r.hooks.OnStart, 0, lua.LNumber(timeoutMS))
	return err
}

// OnDiscover announces the discovered device names.
func (r *Runtime) OnDiscover(names []string) error {
	tbl := r.state.NewTable()
	for _, name := range names {
		tbl.Append(lua.LString(name))
	}
	_, err := r.call(r.hooks.OnDiscover, 0, tbl)
	return err
}

// OnConnect announces the device the session connected to.
func (r *Runtime) OnConnect(device string) error {
	_, err := r.call(r.hooks.OnConnect, 0, lua.LString(device))
	return err
}

// OnMidi hands one MIDI message to the script and reports whether the
// message should be displayed. An absent hook, or a hook returning
// nothing, means display.
func (r *Runtime) OnMidi(device string, bytes []byte) (bool, error) {
	if r.hooks.OnMidi == nil {
		return true, nil
	}

	tbl := r.state.NewTable()
	for _, b := range bytes {
		tbl.Append(lua.LNumber(b))
	}

	result, err := r.call(r.hooks.OnMidi, 1, lua.LString(device), tbl)
	if err != nil {
		return false, err
	}
	if result == lua.LNil {
		return true, nil
	}
	return lua.LVAsBool(result), nil
}

// OnAudio hands one deinterleaved audio buffer to the script and reports
// whether it should be displayed.
func (r *Runtime) OnAudio(device string, channels [][]float32) (bool, error) {
	if r.hooks.OnAudio == nil {
		return true, nil
	}

	tbl := r.state.NewTable()
	for _, channel := range channels {
		ch := r.state.NewTable()
		for _, sample := range channel {
			ch.Append(lua.LNumber(sample))
		}
		tbl.Append(ch)
	}

	result, err := r.call(r.hooks.OnAudio, 1, lua.LString(device), tbl)
	if err != nil {
		return false, err
	}
	if result == lua.LNil {
		return true, nil
	}
	return lua.LVAsBool(result), nil
}

// OnTick drives the script's periodic hook. It runs even while the
// session is paused.
func (r *Runtime) OnTick() error {
	_, err := r.call(r.hooks.OnTick, 0)
	return err
}

// OnStop announces session teardown or an imminent generation swap.
func (r *Runtime) OnStop() error {
	_, err := r.call(r.hooks.OnStop, 0)
	return err
}
