package script

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/audmon/audio"
)

func writeScript(t *testing.T, dir, name, chunk string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(chunk), 0o644))
	return path
}

func waitFor(t *testing.T, e *Engine, kind EventKind) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case event := <-e.Events():
			if event.Kind == kind {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %d", kind)
		}
	}
}

func TestEngineLoadsScript(t *testing.T) {
	e := NewEngine(Config{})
	defer e.Close()

	path := writeScript(t, t.TempDir(), "ok.lua", `
		function on_start(timeout_ms)
			log("started")
		end
	`)

	require.NoError(t, e.Load(path))
	loaded := waitFor(t, e, EventLoaded)
	assert.Equal(t, "ok.lua", loaded.Message)
	assert.Equal(t, uint64(1), e.Generation())

	started := waitFor(t, e, EventLog)
	assert.Equal(t, "started", started.Message)
}

func TestEngineRejectsMissingPath(t *testing.T) {
	e := NewEngine(Config{})
	defer e.Close()

	assert.ErrorIs(t, e.Load("/does/not/exist.lua"), ErrInvalidScriptPath)
	assert.ErrorIs(t, e.Load(t.TempDir()), ErrInvalidScriptPath)
}

func TestEngineDispatchesDataToHooks(t *testing.T) {
	e := NewEngine(Config{})
	defer e.Close()

	path := writeScript(t, t.TempDir(), "filter.lua", `
		function on_midi(device, bytes)
			return bytes[1] ~= 0xF8
		end
	`)

	require.NoError(t, e.Load(path))
	waitFor(t, e, EventLoaded)

	e.Midi("dev", []byte{0x90, 0x3c, 0x7f})
	shown := waitFor(t, e, EventMidiDisplay)
	assert.Equal(t, "dev", shown.Device)
	assert.Equal(t, []byte{0x90, 0x3c, 0x7f}, shown.Bytes)

	// Clock messages are filtered by the script: no display event, and
	// the next displayable message still comes through in order.
	e.Midi("dev", []byte{0xF8})
	e.Midi("dev", []byte{0x80, 0x3c, 0x00})
	shown = waitFor(t, e, EventMidiDisplay)
	assert.Equal(t, []byte{0x80, 0x3c, 0x00}, shown.Bytes)
}

func TestEngineWithoutScriptDisplaysEverything(t *testing.T) {
	e := NewEngine(Config{})
	defer e.Close()

	e.Midi("dev", []byte{0x90})
	shown := waitFor(t, e, EventMidiDisplay)
	assert.Equal(t, uint64(0), shown.Generation)

	e.Audio(audio.Frame{Source: "synth", Channels: [][]float32{{1}}, FrameCount: 1})
	audioShown := waitFor(t, e, EventAudioDisplay)
	assert.Equal(t, "synth", audioShown.Device)
}

func TestEngineContainsHookFailures(t *testing.T) {
	e := NewEngine(Config{})
	defer e.Close()

	path := writeScript(t, t.TempDir(), "flaky.lua", `
		local calls = 0
		function on_midi(device, bytes)
			calls = calls + 1
			if calls == 1 then
				error("boom")
			end
			return true
		end
	`)

	require.NoError(t, e.Load(path))
	waitFor(t, e, EventLoaded)

	e.Midi("dev", []byte{0x01})
	failure := waitFor(t, e, EventRuntimeError)
	assert.Contains(t, failure.Message, "boom")

	// The session survives and the same hook keeps dispatching.
	e.Midi("dev", []byte{0x02})
	shown := waitFor(t, e, EventMidiDisplay)
	assert.Equal(t, []byte{0x02}, shown.Bytes)
}

func TestEngineReloadSwapsGeneration(t *testing.T) {
	e := NewEngine(Config{})
	defer e.Close()

	dir := t.TempDir()
	path := writeScript(t, dir, "gen.lua", `
		function on_stop()
			log("old generation stopped")
		end
	`)

	require.NoError(t, e.Load(path))
	waitFor(t, e, EventLoaded)
	require.Equal(t, uint64(1), e.Generation())

	writeScript(t, dir, "gen.lua", `
		function on_start(timeout_ms)
			log("new generation started")
		end
	`)
	require.NoError(t, e.Load(path))

	stopped := waitFor(t, e, EventLog)
	assert.Equal(t, "old generation stopped", stopped.Message)

	loaded := waitFor(t, e, EventLoaded)
	assert.Equal(t, uint64(2), loaded.Generation)
	assert.Equal(t, uint64(2), e.Generation())

	started := waitFor(t, e, EventLog)
	assert.Equal(t, "new generation started", started.Message)
}

func TestEngineKeepsOldGenerationOnBrokenReload(t *testing.T) {
	e := NewEngine(Config{})
	defer e.Close()

	dir := t.TempDir()
	path := writeScript(t, dir, "hot.lua", `
		function on_midi(device, bytes)
			return true
		end
	`)

	require.NoError(t, e.Load(path))
	waitFor(t, e, EventLoaded)

	writeScript(t, dir, "hot.lua", `function on_midi( -- broken`)
	require.NoError(t, e.Load(path))

	failure := waitFor(t, e, EventLoadError)
	assert.NotEmpty(t, failure.Message)
	assert.Equal(t, uint64(1), e.Generation(), "generation must not advance")

	// The previous generation's hooks remain fully intact.
	e.Midi("dev", []byte{0x42})
	shown := waitFor(t, e, EventMidiDisplay)
	assert.Equal(t, []byte{0x42}, shown.Bytes)
}

func TestEngineHotReloadsOnFileChange(t *testing.T) {
	e := NewEngine(Config{})
	defer e.Close()

	dir := t.TempDir()
	path := writeScript(t, dir, "watched.lua", `-- first generation`)

	require.NoError(t, e.Load(path))
	waitFor(t, e, EventLoaded)

	// Give the watcher a moment to register before rewriting.
	time.Sleep(100 * time.Millisecond)
	writeScript(t, dir, "watched.lua", `
		function on_start(timeout_ms)
			log("reloaded")
		end
	`)

	require.Eventually(t, func() bool {
		return e.Generation() >= 2
	}, 5*time.Second, 20*time.Millisecond, "file change should trigger a reload")
}

func TestEnginePassesTimeoutToOnStart(t *testing.T) {
	e := NewEngine(Config{TimeoutMS: 250})
	defer e.Close()

	path := writeScript(t, t.TempDir(), "timeout.lua", `
		function on_start(timeout_ms)
			alert("timeout=" .. tostring(timeout_ms))
		end
	`)

	require.NoError(t, e.Load(path))
	notice := waitFor(t, e, EventAlert)
	assert.Equal(t, "timeout=250", notice.Message)
}

func TestEngineTicksWhilePaused(t *testing.T) {
	// Pause gating lives in the session controller; the engine itself
	// always dispatches ticks.
	e := NewEngine(Config{})
	defer e.Close()

	path := writeScript(t, t.TempDir(), "tick.lua", `
		local ticks = 0
		function on_tick()
			ticks = ticks + 1
			log("tick " .. ticks)
		end
	`)

	require.NoError(t, e.Load(path))
	waitFor(t, e, EventLoaded)

	e.Tick()
	e.Tick()
	assert.Equal(t, "tick 1", waitFor(t, e, EventLog).Message)
	assert.Equal(t, "tick 2", waitFor(t, e, EventLog).Message)
}
