package link

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoopbackStartsStopped(t *testing.T) {
	now := time.Now()
	c := NewLoopback(now, 120)

	state := c.State(now.Add(time.Second), 4)
	assert.False(t, state.Playing)
	assert.Zero(t, state.Beats, "a stopped clock does not advance")
	assert.Equal(t, 120.0, state.Tempo)
}

func TestLoopbackAdvancesWhilePlaying(t *testing.T) {
	now := time.Now()
	c := NewLoopback(now, 120)
	c.SetPlaying(now, true)

	// 120 bpm is 2 beats per second.
	state := c.State(now.Add(time.Second), 4)
	assert.InDelta(t, 2.0, state.Beats, 1e-9)
	assert.InDelta(t, 2.0, state.Phase, 1e-9)

	state = c.State(now.Add(3*time.Second), 4)
	assert.InDelta(t, 6.0, state.Beats, 1e-9)
	assert.InDelta(t, 2.0, state.Phase, 1e-9, "phase wraps at the quantum")
}

func TestLoopbackTempoChangeKeepsBeatContinuity(t *testing.T) {
	now := time.Now()
	c := NewLoopback(now, 120)
	c.SetPlaying(now, true)

	// 2 beats elapse, then the tempo doubles.
	at := now.Add(time.Second)
	c.SetTempo(at, 240)

	state := c.State(at, 4)
	assert.InDelta(t, 2.0, state.Beats, 1e-9, "no jump at the change point")

	state = c.State(at.Add(time.Second), 4)
	assert.InDelta(t, 6.0, state.Beats, 1e-9, "4 beats per second after")
}

func TestLoopbackStopFreezesBeats(t *testing.T) {
	now := time.Now()
	c := NewLoopback(now, 60)
	c.SetPlaying(now, true)

	at := now.Add(2 * time.Second)
	c.SetPlaying(at, false)

	frozen := c.State(at.Add(time.Minute), 4).Beats
	assert.InDelta(t, 2.0, frozen, 1e-9)

	// Resuming continues from the frozen position.
	resume := at.Add(2 * time.Minute)
	c.SetPlaying(resume, true)
	state := c.State(resume.Add(time.Second), 4)
	assert.InDelta(t, 3.0, state.Beats, 1e-9)
}

func TestLoopbackRejectsBadTempo(t *testing.T) {
	now := time.Now()
	c := NewLoopback(now, 0)
	assert.Equal(t, 120.0, c.State(now, 4).Tempo, "default tempo")

	c.SetTempo(now, -10)
	assert.Equal(t, 120.0, c.State(now, 4).Tempo, "bad tempo ignored")
}
