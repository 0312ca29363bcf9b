// Package link models a shared tempo timeline for the tempo-sync client.
//
// The real network session (peer discovery, clock consensus) lives in an
// external collaborator; this package names the Clock capability the CLI
// drives and ships a local loopback implementation for offline use and
// tests.
package link

import (
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State is a snapshot of the shared timeline at one instant.
type State struct {
	// Tempo is the session tempo in beats per minute.
	Tempo float64

	// Beats is the continuous beat count since the timeline origin.
	Beats float64

	// Phase is the position inside the current quantum, in [0, quantum).
	Phase float64

	// Playing reports whether the transport is running.
	Playing bool

	// Peers is the number of connected peers, zero for a loopback clock.
	Peers int
}

// Clock is a shared tempo timeline. Implementations are safe for
// concurrent use.
type Clock interface {
	// State captures the timeline at now using the given quantum.
	State(now time.Time, quantum float64) State

	// SetTempo rebases the timeline to the new tempo without a beat jump.
	SetTempo(now time.Time, bpm float64)

	// SetPlaying starts or stops the transport. Stopping freezes the beat
	// counter; starting resumes from the frozen position.
	SetPlaying(now time.Time, playing bool)

	Close() error
}

// Loopback is a Clock with no peers: a purely local timeline with the
// same observable behavior as a connected session of one.
type Loopback struct {
	mu            sync.Mutex
	tempo         float64
	playing       bool
	origin        time.Time
	beatsAtOrigin float64
}

// NewLoopback creates a stopped loopback clock at the given tempo.
// Non-positive tempos default to 120 bpm.
func NewLoopback(now time.Time, bpm float64) *Loopback {
	if bpm <= 0 {
		bpm = 120
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewLoopback",
		"tempo":    bpm,
	}).Info("Loopback clock created")

	return &Loopback{tempo: bpm, origin: now}
}

func (l *Loopback) beatsAt(now time.Time) float64 {
	if !l.playing {
		return l.beatsAtOrigin
	}
	elapsed := now.Sub(l.origin).Minutes()
	return l.beatsAtOrigin + elapsed*l.tempo
}

// State captures the timeline at now.
func (l *Loopback) State(now time.Time, quantum float64) State {
	l.mu.Lock()
	defer l.mu.Unlock()

	beats := l.beatsAt(now)
	phase := 0.0
	if quantum > 0 {
		phase = math.Mod(beats, quantum)
		if phase < 0 {
			phase += quantum
		}
	}

	return State{
		Tempo:   l.tempo,
		Beats:   beats,
		Phase:   phase,
		Playing: l.playing,
	}
}

// SetTempo rebases the timeline so the beat counter is continuous across
// the tempo change.
func (l *Loopback) SetTempo(now time.Time, bpm float64) {
	if bpm <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.beatsAtOrigin = l.beatsAt(now)
	l.origin = now
	l.tempo = bpm
}

// SetPlaying starts or stops the transport at now.
func (l *Loopback) SetPlaying(now time.Time, playing bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.playing == playing {
		return
	}

	l.beatsAtOrigin = l.beatsAt(now)
	l.origin = now
	l.playing = playing
}

// Close is a no-op for a loopback clock.
func (l *Loopback) Close() error { return nil }
