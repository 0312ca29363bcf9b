// Package midi defines the MIDI message type and input capability consumed
// by the engine. The native MIDI host is an external collaborator; this
// package only names the surface the session controller drives.
package midi

import (
	"sync"
	"time"

	"github.com/opd-ai/audmon/audio"
	"github.com/sirupsen/logrus"
)

// Message is a raw MIDI message with its arrival timestamp.
type Message struct {
	Timestamp uint64
	Device    string
	Bytes     []byte
}

// MessageCallback is invoked for every message received on an open port.
// Like audio.FrameCallback it runs on the port's own goroutine and must
// not block.
type MessageCallback func(Message)

// Port is an open MIDI input. Close stops callbacks and releases the port.
type Port interface {
	Close() error
}

// Backend enumerates MIDI inputs and opens callback-driven ports.
type Backend interface {
	// Devices lists the MIDI inputs currently visible to the backend.
	Devices() ([]audio.Device, error)

	// Open starts delivering messages from the named input. Unknown names
	// return audio.ErrDeviceNotFound.
	Open(name string, fn MessageCallback) (Port, error)
}

// ReplayBackend is a Backend that replays a fixed message script, used by
// tests and the monitor demo when no hardware is attached.
type ReplayBackend struct {
	Name     string
	Messages [][]byte
	Interval time.Duration
}

// Devices reports the single virtual input.
func (b *ReplayBackend) Devices() ([]audio.Device, error) {
	return []audio.Device{{Name: b.Name, Channels: 0}}, nil
}

// Open replays the configured messages on a goroutine, then idles until
// the port is closed.
func (b *ReplayBackend) Open(name string, fn MessageCallback) (Port, error) {
	if name != b.Name {
		return nil, audio.ErrDeviceNotFound
	}

	logrus.WithFields(logrus.Fields{
		"function": "ReplayBackend.Open",
		"device":   name,
		"messages": len(b.Messages),
	}).Info("Opened replay MIDI port")

	p := &replayPort{done: make(chan struct{})}
	go p.run(b, fn)
	return p, nil
}

type replayPort struct {
	closeOnce sync.Once
	done      chan struct{}
}

func (p *replayPort) run(b *ReplayBackend, fn MessageCallback) {
	interval := b.Interval
	if interval <= 0 {
		interval = time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; i < len(b.Messages); i++ {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			fn(Message{
				Timestamp: uint64(time.Now().UnixMicro()),
				Device:    b.Name,
				Bytes:     b.Messages[i],
			})
		}
	}
	<-p.done
}

func (p *replayPort) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}
