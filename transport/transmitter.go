package transport

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audmon/audio"
)

// TransmitterConfig describes the socket pair and source list for a
// Transmitter.
type TransmitterConfig struct {
	// Bind is the local endpoint selection messages arrive on.
	Bind string

	// Target is the remote endpoint audio datagrams are sent to.
	Target string

	// Sources are the devices this transmitter is willing to publish.
	Sources []audio.Device
}

// Transmitter publishes audio frames to a remote receiver, gated on
// source selection.
//
// Push is safe to call concurrently from any thread, including the
// real-time audio callback: when no remote peer has selected the pushed
// source the call returns immediately without touching the socket.
// Selection is replaced atomically by inbound control messages and read
// by every push without holding a lock.
type Transmitter struct {
	sock   *udpSocket
	target net.Addr

	// selection holds the currently selected source name, nil when no
	// remote peer has selected one.
	selection atomic.Pointer[string]

	mu      sync.RWMutex
	sources map[string]audio.Device

	// sequence numbers the outbound stream as a whole, not per source.
	// A re-selected source continues the stream where the previous one
	// left off; restarting at zero would sit behind the receiver's
	// delivery point and every frame would be dropped as late.
	sequence atomic.Uint32

	sent       atomic.Uint64
	selections atomic.Uint64
}

// NewTransmitter binds the input socket, resolves the output address, and
// starts consuming selection messages.
//
// Malformed endpoint strings return ErrParseInputSocket or
// ErrParseOutputAddress; an unusable bind returns ErrConnectSocket.
func NewTransmitter(cfg TransmitterConfig) (*Transmitter, error) {
	target, err := resolveTarget(cfg.Target)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewTransmitter",
			"target":   cfg.Target,
		}).Error("Failed to parse output address")
		return nil, err
	}

	t := &Transmitter{target: target}
	t.SetSources(cfg.Sources)

	sock, err := newUDPSocket(cfg.Bind, t.handleDatagram)
	if err != nil {
		return nil, err
	}
	t.sock = sock

	logrus.WithFields(logrus.Fields{
		"function": "NewTransmitter",
		"bind":     sock.LocalAddr().String(),
		"target":   cfg.Target,
		"sources":  len(cfg.Sources),
	}).Info("Audio transmitter created")

	return t, nil
}

// SetSources replaces the set of publishable devices. It is not safe to
// call concurrently with other calls on the same Transmitter.
func (t *Transmitter) SetSources(devices []audio.Device) {
	sources := make(map[string]audio.Device, len(devices))
	for _, d := range devices {
		sources[d.Name] = d
	}

	t.mu.Lock()
	t.sources = sources
	t.mu.Unlock()
}

// Push offers one frame from the named source.
//
// The unselected path is the common one and is deliberately cheap: a
// single atomic load, no I/O, no allocation.
func (t *Transmitter) Push(source string, frame audio.Frame) PushResult {
	selected := t.selection.Load()
	if selected == nil {
		return NoSourceCurrentlySelected
	}
	if *selected != source {
		return OtherSourceSelected
	}

	t.mu.RLock()
	_, known := t.sources[source]
	t.mu.RUnlock()
	if !known {
		return FailedToParseAudioSource
	}

	sequence := t.sequence.Add(1) - 1
	packet := NewAudioPacket(frame, sequence)

	if err := t.sock.Send(packet.Marshal(), t.target); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Transmitter.Push",
			"source":   source,
			"sequence": sequence,
			"error":    err.Error(),
		}).Warn("Failed to send audio datagram")
		return FailedToConnectToSocket
	}

	t.sent.Add(1)
	return AudioPushed
}

// Selected returns the currently selected source name, empty when none.
func (t *Transmitter) Selected() string {
	if s := t.selection.Load(); s != nil {
		return *s
	}
	return ""
}

// Sent reports how many audio datagrams have actually hit the socket.
func (t *Transmitter) Sent() uint64 {
	return t.sent.Load()
}

// LocalAddr returns the bound selection endpoint.
func (t *Transmitter) LocalAddr() net.Addr {
	return t.sock.LocalAddr()
}

// Close releases the socket.
func (t *Transmitter) Close() error {
	if t.sock == nil {
		return nil
	}
	return t.sock.Close()
}

// handleDatagram consumes inbound control traffic. Anything that is not a
// well-formed selection message is dropped.
func (t *Transmitter) handleDatagram(data []byte, _ net.Addr) {
	packet, err := ParsePacket(data)
	if err != nil || !packet.IsSelection() {
		return
	}

	name := packet.SelectionTarget()
	if name == "" {
		t.selection.Store(nil)
	} else {
		t.selection.Store(&name)
	}
	t.selections.Add(1)

	logrus.WithFields(logrus.Fields{
		"function": "Transmitter.handleDatagram",
		"selected": name,
	}).Info("Remote source selection updated")
}
