package transport

import (
	"errors"
	"net"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audmon/audio"
)

// ReceiverConfig describes the socket pair and stream shape for a
// Receiver.
type ReceiverConfig struct {
	// Bind is the local endpoint audio datagrams arrive on.
	Bind string

	// Target is the remote transmitter endpoint selection messages are
	// sent to.
	Target string

	// SampleRate stamps reassembled frames; the wire format does not
	// carry it.
	SampleRate uint32

	// WindowCapacity overrides the reorder window depth. Zero means
	// DefaultWindowCapacity.
	WindowCapacity uint32

	// QueueDepth bounds the ordered frame queue. Zero means 64.
	QueueDepth int
}

// ReceiverStats is a snapshot of the receiver's drop counters. Codec and
// ordering failures never escalate; they only show up here.
type ReceiverStats struct {
	Received     uint64
	Checksum     uint64
	Truncated    uint64
	Late         uint64
	Lost         uint64
	QueueDropped uint64
}

// Receiver reassembles an ordered frame stream from inbound audio
// datagrams and issues selection messages to the remote transmitter.
//
// The reorder window is owned by the socket's receive goroutine and never
// shared; consumers read ordered frames from Frames.
type Receiver struct {
	sock   *udpSocket
	target net.Addr
	window *ReorderWindow
	frames chan audio.Frame

	selectionSeq atomic.Uint32
	received     atomic.Uint64
	checksum     atomic.Uint64
	truncated    atomic.Uint64
	queueDropped atomic.Uint64
}

// NewReceiver binds the input socket, resolves the transmitter address,
// and starts reassembling inbound datagrams.
func NewReceiver(cfg ReceiverConfig) (*Receiver, error) {
	target, err := resolveTarget(cfg.Target)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewReceiver",
			"target":   cfg.Target,
		}).Error("Failed to parse output address")
		return nil, err
	}

	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = 64
	}

	r := &Receiver{
		target: target,
		window: NewReorderWindow(cfg.WindowCapacity, cfg.SampleRate),
		frames: make(chan audio.Frame, depth),
	}

	sock, err := newUDPSocket(cfg.Bind, r.handleDatagram)
	if err != nil {
		return nil, err
	}
	r.sock = sock

	logrus.WithFields(logrus.Fields{
		"function": "NewReceiver",
		"bind":     sock.LocalAddr().String(),
		"target":   cfg.Target,
	}).Info("Audio receiver created")

	return r, nil
}

// Select tells the remote transmitter which source to publish. An empty
// name clears the remote selection.
func (r *Receiver) Select(source string) error {
	packet := NewSelectionPacket(source, r.selectionSeq.Add(1)-1)
	if err := r.sock.Send(packet.Marshal(), r.target); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function": "Receiver.Select",
		"source":   source,
	}).Info("Selection message sent")

	return nil
}

// Frames returns the strictly ordered frame stream.
func (r *Receiver) Frames() <-chan audio.Frame {
	return r.frames
}

// Stats returns a snapshot of the drop counters.
func (r *Receiver) Stats() ReceiverStats {
	return ReceiverStats{
		Received:     r.received.Load(),
		Checksum:     r.checksum.Load(),
		Truncated:    r.truncated.Load(),
		Late:         r.window.LateDrops(),
		Lost:         r.window.LostSlots(),
		QueueDropped: r.queueDropped.Load(),
	}
}

// LocalAddr returns the bound audio endpoint.
func (r *Receiver) LocalAddr() net.Addr {
	return r.sock.LocalAddr()
}

// Close releases the socket. The frame channel is left open; consumers
// observe cancellation through their own context.
func (r *Receiver) Close() error {
	if r.sock == nil {
		return nil
	}
	return r.sock.Close()
}

// handleDatagram runs on the receive goroutine for every inbound
// datagram. Malformed packets are counted and dropped.
func (r *Receiver) handleDatagram(data []byte, _ net.Addr) {
	packet, err := ParsePacket(data)
	switch {
	case errors.Is(err, ErrChecksumMismatch):
		r.checksum.Add(1)
		return
	case errors.Is(err, ErrTruncated):
		r.truncated.Add(1)
		return
	case err != nil:
		return
	}

	if packet.IsSelection() {
		// Receivers issue selections, they do not consume them.
		return
	}

	r.received.Add(1)

	for _, frame := range r.window.Push(packet) {
		select {
		case r.frames <- frame:
		default:
			r.queueDropped.Add(1)
		}
	}
}
