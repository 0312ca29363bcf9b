package transport

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audmon/audio"
)

// DefaultWindowCapacity is the reorder window depth used when a receiver
// does not override it. Reordering latency is bounded by this many packets.
const DefaultWindowCapacity = 4

// maxSilenceBurst bounds how many silence frames a single advance may
// emit, so one stray far-future sequence number cannot flood the session.
// Slots skipped beyond the burst are still counted in LostSlots but
// produce no frames: after a gap wider than the cap, playback resumes at
// the new position and the missing span is heard as a skip forward
// rather than an equally long stretch of silence.
const maxSilenceBurst = 64

// ReorderWindow restores strict sequence order from an out-of-order,
// loss-tolerant packet flow.
//
// It is a fixed-capacity ring indexed by sequence modulo capacity. The
// window never blocks waiting for a missing packet: arrivals more than
// capacity ahead of the last delivered sequence force the window forward,
// substituting silence for the skipped slots.
//
// The window is owned by a single receive goroutine and is not safe for
// concurrent use.
type ReorderWindow struct {
	capacity   uint32
	sampleRate uint32
	slots      []*Packet
	last       uint32
	started    bool
	lateDrops  uint64
	lostSlots  uint64
}

// NewReorderWindow creates a window with the given slot capacity. Emitted
// frames are stamped with sampleRate, which is not part of the wire
// format.
func NewReorderWindow(capacity, sampleRate uint32) *ReorderWindow {
	if capacity == 0 {
		capacity = DefaultWindowCapacity
	}

	return &ReorderWindow{
		capacity:   capacity,
		sampleRate: sampleRate,
		slots:      make([]*Packet, capacity),
	}
}

// Push accepts one arrived packet and returns every frame that became
// deliverable, in strictly increasing sequence order.
//
// Late and duplicate packets (sequence at or behind the last delivered
// one) are dropped and produce no output. Packets more than the window
// capacity ahead advance the window, emitting one silence frame per
// skipped slot.
func (w *ReorderWindow) Push(p *Packet) []audio.Frame {
	if !w.started {
		w.started = true
		w.last = p.Sequence - 1
	}

	// Wraparound-safe distance from the last delivered sequence.
	ahead := p.Sequence - w.last
	if ahead == 0 || ahead >= 1<<31 {
		w.lateDrops++
		return nil
	}

	var out []audio.Frame

	if ahead > w.capacity {
		skipped := uint64(ahead - w.capacity)
		w.lostSlots += skipped

		logrus.WithFields(logrus.Fields{
			"function":      "ReorderWindow.Push",
			"sequence":      p.Sequence,
			"last":          w.last,
			"skipped_slots": skipped,
		}).Warn("Reorder window advanced past lost packets")

		burst := skipped
		if burst > maxSilenceBurst {
			burst = maxSilenceBurst
		}
		for i := uint64(0); i < burst; i++ {
			out = append(out, audio.SilentFrame(p.SourceID, p.FrameCount, p.ChannelCount, w.sampleRate))
		}

		w.last = p.Sequence - w.capacity
		w.dropStale()
	}

	w.slots[p.Sequence%w.capacity] = p

	for {
		next := w.last + 1
		slot := w.slots[next%w.capacity]
		if slot == nil || slot.Sequence != next {
			break
		}
		out = append(out, slot.Frame(w.sampleRate))
		w.slots[next%w.capacity] = nil
		w.last = next
	}

	return out
}

// dropStale clears slots holding packets at or behind the delivery point,
// which can exist after a forced advance.
func (w *ReorderWindow) dropStale() {
	for i, slot := range w.slots {
		if slot == nil {
			continue
		}
		behind := slot.Sequence - w.last
		if behind == 0 || behind >= 1<<31 {
			w.slots[i] = nil
		}
	}
}

// LateDrops reports how many late or duplicate packets were discarded.
func (w *ReorderWindow) LateDrops() uint64 { return w.lateDrops }

// LostSlots reports how many sequence slots were declared lost.
func (w *ReorderWindow) LostSlots() uint64 { return w.lostSlots }
