package audio

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Capture is the bounded hand-off between a stream's real-time callback
// and the engine goroutine.
//
// Push never blocks: when the channel is full the incoming frame is
// dropped and counted, so backpressure is shed at the boundary instead of
// propagating into the hardware callback.
type Capture struct {
	frames  chan Frame
	dropped atomic.Uint64
}

// NewCapture creates a Capture with the given queue depth. A depth of
// zero falls back to a single slot.
func NewCapture(depth int) *Capture {
	if depth <= 0 {
		depth = 1
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewCapture",
		"depth":    depth,
	}).Debug("Creating capture hand-off")

	return &Capture{frames: make(chan Frame, depth)}
}

// Push offers a frame to the queue. It is safe to call from the stream
// callback: the full-queue path performs no I/O and no allocation.
func (c *Capture) Push(frame Frame) bool {
	select {
	case c.frames <- frame:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// Frames returns the receive side consumed by the engine goroutine.
func (c *Capture) Frames() <-chan Frame {
	return c.frames
}

// Dropped reports how many frames were shed because the queue was full.
func (c *Capture) Dropped() uint64 {
	return c.dropped.Load()
}
