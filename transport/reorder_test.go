package transport

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/audmon/audio"
)

func sequencedPacket(t *testing.T, seq uint32, marker float32) *Packet {
	t.Helper()
	samples := []float32{marker, marker, marker, marker}
	return NewAudioPacket(audio.Frame{
		Source:     "x",
		Channels:   [][]float32{samples},
		FrameCount: uint32(len(samples)),
		SampleRate: 48000,
	}, seq)
}

func TestReorderWindowInOrderDelivery(t *testing.T) {
	w := NewReorderWindow(4, 48000)

	var emitted []audio.Frame
	for seq := uint32(0); seq < 10; seq++ {
		emitted = append(emitted, w.Push(sequencedPacket(t, seq, float32(seq)))...)
	}

	require.Len(t, emitted, 10)
	for i, frame := range emitted {
		assert.Equal(t, float32(i), frame.Channels[0][0])
	}
	assert.Zero(t, w.LateDrops())
	assert.Zero(t, w.LostSlots())
}

func TestReorderWindowCorrectsSwappedArrivals(t *testing.T) {
	w := NewReorderWindow(4, 48000)

	var emitted []audio.Frame
	for _, seq := range []uint32{0, 2, 1} {
		emitted = append(emitted, w.Push(sequencedPacket(t, seq, float32(seq)))...)
	}

	require.Len(t, emitted, 3)
	assert.Equal(t, float32(0), emitted[0].Channels[0][0])
	assert.Equal(t, float32(1), emitted[1].Channels[0][0])
	assert.Equal(t, float32(2), emitted[2].Channels[0][0])
}

func TestReorderWindowDropsLateAndDuplicate(t *testing.T) {
	w := NewReorderWindow(4, 48000)

	require.Len(t, w.Push(sequencedPacket(t, 0, 0)), 1)
	require.Len(t, w.Push(sequencedPacket(t, 1, 1)), 1)

	// Duplicate of an already delivered sequence.
	assert.Empty(t, w.Push(sequencedPacket(t, 1, 99)))
	// Stale sequence behind the delivery point.
	assert.Empty(t, w.Push(sequencedPacket(t, 0, 99)))

	assert.Equal(t, uint64(2), w.LateDrops())

	// The stream continues normally afterwards.
	emitted := w.Push(sequencedPacket(t, 2, 2))
	require.Len(t, emitted, 1)
	assert.Equal(t, float32(2), emitted[0].Channels[0][0])
}

func TestReorderWindowAdvancesPastLoss(t *testing.T) {
	w := NewReorderWindow(4, 48000)

	require.Len(t, w.Push(sequencedPacket(t, 0, 0)), 1)

	// Sequence 7 is 7 ahead of last=0: slots 1..3 are declared lost and
	// replaced by silence, the window advances to last=3, and 7 waits in
	// its slot for 4..6.
	emitted := w.Push(sequencedPacket(t, 7, 7))
	require.Len(t, emitted, 3)
	for _, frame := range emitted {
		for _, sample := range frame.Channels[0] {
			assert.Equal(t, float32(0), sample)
		}
	}
	assert.Equal(t, uint64(3), w.LostSlots())

	// Filling the gap drains everything up to and including 7.
	emitted = nil
	for _, seq := range []uint32{4, 5, 6} {
		emitted = append(emitted, w.Push(sequencedPacket(t, seq, float32(seq)))...)
	}
	require.Len(t, emitted, 4)
	assert.Equal(t, float32(7), emitted[3].Channels[0][0])
}

func TestReorderWindowSequenceWraparound(t *testing.T) {
	w := NewReorderWindow(4, 48000)

	start := uint32(math.MaxUint32 - 1)
	var emitted []audio.Frame
	for i := uint32(0); i < 4; i++ {
		emitted = append(emitted, w.Push(sequencedPacket(t, start+i, float32(i)))...)
	}

	require.Len(t, emitted, 4)
	for i, frame := range emitted {
		assert.Equal(t, float32(i), frame.Channels[0][0])
	}
	assert.Zero(t, w.LateDrops())
}

func TestReorderWindowSilenceBurstIsBounded(t *testing.T) {
	w := NewReorderWindow(4, 48000)

	require.Len(t, w.Push(sequencedPacket(t, 0, 0)), 1)

	emitted := w.Push(sequencedPacket(t, 10_000, 1))
	assert.LessOrEqual(t, len(emitted), maxSilenceBurst)
	assert.Equal(t, uint64(10_000-4), w.LostSlots())
}
