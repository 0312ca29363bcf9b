package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyntheticBackendDevices(t *testing.T) {
	b := NewSyntheticBackend(48000, 64)

	devices, err := b.Devices()
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "synth-mono", devices[0].Name)
	assert.Equal(t, uint32(2), devices[1].Channels)
}

func TestSyntheticBackendRejectsUnknownDevice(t *testing.T) {
	b := NewSyntheticBackend(48000, 64)

	_, err := b.Open("no-such-device", func(Frame) {})
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestSyntheticBackendGeneratesFrames(t *testing.T) {
	b := NewSyntheticBackend(48000, 64)

	frames := make(chan Frame, 8)
	stream, err := b.Open("synth-stereo", func(f Frame) {
		select {
		case frames <- f:
		default:
		}
	})
	require.NoError(t, err)
	defer stream.Close()

	select {
	case frame := <-frames:
		assert.Equal(t, "synth-stereo", frame.Source)
		assert.Equal(t, uint32(64), frame.FrameCount)
		assert.Equal(t, uint32(48000), frame.SampleRate)
		require.Len(t, frame.Channels, 2)
		assert.Equal(t, frame.Channels[0], frame.Channels[1], "both channels carry the same sine")
	case <-time.After(2 * time.Second):
		t.Fatal("no frame generated")
	}
}

func TestSyntheticStreamCloseIsIdempotent(t *testing.T) {
	b := NewSyntheticBackend(48000, 64)

	stream, err := b.Open("synth-mono", func(Frame) {})
	require.NoError(t, err)

	assert.NoError(t, stream.Close())
	assert.NoError(t, stream.Close())
}
