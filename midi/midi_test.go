package midi

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/audmon/audio"
)

func TestReplayBackendDevices(t *testing.T) {
	b := &ReplayBackend{Name: "replay-in"}

	devices, err := b.Devices()
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "replay-in", devices[0].Name)
	assert.Zero(t, devices[0].Channels)
}

func TestReplayBackendRejectsUnknownDevice(t *testing.T) {
	b := &ReplayBackend{Name: "replay-in"}

	_, err := b.Open("wrong", func(Message) {})
	assert.ErrorIs(t, err, audio.ErrDeviceNotFound)
}

func TestReplayBackendReplaysInOrder(t *testing.T) {
	b := &ReplayBackend{
		Name: "replay-in",
		Messages: [][]byte{
			{0x90, 0x3c, 0x7f},
			{0xF8},
			{0x80, 0x3c, 0x00},
		},
	}

	var mu sync.Mutex
	var got [][]byte
	done := make(chan struct{})

	port, err := b.Open("replay-in", func(msg Message) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "replay-in", msg.Device)
		got = append(got, msg.Bytes)
		if len(got) == len(b.Messages) {
			close(done)
		}
	})
	require.NoError(t, err)
	defer port.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("replay did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, b.Messages, got)
}

func TestReplayPortCloseIsIdempotent(t *testing.T) {
	b := &ReplayBackend{Name: "replay-in"}

	port, err := b.Open("replay-in", func(Message) {})
	require.NoError(t, err)

	assert.NoError(t, port.Close())
	assert.NoError(t, port.Close())
}
