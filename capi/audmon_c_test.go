package main

import (
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/audmon/audio"
	"github.com/opd-ai/audmon/transport"
)

func TestCreateTransmitterRegistersHandle(t *testing.T) {
	handle, result := createTransmitter("127.0.0.1:0", "127.0.0.1:9")
	require.Equal(t, transport.NoError, result)
	require.NotNil(t, handle)
	defer destroyTransmitter(handle)

	assert.NotNil(t, lookupTransmitter(handle))
}

func TestCreateTransmitterReportsBadEndpoints(t *testing.T) {
	handle, result := createTransmitter("not an endpoint", "127.0.0.1:9")
	assert.Nil(t, handle)
	assert.Equal(t, transport.FailedToParseInputSocket, result)

	handle, result = createTransmitter("127.0.0.1:0", "not an endpoint")
	assert.Nil(t, handle)
	assert.Equal(t, transport.FailedToParseOutputAddress, result)
}

func TestPushRejectsInvalidHandles(t *testing.T) {
	result := pushSamples(nil, "synth", []float32{0, 0}, 2)
	assert.Equal(t, transport.InvalidTransmitterPointer, result)

	bogus := new(uintptr)
	*bogus = 99999
	result = pushSamples(unsafe.Pointer(bogus), "synth", []float32{0, 0}, 2)
	assert.Equal(t, transport.InvalidTransmitterPointer, result)
}

func TestPushGatesOnSelection(t *testing.T) {
	handle, result := createTransmitter("127.0.0.1:0", "127.0.0.1:9")
	require.Equal(t, transport.NoError, result)
	defer destroyTransmitter(handle)

	tx := lookupTransmitter(handle)
	require.NotNil(t, tx)
	tx.SetSources([]audio.Device{{Name: "synth", Channels: 2}})

	// Nothing selected: the push never touches the socket.
	result = pushSamples(handle, "synth", []float32{1, 2, 3, 4}, 2)
	assert.Equal(t, transport.NoSourceCurrentlySelected, result)
	assert.Zero(t, tx.Sent())
}

func TestPushDeliversSelectedSource(t *testing.T) {
	rx, err := transport.NewReceiver(transport.ReceiverConfig{
		Bind:       "127.0.0.1:0",
		Target:     "127.0.0.1:9",
		SampleRate: 48000,
	})
	require.NoError(t, err)
	defer rx.Close()

	handle, result := createTransmitter("127.0.0.1:0", rx.LocalAddr().String())
	require.Equal(t, transport.NoError, result)
	defer destroyTransmitter(handle)

	tx := lookupTransmitter(handle)
	tx.SetSources([]audio.Device{{Name: "synth", Channels: 2}})

	selector, err := transport.NewReceiver(transport.ReceiverConfig{
		Bind:       "127.0.0.1:0",
		Target:     tx.LocalAddr().String(),
		SampleRate: 48000,
	})
	require.NoError(t, err)
	defer selector.Close()

	require.NoError(t, selector.Select("synth"))
	require.Eventually(t, func() bool {
		return tx.Selected() == "synth"
	}, 2*time.Second, 10*time.Millisecond)

	result = pushSamples(handle, "synth", []float32{1, 2, 3, 4}, 2)
	assert.Equal(t, transport.AudioPushed, result)

	select {
	case frame := <-rx.Frames():
		assert.Equal(t, "synth", frame.Source)
		assert.Equal(t, uint32(2), frame.FrameCount)
	case <-time.After(2 * time.Second):
		t.Fatal("pushed frame never arrived")
	}
}

func TestDestroyInvalidatesHandle(t *testing.T) {
	handle, result := createTransmitter("127.0.0.1:0", "127.0.0.1:9")
	require.Equal(t, transport.NoError, result)

	destroyTransmitter(handle)
	assert.Nil(t, lookupTransmitter(handle))

	// Double destroy and NULL are harmless.
	destroyTransmitter(handle)
	destroyTransmitter(nil)
}
