// Package main provides C API bindings for the audio transmitter.
//
// The bindings expose opaque handles so embedding hosts (native audio
// plugins, other language runtimes) can publish frames without knowing
// anything about the Go side. All functions return AUD_AUDIO_PUSH_RESULT
// codes mirroring transport.PushResult.
//
// Build instructions:
//
//	go build -buildmode=c-shared -o libaudmon.so ./capi
package main

/*
#include <stdint.h>
#include <stddef.h>

// Result codes mirroring the Go transport.PushResult values.
typedef enum AUD_AUDIO_PUSH_RESULT {
    AUD_AUDIO_NO_ERROR = 0,
    AUD_AUDIO_PUSHED = 1,
    AUD_AUDIO_NO_SOURCE_CURRENTLY_SELECTED = 2,
    AUD_AUDIO_OTHER_SOURCE_SELECTED = 3,
    AUD_AUDIO_FAILED_TO_CONNECT_TO_SOCKET = 4,
    AUD_AUDIO_FAILED_TO_PARSE_INPUT_SOCKET = 5,
    AUD_AUDIO_FAILED_TO_PARSE_OUTPUT_ADDRESS = 6,
    AUD_AUDIO_INVALID_SOURCE_POINTER = 7,
    AUD_AUDIO_FAILED_TO_PARSE_AUDIO_SOURCE = 8,
    AUD_AUDIO_INVALID_TRANSMITTER_POINTER = 9,
} AUD_AUDIO_PUSH_RESULT;
*/
import "C"

import (
	"errors"
	"sync"
	"unsafe"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/audmon/audio"
	"github.com/opd-ai/audmon/transport"
)

// Global instance management for C API compatibility. Handles are opaque
// integer IDs wrapped in a heap allocation so the C side never sees a Go
// pointer.
var (
	transmitterInstances         = make(map[uintptr]*transport.Transmitter)
	nextTransmitterID    uintptr = 1
	transmitterMutex     sync.RWMutex
)

func transmitterID(handle unsafe.Pointer) (uintptr, bool) {
	if handle == nil {
		return 0, false
	}
	id := (*uintptr)(handle)
	return *id, true
}

func lookupTransmitter(handle unsafe.Pointer) *transport.Transmitter {
	id, ok := transmitterID(handle)
	if !ok {
		return nil
	}

	transmitterMutex.RLock()
	defer transmitterMutex.RUnlock()
	return transmitterInstances[id]
}

// createTransmitter builds the transmitter and registers its handle. It
// is split from the export so tests can exercise the registry without
// cgo argument marshalling.
func createTransmitter(input, output string) (unsafe.Pointer, transport.PushResult) {
	tx, err := transport.NewTransmitter(transport.TransmitterConfig{
		Bind:   input,
		Target: output,
	})
	if err != nil {
		switch {
		case errors.Is(err, transport.ErrParseInputSocket):
			return nil, transport.FailedToParseInputSocket
		case errors.Is(err, transport.ErrParseOutputAddress):
			return nil, transport.FailedToParseOutputAddress
		default:
			return nil, transport.FailedToConnectToSocket
		}
	}

	transmitterMutex.Lock()
	id := nextTransmitterID
	nextTransmitterID++
	transmitterInstances[id] = tx
	transmitterMutex.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "createTransmitter",
		"handle":   id,
		"bind":     tx.LocalAddr().String(),
	}).Info("Transmitter handle created")

	handle := new(uintptr)
	*handle = id
	return unsafe.Pointer(handle), transport.NoError
}

func destroyTransmitter(handle unsafe.Pointer) {
	id, ok := transmitterID(handle)
	if !ok {
		return
	}

	transmitterMutex.Lock()
	tx := transmitterInstances[id]
	delete(transmitterInstances, id)
	transmitterMutex.Unlock()

	if tx != nil {
		_ = tx.Close()
	}
}

func pushSamples(handle unsafe.Pointer, source string, samples []float32, channels uint32) transport.PushResult {
	tx := lookupTransmitter(handle)
	if tx == nil {
		return transport.InvalidTransmitterPointer
	}
	if source == "" {
		return transport.InvalidSourcePointer
	}

	buf := audio.Buffer{Data: samples, NumChannels: channels}
	return tx.Push(source, audio.FrameFromBuffer(source, buf, 0))
}

// aud_audio_transmitter_create binds input_socket for selection messages
// and resolves output_address for audio datagrams. On failure it returns
// NULL and writes the reason to error_ptr when non-NULL.
//
//export aud_audio_transmitter_create
func aud_audio_transmitter_create(input_socket, output_address *C.char, error_ptr *C.int32_t) unsafe.Pointer {
	if error_ptr != nil {
		*error_ptr = C.int32_t(transport.NoError)
	}
	if input_socket == nil || output_address == nil {
		if error_ptr != nil {
			*error_ptr = C.int32_t(transport.FailedToParseInputSocket)
		}
		return nil
	}

	handle, result := createTransmitter(C.GoString(input_socket), C.GoString(output_address))
	if error_ptr != nil {
		*error_ptr = C.int32_t(result)
	}
	return handle
}

// aud_audio_transmitter_set_sources replaces the transmitter's
// publishable source list with count (name, channel_count) pairs.
//
//export aud_audio_transmitter_set_sources
func aud_audio_transmitter_set_sources(handle unsafe.Pointer, names **C.char, channel_counts *C.uint32_t, count C.size_t) C.int32_t {
	tx := lookupTransmitter(handle)
	if tx == nil {
		return C.int32_t(transport.InvalidTransmitterPointer)
	}
	if names == nil && count > 0 {
		return C.int32_t(transport.InvalidSourcePointer)
	}

	nameSlice := unsafe.Slice(names, int(count))
	var countSlice []C.uint32_t
	if channel_counts != nil {
		countSlice = unsafe.Slice(channel_counts, int(count))
	}

	devices := make([]audio.Device, 0, int(count))
	for i := 0; i < int(count); i++ {
		if nameSlice[i] == nil {
			return C.int32_t(transport.InvalidSourcePointer)
		}
		device := audio.Device{Name: C.GoString(nameSlice[i])}
		if countSlice != nil {
			device.Channels = uint32(countSlice[i])
		}
		devices = append(devices, device)
	}

	tx.SetSources(devices)
	return C.int32_t(transport.NoError)
}

// aud_audio_transmitter_push offers sample_count interleaved samples from
// the named source. When the source is not remotely selected the call is
// a cheap no-op and reports why.
//
//export aud_audio_transmitter_push
func aud_audio_transmitter_push(handle unsafe.Pointer, source *C.char, samples *C.float, sample_count C.size_t, channel_count C.uint32_t) C.int32_t {
	if source == nil {
		return C.int32_t(transport.InvalidSourcePointer)
	}

	var data []float32
	if samples != nil && sample_count > 0 {
		interleaved := unsafe.Slice(samples, int(sample_count))
		data = make([]float32, len(interleaved))
		for i, s := range interleaved {
			data[i] = float32(s)
		}
	}

	return C.int32_t(pushSamples(handle, C.GoString(source), data, uint32(channel_count)))
}

// aud_audio_transmitter_destroy closes the transmitter and invalidates
// the handle. Passing NULL or an already destroyed handle is harmless.
//
//export aud_audio_transmitter_destroy
func aud_audio_transmitter_destroy(handle unsafe.Pointer) {
	destroyTransmitter(handle)
}

func main() {}
