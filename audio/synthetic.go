package audio

import (
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SyntheticBackend is a hardware-free Backend that generates deterministic
// sine frames on a timer. It backs tests, demos, and the oscilloscope when
// no native host is available.
type SyntheticBackend struct {
	sampleRate uint32
	frameSize  uint32
	devices    []Device
}

// NewSyntheticBackend creates a backend exposing two virtual devices, one
// mono and one stereo, producing frameSize frames per period.
func NewSyntheticBackend(sampleRate, frameSize uint32) *SyntheticBackend {
	logrus.WithFields(logrus.Fields{
		"function":    "NewSyntheticBackend",
		"sample_rate": sampleRate,
		"frame_size":  frameSize,
	}).Info("Creating synthetic audio backend")

	return &SyntheticBackend{
		sampleRate: sampleRate,
		frameSize:  frameSize,
		devices: []Device{
			{Name: "synth-mono", Channels: 1},
			{Name: "synth-stereo", Channels: 2},
		},
	}
}

// Devices lists the virtual devices.
func (b *SyntheticBackend) Devices() ([]Device, error) {
	out := make([]Device, len(b.devices))
	copy(out, b.devices)
	return out, nil
}

// Open starts a generator goroutine delivering frames to fn at the rate
// implied by the backend's sample rate and frame size.
func (b *SyntheticBackend) Open(name string, fn FrameCallback) (Stream, error) {
	var device *Device
	for i := range b.devices {
		if b.devices[i].Name == name {
			device = &b.devices[i]
			break
		}
	}
	if device == nil {
		return nil, ErrDeviceNotFound
	}

	period := time.Duration(float64(b.frameSize) / float64(b.sampleRate) * float64(time.Second))
	if period <= 0 {
		period = time.Millisecond
	}

	s := &syntheticStream{done: make(chan struct{})}
	go s.run(*device, b.sampleRate, b.frameSize, period, fn)

	logrus.WithFields(logrus.Fields{
		"function": "SyntheticBackend.Open",
		"device":   name,
		"period":   period.String(),
	}).Info("Opened synthetic stream")

	return s, nil
}

type syntheticStream struct {
	closeOnce sync.Once
	done      chan struct{}
}

func (s *syntheticStream) run(device Device, sampleRate, frameSize uint32, period time.Duration, fn FrameCallback) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	var phase float64
	step := 2 * math.Pi * 440 / float64(sampleRate)

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			channels := make([][]float32, device.Channels)
			for c := range channels {
				channels[c] = make([]float32, frameSize)
			}
			for i := uint32(0); i < frameSize; i++ {
				sample := float32(math.Sin(phase))
				phase += step
				for c := range channels {
					channels[c][i] = sample
				}
			}
			fn(Frame{
				Source:     device.Name,
				Channels:   channels,
				FrameCount: frameSize,
				SampleRate: sampleRate,
			})
		}
	}
}

func (s *syntheticStream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}
