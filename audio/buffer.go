package audio

// Buffer is an interleaved audio buffer.
//
// Interleaved means the samples for each channel alternate sample by
// sample: for stereo the layout is [l0, r0, l1, r1, ...]. The slice
// [l0, r0] is one frame. The engine favors interleaved data because it is
// what lower level APIs and the wire format use.
type Buffer struct {
	Data        []float32
	NumChannels uint32
}

// NewBuffer creates a Buffer with room for numFrames frames of
// numChannels channels, zero filled.
func NewBuffer(numFrames, numChannels uint32) Buffer {
	return Buffer{
		Data:        make([]float32, numFrames*numChannels),
		NumChannels: numChannels,
	}
}

// NumFrames returns the number of frames held in the buffer, which is the
// number of samples per channel.
func (b Buffer) NumFrames() uint32 {
	if b.NumChannels == 0 {
		return 0
	}
	return uint32(len(b.Data)) / b.NumChannels
}

// Deinterleave splits the buffer into one sample slice per channel.
func (b Buffer) Deinterleave() [][]float32 {
	return Deinterleave(b.Data, b.NumChannels)
}

// Interleave merges per-channel sample slices into a single interleaved
// slice. All channels must have the same length; shorter channels are
// padded with silence.
func Interleave(channels [][]float32) []float32 {
	numChannels := len(channels)
	if numChannels == 0 {
		return nil
	}

	numFrames := 0
	for _, ch := range channels {
		if len(ch) > numFrames {
			numFrames = len(ch)
		}
	}

	out := make([]float32, numFrames*numChannels)
	for c, ch := range channels {
		for s, sample := range ch {
			out[s*numChannels+c] = sample
		}
	}
	return out
}

// Deinterleave splits an interleaved sample slice into per-channel slices.
func Deinterleave(data []float32, numChannels uint32) [][]float32 {
	if numChannels == 0 {
		return nil
	}

	numFrames := len(data) / int(numChannels)
	out := make([][]float32, numChannels)
	for c := range out {
		out[c] = make([]float32, numFrames)
		for s := 0; s < numFrames; s++ {
			out[c][s] = data[s*int(numChannels)+int(c)]
		}
	}
	return out
}

// Frame is one hardware period of audio from a single source.
//
// A Frame is owned exclusively by whichever stage currently holds it. It
// moves across stage boundaries and is never shared, so no locking guards
// its contents.
type Frame struct {
	Source     string
	Channels   [][]float32
	FrameCount uint32
	SampleRate uint32
}

// Interleaved returns the frame's channel data as a single interleaved
// buffer.
func (f Frame) Interleaved() Buffer {
	return Buffer{
		Data:        Interleave(f.Channels),
		NumChannels: uint32(len(f.Channels)),
	}
}

// FrameFromBuffer reconstructs a Frame from an interleaved buffer.
func FrameFromBuffer(source string, buf Buffer, sampleRate uint32) Frame {
	return Frame{
		Source:     source,
		Channels:   buf.Deinterleave(),
		FrameCount: buf.NumFrames(),
		SampleRate: sampleRate,
	}
}

// SilentFrame returns a frame of zero samples, used by the reorder window
// when a packet is declared lost.
func SilentFrame(source string, frameCount, numChannels, sampleRate uint32) Frame {
	channels := make([][]float32, numChannels)
	for c := range channels {
		channels[c] = make([]float32, frameCount)
	}
	return Frame{
		Source:     source,
		Channels:   channels,
		FrameCount: frameCount,
		SampleRate: sampleRate,
	}
}
