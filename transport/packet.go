package transport

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"math"

	"github.com/opd-ai/audmon/audio"
)

// Codec errors. Decoding never panics on malformed input; every failure
// is one of these.
var (
	// ErrTruncated is returned when a datagram holds fewer bytes than its
	// header declares.
	ErrTruncated = errors.New("packet truncated")

	// ErrChecksumMismatch is returned when the payload checksum does not
	// match the one stamped in the header.
	ErrChecksumMismatch = errors.New("packet checksum mismatch")
)

// headerLen is the fixed portion of the wire header:
// sequence(4) + checksum(4) + source_id_len(2) + frame_count(4) + channel_count(4).
const headerLen = 4 + 4 + 2 + 4 + 4

// Packet is the wire-level encoding of one audio frame, or of a selection
// control message.
//
// Layout, big-endian:
//
//	sequence:u32 | checksum:u32 | source_id_len:u16 | source_id |
//	frame_count:u32 | channel_count:u32 | samples:f32[frame_count*channel_count]
//
// A packet with a zero-length source id and no sample payload is a
// selection control message: its payload carries the name of the selected
// source and frame_count holds the name length. Sequence numbers increase
// monotonically per source and wrap modulo 2^32. The checksum covers the
// payload bytes only.
type Packet struct {
	Sequence     uint32
	Checksum     uint32
	SourceID     string
	FrameCount   uint32
	ChannelCount uint32
	Payload      []byte
}

// NewAudioPacket encodes an interleaved view of frame under the given
// sequence number.
func NewAudioPacket(frame audio.Frame, sequence uint32) *Packet {
	buf := frame.Interleaved()
	payload := make([]byte, len(buf.Data)*4)
	for i, sample := range buf.Data {
		binary.BigEndian.PutUint32(payload[i*4:], math.Float32bits(sample))
	}

	return &Packet{
		Sequence:     sequence,
		Checksum:     crc32.ChecksumIEEE(payload),
		SourceID:     frame.Source,
		FrameCount:   frame.FrameCount,
		ChannelCount: buf.NumChannels,
		Payload:      payload,
	}
}

// NewSelectionPacket encodes a selection control message naming the source
// the receiver wants. An empty name clears the remote selection.
func NewSelectionPacket(source string, sequence uint32) *Packet {
	payload := []byte(source)
	return &Packet{
		Sequence:     sequence,
		Checksum:     crc32.ChecksumIEEE(payload),
		FrameCount:   uint32(len(payload)),
		ChannelCount: 0,
		Payload:      payload,
	}
}

// IsSelection reports whether the packet is a selection control message.
func (p *Packet) IsSelection() bool {
	return p.SourceID == "" && p.ChannelCount == 0
}

// SelectionTarget returns the source name carried by a selection message.
func (p *Packet) SelectionTarget() string {
	return string(p.Payload)
}

// Samples decodes the payload into interleaved float32 samples.
func (p *Packet) Samples() []float32 {
	samples := make([]float32, len(p.Payload)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.BigEndian.Uint32(p.Payload[i*4:]))
	}
	return samples
}

// Frame reconstructs the audio frame carried by the packet. The sample
// rate is not part of the wire format and is supplied by the receiver's
// configuration.
func (p *Packet) Frame(sampleRate uint32) audio.Frame {
	buf := audio.Buffer{Data: p.Samples(), NumChannels: p.ChannelCount}
	return audio.FrameFromBuffer(p.SourceID, buf, sampleRate)
}

// Marshal converts the packet to a datagram for transmission.
func (p *Packet) Marshal() []byte {
	out := make([]byte, headerLen+len(p.SourceID)+len(p.Payload))

	binary.BigEndian.PutUint32(out[0:], p.Sequence)
	binary.BigEndian.PutUint32(out[4:], p.Checksum)
	binary.BigEndian.PutUint16(out[8:], uint16(len(p.SourceID)))
	n := 10 + copy(out[10:], p.SourceID)
	binary.BigEndian.PutUint32(out[n:], p.FrameCount)
	binary.BigEndian.PutUint32(out[n+4:], p.ChannelCount)
	copy(out[n+8:], p.Payload)

	return out
}

// ParsePacket converts a datagram to a Packet, validating length and
// checksum. It returns ErrTruncated when fewer bytes are present than the
// header declares and ErrChecksumMismatch when the payload fails
// verification.
func ParsePacket(data []byte) (*Packet, error) {
	if len(data) < headerLen {
		return nil, ErrTruncated
	}

	sequence := binary.BigEndian.Uint32(data[0:])
	checksum := binary.BigEndian.Uint32(data[4:])
	sourceLen := int(binary.BigEndian.Uint16(data[8:]))

	if len(data) < 10+sourceLen+8 {
		return nil, ErrTruncated
	}

	sourceID := string(data[10 : 10+sourceLen])
	n := 10 + sourceLen
	frameCount := binary.BigEndian.Uint32(data[n:])
	channelCount := binary.BigEndian.Uint32(data[n+4:])

	var payloadLen uint64
	if sourceLen == 0 && channelCount == 0 {
		payloadLen = uint64(frameCount)
	} else {
		payloadLen = uint64(frameCount) * uint64(channelCount) * 4
	}

	body := data[n+8:]
	if uint64(len(body)) < payloadLen {
		return nil, ErrTruncated
	}

	payload := make([]byte, payloadLen)
	copy(payload, body[:payloadLen])

	if crc32.ChecksumIEEE(payload) != checksum {
		return nil, ErrChecksumMismatch
	}

	return &Packet{
		Sequence:     sequence,
		Checksum:     checksum,
		SourceID:     sourceID,
		FrameCount:   frameCount,
		ChannelCount: channelCount,
		Payload:      payload,
	}, nil
}
