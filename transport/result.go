package transport

// PushResult is the status code returned by Transmitter.Push and mirrored
// verbatim across the C ABI boundary.
type PushResult int32

const (
	NoError PushResult = iota
	AudioPushed
	NoSourceCurrentlySelected
	OtherSourceSelected

	FailedToConnectToSocket
	FailedToParseInputSocket
	FailedToParseOutputAddress
	InvalidSourcePointer
	FailedToParseAudioSource
	InvalidTransmitterPointer
)

// String returns the result name as it appears in the C header.
func (r PushResult) String() string {
	switch r {
	case NoError:
		return "NoError"
	case AudioPushed:
		return "AudioPushed"
	case NoSourceCurrentlySelected:
		return "NoSourceCurrentlySelected"
	case OtherSourceSelected:
		return "OtherSourceSelected"
	case FailedToConnectToSocket:
		return "FailedToConnectToSocket"
	case FailedToParseInputSocket:
		return "FailedToParseInputSocket"
	case FailedToParseOutputAddress:
		return "FailedToParseOutputAddress"
	case InvalidSourcePointer:
		return "InvalidSourcePointer"
	case FailedToParseAudioSource:
		return "FailedToParseAudioSource"
	case InvalidTransmitterPointer:
		return "InvalidTransmitterPointer"
	default:
		return "Unknown"
	}
}
