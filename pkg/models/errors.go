package models

import "errors"

// Failure taxonomy shared by the decode, fetch and playback layers.
var (
	ErrDecodeUnsupported  = errors.New("audio format not decodable")
	ErrSourceUnreachable  = errors.New("audio source unreachable")
	ErrCrossOriginBlocked = errors.New("sample access denied by origin policy")
	ErrEngineLoadFailed   = errors.New("playback resource rejected source")
)

// FailureKind is the serializable name of a failure in the taxonomy
type FailureKind string

const (
	FailureNone              FailureKind = ""
	FailureDecodeUnsupported FailureKind = "DecodeUnsupported"
	FailureSourceUnreachable FailureKind = "SourceUnreachable"
	FailureCrossOrigin       FailureKind = "CrossOriginBlocked"
	FailureEngineLoad        FailureKind = "EngineLoadFailed"
)

// Classify maps an error chain onto the failure taxonomy. Errors outside the
// taxonomy are reported as SourceUnreachable since every such failure is a read
// problem from the core's point of view.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrCrossOriginBlocked):
		return FailureCrossOrigin
	case errors.Is(err, ErrDecodeUnsupported):
		return FailureDecodeUnsupported
	case errors.Is(err, ErrEngineLoadFailed):
		return FailureEngineLoad
	default:
		return FailureSourceUnreachable
	}
}
