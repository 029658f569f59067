package audio

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedAudio means no audio device could be opened at all.
	// Playback features should be disabled for the rest of the session.
	ErrUnsupportedAudio = errors.New("audio output is not supported")

	// ErrAutoplayBlocked means a context exists but could not be resumed.
	// Retrying on the next explicit user action may succeed.
	ErrAutoplayBlocked = errors.New("audio context is suspended")

	// ErrDecode is matched by every *DecodeError.
	ErrDecode = errors.New("audio decode failed")

	// ErrUnknownSound is returned by Kit.Voice for unregistered sounds.
	ErrUnknownSound = errors.New("unknown sound")

	errContextClosed = errors.New("audio context is closed")
)

// DecodeError reports audio bytes that could not be turned into a Buffer.
type DecodeError struct {
	Name string // file name or URL the bytes came from
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("decode audio: %v", e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDecode) hold for any DecodeError.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }
