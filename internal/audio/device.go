package audio

import (
	"io"
	"time"
)

const (
	// DefaultSampleRate is used when no rate is configured.
	DefaultSampleRate = 44100

	channelCount   = 2 // stereo
	bytesPerSample = 2 // signed 16-bit little endian
	frameSize      = channelCount * bytesPerSample

	// DefaultReadyTimeout bounds the wait for a ReadyDevice.
	DefaultReadyTimeout = 5 * time.Second
)

// Device is a platform audio output. It pulls interleaved stereo int16 PCM
// from the reader it was opened with, on its own goroutine.
type Device interface {
	// Resume starts or continues pulling audio. It fails while the platform
	// refuses to produce sound, e.g. before a user gesture in a browser.
	Resume() error
	Suspend() error
	Close() error
}

// ReadyDevice is a Device that finishes opening in the background, like oto
// on Linux. Ready is closed once it is usable; after that Err reports
// whether the platform had a usable output at all.
type ReadyDevice interface {
	Device
	Ready() <-chan struct{}
	Err() error
}

// Opener creates devices. Opening fails when the platform has no usable
// audio output.
type Opener interface {
	Open(sampleRate int, src io.Reader) (Device, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(sampleRate int, src io.Reader) (Device, error)

func (f OpenerFunc) Open(sampleRate int, src io.Reader) (Device, error) {
	return f(sampleRate, src)
}

// State mirrors the lifecycle of an audio context.
type State int32

const (
	StateSuspended State = iota
	StateRunning
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateSuspended:
		return "suspended"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
