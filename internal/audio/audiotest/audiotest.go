// Package audiotest provides an in-memory audio device whose clock only
// moves when a test pulls samples from it.
package audiotest

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/codedswitch/studio/internal/audio"
)

var (
	// ErrBlocked is returned by Resume while a device is blocked.
	ErrBlocked = errors.New("audiotest: resume blocked")

	// ErrNotReady is returned by Resume before a delayed device is ready.
	ErrNotReady = errors.New("audiotest: device not ready")
)

// Opener hands out Devices. Set Err to make Open fail, or BlockResume to
// simulate a platform that refuses to play before a user gesture.
// ReadyAfter and ReadyErr make Open return a device that finishes opening
// in the background, the way oto does on Linux.
type Opener struct {
	mu          sync.Mutex
	Err         error
	BlockResume bool
	ReadyAfter  time.Duration
	ReadyErr    error
	devices     []*Device
}

func (o *Opener) Open(sampleRate int, src io.Reader) (audio.Device, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return nil, o.Err
	}
	d := &Device{src: src, rate: sampleRate, blocked: o.BlockResume}
	o.devices = append(o.devices, d)
	if o.ReadyAfter <= 0 && o.ReadyErr == nil {
		return d, nil
	}
	ad := &delayedDevice{Device: d, ready: make(chan struct{}), err: o.ReadyErr}
	time.AfterFunc(o.ReadyAfter, func() { close(ad.ready) })
	return ad, nil
}

// delayedDevice refuses to resume until ready is closed.
type delayedDevice struct {
	*Device
	ready chan struct{}
	err   error
}

func (d *delayedDevice) Ready() <-chan struct{} { return d.ready }

func (d *delayedDevice) Err() error { return d.err }

func (d *delayedDevice) Resume() error {
	select {
	case <-d.ready:
	default:
		return ErrNotReady
	}
	if d.err != nil {
		return d.err
	}
	return d.Device.Resume()
}

// Opened returns how many devices were opened.
func (o *Opener) Opened() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.devices)
}

// Last returns the most recently opened device, or nil.
func (o *Opener) Last() *Device {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.devices) == 0 {
		return nil
	}
	return o.devices[len(o.devices)-1]
}

// Device is a fake audio output.
type Device struct {
	mu      sync.Mutex
	src     io.Reader
	rate    int
	blocked bool
	running bool
	closed  bool
	resumes int
}

// SetBlocked makes Resume fail (true) or succeed (false).
func (d *Device) SetBlocked(b bool) {
	d.mu.Lock()
	d.blocked = b
	d.mu.Unlock()
}

func (d *Device) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resumes++
	if d.blocked {
		return ErrBlocked
	}
	d.running = true
	return nil
}

func (d *Device) Suspend() error {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
	return nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	d.running = false
	d.closed = true
	d.mu.Unlock()
	return nil
}

// Running reports whether the device was resumed and not suspended since.
func (d *Device) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Closed reports whether Close was called.
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Resumes counts Resume calls, successful or not.
func (d *Device) Resumes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resumes
}

// Pull renders n frames and returns them as floats in [-1,1].
func (d *Device) Pull(n int) [][2]float64 {
	buf := make([]byte, n*4)
	if _, err := io.ReadFull(d.src, buf); err != nil {
		return nil
	}
	out := make([][2]float64, n)
	for i := range out {
		l := int16(uint16(buf[4*i]) | uint16(buf[4*i+1])<<8)
		r := int16(uint16(buf[4*i+2]) | uint16(buf[4*i+3])<<8)
		out[i] = [2]float64{float64(l) / 32767, float64(r) / 32767}
	}
	return out
}

// Advance renders sec seconds of audio.
func (d *Device) Advance(sec float64) [][2]float64 {
	return d.Pull(int(sec * float64(d.rate)))
}

// Peak returns the largest absolute sample value in frames.
func Peak(frames [][2]float64) float64 {
	var peak float64
	for _, f := range frames {
		for _, v := range f {
			if v < 0 {
				v = -v
			}
			if v > peak {
				peak = v
			}
		}
	}
	return peak
}
