//go:build !js

package audio

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

var errDeviceNotReady = errors.New("audio device is not ready yet")

// OtoOpener opens desktop audio output through oto. oto allows a single
// context per process, so the opener creates it once and hands out a new
// player for every Open.
type OtoOpener struct {
	// BufferSize is the device buffer length; zero leaves oto's default.
	BufferSize time.Duration

	mu    sync.Mutex
	ctx   *oto.Context
	rate  int
	ready chan struct{}
}

func (o *OtoOpener) Open(sampleRate int, src io.Reader) (Device, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ctx == nil {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channelCount,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   o.BufferSize,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			return nil, fmt.Errorf("cannot create oto context: %w", err)
		}
		o.ctx, o.ready, o.rate = ctx, ready, sampleRate
	} else if o.rate != sampleRate {
		return nil, fmt.Errorf("oto context already open at %d Hz", o.rate)
	}

	player := o.ctx.NewPlayer(src)
	if o.BufferSize > 0 {
		player.SetBufferSize(int(o.BufferSize.Seconds()*float64(sampleRate)) * frameSize)
	}
	return &otoDevice{ctx: o.ctx, ready: o.ready, player: player}, nil
}

type otoDevice struct {
	ctx    *oto.Context
	ready  chan struct{}
	player *oto.Player
}

// Ready is closed once oto finished opening the platform device.
func (d *otoDevice) Ready() <-chan struct{} { return d.ready }

// Err reports a failed platform open, e.g. no ALSA device.
func (d *otoDevice) Err() error { return d.ctx.Err() }

func (d *otoDevice) Resume() error {
	timer := time.NewTimer(DefaultReadyTimeout)
	defer timer.Stop()
	select {
	case <-d.ready:
	case <-timer.C:
		return errDeviceNotReady
	}
	if err := d.ctx.Err(); err != nil {
		return err
	}
	if err := d.ctx.Resume(); err != nil {
		return err
	}
	d.player.Play()
	return nil
}

func (d *otoDevice) Suspend() error {
	return d.ctx.Suspend()
}

// Close pauses the player. The oto context itself lives until the process
// exits; a later Open reuses it.
func (d *otoDevice) Close() error {
	d.player.Pause()
	return d.ctx.Err()
}
