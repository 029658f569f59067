package scheduler

import (
	"math/rand/v2"
	"sync"

	"github.com/codedswitch/studio/internal/audio"
)

type defaultRand struct{}

func (defaultRand) Float64() float64 { return rand.Float64() }

// AudioSink renders triggers with a Kit on the audio context.
type AudioSink struct {
	kit *audio.Kit

	mu      sync.Mutex
	sources []*audio.Source
}

// NewAudioSink returns a sink playing sounds from kit.
func NewAudioSink(kit *audio.Kit) *AudioSink {
	return &AudioSink{kit: kit}
}

// Kit returns the sink's instruments.
func (a *AudioSink) Kit() *audio.Kit { return a.kit }

func (a *AudioSink) Trigger(c *audio.Context, t Trigger) error {
	v, err := a.kit.Voice(t.Track.Sound, c.SampleRate(), audio.Params{
		Note:   t.Track.Note,
		Gain:   t.Gain,
		Pan:    t.Track.Effects.Pan,
		Pitch:  t.Track.Effects.Pitch,
		Decay:  t.Track.Effects.Decay,
		Length: t.Duration,
	})
	if err != nil {
		return err
	}
	src := c.Start(v, t.When)

	a.mu.Lock()
	live := a.sources[:0]
	for _, s := range a.sources {
		if s.Playing() {
			live = append(live, s)
		}
	}
	a.sources = append(live, src)
	a.mu.Unlock()
	return nil
}

// Silence releases sustained voices and drops notes that have not started.
// Drum hits already sounding play out.
func (a *AudioSink) Silence(*audio.Context) {
	a.mu.Lock()
	sources := a.sources
	a.sources = nil
	a.mu.Unlock()
	for _, s := range sources {
		s.Release()
	}
}
