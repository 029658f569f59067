package audio

import (
	"fmt"
	"io"
	"sort"
	"sync"
)

// Instrument constructs a new Voice each time it is triggered.
type Instrument interface {
	NewVoice(sampleRate int, p Params) Voice
}

// InstrumentFunc adapts a function to the Instrument interface.
type InstrumentFunc func(sampleRate int, p Params) Voice

func (f InstrumentFunc) NewVoice(sampleRate int, p Params) Voice { return f(sampleRate, p) }

func drum(kind drumKind) Instrument {
	return InstrumentFunc(func(rate int, p Params) Voice { return newDrumVoice(kind, rate, p) })
}

func tone(wave WaveType) Instrument {
	return InstrumentFunc(func(rate int, p Params) Voice { return newToneVoice(wave, rate, p) })
}

// builtins are the synthesized sounds every kit starts with.
func builtins() map[string]Instrument {
	return map[string]Instrument{
		"kick":     drum(drumKick),
		"snare":    drum(drumSnare),
		"hihat":    drum(drumHiHat),
		"openhat":  drum(drumOpenHat),
		"clap":     drum(drumClap),
		"tom":      drum(drumTom),
		"tone":     tone(WaveSine),
		"square":   tone(WaveSquare),
		"saw":      tone(WaveSawtooth),
		"triangle": tone(WaveTriangle),
	}
}

// SampleInstrument plays a decoded buffer from its start.
type SampleInstrument struct {
	Buffer *Buffer
}

func (s SampleInstrument) NewVoice(sampleRate int, p Params) Voice {
	return s.Buffer.Resample(sampleRate).Voice(0, p)
}

// Kit maps sound names used by tracks to instruments.
type Kit struct {
	mu          sync.RWMutex
	instruments map[string]Instrument
}

// NewKit returns a kit holding the built-in drum and tone sounds.
func NewKit() *Kit {
	return &Kit{instruments: builtins()}
}

// Register makes an instrument available under name, replacing any
// existing one.
func (k *Kit) Register(name string, inst Instrument) {
	k.mu.Lock()
	k.instruments[name] = inst
	k.mu.Unlock()
}

// LoadSample decodes r and registers it as a sample instrument. The buffer
// is resampled to sampleRate once here instead of on every trigger.
func (k *Kit) LoadSample(name string, r io.Reader, sampleRate int) error {
	buf, err := Decode(name, r)
	if err != nil {
		return err
	}
	k.Register(name, SampleInstrument{Buffer: buf.Resample(sampleRate)})
	return nil
}

// Voice builds a voice for sound. Unknown sounds return ErrUnknownSound.
func (k *Kit) Voice(sound string, sampleRate int, p Params) (Voice, error) {
	k.mu.RLock()
	inst, ok := k.instruments[sound]
	k.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSound, sound)
	}
	return inst.NewVoice(sampleRate, p), nil
}

// Sounds lists the registered sound names in sorted order.
func (k *Kit) Sounds() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	names := make([]string, 0, len(k.instruments))
	for name := range k.instruments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
