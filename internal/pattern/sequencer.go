package pattern

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/codedswitch/studio/internal/bus"
)

var (
	ErrTrackRange    = errors.New("track index out of range")
	ErrStepRange     = errors.New("step index out of range")
	ErrInvalidLength = errors.New("pattern length must be 8, 16 or 32")
)

// Randomize draws activity with this probability and velocity/probability
// uniformly from [randomMin, randomMax].
const (
	randomDensity = 0.3
	randomMin     = 60
	randomMax     = 100
)

// Rand is the random source used by Randomize. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// Changed is published after every mutation. Track is -1 when the change
// is not specific to one track (tempo, length, replace).
type Changed struct {
	Track int
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithRand sets the random source. Tests pass a seeded *rand.Rand.
func WithRand(r Rand) Option {
	return func(s *Sequencer) {
		if r != nil {
			s.rng = r
		}
	}
}

// WithBus publishes a Changed message after every mutation.
func WithBus(b *bus.Bus[Changed]) Option {
	return func(s *Sequencer) { s.bus = b }
}

// Sequencer owns a Pattern and is safe for concurrent use. Mutations never
// trigger sound; the scheduler reads Snapshot on every pass.
type Sequencer struct {
	mu  sync.RWMutex
	p   Pattern
	rng Rand
	bus *bus.Bus[Changed]
}

// NewSequencer takes ownership of a copy of p.
func NewSequencer(p Pattern, opts ...Option) *Sequencer {
	s := &Sequencer{p: p.Clone(), rng: globalRand{}}
	s.p.normalize()
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a deep copy of the current pattern.
func (s *Sequencer) Snapshot() Pattern {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.p.Clone()
}

// Replace swaps in a new pattern, e.g. after loading a file.
func (s *Sequencer) Replace(p Pattern) {
	p = p.Clone()
	p.normalize()
	s.mu.Lock()
	s.p = p
	s.mu.Unlock()
	s.changed(-1)
}

// Length returns the number of steps the pattern loops over.
func (s *Sequencer) Length() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.p.Length
}

// BPM returns the current tempo.
func (s *Sequencer) BPM() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.p.BPM
}

// ToggleStep flips the active flag of one step.
func (s *Sequencer) ToggleStep(track, index int) error {
	return s.editStep(track, index, func(st *Step) { st.Active = !st.Active })
}

// SetVelocity sets a MIDI velocity, clamped to [0,127].
func (s *Sequencer) SetVelocity(track, index, v int) error {
	v = int(clamp(float64(v), 0, MaxVelocity))
	return s.editStep(track, index, func(st *Step) { st.Velocity = uint8(v) })
}

// SetIntensity sets the velocity from a 0-100 intensity.
func (s *Sequencer) SetIntensity(track, index, pct int) error {
	v := IntensityToVelocity(pct)
	return s.editStep(track, index, func(st *Step) { st.Velocity = v })
}

// SetProbability sets the chance in percent that a step fires.
func (s *Sequencer) SetProbability(track, index, pct int) error {
	pct = int(clamp(float64(pct), 0, MaxProbability))
	return s.editStep(track, index, func(st *Step) { st.Probability = uint8(pct) })
}

// SetSwingOffset sets the extra delay in milliseconds for one step.
func (s *Sequencer) SetSwingOffset(track, index int, ms float64) error {
	return s.editStep(track, index, func(st *Step) { st.SwingOffsetMs = ms })
}

// Randomize rewrites every allocated step of a track, including those past
// the current length.
func (s *Sequencer) Randomize(track int) error {
	return s.editTrack(track, func(t *Track) {
		for i := range t.Steps {
			st := &t.Steps[i]
			st.Active = s.rng.Float64() < randomDensity
			st.Velocity = uint8(s.randomIn(randomMin, randomMax))
			st.Probability = uint8(s.randomIn(randomMin, randomMax))
		}
	})
}

func (s *Sequencer) randomIn(lo, hi int) int {
	n := lo + int(s.rng.Float64()*float64(hi-lo+1))
	if n > hi {
		n = hi
	}
	return n
}

// Clear deactivates every step of a track. Velocity and probability are
// kept.
func (s *Sequencer) Clear(track int) error {
	return s.editTrack(track, func(t *Track) {
		for i := range t.Steps {
			t.Steps[i].Active = false
		}
	})
}

// SetPatternLength changes how many steps are looped. Steps past n keep
// their data.
func (s *Sequencer) SetPatternLength(n int) error {
	if !ValidLength(n) {
		return fmt.Errorf("%w: got %d", ErrInvalidLength, n)
	}
	s.mu.Lock()
	s.p.Length = n
	s.mu.Unlock()
	s.changed(-1)
	return nil
}

// SetBPM sets the tempo, clamped to [MinBPM, MaxBPM].
func (s *Sequencer) SetBPM(bpm float64) {
	s.mu.Lock()
	s.p.BPM = ClampBPM(bpm)
	s.mu.Unlock()
	s.changed(-1)
}

// SetSwing sets the global swing amount in percent.
func (s *Sequencer) SetSwing(pct float64) {
	s.mu.Lock()
	s.p.SwingPercent = clamp(pct, 0, 100)
	s.mu.Unlock()
	s.changed(-1)
}

// AddTrack appends t and returns its index.
func (s *Sequencer) AddTrack(t Track) int {
	p := Pattern{Tracks: []Track{t}, BPM: DefaultBPM, Length: DefaultLength}
	p.normalize()
	s.mu.Lock()
	s.p.Tracks = append(s.p.Tracks, p.Tracks[0])
	i := len(s.p.Tracks) - 1
	s.mu.Unlock()
	s.changed(i)
	return i
}

// RemoveTrack deletes a track; later tracks shift down.
func (s *Sequencer) RemoveTrack(track int) error {
	s.mu.Lock()
	if track < 0 || track >= len(s.p.Tracks) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrTrackRange, track)
	}
	s.p.Tracks = append(s.p.Tracks[:track], s.p.Tracks[track+1:]...)
	s.mu.Unlock()
	s.changed(-1)
	return nil
}

// SetTrackVolume sets a track's volume, clamped to [0,1].
func (s *Sequencer) SetTrackVolume(track int, v float64) error {
	return s.editTrack(track, func(t *Track) { t.Volume = clamp(v, 0, 1) })
}

func (s *Sequencer) SetMuted(track int, muted bool) error {
	return s.editTrack(track, func(t *Track) { t.Muted = muted })
}

func (s *Sequencer) SetSolo(track int, solo bool) error {
	return s.editTrack(track, func(t *Track) { t.Solo = solo })
}

// SetEffects replaces a track's effect settings.
func (s *Sequencer) SetEffects(track int, fx Effects) error {
	fx.Pan = clamp(fx.Pan, -1, 1)
	return s.editTrack(track, func(t *Track) { t.Effects = fx })
}

func (s *Sequencer) editTrack(track int, fn func(*Track)) error {
	s.mu.Lock()
	if track < 0 || track >= len(s.p.Tracks) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrTrackRange, track)
	}
	fn(&s.p.Tracks[track])
	s.mu.Unlock()
	s.changed(track)
	return nil
}

func (s *Sequencer) editStep(track, index int, fn func(*Step)) error {
	if index < 0 || index >= MaxSteps {
		return fmt.Errorf("%w: %d", ErrStepRange, index)
	}
	return s.editTrack(track, func(t *Track) { fn(&t.Steps[index]) })
}

func (s *Sequencer) changed(track int) {
	s.bus.Publish(Changed{Track: track})
}
