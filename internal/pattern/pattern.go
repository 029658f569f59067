// Package pattern holds the step grid model and the sequencer that edits it.
//
// Velocities are MIDI velocities (0-127) everywhere inside the package. Views
// that think in percent convert with IntensityToVelocity and
// VelocityToIntensity.
package pattern

import (
	"math"

	"github.com/google/uuid"
)

const (
	MaxSteps        = 32 // every track allocates this many steps
	DefaultLength   = 16
	DefaultBPM      = 120
	MinBPM          = 20
	MaxBPM          = 300
	DefaultVelocity = 100
	MaxVelocity     = 127
	MaxProbability  = 100
	DefaultVolume   = 0.8
	defaultNote     = 60
)

// ValidLengths are the pattern lengths a sequencer loops over.
var ValidLengths = []int{8, 16, 32}

// DrumNotes maps built-in drum sounds to General MIDI percussion keys.
var DrumNotes = map[string]uint8{
	"kick":    36,
	"snare":   38,
	"clap":    39,
	"hihat":   42,
	"tom":     45,
	"openhat": 46,
}

// Step is one cell of the grid.
type Step struct {
	Active        bool
	Velocity      uint8   // 0-127
	Probability   uint8   // 0-100, percent chance to fire
	SwingOffsetMs float64 // extra delay applied on swung steps
}

// NewStep returns an inactive step with default velocity and probability.
func NewStep() Step {
	return Step{Velocity: DefaultVelocity, Probability: MaxProbability}
}

// Effects is the per-track sound shaping passed to instruments.
type Effects struct {
	Pan   float64 `json:"pan,omitempty" yaml:"pan,omitempty"`
	Pitch float64 `json:"pitch,omitempty" yaml:"pitch,omitempty"`
	Decay float64 `json:"decay,omitempty" yaml:"decay,omitempty"`
}

// Track is one row of the grid.
type Track struct {
	ID      string
	Name    string
	Sound   string // kit sound name
	Note    uint8  // MIDI note for tonal sounds and MIDI output
	Steps   [MaxSteps]Step
	Volume  float64 // 0-1
	Muted   bool
	Solo    bool
	Effects Effects
}

// NewTrack returns a track with every step inactive.
func NewTrack(name, sound string) Track {
	t := Track{
		ID:     uuid.NewString(),
		Name:   name,
		Sound:  sound,
		Note:   NoteForSound(sound),
		Volume: DefaultVolume,
	}
	for i := range t.Steps {
		t.Steps[i] = NewStep()
	}
	return t
}

// NoteForSound returns the General MIDI key for drum sounds and middle C
// for anything else.
func NoteForSound(sound string) uint8 {
	if n, ok := DrumNotes[sound]; ok {
		return n
	}
	return defaultNote
}

// SoundForNote is the inverse of DrumNotes; ok is false for keys that are
// not a built-in drum.
func SoundForNote(note uint8) (string, bool) {
	for sound, n := range DrumNotes {
		if n == note {
			return sound, true
		}
	}
	return "", false
}

// IsDrum reports whether sound is one of the built-in drum sounds.
func IsDrum(sound string) bool {
	_, ok := DrumNotes[sound]
	return ok
}

// Pattern is a set of tracks plus global timing.
type Pattern struct {
	Tracks       []Track
	BPM          float64
	SwingPercent float64 // 0-100
	Length       int     // one of ValidLengths
}

// New returns an empty pattern at the default tempo and length.
func New() Pattern {
	return Pattern{BPM: DefaultBPM, Length: DefaultLength}
}

// DefaultKit returns an empty pattern with one track per built-in drum.
func DefaultKit() Pattern {
	p := New()
	for _, sound := range []string{"kick", "snare", "hihat", "openhat", "clap", "tom"} {
		p.Tracks = append(p.Tracks, NewTrack(sound, sound))
	}
	return p
}

// Clone returns a deep copy.
func (p Pattern) Clone() Pattern {
	c := p
	c.Tracks = make([]Track, len(p.Tracks))
	copy(c.Tracks, p.Tracks)
	return c
}

// AnySolo reports whether at least one track is soloed.
func (p Pattern) AnySolo() bool {
	for _, t := range p.Tracks {
		if t.Solo {
			return true
		}
	}
	return false
}

// Audible reports whether track i should sound: not muted, and soloed when
// any track is.
func (p Pattern) Audible(i int) bool {
	if i < 0 || i >= len(p.Tracks) {
		return false
	}
	t := p.Tracks[i]
	if t.Muted {
		return false
	}
	if p.AnySolo() {
		return t.Solo
	}
	return true
}

// ValidLength reports whether n is a supported pattern length.
func ValidLength(n int) bool {
	for _, l := range ValidLengths {
		if n == l {
			return true
		}
	}
	return false
}

// ClampBPM limits bpm to [MinBPM, MaxBPM]; non-finite or zero values give
// DefaultBPM.
func ClampBPM(bpm float64) float64 {
	if bpm == 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return DefaultBPM
	}
	return clamp(bpm, MinBPM, MaxBPM)
}

// IntensityToVelocity converts a 0-100 intensity to a MIDI velocity.
func IntensityToVelocity(pct int) uint8 {
	pct = int(clamp(float64(pct), 0, 100))
	return uint8(math.Round(float64(pct) * MaxVelocity / 100))
}

// VelocityToIntensity converts a MIDI velocity to a 0-100 intensity.
func VelocityToIntensity(v uint8) int {
	if v > MaxVelocity {
		v = MaxVelocity
	}
	return int(math.Round(float64(v) * 100 / MaxVelocity))
}

// normalize enforces the pattern invariants after decoding or replacement.
func (p *Pattern) normalize() {
	p.BPM = ClampBPM(p.BPM)
	p.SwingPercent = clamp(p.SwingPercent, 0, 100)
	if !ValidLength(p.Length) {
		p.Length = DefaultLength
	}
	for i := range p.Tracks {
		t := &p.Tracks[i]
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		t.Volume = clamp(t.Volume, 0, 1)
		t.Effects.Pan = clamp(t.Effects.Pan, -1, 1)
		for j := range t.Steps {
			s := &t.Steps[j]
			if s.Velocity > MaxVelocity {
				s.Velocity = MaxVelocity
			}
			if s.Probability > MaxProbability {
				s.Probability = MaxProbability
			}
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
