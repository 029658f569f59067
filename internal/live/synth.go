// Package live plays MIDI input on the studio kit as it arrives. Every
// message it handles is published as an Event so a view can follow along.
package live

import (
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"

	"github.com/codedswitch/studio/internal/audio"
	"github.com/codedswitch/studio/internal/bus"
	"github.com/codedswitch/studio/internal/pattern"
)

const (
	// MaxHold caps how long a note sustains when its note off never
	// arrives.
	MaxHold = 8.0

	drumChannel = 9
	ccAllNotes  = 123 // all notes off
)

// channelSounds gives each MIDI channel a tonal instrument; channel 10 plays
// the drum kit.
var channelSounds = [16]string{"tone", "triangle", "saw", "square"}

// SoundFor picks the kit sound for a note on channel.
func SoundFor(channel, note uint8) string {
	if channel == drumChannel {
		if s, ok := pattern.SoundForNote(note); ok {
			return s
		}
		return "tom"
	}
	if s := channelSounds[channel%16]; s != "" {
		return s
	}
	return "tone"
}

// EventKind says what an Event reports.
type EventKind int

const (
	EventNoteOn EventKind = iota
	EventNoteOff
	EventAllNotesOff
	EventControl
	EventPitchBend
	EventError
)

// Event is one handled MIDI message.
type Event struct {
	Kind     EventKind
	Channel  uint8
	Note     uint8
	Velocity uint8
	Sound    string // kit sound for note events

	Controller uint8
	Value      uint8
	Bend       int16 // pitch bend relative to center

	Err error
}

// Voice is a held note as reported by Held.
type Voice struct {
	Channel  uint8
	Note     uint8
	Velocity uint8
	Sound    string
	Elapsed  float64 // seconds rendered so far
	Playing  bool    // false once the kit voice ran out
}

type heldNote struct {
	src      *audio.Source
	velocity uint8
	sound    string
}

type key struct{ channel, note uint8 }

// Option configures a Synth.
type Option func(*Synth)

// WithBus publishes handled messages on b.
func WithBus(b *bus.Bus[Event]) Option {
	return func(s *Synth) { s.events = b }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Synth) {
		if l != nil {
			s.log = l
		}
	}
}

// Synth plays notes on the kit through the shared audio context.
type Synth struct {
	mgr    *audio.Manager
	kit    *audio.Kit
	events *bus.Bus[Event]
	log    *log.Logger

	mu   sync.Mutex
	held map[key]heldNote
}

// NewSynth creates a synth playing kit through mgr.
func NewSynth(mgr *audio.Manager, kit *audio.Kit, opts ...Option) *Synth {
	s := &Synth{
		mgr:  mgr,
		kit:  kit,
		log:  log.Default(),
		held: make(map[key]heldNote),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle plays one raw MIDI message. Messages other than notes, control
// changes and pitch bends are ignored.
func (s *Synth) Handle(data []byte) {
	msg := midi.Message(data)
	var (
		ch, note, vel, ctl, val uint8
		rel                     int16
		abs                     uint16
	)
	switch {
	case msg.GetNoteStart(&ch, &note, &vel):
		if err := s.NoteOn(ch, note, vel); err != nil {
			s.log.Warn("cannot play note", "channel", ch+1, "note", note, "err", err)
		}
	case msg.GetNoteEnd(&ch, &note):
		s.NoteOff(ch, note)
	case msg.GetControlChange(&ch, &ctl, &val):
		if ctl == ccAllNotes {
			s.AllNotesOff()
			return
		}
		s.events.Publish(Event{Kind: EventControl, Channel: ch, Controller: ctl, Value: val})
	case msg.GetPitchBend(&ch, &rel, &abs):
		s.events.Publish(Event{Kind: EventPitchBend, Channel: ch, Bend: rel})
	}
}

// NoteOn starts a note. A note already held on the same key is released
// first.
func (s *Synth) NoteOn(channel, note, velocity uint8) error {
	sound := SoundFor(channel, note)
	src, err := s.start(sound, note, velocity)
	if err != nil {
		s.events.Publish(Event{Kind: EventError, Channel: channel, Note: note, Sound: sound, Err: err})
		return err
	}

	k := key{channel, note}
	s.mu.Lock()
	prev, ok := s.held[k]
	s.held[k] = heldNote{src: src, velocity: velocity, sound: sound}
	s.mu.Unlock()
	if ok {
		prev.src.Release()
	}
	s.events.Publish(Event{Kind: EventNoteOn, Channel: channel, Note: note, Velocity: velocity, Sound: sound})
	return nil
}

func (s *Synth) start(sound string, note, velocity uint8) (*audio.Source, error) {
	c, err := s.mgr.Context()
	if err != nil {
		return nil, err
	}
	if c.State() != audio.StateRunning {
		return nil, audio.ErrAutoplayBlocked
	}
	v, err := s.kit.Voice(sound, c.SampleRate(), audio.Params{
		Note:   note,
		Gain:   float64(velocity) / pattern.MaxVelocity,
		Length: MaxHold,
	})
	if err != nil {
		return nil, err
	}
	return c.Start(v, c.CurrentTime()), nil
}

// NoteOff releases a held note. Unknown notes are reported but otherwise
// ignored.
func (s *Synth) NoteOff(channel, note uint8) {
	k := key{channel, note}
	s.mu.Lock()
	h, ok := s.held[k]
	delete(s.held, k)
	s.mu.Unlock()
	if ok {
		h.src.Release()
	}
	s.events.Publish(Event{Kind: EventNoteOff, Channel: channel, Note: note, Sound: SoundFor(channel, note)})
}

// AllNotesOff releases every held note.
func (s *Synth) AllNotesOff() {
	s.mu.Lock()
	all := s.held
	s.held = make(map[key]heldNote)
	s.mu.Unlock()
	for _, h := range all {
		h.src.Release()
	}
	s.events.Publish(Event{Kind: EventAllNotesOff})
}

// Held lists the notes currently held, ordered by channel and note.
func (s *Synth) Held() []Voice {
	s.mu.Lock()
	out := make([]Voice, 0, len(s.held))
	for k, h := range s.held {
		out = append(out, Voice{
			Channel:  k.channel,
			Note:     k.note,
			Velocity: h.velocity,
			Sound:    h.sound,
			Elapsed:  h.src.Elapsed(),
			Playing:  h.src.Playing(),
		})
	}
	s.mu.Unlock()
	slices.SortFunc(out, func(a, b Voice) int {
		if a.Channel != b.Channel {
			return int(a.Channel) - int(b.Channel)
		}
		return int(a.Note) - int(b.Note)
	})
	return out
}
