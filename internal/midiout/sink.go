// Package midiout sends scheduled steps to a MIDI output port, so an
// external synth or DAW can play the pattern alongside (or instead of) the
// built-in kit.
package midiout

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"

	"github.com/codedswitch/studio/internal/audio"
	"github.com/codedswitch/studio/internal/pattern"
	"github.com/codedswitch/studio/internal/scheduler"
)

const allNotesOff = 123

// Ports lists the names of the available MIDI outputs.
func Ports() []string {
	var names []string
	for _, out := range midi.GetOutPorts() {
		names = append(names, out.String())
	}
	return names
}

// Sink is a scheduler.Sink that plays triggers as note on/off pairs. Notes
// are timed off the audio clock: a trigger at audio time t is sent t minus
// the current audio time from now.
type Sink struct {
	send  func(msg midi.Message) error
	close func() error
	log   *log.Logger

	mu       sync.Mutex
	timers   map[*time.Timer]struct{}
	channels map[uint8]bool
}

var _ scheduler.Sink = (*Sink)(nil)

// Open connects to the first output whose name contains name
// (case-insensitive).
func Open(name string, logger *log.Logger) (*Sink, error) {
	outs := midi.GetOutPorts()
	for _, out := range outs {
		if !strings.Contains(strings.ToLower(out.String()), strings.ToLower(name)) {
			continue
		}
		send, err := midi.SendTo(out)
		if err != nil {
			return nil, fmt.Errorf("failed to open port %s: %w", out.String(), err)
		}
		s := NewSink(send, logger)
		s.close = out.Close
		s.log.Info("midi output connected", "port", out.String())
		return s, nil
	}
	return nil, fmt.Errorf("no MIDI output matching %q (have %d ports)", name, len(outs))
}

// NewSink wraps a send function, e.g. one returned by midi.SendTo.
func NewSink(send func(msg midi.Message) error, logger *log.Logger) *Sink {
	if logger == nil {
		logger = log.Default()
	}
	return &Sink{
		send:     send,
		log:      logger,
		timers:   make(map[*time.Timer]struct{}),
		channels: make(map[uint8]bool),
	}
}

func (s *Sink) Trigger(c *audio.Context, t scheduler.Trigger) error {
	ch := pattern.MIDIChannel(t.TrackIndex, t.Track.Sound)
	note := t.Track.Note
	velocity := t.Velocity
	if velocity == 0 {
		return nil
	}

	delay := time.Duration((t.When - c.CurrentTime()) * float64(time.Second))
	if delay < 0 {
		delay = 0
	}
	// release just before the next step so repeated notes retrigger
	length := time.Duration(t.Duration * 0.9 * float64(time.Second))

	s.mu.Lock()
	s.channels[ch] = true
	s.mu.Unlock()

	s.after(delay, func() { s.sendMsg(midi.NoteOn(ch, note, velocity)) })
	s.after(delay+length, func() { s.sendMsg(midi.NoteOff(ch, note)) })
	return nil
}

// Silence cancels pending notes and sends All Notes Off on every channel
// used so far.
func (s *Sink) Silence(*audio.Context) {
	s.mu.Lock()
	for t := range s.timers {
		t.Stop()
		delete(s.timers, t)
	}
	channels := make([]uint8, 0, len(s.channels))
	for ch := range s.channels {
		channels = append(channels, ch)
	}
	s.mu.Unlock()

	for _, ch := range channels {
		s.sendMsg(midi.ControlChange(ch, allNotesOff, 0))
	}
}

// Close silences the sink and closes the port it was opened on.
func (s *Sink) Close() error {
	s.Silence(nil)
	if s.close != nil {
		return s.close()
	}
	return nil
}

func (s *Sink) after(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		_, pending := s.timers[t]
		delete(s.timers, t)
		s.mu.Unlock()
		if pending {
			fn()
		}
	})
	s.timers[t] = struct{}{}
}

func (s *Sink) sendMsg(msg midi.Message) {
	if err := s.send(msg); err != nil {
		s.log.Warn("midi send failed", "msg", msg.String(), "err", err)
	}
}
