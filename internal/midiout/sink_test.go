package midiout

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"

	"github.com/codedswitch/studio/internal/audio"
	"github.com/codedswitch/studio/internal/audio/audiotest"
	"github.com/codedswitch/studio/internal/pattern"
	"github.com/codedswitch/studio/internal/scheduler"
)

type recorder struct {
	mu   sync.Mutex
	msgs []midi.Message
}

func (r *recorder) send(msg midi.Message) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
	return nil
}

func (r *recorder) all() []midi.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]midi.Message(nil), r.msgs...)
}

func testContext(t *testing.T) *audio.Context {
	t.Helper()
	m := audio.NewManager(&audiotest.Opener{}, audio.WithSampleRate(8000))
	c, err := m.Context()
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func waitFor(t *testing.T, r *recorder, n int) []midi.Message {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if msgs := r.all(); len(msgs) >= n {
			return msgs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("got %d messages, want %d", len(r.all()), n)
	return nil
}

func TestTriggerSendsNoteOnAndOff(t *testing.T) {
	rec := &recorder{}
	s := NewSink(rec.send, log.New(io.Discard))
	c := testContext(t)

	kick := pattern.NewTrack("kick", "kick")
	err := s.Trigger(c, scheduler.Trigger{Track: kick, Velocity: 90, When: 0.01, Duration: 0.02})
	if err != nil {
		t.Fatal(err)
	}

	msgs := waitFor(t, rec, 2)
	var ch, key, vel uint8
	if !msgs[0].GetNoteOn(&ch, &key, &vel) {
		t.Fatalf("first message %v is not a note on", msgs[0])
	}
	if ch != 9 || key != 36 || vel != 90 {
		t.Errorf("note on = ch %d key %d vel %d, want 9/36/90", ch, key, vel)
	}
	if !msgs[1].GetNoteOff(&ch, &key, &vel) || key != 36 {
		t.Errorf("second message %v is not the matching note off", msgs[1])
	}
}

func TestSilenceCancelsPendingNotes(t *testing.T) {
	rec := &recorder{}
	s := NewSink(rec.send, log.New(io.Discard))
	c := testContext(t)

	lead := pattern.NewTrack("lead", "square")
	lead.Note = 72
	_ = s.Trigger(c, scheduler.Trigger{TrackIndex: 2, Track: lead, Velocity: 100, When: 5, Duration: 0.1})
	s.Silence(c)

	time.Sleep(50 * time.Millisecond)
	msgs := rec.all()
	if len(msgs) != 1 {
		t.Fatalf("got %d messages after Silence, want only All Notes Off", len(msgs))
	}
	var ch, cc, val uint8
	if !msgs[0].GetControlChange(&ch, &cc, &val) || cc != allNotesOff || ch != 2 {
		t.Errorf("message = %v, want CC123 on channel 2", msgs[0])
	}
}

func TestZeroVelocityIsIgnored(t *testing.T) {
	rec := &recorder{}
	s := NewSink(rec.send, log.New(io.Discard))
	_ = s.Trigger(testContext(t), scheduler.Trigger{Track: pattern.NewTrack("k", "kick"), When: 0, Duration: 0.01})
	time.Sleep(30 * time.Millisecond)
	if n := len(rec.all()); n != 0 {
		t.Errorf("sent %d messages for a silent step", n)
	}
}
