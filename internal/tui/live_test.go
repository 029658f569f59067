package tui

import (
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"

	"github.com/codedswitch/studio/internal/audio"
	"github.com/codedswitch/studio/internal/audio/audiotest"
	"github.com/codedswitch/studio/internal/bus"
	"github.com/codedswitch/studio/internal/live"
)

func newTestLive(t *testing.T, opener *audiotest.Opener) (*Live, *live.Synth) {
	t.Helper()
	mgr := audio.NewManager(opener, audio.WithSampleRate(8000))
	t.Cleanup(func() { mgr.Close() })
	events := bus.New[live.Event]()
	t.Cleanup(events.Close)
	synth := live.NewSynth(mgr, audio.NewKit(), live.WithBus(events), live.WithLogger(log.New(io.Discard)))
	m := NewLive("Studio Kit", synth, mgr, events)
	t.Cleanup(m.Close)
	return m, synth
}

// deliver feeds the pending bus events to the model.
func deliver(m *Live) {
	for {
		select {
		case ev := <-m.eventCh:
			m.Update(liveMsg(ev))
		default:
			return
		}
	}
}

func TestLiveFollowsNotes(t *testing.T) {
	opener := &audiotest.Opener{}
	m, synth := newTestLive(t, opener)
	press(m, "e")
	if c := m.mgr.Active(); c == nil || c.State() != audio.StateRunning {
		t.Fatal("'e' should enable audio")
	}

	synth.Handle(midi.NoteOn(9, 38, 90))
	synth.Handle(midi.NoteOn(0, 60, 100))
	synth.Handle(midi.ControlChange(0, 7, 64))
	deliver(m)

	if m.received != 3 || len(m.voices) != 2 {
		t.Fatalf("received %d messages with %d voices, want 3 and 2", m.received, len(m.voices))
	}
	view := m.View()
	for _, want := range []string{"Studio Kit", "snare", "tone", "Ch10", "C4", "CC:", "2 sources"} {
		if !strings.Contains(view, want) {
			t.Errorf("view is missing %q:\n%s", want, view)
		}
	}

	opener.Last().Advance(0.3)
	m.Update(voiceTickMsg{})
	if e := m.voices[0].Elapsed; e < 0.2 {
		t.Errorf("elapsed after refresh = %v, want about 0.3", e)
	}

	synth.Handle(midi.NoteOff(0, 60))
	deliver(m)
	if len(m.voices) != 1 || m.voices[0].Sound != "snare" {
		t.Errorf("voices = %+v, want the snare only", m.voices)
	}
	if !strings.HasPrefix(m.history[0], "Note Off") {
		t.Errorf("latest message = %q, want the note off", m.history[0])
	}

	press(m, "a")
	deliver(m)
	if len(m.voices) != 0 || m.history[0] != "All notes off" {
		t.Errorf("after all notes off: voices %+v, latest %q", m.voices, m.history[0])
	}
	if _, cmd := m.Update(voiceTickMsg{}); cmd != nil {
		t.Error("refresh should stop once nothing is held")
	}
}

func TestLiveShowsLockedAudio(t *testing.T) {
	m, synth := newTestLive(t, &audiotest.Opener{BlockResume: true})

	synth.Handle(midi.NoteOn(0, 60, 100))
	deliver(m)
	if !strings.Contains(m.message, "locked") {
		t.Errorf("message = %q, want the locked audio hint", m.message)
	}
	if !strings.HasPrefix(m.history[0], "Dropped") {
		t.Errorf("latest message = %q, want the dropped note", m.history[0])
	}
	if len(m.voices) != 0 {
		t.Errorf("voices = %+v, want none", m.voices)
	}
}

func TestLiveHistoryIsBounded(t *testing.T) {
	m, synth := newTestLive(t, &audiotest.Opener{})
	for i := 0; i < maxHistory+5; i++ {
		synth.Handle(midi.ControlChange(0, 1, uint8(i)))
		deliver(m)
	}
	if len(m.history) != maxHistory {
		t.Errorf("history holds %d lines, want %d", len(m.history), maxHistory)
	}
	if !strings.HasSuffix(m.history[0], "val:24") {
		t.Errorf("latest message = %q", m.history[0])
	}
}

func TestRenderKeyboard(t *testing.T) {
	tests := []struct {
		name  string
		notes []live.Voice
		lit   []uint8
	}{
		{"idle", nil, nil},
		{"middle c", []live.Voice{{Note: 60}}, []uint8{60}},
		{"folded", []live.Voice{{Note: 24}, {Note: 96}}, []uint8{48, 60}},
		{"top key", []live.Voice{{Note: 71}, {Note: 83}}, []uint8{71}},
		{"drums are not keys", []live.Voice{{Channel: 9, Note: 38}}, nil},
		{"chord", []live.Voice{{Note: 60}, {Note: 61}, {Note: 64}}, []uint8{60, 61, 64}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := heldKeys(tt.notes)
			if len(got) != len(tt.lit) {
				t.Errorf("heldKeys = %v, want %v", got, tt.lit)
			}
			for _, n := range tt.lit {
				if !got[n] {
					t.Errorf("key %d not lit", n)
				}
			}

			kb := renderKeyboard(tt.notes)
			if lines := strings.Split(kb, "\n"); len(lines) != 2 {
				t.Fatalf("keyboard has %d rows, want 2", len(lines))
			}
			if n := strings.Count(kb, "█"); n != 24 {
				t.Errorf("keyboard draws %d keys, want 24", n)
			}
		})
	}
}

var _ tea.Model = (*Live)(nil)
