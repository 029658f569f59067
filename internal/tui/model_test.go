package tui

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/codedswitch/studio/internal/audio"
	"github.com/codedswitch/studio/internal/audio/audiotest"
	"github.com/codedswitch/studio/internal/pattern"
	"github.com/codedswitch/studio/internal/scheduler"
)

func newTestModel(t *testing.T, opener *audiotest.Opener, opts ...Option) *Model {
	t.Helper()
	mgr := audio.NewManager(opener, audio.WithSampleRate(8000))
	seq := pattern.NewSequencer(pattern.DefaultKit())
	sched := scheduler.New(mgr, seq,
		scheduler.WithLookahead(time.Hour),
		scheduler.WithLogger(log.New(io.Discard)))
	opts = append([]Option{WithLogger(log.New(io.Discard))}, opts...)
	m := New(seq, sched, mgr, opts...)
	t.Cleanup(m.Close)
	return m
}

func press(m tea.Model, keys ...string) {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case " ":
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		case keyLeft:
			msg = tea.KeyMsg{Type: tea.KeyLeft}
		case keyRight:
			msg = tea.KeyMsg{Type: tea.KeyRight}
		case keyUp:
			msg = tea.KeyMsg{Type: tea.KeyUp}
		case keyDown:
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		m.Update(msg)
	}
}

func TestToggleAndNavigate(t *testing.T) {
	m := newTestModel(t, &audiotest.Opener{})

	// the cursor stops at the edges
	press(m, keyLeft, keyUp, "h", "k")
	if m.cursorX != 0 || m.cursorY != 0 {
		t.Fatalf("cursor = %d,%d", m.cursorX, m.cursorY)
	}

	press(m, keyRight, "l", keyDown, " ")
	if !m.pattern.Tracks[1].Steps[2].Active {
		t.Error("space did not toggle track 1 step 2")
	}
	press(m, " ")
	if m.pattern.Tracks[1].Steps[2].Active {
		t.Error("second toggle did not clear the step")
	}

	for i := 0; i < 50; i++ {
		press(m, "j", "l")
	}
	if m.cursorY != len(m.pattern.Tracks)-1 || m.cursorX != m.pattern.Length-1 {
		t.Errorf("cursor = %d,%d, want last track and step", m.cursorX, m.cursorY)
	}
}

func TestLengthCycleClampsCursor(t *testing.T) {
	m := newTestModel(t, &audiotest.Opener{})
	for i := 0; i < 15; i++ {
		press(m, "l")
	}
	if m.cursorX != 15 {
		t.Fatalf("cursorX = %d", m.cursorX)
	}

	tests := []struct {
		wantLength, wantCursor int
	}{
		{32, 15},
		{8, 7},
		{16, 7},
	}
	for _, tt := range tests {
		press(m, "L")
		if m.pattern.Length != tt.wantLength || m.cursorX != tt.wantCursor {
			t.Errorf("after L: length %d cursor %d, want %d and %d", m.pattern.Length, m.cursorX, tt.wantLength, tt.wantCursor)
		}
	}
}

func TestVelocityTempoAndFlags(t *testing.T) {
	m := newTestModel(t, &audiotest.Opener{})

	press(m, "]")
	if v := m.pattern.Tracks[0].Steps[0].Velocity; v != 110 {
		t.Errorf("velocity = %d, want 110", v)
	}
	press(m, "]", "]", "]")
	if v := m.pattern.Tracks[0].Steps[0].Velocity; v != pattern.MaxVelocity {
		t.Errorf("velocity = %d, want clamped to 127", v)
	}
	press(m, "[")
	if v := m.pattern.Tracks[0].Steps[0].Velocity; v != 117 {
		t.Errorf("velocity = %d, want 117", v)
	}

	press(m, "+", "+", "-")
	if m.pattern.BPM != 125 {
		t.Errorf("BPM = %v, want 125", m.pattern.BPM)
	}
	press(m, ">")
	if m.pattern.SwingPercent != 5 {
		t.Errorf("swing = %v", m.pattern.SwingPercent)
	}

	press(m, "m", "j", "s")
	if !m.pattern.Tracks[0].Muted || !m.pattern.Tracks[1].Solo {
		t.Error("mute/solo keys not applied")
	}
	view := m.View()
	if !strings.Contains(view, "M-") || !strings.Contains(view, "-S") {
		t.Error("view does not show mute and solo flags")
	}
}

func TestRandomizeThenClear(t *testing.T) {
	m := newTestModel(t, &audiotest.Opener{})
	press(m, "r", "c")
	for i, st := range m.pattern.Tracks[0].Steps {
		if st.Active {
			t.Fatalf("step %d still active after clear", i)
		}
	}
}

func TestPlayheadFollowsEvents(t *testing.T) {
	m := newTestModel(t, &audiotest.Opener{})

	m.handleEvent(scheduler.Event{Kind: scheduler.EventStarted})
	if !m.playing {
		t.Fatal("not playing after started event")
	}

	cmd := m.handleEvent(scheduler.Event{
		Kind: scheduler.EventStep,
		Step: 3,
		Hits: []scheduler.Hit{{Track: 0, Gain: 0.5}},
	})
	if cmd == nil {
		t.Fatal("step event produced no command")
	}
	stale := cmd()
	m.Update(stale)
	if m.playhead != 3 {
		t.Errorf("playhead = %d, want 3", m.playhead)
	}
	if m.meters.levels[0] != 0.5 {
		t.Errorf("meter = %v, want 0.5", m.meters.levels[0])
	}
	if !strings.Contains(m.View(), "Playing") {
		t.Error("clock bar does not say Playing")
	}

	m.handleEvent(scheduler.Event{Kind: scheduler.EventStopped})
	m.Update(stale)
	if m.playhead != -1 {
		t.Errorf("stale playhead tick moved the playhead to %d", m.playhead)
	}
	if m.meters.levels[0] != 0 {
		t.Errorf("meters not reset on stop")
	}
}

func TestStartErrorShowsMessage(t *testing.T) {
	m := newTestModel(t, &audiotest.Opener{BlockResume: true})

	m.Update(errMsg{audio.ErrAutoplayBlocked})
	if !strings.Contains(m.message, "enable") {
		t.Errorf("message = %q", m.message)
	}

	m.handleEvent(scheduler.Event{Kind: scheduler.EventError, Err: audio.ErrUnsupportedAudio})
	if !strings.Contains(m.message, "No audio") {
		t.Errorf("message = %q", m.message)
	}
}

func TestEnableAudioKey(t *testing.T) {
	opener := &audiotest.Opener{BlockResume: true}
	m := newTestModel(t, opener)

	press(m, "e")
	if !strings.Contains(m.message, "locked") {
		t.Errorf("blocked enable: message = %q", m.message)
	}
	if !strings.Contains(m.View(), "suspended") {
		t.Error("view does not show the suspended context")
	}

	opener.Last().SetBlocked(false)
	press(m, "e")
	if m.message != "Audio enabled" {
		t.Errorf("message = %q", m.message)
	}
}

func TestSaveKey(t *testing.T) {
	var saved *pattern.Pattern
	m := newTestModel(t, &audiotest.Opener{}, WithSave(func(p pattern.Pattern) (string, error) {
		saved = &p
		return "Saved groove", nil
	}))
	press(m, " ", "S")
	if saved == nil || !saved.Tracks[0].Steps[0].Active {
		t.Fatal("save did not receive the edited pattern")
	}
	if m.message != "Saved groove" {
		t.Errorf("message = %q", m.message)
	}

	failing := newTestModel(t, &audiotest.Opener{}, WithSave(func(pattern.Pattern) (string, error) {
		return "", errors.New("disk full")
	}))
	press(failing, "S")
	if !strings.Contains(failing.message, "disk full") {
		t.Errorf("message = %q", failing.message)
	}

	unsaved := newTestModel(t, &audiotest.Opener{})
	press(unsaved, "S")
	if !strings.Contains(unsaved.message, "Nowhere to save") {
		t.Errorf("message = %q", unsaved.message)
	}
}

func TestMetersSettle(t *testing.T) {
	ms := newMeters()
	ms.resize(2)
	ms.hit(1, 2)
	if ms.levels[1] != 1 {
		t.Fatalf("level = %v, want clamped to 1", ms.levels[1])
	}
	ms.hit(5, 1) // out of range is ignored

	frames := 0
	for ms.update() {
		frames++
		if frames > 10*meterFPS {
			t.Fatal("meter never settled")
		}
	}
	if ms.levels[1] != 0 {
		t.Errorf("level = %v after settling", ms.levels[1])
	}
	if got := renderMeter(0); strings.TrimSpace(got) != "" {
		t.Errorf("empty meter = %q", got)
	}
}

func TestRenderClockBar(t *testing.T) {
	for _, length := range pattern.ValidLengths {
		bar := renderClockBar(length, true, length-1)
		if strings.Count(bar, "▶") != 1 {
			t.Errorf("length %d: want one playhead marker", length)
		}
		if strings.Count(bar, "█") != length-1 {
			t.Errorf("length %d: want %d played cells", length, length-1)
		}
	}
	if bar := renderClockBar(16, false, 0); !strings.Contains(bar, "Stopped") || strings.Contains(bar, "▶") {
		t.Error("stopped clock bar shows a playhead")
	}
}

func TestMIDINoteToName(t *testing.T) {
	tests := []struct {
		note int
		want string
	}{
		{60, "C4"},
		{36, "C2"},
		{42, "F#2"},
		{69, "A4"},
		{0, "C-1"},
	}
	for _, tt := range tests {
		if got := midiNoteToName(tt.note); got != tt.want {
			t.Errorf("midiNoteToName(%d) = %q, want %q", tt.note, got, tt.want)
		}
	}
}
