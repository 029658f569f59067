package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/codedswitch/studio/internal/audio"
	"github.com/codedswitch/studio/internal/bus"
	"github.com/codedswitch/studio/internal/live"
)

const (
	maxHistory   = 20
	shownHistory = 10
	voiceRefresh = 100 * time.Millisecond

	// the keyboard spans C3 to B4
	keyboardLow     = 48
	keyboardOctaves = 2
)

var (
	noteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700"))

	whiteKey    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF"))
	blackKey    = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))
	pressedKey  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	whiteOffset = []uint8{0, 2, 4, 5, 7, 9, 11}
	blackOffset = []int{1, 3, -1, 6, 8, 10, -1} // the black key after each white key
)

// Live shows what a live.Synth is playing: the held voices, a keyboard and
// a log of incoming messages.
type Live struct {
	port  string
	synth *live.Synth
	mgr   *audio.Manager

	eventCh     <-chan live.Event
	unsubscribe func()

	voices   []live.Voice
	history  []string
	received int
	ticking  bool
	message  string
}

// liveMsg wraps a synth event read from the bus.
type liveMsg live.Event

// voiceTickMsg refreshes the held voices while any are sounding.
type voiceTickMsg struct{}

// NewLive creates the live screen for synth listening on port.
func NewLive(port string, synth *live.Synth, mgr *audio.Manager, events *bus.Bus[live.Event]) *Live {
	m := &Live{port: port, synth: synth, mgr: mgr, unsubscribe: func() {}}
	if events != nil {
		m.eventCh, m.unsubscribe = events.Subscribe(64)
	}
	return m
}

func (m *Live) Init() tea.Cmd { return listen(m.eventCh) }

func (m *Live) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case liveMsg:
		m.handleEvent(live.Event(msg))
		return m, tea.Batch(m.tick(), listen(m.eventCh))

	case voiceTickMsg:
		m.ticking = false
		m.voices = m.synth.Held()
		return m, m.tick()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "e":
			m.message = statusText(m.mgr.Resume())
		case " ", "a":
			m.synth.AllNotesOff()
		}
	}
	return m, nil
}

// tick schedules a voice refresh unless one is pending or nothing is held.
func (m *Live) tick() tea.Cmd {
	if m.ticking || len(m.voices) == 0 {
		return nil
	}
	m.ticking = true
	return tea.Tick(voiceRefresh, func(time.Time) tea.Msg { return voiceTickMsg{} })
}

func (m *Live) handleEvent(ev live.Event) {
	m.received++
	m.voices = m.synth.Held()

	var line string
	switch ev.Kind {
	case live.EventNoteOn:
		line = fmt.Sprintf("Note On:  Ch%-2d %-4s vel:%-3d %s", ev.Channel+1, midiNoteToName(int(ev.Note)), ev.Velocity, ev.Sound)
		m.message = ""
	case live.EventNoteOff:
		line = fmt.Sprintf("Note Off: Ch%-2d %-4s", ev.Channel+1, midiNoteToName(int(ev.Note)))
	case live.EventAllNotesOff:
		line = "All notes off"
	case live.EventControl:
		line = fmt.Sprintf("CC:       Ch%-2d ctrl:%d val:%d", ev.Channel+1, ev.Controller, ev.Value)
	case live.EventPitchBend:
		line = fmt.Sprintf("Bend:     Ch%-2d %+d", ev.Channel+1, ev.Bend)
	case live.EventError:
		line = fmt.Sprintf("Dropped:  Ch%-2d %-4s %s", ev.Channel+1, midiNoteToName(int(ev.Note)), ev.Sound)
		m.message = statusText(ev.Err)
	}

	m.history = append([]string{line}, m.history...)
	if len(m.history) > maxHistory {
		m.history = m.history[:maxHistory]
	}
}

// Close drops the bus subscription and silences held notes.
func (m *Live) Close() {
	m.unsubscribe()
	m.synth.AllNotesOff()
}

func (m *Live) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("CodedSwitch Studio") + " live\n\n")
	b.WriteString(infoStyle.Render("MIDI input: ") + selectedStyle.Render(m.port) + "\n")
	b.WriteString(infoStyle.Render("Channels:   ") + "1-4 tone, triangle, saw, square • 10 drums • others tone\n")
	b.WriteString(m.audioStatus() + "\n\n")

	b.WriteString(infoStyle.Render("Held voices:") + "\n")
	if len(m.voices) == 0 {
		b.WriteString(infoStyle.Render("  (no notes playing)") + "\n")
	}
	for _, v := range m.voices {
		state := fmt.Sprintf("%4.1fs", v.Elapsed)
		if !v.Playing {
			state = "ended"
		}
		b.WriteString(noteStyle.Render(fmt.Sprintf("  Ch%-2d %-4s %-8s vel:%-3d %s",
			v.Channel+1, midiNoteToName(int(v.Note)), v.Sound, v.Velocity, state)) + "\n")
	}

	b.WriteString("\n" + infoStyle.Render(fmt.Sprintf("Messages: %d received", m.received)) + "\n")
	if len(m.history) == 0 {
		b.WriteString(infoStyle.Render("  (waiting for input)") + "\n")
	}
	for i, line := range m.history[:min(len(m.history), shownHistory)] {
		if i == 0 {
			b.WriteString("  " + selectedStyle.Render("▶ "+line) + "\n")
		} else {
			b.WriteString("    " + infoStyle.Render(line) + "\n")
		}
	}

	b.WriteString("\n" + renderKeyboard(m.voices) + "\n")
	if m.message != "" {
		b.WriteString("\n" + errorStyle.Render(m.message) + "\n")
	}
	b.WriteString("\n" + helpStyle.Render("e: enable audio • a/space: all notes off • q: quit"))
	return b.String()
}

func (m *Live) audioStatus() string {
	c := m.mgr.Active()
	switch {
	case c == nil:
		return "Audio: off (press 'e' to enable)"
	case c.State() == audio.StateRunning:
		return fmt.Sprintf("Audio: %s ✓ %d Hz, %d sources", c.State(), c.SampleRate(), c.ActiveSources())
	default:
		return fmt.Sprintf("Audio: %s (press 'e' to enable)", c.State())
	}
}

// heldKeys maps the tonal held notes onto the keyboard range, folding notes
// outside it by octave.
func heldKeys(voices []live.Voice) map[uint8]bool {
	lit := make(map[uint8]bool, len(voices))
	for _, v := range voices {
		if v.Channel == 9 {
			continue
		}
		n := int(v.Note)
		for n < keyboardLow {
			n += 12
		}
		for n >= keyboardLow+12*keyboardOctaves {
			n -= 12
		}
		lit[uint8(n)] = true
	}
	return lit
}

// renderKeyboard draws two octaves with the held notes lit.
func renderKeyboard(voices []live.Voice) string {
	lit := heldKeys(voices)
	key := func(note uint8, style lipgloss.Style) string {
		if lit[note] {
			style = pressedKey
		}
		return style.Render("█") + " "
	}

	var top, bottom strings.Builder
	for o := 0; o < keyboardOctaves; o++ {
		base := uint8(keyboardLow + 12*o)
		for i, w := range whiteOffset {
			if b := blackOffset[i]; b >= 0 {
				top.WriteString(key(base+uint8(b), blackKey))
			} else {
				top.WriteString("  ")
			}
			bottom.WriteString(key(base+w, whiteKey))
		}
	}
	return top.String() + "\n" + bottom.String()
}
