// Package tui holds the terminal screens. Model is the step sequencer, a
// grid of tracks and steps edited through a pattern.Sequencer and played by
// a scheduler. Browser picks pattern files and Live follows MIDI input.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/codedswitch/studio/internal/audio"
	"github.com/codedswitch/studio/internal/bus"
	"github.com/codedswitch/studio/internal/live"
	"github.com/codedswitch/studio/internal/pattern"
	"github.com/codedswitch/studio/internal/scheduler"
)

const (
	keyUp    = "up"
	keyDown  = "down"
	keyLeft  = "left"
	keyRight = "right"

	bpmStep      = 5
	velocityStep = 10
	swingStep    = 5
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
)

// SaveFunc stores the pattern and returns a status line.
type SaveFunc func(p pattern.Pattern) (string, error)

// Option configures a Model.
type Option func(*Model)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.log = l
		}
	}
}

// WithTitle sets the name shown above the grid.
func WithTitle(title string) Option {
	return func(m *Model) { m.title = title }
}

// WithSave enables the save key.
func WithSave(fn SaveFunc) Option {
	return func(m *Model) { m.save = fn }
}

// WithEvents subscribes to scheduler events. Without it the playhead does
// not move.
func WithEvents(b *bus.Bus[scheduler.Event]) Option {
	return func(m *Model) { m.events = b }
}

// WithChanges subscribes to pattern edits made outside this view.
func WithChanges(b *bus.Bus[pattern.Changed]) Option {
	return func(m *Model) { m.changes = b }
}

// Model is the bubbletea model for the sequencer screen.
type Model struct {
	seq   *pattern.Sequencer
	sched *scheduler.Scheduler
	mgr   *audio.Manager
	log   *log.Logger
	save  SaveFunc
	title string

	events      *bus.Bus[scheduler.Event]
	changes     *bus.Bus[pattern.Changed]
	eventCh     <-chan scheduler.Event
	changeCh    <-chan pattern.Changed
	unsubscribe []func()

	pattern  pattern.Pattern // last snapshot, refreshed after every edit
	cursorX  int
	cursorY  int
	playing  bool
	playhead int
	gen      int // bumped on start and stop; stale playhead ticks compare it
	meters   meters
	message  string
	width    int
	height   int
}

// New creates the sequencer screen.
func New(seq *pattern.Sequencer, sched *scheduler.Scheduler, mgr *audio.Manager, opts ...Option) *Model {
	m := &Model{
		seq:      seq,
		sched:    sched,
		mgr:      mgr,
		log:      log.Default(),
		title:    "untitled",
		playhead: -1,
		meters:   newMeters(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.events != nil {
		ch, unsub := m.events.Subscribe(64)
		m.eventCh = ch
		m.unsubscribe = append(m.unsubscribe, unsub)
	}
	if m.changes != nil {
		ch, unsub := m.changes.Subscribe(16)
		m.changeCh = ch
		m.unsubscribe = append(m.unsubscribe, unsub)
	}
	m.refresh()
	return m
}

// eventMsg wraps a scheduler event read from the bus.
type eventMsg scheduler.Event

// changedMsg wraps a pattern change read from the bus.
type changedMsg pattern.Changed

type errMsg struct{ err error }

// playheadMsg moves the playhead once the step is audible.
type playheadMsg struct {
	step int
	gen  int
	hits []scheduler.Hit
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(listen(m.eventCh), listen(m.changeCh))
}

// listen waits for the next message on ch. A nil or closed channel yields
// nothing.
func listen[T any](ch <-chan T) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return nil
		}
		switch v := any(v).(type) {
		case scheduler.Event:
			return eventMsg(v)
		case pattern.Changed:
			return changedMsg(v)
		case live.Event:
			return liveMsg(v)
		}
		return nil
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case eventMsg:
		return m, tea.Batch(m.handleEvent(scheduler.Event(msg)), listen(m.eventCh))

	case changedMsg:
		m.refresh()
		return m, listen(m.changeCh)

	case playheadMsg:
		if msg.gen != m.gen || !m.playing {
			return m, nil
		}
		m.playhead = msg.step
		for _, h := range msg.hits {
			m.meters.hit(h.Track, h.Gain)
		}
		if len(msg.hits) > 0 && !m.meters.animating {
			m.meters.animating = true
			return m, frame()
		}
		return m, nil

	case errMsg:
		m.playing = false
		m.message = statusText(msg.err)
		return m, nil

	case frameMsg:
		if m.meters.update() {
			return m, frame()
		}
		m.meters.animating = false
		return m, nil

	case tea.KeyMsg:
		return m.updateKeys(msg)
	}

	return m, nil
}

func (m *Model) handleEvent(ev scheduler.Event) tea.Cmd {
	switch ev.Kind {
	case scheduler.EventStarted:
		m.playing = true
		m.gen++
		m.playhead = -1
	case scheduler.EventStopped:
		m.playing = false
		m.gen++
		m.playhead = -1
		m.meters.reset()
	case scheduler.EventError:
		m.playing = false
		m.message = statusText(ev.Err)
	case scheduler.EventStep:
		msg := playheadMsg{step: ev.Step, gen: m.gen, hits: ev.Hits}
		delay := m.untilAudible(ev.When)
		if delay <= 0 {
			return func() tea.Msg { return msg }
		}
		return tea.Tick(delay, func(time.Time) tea.Msg { return msg })
	}
	return nil
}

// untilAudible converts an audio clock time into a wall clock delay.
func (m *Model) untilAudible(when float64) time.Duration {
	c := m.mgr.Active()
	if c == nil {
		return 0
	}
	return time.Duration((when - c.CurrentTime()) * float64(time.Second))
}

// Close releases the bus subscriptions and stops playback.
func (m *Model) Close() {
	m.sched.Stop()
	for _, unsub := range m.unsubscribe {
		unsub()
	}
	m.unsubscribe = nil
}

func (m *Model) refresh() {
	m.pattern = m.seq.Snapshot()
	m.meters.resize(len(m.pattern.Tracks))
	if m.cursorY >= len(m.pattern.Tracks) {
		m.cursorY = max(len(m.pattern.Tracks)-1, 0)
	}
	if m.cursorX >= m.pattern.Length {
		m.cursorX = m.pattern.Length - 1
	}
}

// statusText turns an error into a one-line message for the status bar.
func statusText(err error) string {
	var de *audio.DecodeError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, audio.ErrAutoplayBlocked):
		return "Audio is locked. Press 'e' to enable it, then play again."
	case errors.Is(err, audio.ErrUnsupportedAudio):
		return "No audio output available."
	case errors.As(err, &de):
		return fmt.Sprintf("Cannot decode %s. Try a WAV or MP3 file.", de.Name)
	default:
		return "Error: " + err.Error()
	}
}

// startPlayback runs off the update loop; Start may block briefly while the
// device opens.
func (m *Model) startPlayback() tea.Cmd {
	sched := m.sched
	return func() tea.Msg {
		if err := sched.Start(context.Background()); err != nil {
			return errMsg{err}
		}
		return nil
	}
}
