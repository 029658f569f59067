// Package scheduler turns the pattern grid into sound. A background loop
// wakes every lookahead interval and schedules every step that falls inside
// the horizon against the audio clock, so timer jitter never reaches the
// audible timing.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/codedswitch/studio/internal/audio"
	"github.com/codedswitch/studio/internal/bus"
	"github.com/codedswitch/studio/internal/pattern"
)

const (
	DefaultLookahead = 25 * time.Millisecond
	DefaultHorizon   = 100 * time.Millisecond
	stepsPerBeat     = 4 // sixteenth-note grid
	maxLag           = 1.0
)

// StepDurationMs is the length of one sixteenth step: (60/bpm/4)*1000.
func StepDurationMs(bpm float64) float64 {
	return 60 / bpm / stepsPerBeat * 1000
}

// StepDuration is StepDurationMs as a time.Duration.
func StepDuration(bpm float64) time.Duration {
	return time.Duration(StepDurationMs(bpm) * float64(time.Millisecond))
}

// Advance returns the step after step in a loop of length steps. A cursor
// already at or past the end (the loop just got shorter) wraps to 0.
func Advance(step, length int) int {
	next := step + 1
	if length <= 0 || next >= length {
		return 0
	}
	return next
}

// Cursor is the playback position.
type Cursor struct {
	CurrentStep int
	Playing     bool
}

// EventKind tells subscribers what happened.
type EventKind int

const (
	EventStep EventKind = iota
	EventStarted
	EventStopped
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventStep:
		return "step"
	case EventStarted:
		return "started"
	case EventStopped:
		return "stopped"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is published on the bus. For EventStep, When is the audio time the
// step sounds at; views delay their playhead until then.
type Event struct {
	Kind EventKind
	Step int
	When float64
	Hits []Hit // tracks that sound on this step
	Err  error
}

// Hit is one track sounding on a step.
type Hit struct {
	Track int
	Gain  float64
}

// Trigger is one note handed to the sinks.
type Trigger struct {
	TrackIndex int
	Track      pattern.Track
	Step       int
	Velocity   uint8
	Gain       float64 // velocity/127 * track volume
	When       float64 // audio clock seconds
	Duration   float64 // one step, in seconds
}

// Sink receives scheduled notes.
type Sink interface {
	Trigger(c *audio.Context, t Trigger) error
	// Silence cuts sustained and not yet started notes. c may be nil when
	// no audio context is open.
	Silence(c *audio.Context)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLookahead sets how often the loop wakes up.
func WithLookahead(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.lookahead = d
		}
	}
}

// WithHorizon sets how far ahead of the audio clock steps are scheduled.
func WithHorizon(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.horizon = d
		}
	}
}

// WithRand sets the source for probability rolls.
func WithRand(r pattern.Rand) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.rng = r
		}
	}
}

// WithSinks replaces the default audio sink.
func WithSinks(sinks ...Sink) Option {
	return func(s *Scheduler) { s.sinks = sinks }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithEvents publishes playback events on b.
func WithEvents(b *bus.Bus[Event]) Option {
	return func(s *Scheduler) { s.events = b }
}

// Scheduler plays the pattern owned by a Sequencer. Edits made while
// playing are picked up on the next pass.
type Scheduler struct {
	mgr       *audio.Manager
	seq       *pattern.Sequencer
	sinks     []Sink
	lookahead time.Duration
	horizon   time.Duration
	rng       pattern.Rand
	log       *log.Logger
	events    *bus.Bus[Event]

	mu       sync.Mutex
	cursor   Cursor
	first    bool    // next pass schedules step 0 without advancing
	nextTime float64 // audio time of the next unscheduled step
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a stopped scheduler. Without WithSinks it plays the built-in
// kit through the manager's audio context.
func New(mgr *audio.Manager, seq *pattern.Sequencer, opts ...Option) *Scheduler {
	s := &Scheduler{
		mgr:       mgr,
		seq:       seq,
		lookahead: DefaultLookahead,
		horizon:   DefaultHorizon,
		rng:       defaultRand{},
		log:       log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sinks == nil {
		s.sinks = []Sink{NewAudioSink(audio.NewKit())}
	}
	return s
}

// Start begins playback from step 0. It is a no-op while already playing.
// If the audio context cannot be resumed (no user gesture yet) nothing is
// scheduled and ErrAutoplayBlocked is returned and published.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor.Playing {
		return nil
	}

	c, err := s.mgr.Context()
	if err != nil {
		s.fail(err)
		return err
	}
	if c.State() != audio.StateRunning {
		if err := s.mgr.Resume(); err != nil {
			s.fail(err)
			return err
		}
	}

	s.cursor = Cursor{Playing: true}
	s.first = true
	s.nextTime = c.CurrentTime()

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	go s.run(loopCtx, c, done)

	s.log.Debug("playback started", "bpm", s.seq.BPM(), "at", s.nextTime)
	s.events.Publish(Event{Kind: EventStarted, When: s.nextTime})
	return nil
}

// Stop halts playback and resets the cursor to step 0. It is safe to call
// from any state, any number of times.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	wasPlaying := s.cursor.Playing
	s.cursor = Cursor{}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if wasPlaying {
		s.silence()
		s.log.Debug("playback stopped")
		s.events.Publish(Event{Kind: EventStopped})
	}
}

// Cursor returns the current playback position.
func (s *Scheduler) Cursor() Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Playing reports whether the loop is running.
func (s *Scheduler) Playing() bool {
	return s.Cursor().Playing
}

func (s *Scheduler) run(ctx context.Context, c *audio.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.lookahead)
	defer ticker.Stop()

	s.pump(c)
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			owned := s.done == done
			if owned {
				s.cursor = Cursor{}
				s.cancel, s.done = nil, nil
			}
			s.mu.Unlock()
			if owned {
				s.silence()
				s.events.Publish(Event{Kind: EventStopped})
			}
			return
		case <-ticker.C:
			s.pump(c)
		}
	}
}

// pump schedules every step that starts before the horizon.
func (s *Scheduler) pump(c *audio.Context) {
	p := s.seq.Snapshot()
	dur := StepDurationMs(p.BPM) / 1000

	s.mu.Lock()
	if !s.cursor.Playing || c.State() == audio.StateClosed {
		s.mu.Unlock()
		return
	}
	now := c.CurrentTime()
	if s.nextTime < now-maxLag {
		// the loop stalled; skip the missed steps instead of playing them
		// all at once
		skipped := 0
		for s.nextTime < now {
			s.advance(p.Length)
			s.nextTime += dur
			skipped++
		}
		s.log.Warn("scheduler fell behind", "skipped", skipped)
	}

	var (
		triggers []Trigger
		steps    []Event
	)
	until := now + s.horizon.Seconds()
	for s.nextTime < until {
		s.advance(p.Length)
		step := s.cursor.CurrentStep
		ts := s.triggers(p, step, s.nextTime, dur)
		hits := make([]Hit, len(ts))
		for i, t := range ts {
			hits[i] = Hit{Track: t.TrackIndex, Gain: t.Gain}
		}
		triggers = append(triggers, ts...)
		steps = append(steps, Event{Kind: EventStep, Step: step, When: s.nextTime, Hits: hits})
		s.nextTime += dur
	}
	s.mu.Unlock()

	for _, t := range triggers {
		for _, sink := range s.sinks {
			if err := sink.Trigger(c, t); err != nil {
				s.log.Warn("trigger failed", "track", t.Track.Name, "sound", t.Track.Sound, "err", err)
			}
		}
	}
	for _, ev := range steps {
		s.log.Debug("scheduled step", "step", ev.Step, "at", ev.When)
		s.events.Publish(ev)
	}
}

// advance moves the cursor; the very first step after Start is step 0.
func (s *Scheduler) advance(length int) {
	if s.first {
		s.first = false
		s.cursor.CurrentStep = 0
		return
	}
	s.cursor.CurrentStep = Advance(s.cursor.CurrentStep, length)
}

// triggers collects the notes for one step. Odd steps are pushed back by
// the swing amount plus each step's own offset.
func (s *Scheduler) triggers(p pattern.Pattern, step int, when, dur float64) []Trigger {
	var out []Trigger
	for i, t := range p.Tracks {
		if !p.Audible(i) {
			continue
		}
		st := t.Steps[step]
		if !st.Active || st.Velocity == 0 {
			continue
		}
		if st.Probability < pattern.MaxProbability && s.rng.Float64()*100 >= float64(st.Probability) {
			continue
		}
		at := when
		if step%2 == 1 {
			delay := p.SwingPercent/100*dur/2 + st.SwingOffsetMs/1000
			if delay > 0 {
				at += delay
			}
		}
		out = append(out, Trigger{
			TrackIndex: i,
			Track:      t,
			Step:       step,
			Velocity:   st.Velocity,
			Gain:       float64(st.Velocity) / pattern.MaxVelocity * t.Volume,
			When:       at,
			Duration:   dur,
		})
	}
	return out
}

func (s *Scheduler) silence() {
	c := s.mgr.Active()
	for _, sink := range s.sinks {
		sink.Silence(c)
	}
}

func (s *Scheduler) fail(err error) {
	s.log.Warn("cannot start playback", "err", err)
	s.events.Publish(Event{Kind: EventError, Err: err})
}
