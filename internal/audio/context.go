package audio

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// Context is one open audio device plus the mixer feeding it. Voices are
// scheduled against its own clock, never against wall time.
type Context struct {
	dev   Device
	mix   *mixer
	rate  int
	state atomic.Int32
	log   *log.Logger
}

// State reports whether the context is producing sound.
func (c *Context) State() State { return State(c.state.Load()) }

// SampleRate is the rate the device was opened with.
func (c *Context) SampleRate() int { return c.rate }

// CurrentTime returns the audio clock in seconds: how much audio the device
// has pulled so far. It is monotonic and stands still while suspended.
func (c *Context) CurrentTime() float64 {
	return float64(c.mix.frames()) / float64(c.rate)
}

// Start schedules v to begin at audio time when (seconds). Times in the past
// start on the next rendered frame. On a closed context the returned Source
// is already done.
func (c *Context) Start(v Voice, when float64) *Source {
	s := newSource(v)
	if c.State() == StateClosed {
		s.Stop()
		return s
	}
	start := int64(math.Round(when * float64(c.rate)))
	if now := c.mix.frames(); start < now {
		start = now
	}
	s.start = start
	s.rate = c.rate
	s.mix = c.mix
	c.mix.schedule(s)
	return s
}

// StopAll releases every sustained voice. One-shot voices play out.
func (c *Context) StopAll() {
	c.mix.releaseAll()
}

// ActiveSources counts voices that are scheduled or still sounding.
func (c *Context) ActiveSources() int { return c.mix.active() }

func (c *Context) resume() error {
	switch c.State() {
	case StateClosed:
		return errContextClosed
	case StateRunning:
		return nil
	}
	if err := c.dev.Resume(); err != nil {
		return err
	}
	c.state.Store(int32(StateRunning))
	c.log.Debug("audio context running", "at", c.CurrentTime())
	return nil
}

func (c *Context) suspend() error {
	if c.State() != StateRunning {
		return nil
	}
	if err := c.dev.Suspend(); err != nil {
		return err
	}
	c.state.Store(int32(StateSuspended))
	c.log.Debug("audio context suspended", "at", c.CurrentTime())
	return nil
}

func (c *Context) close() error {
	if State(c.state.Swap(int32(StateClosed))) == StateClosed {
		return nil
	}
	return c.dev.Close()
}

// Source is a single scheduled voice, the equivalent of a one-shot source
// node. It can be stopped but never restarted.
type Source struct {
	voice   Voice
	mix     *mixer
	start   int64
	rate    int
	played  atomic.Int64
	stopped atomic.Bool

	once    sync.Once
	done    chan struct{}
	mu      sync.Mutex
	ended   []func()
	natural bool
}

func newSource(v Voice) *Source {
	return &Source{voice: v, done: make(chan struct{})}
}

// Stop silences the source immediately. Stop does not fire OnEnded callbacks.
func (s *Source) Stop() {
	s.stopped.Store(true)
	s.end(false)
}

// Release lets a sustained voice fade out. One-shot voices are unaffected,
// and a source that has not started yet is stopped outright.
func (s *Source) Release() {
	if s.mix == nil {
		s.Stop()
		return
	}
	if !s.mix.release(s) {
		s.Stop()
	}
}

// Done is closed once the source finished or was stopped.
func (s *Source) Done() <-chan struct{} { return s.done }

// Playing reports whether the source is scheduled or sounding.
func (s *Source) Playing() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Frames returns how many frames of the voice were rendered.
func (s *Source) Frames() int64 { return s.played.Load() }

// Elapsed returns the rendered length in seconds.
func (s *Source) Elapsed() float64 {
	if s.rate == 0 {
		return 0
	}
	return float64(s.played.Load()) / float64(s.rate)
}

// OnEnded registers fn to run on its own goroutine when the voice plays out
// to its natural end. Registering after that end runs fn right away.
func (s *Source) OnEnded(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.natural {
		go fn()
		return
	}
	s.ended = append(s.ended, fn)
}

func (s *Source) end(natural bool) {
	first := false
	s.once.Do(func() {
		close(s.done)
		first = true
	})
	if !first || !natural {
		return
	}
	s.stopped.Store(true)
	s.mu.Lock()
	s.natural = true
	fns := s.ended
	s.ended = nil
	s.mu.Unlock()
	for _, fn := range fns {
		go fn()
	}
}
