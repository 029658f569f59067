package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Manager owns the single audio context of the process and its master gain.
// Build one at startup and hand it to every component that makes sound.
type Manager struct {
	mu      sync.Mutex
	opener  Opener
	ctx     *Context
	rate    int
	volume  float64
	timeout time.Duration
	log     *log.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithSampleRate sets the rate contexts are opened with.
func WithSampleRate(rate int) Option {
	return func(m *Manager) {
		if rate > 0 {
			m.rate = rate
		}
	}
}

// WithMasterVolume sets the initial master gain.
func WithMasterVolume(v float64) Option {
	return func(m *Manager) { m.volume = clamp(v, 0, 1) }
}

// WithReadyTimeout bounds how long Context waits for a device that opens in
// the background.
func WithReadyTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// NewManager creates a manager that opens devices with opener. No device is
// opened until Context is first called.
func NewManager(opener Opener, opts ...Option) *Manager {
	m := &Manager{
		opener: opener,
		rate:   DefaultSampleRate,
		volume:  1,
		timeout: DefaultReadyTimeout,
		log:     log.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SampleRate is the rate used for every context this manager opens.
func (m *Manager) SampleRate() int { return m.rate }

// Context returns the audio context, opening it on first use. When the
// context is suspended Context tries to resume it, but a failed resume is
// not an error here: check State, or call Resume from a user action.
func (m *Manager) Context() (*Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil || m.ctx.State() == StateClosed {
		if m.opener == nil {
			return nil, ErrUnsupportedAudio
		}
		mix := newMixer(m.volume)
		dev, err := m.opener.Open(m.rate, mix)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedAudio, err)
		}
		if err := m.awaitReady(dev); err != nil {
			dev.Close()
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedAudio, err)
		}
		m.ctx = &Context{dev: dev, mix: mix, rate: m.rate, log: m.log}
		m.log.Debug("audio context created", "sample_rate", m.rate)
	}

	if m.ctx.State() == StateSuspended {
		if err := m.ctx.resume(); err != nil {
			m.log.Debug("audio context still suspended", "err", err)
		}
	}
	return m.ctx, nil
}

// Active returns the current context without opening one. It is nil before
// the first Context call and after Close.
func (m *Manager) Active() *Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx == nil || m.ctx.State() == StateClosed {
		return nil
	}
	return m.ctx
}

// Resume unlocks audio output. Call it from an explicit user action.
func (m *Manager) Resume() error {
	c, err := m.Context()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := c.resume(); err != nil {
		return fmt.Errorf("%w: %w", ErrAutoplayBlocked, err)
	}
	return nil
}

// awaitReady blocks until a ReadyDevice finished opening, so the first
// resume does not race the platform.
func (m *Manager) awaitReady(dev Device) error {
	rd, ok := dev.(ReadyDevice)
	if !ok {
		return nil
	}
	timer := time.NewTimer(m.timeout)
	defer timer.Stop()
	select {
	case <-rd.Ready():
	case <-timer.C:
		return fmt.Errorf("audio device not ready after %v", m.timeout)
	}
	return rd.Err()
}

// Suspend pauses output; the audio clock stops with it.
func (m *Manager) Suspend() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx == nil {
		return nil
	}
	return m.ctx.suspend()
}

// Close releases the device. It is safe to call repeatedly; a later Context
// call opens a fresh context.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx == nil {
		return nil
	}
	c := m.ctx
	m.ctx = nil
	if err := c.close(); err != nil {
		return fmt.Errorf("close audio context: %w", err)
	}
	m.log.Debug("audio context closed")
	return nil
}

// SetMasterVolume sets the master gain (0.0 - 1.0). The change is applied
// immediately, without a ramp.
func (m *Manager) SetMasterVolume(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = clamp(v, 0, 1)
	if m.ctx != nil {
		m.ctx.mix.setGain(m.volume)
	}
}

// MasterVolume returns the current master gain.
func (m *Manager) MasterVolume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	} else if v > hi {
		return hi
	}
	return v
}
