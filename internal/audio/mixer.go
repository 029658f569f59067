package audio

import (
	"math"
	"sync"
	"sync/atomic"
)

// mixer sums every scheduled source into one PCM stream. Its frame counter
// is the audio clock: it only advances when the device pulls samples.
type mixer struct {
	mu      sync.Mutex
	sources []*Source
	frame   atomic.Int64
	gain    atomic.Uint64 // float64 bits
}

func newMixer(volume float64) *mixer {
	m := &mixer{}
	m.setGain(volume)
	return m
}

func (m *mixer) setGain(v float64) { m.gain.Store(math.Float64bits(v)) }

func (m *mixer) masterGain() float64 { return math.Float64frombits(m.gain.Load()) }

func (m *mixer) frames() int64 { return m.frame.Load() }

// schedule adds a source that starts once the clock reaches startFrame.
func (m *mixer) schedule(s *Source) {
	m.mu.Lock()
	m.sources = append(m.sources, s)
	m.mu.Unlock()
}

// active counts sources that are scheduled or sounding.
func (m *mixer) active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sources {
		if !s.stopped.Load() {
			n++
		}
	}
	return n
}

// releaseAll lets sustained voices enter their release phase.
func (m *mixer) releaseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sources {
		if r, ok := s.voice.(releaser); ok {
			r.Release()
		}
	}
}

// release releases one source. It reports false when the source has not
// started sounding yet.
func (m *mixer) release(s *Source) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frame.Load() < s.start {
		return false
	}
	if r, ok := s.voice.(releaser); ok {
		r.Release()
	}
	return true
}

// Read implements io.Reader for the device.
func (m *mixer) Read(buf []byte) (int, error) {
	frames := len(buf) / frameSize
	var ended []*Source

	m.mu.Lock()
	gain := m.masterGain()
	pos := m.frame.Load()
	for i := 0; i < frames; i++ {
		var left, right float64
		for idx := 0; idx < len(m.sources); idx++ {
			s := m.sources[idx]
			if s.stopped.Load() {
				m.sources = append(m.sources[:idx], m.sources[idx+1:]...)
				idx--
				continue
			}
			if pos < s.start {
				continue
			}
			l, r, done := s.voice.Sample()
			left += l
			right += r
			s.played.Add(1)
			if done {
				m.sources = append(m.sources[:idx], m.sources[idx+1:]...)
				idx--
				ended = append(ended, s)
			}
		}

		idx := i * frameSize
		putSample(buf[idx:], left*gain)
		putSample(buf[idx+2:], right*gain)
		pos++
	}
	m.frame.Store(pos)
	m.mu.Unlock()

	for _, s := range ended {
		s.end(true)
	}
	return frames * frameSize, nil
}

func putSample(b []byte, v float64) {
	if v > 1.0 {
		v = 1.0
	} else if v < -1.0 {
		v = -1.0
	}
	s := int16(v * 32767)
	b[0] = byte(s)
	b[1] = byte(s >> 8)
}
