package audio

import "math"

// Buffer is decoded stereo audio. A Buffer is never modified after decoding,
// so any number of voices may read it concurrently.
type Buffer struct {
	SampleRate int
	Frames     [][2]float32
}

// Len returns the number of frames.
func (b *Buffer) Len() int { return len(b.Frames) }

// Duration returns the length in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate == 0 {
		return 0
	}
	return float64(len(b.Frames)) / float64(b.SampleRate)
}

// Resample converts the buffer to rate using linear interpolation. It returns
// b itself when the rates already match.
func (b *Buffer) Resample(rate int) *Buffer {
	if rate <= 0 || b.SampleRate == rate || len(b.Frames) == 0 {
		return b
	}
	ratio := float64(b.SampleRate) / float64(rate)
	n := int(math.Floor(float64(len(b.Frames)-1)/ratio)) + 1
	out := &Buffer{SampleRate: rate, Frames: make([][2]float32, n)}
	last := len(b.Frames) - 1
	for i := range out.Frames {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= last {
			out.Frames[i] = b.Frames[last]
			continue
		}
		frac := float32(pos - float64(j))
		a, c := b.Frames[j], b.Frames[j+1]
		out.Frames[i] = [2]float32{
			a[0] + (c[0]-a[0])*frac,
			a[1] + (c[1]-a[1])*frac,
		}
	}
	return out
}

// Voice plays the buffer from offset seconds to the end.
func (b *Buffer) Voice(offset float64, p Params) Voice {
	l, r := panGains(p.Pan)
	gain := p.Gain
	start := offset * float64(b.SampleRate)
	switch {
	case math.IsNaN(start) || start < 0:
		start = 0
	case start > float64(len(b.Frames)):
		start = float64(len(b.Frames))
	}
	return &bufferVoice{
		buf:   b,
		pos:   start,
		step:  p.pitchRatio(),
		gainL: l * gain * math.Sqrt2,
		gainR: r * gain * math.Sqrt2,
	}
}

// bufferVoice reads a Buffer at a (possibly fractional) rate.
type bufferVoice struct {
	buf   *Buffer
	pos   float64
	step  float64
	gainL float64
	gainR float64
}

func (v *bufferVoice) Sample() (float64, float64, bool) {
	i := int(v.pos)
	if i < 0 || i >= len(v.buf.Frames) {
		return 0, 0, true
	}
	f := v.buf.Frames[i]
	v.pos += v.step
	return float64(f[0]) * v.gainL, float64(f[1]) * v.gainR, int(v.pos) >= len(v.buf.Frames)
}
