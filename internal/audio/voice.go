package audio

import "math"

// Voice generates stereo samples in the range [-1,1].
type Voice interface {
	// Sample returns the next frame and whether the voice has finished.
	Sample() (left, right float64, done bool)
}

// releaser is implemented by voices that sustain until told to stop.
type releaser interface {
	Release()
}

// WaveType represents different oscillator wave shapes
type WaveType int

const (
	WaveSine WaveType = iota
	WaveSquare
	WaveSawtooth
	WaveTriangle
)

// Params describe one trigger of an instrument.
type Params struct {
	Note   uint8   // MIDI note, used by tonal instruments
	Gain   float64 // linear gain, velocity and track volume already applied
	Pan    float64 // -1 left, 0 center, 1 right
	Pitch  float64 // transpose in semitones
	Decay  float64 // envelope length multiplier, 0 means 1
	Length float64 // seconds a sustained voice holds before releasing
}

func (p Params) decay() float64 {
	if p.Decay <= 0 {
		return 1
	}
	return p.Decay
}

func (p Params) pitchRatio() float64 {
	return math.Pow(2, p.Pitch/12)
}

// panGains returns equal-power left/right gains.
func panGains(pan float64) (float64, float64) {
	pan = clamp(pan, -1, 1)
	angle := (pan + 1) * math.Pi / 4
	return math.Cos(angle), math.Sin(angle)
}

func generateWave(waveType WaveType, phase float64) float64 {
	switch waveType {
	case WaveSine:
		return math.Sin(2 * math.Pi * phase)
	case WaveSquare:
		if phase < 0.5 {
			return 0.8
		}
		return -0.8
	case WaveSawtooth:
		return 2*phase - 1
	case WaveTriangle:
		if phase < 0.5 {
			return 4*phase - 1
		}
		return 3 - 4*phase
	default:
		return math.Sin(2 * math.Pi * phase)
	}
}

// midiNoteToFreq converts a MIDI note number to frequency in Hz
func midiNoteToFreq(note float64) float64 {
	// A4 (note 69) = 440 Hz
	return 440.0 * math.Pow(2.0, (note-69.0)/12.0)
}

// toneVoice is a single oscillator with a linear attack and an exponential
// release. It sustains for holdSamples, or until Release is called.
type toneVoice struct {
	wave        WaveType
	frequency   float64
	sampleRate  float64
	phase       float64
	envelope    float64
	attackStep  float64
	releaseMul  float64
	holdSamples int
	elapsed     int
	releasing   bool
	gainL       float64
	gainR       float64
}

func newToneVoice(wave WaveType, sampleRate int, p Params) *toneVoice {
	l, r := panGains(p.Pan)
	hold := int(p.Length * float64(sampleRate))
	if hold <= 0 {
		hold = sampleRate / 4
	}
	rate := float64(sampleRate)
	return &toneVoice{
		wave:        wave,
		frequency:   midiNoteToFreq(float64(p.Note) + p.Pitch),
		sampleRate:  rate,
		attackStep:  1 / (0.005 * rate),
		releaseMul:  math.Pow(0.001, 1/(0.15*p.decay()*rate)),
		holdSamples: hold,
		gainL:       l * p.Gain,
		gainR:       r * p.Gain,
	}
}

func (v *toneVoice) Release() { v.releasing = true }

func (v *toneVoice) Sample() (float64, float64, bool) {
	s := generateWave(v.wave, v.phase) * v.envelope * 0.5

	v.phase += v.frequency / v.sampleRate
	if v.phase >= 1.0 {
		v.phase -= 1.0
	}

	v.elapsed++
	if v.elapsed >= v.holdSamples {
		v.releasing = true
	}
	if v.releasing {
		// Release phase - exponential decay
		v.envelope *= v.releaseMul
		if v.envelope < 0.001 {
			return s * v.gainL, s * v.gainR, true
		}
	} else if v.envelope < 1.0 {
		// Attack phase
		v.envelope += v.attackStep
		if v.envelope > 1.0 {
			v.envelope = 1.0
		}
	}
	return s * v.gainL, s * v.gainR, false
}

// drumKind selects the synthesis recipe of a drumVoice.
type drumKind int

const (
	drumKick drumKind = iota
	drumSnare
	drumHiHat
	drumOpenHat
	drumClap
	drumTom
)

// drumVoice is a one-shot percussion sound: a pitched body, a noise burst,
// or both, each under its own exponential decay.
type drumVoice struct {
	kind   drumKind
	rate   float64
	t      int
	length int
	phase  float64
	pitch  float64
	decay  float64
	noise  uint32
	prev   float64
	gainL  float64
	gainR  float64
}

// drumLengths are the nominal one-shot lengths in seconds.
var drumLengths = map[drumKind]float64{
	drumKick:    0.45,
	drumSnare:   0.25,
	drumHiHat:   0.08,
	drumOpenHat: 0.4,
	drumClap:    0.3,
	drumTom:     0.4,
}

func newDrumVoice(kind drumKind, sampleRate int, p Params) *drumVoice {
	l, r := panGains(p.Pan)
	rate := float64(sampleRate)
	return &drumVoice{
		kind:   kind,
		rate:   rate,
		length: int(drumLengths[kind] * p.decay() * rate),
		pitch:  p.pitchRatio(),
		decay:  p.decay(),
		noise:  0x9E3779B9,
		gainL:  l * p.Gain,
		gainR:  r * p.Gain,
	}
}

// white returns the next xorshift noise sample in [-1,1].
func (v *drumVoice) white() float64 {
	v.noise ^= v.noise << 13
	v.noise ^= v.noise >> 17
	v.noise ^= v.noise << 5
	return float64(v.noise)/float64(math.MaxUint32)*2 - 1
}

// body advances a sine oscillator whose frequency falls from hi to lo.
func (v *drumVoice) body(hi, lo, sweep float64, sec float64) float64 {
	freq := (lo + (hi-lo)*math.Exp(-sec/sweep)) * v.pitch
	v.phase += freq / v.rate
	if v.phase >= 1 {
		v.phase -= 1
	}
	return math.Sin(2 * math.Pi * v.phase)
}

func (v *drumVoice) Sample() (float64, float64, bool) {
	if v.t >= v.length {
		return 0, 0, true
	}
	sec := float64(v.t) / v.rate
	d := v.decay
	var s float64
	switch v.kind {
	case drumKick:
		s = v.body(150, 45, 0.03, sec) * math.Exp(-sec/(0.12*d))
	case drumSnare:
		tone := v.body(220, 180, 0.02, sec) * math.Exp(-sec/(0.05*d))
		s = 0.45*tone + 0.6*v.white()*math.Exp(-sec/(0.07*d))
	case drumHiHat, drumOpenHat:
		n := v.white()
		hp := n - v.prev // crude high-pass
		v.prev = n
		tau := 0.02
		if v.kind == drumOpenHat {
			tau = 0.12
		}
		s = 0.5 * hp * math.Exp(-sec/(tau*d))
	case drumClap:
		// three short bursts then a tail
		env := math.Exp(-math.Mod(sec, 0.012)/0.004) * 0.8
		if sec > 0.036 {
			env = math.Exp(-(sec - 0.036) / (0.08 * d))
		}
		s = 0.6 * v.white() * env
	case drumTom:
		s = v.body(160, 95, 0.06, sec) * math.Exp(-sec/(0.15*d))
	}
	v.t++
	return s * v.gainL, s * v.gainR, v.t >= v.length
}
