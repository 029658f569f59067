package pattern

import (
	"fmt"
	"io"
	"math"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	ticksPerQuarterNote = 960 // Standard MIDI resolution
	stepsPerQuarter     = 4
	drumChannel         = 9 // channel 10 in 1-based numbering
)

// MIDIChannel returns the channel a track plays on: the GM drum channel for
// drum sounds, otherwise one channel per track skipping the drum channel.
func MIDIChannel(track int, sound string) uint8 {
	if IsDrum(sound) {
		return drumChannel
	}
	ch := track % 15
	if ch >= drumChannel {
		ch++
	}
	return uint8(ch)
}

// WriteMIDI writes p as a type 1 SMF: a tempo track followed by one track per
// pattern track. Each step is a sixteenth note.
func WriteMIDI(p Pattern, w io.Writer) error {
	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(ticksPerQuarterNote)
	ticksPerStep := uint32(ticksPerQuarterNote / stepsPerQuarter) // 240 ticks per step

	// Track 0: Tempo track
	var track0 smf.Track
	track0.Add(0, smf.MetaMeter(4, 4))
	track0.Add(0, smf.MetaTempo(p.BPM))
	track0.Close(0)
	if err := sm.Add(track0); err != nil {
		return fmt.Errorf("error adding tempo track: %w", err)
	}

	for i, t := range p.Tracks {
		var track smf.Track
		track.Add(0, smf.MetaTrackSequenceName(t.Name))
		track.Add(0, smf.MetaInstrument(t.Sound))
		ch := MIDIChannel(i, t.Sound)

		var lastTick uint32
		for step := 0; step < p.Length; step++ {
			s := t.Steps[step]
			if !s.Active || s.Velocity == 0 {
				continue
			}
			pos := uint32(step) * ticksPerStep
			track.Add(pos-lastTick, midi.NoteOn(ch, t.Note, s.Velocity))
			// Note off just before the next step
			track.Add(ticksPerStep-1, midi.NoteOff(ch, t.Note))
			lastTick = pos + ticksPerStep - 1
		}
		endTick := uint32(p.Length) * ticksPerStep
		if lastTick < endTick {
			track.Close(endTick - lastTick)
		} else {
			track.Close(0)
		}
		if err := sm.Add(track); err != nil {
			return fmt.Errorf("error adding track %d: %w", i, err)
		}
	}

	if _, err := sm.WriteTo(w); err != nil {
		return fmt.Errorf("error writing MIDI: %w", err)
	}
	return nil
}

// ReadMIDI builds a pattern from an SMF. Every track holding notes becomes a
// pattern track; note-ons are quantized to sixteenth steps and anything past
// MaxSteps is dropped. Names and sounds written by WriteMIDI are restored;
// otherwise drum-channel notes map to the built-in drums.
func ReadMIDI(r io.Reader) (Pattern, error) {
	rd, err := smf.ReadFrom(r)
	if err != nil {
		return Pattern{}, fmt.Errorf("error reading MIDI: %w", err)
	}

	p := New()
	if tempoChanges := rd.TempoChanges(); len(tempoChanges) > 0 {
		// tempo is stored in whole microseconds per quarter note
		p.BPM = ClampBPM(math.Round(tempoChanges[0].BPM*100) / 100)
	}

	resolution := uint32(ticksPerQuarterNote)
	if mt, ok := rd.TimeFormat.(smf.MetricTicks); ok && mt.Ticks4th() > 0 {
		resolution = mt.Ticks4th()
	}

	maxStep := 0
	for _, events := range rd.Tracks {
		var (
			name, sound string
			notes       bool
			t           Track
			tick        uint32
		)
		for _, ev := range events {
			tick += ev.Delta
			var text string
			switch {
			case ev.Message.GetMetaTrackName(&text):
				name = text
			case ev.Message.GetMetaInstrument(&text):
				sound = text
			}

			var channel, key, velocity uint8
			if !ev.Message.GetNoteOn(&channel, &key, &velocity) || velocity == 0 {
				continue
			}
			if !notes {
				notes = true
				if sound == "" {
					sound = "tone"
					if drum, ok := SoundForNote(key); ok && channel == drumChannel {
						sound = drum
					}
				}
				if name == "" {
					name = sound
				}
				t = NewTrack(name, sound)
				t.Note = key
			}
			step := stepAt(tick, resolution, true)
			if step >= MaxSteps {
				continue
			}
			t.Steps[step].Active = true
			t.Steps[step].Velocity = velocity
			if step+1 > maxStep {
				maxStep = step + 1
			}
		}
		if notes {
			// track end marks the loop length written by WriteMIDI
			if end := stepAt(tick, resolution, false); end > maxStep {
				maxStep = end
			}
			p.Tracks = append(p.Tracks, t)
		}
	}

	p.Length = fitLength(maxStep)
	p.normalize()
	return p, nil
}

// stepAt converts a tick to a sixteenth step at resolution ticks per quarter
// note, rounding to the nearest step or truncating.
func stepAt(tick, resolution uint32, round bool) int {
	n := uint64(tick) * stepsPerQuarter
	if round {
		n += uint64(resolution) / 2
	}
	return int(n / uint64(resolution))
}

// fitLength returns the smallest valid length holding n steps.
func fitLength(n int) int {
	if n == 0 {
		return DefaultLength
	}
	for _, l := range ValidLengths {
		if n <= l {
			return l
		}
	}
	return MaxSteps
}
