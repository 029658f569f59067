package pattern

import (
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/codedswitch/studio/internal/bus"
)

func newTestSequencer(opts ...Option) *Sequencer {
	opts = append([]Option{WithRand(rand.New(rand.NewPCG(1, 2)))}, opts...)
	return NewSequencer(DefaultKit(), opts...)
}

func TestToggleStepIsItsOwnInverse(t *testing.T) {
	s := newTestSequencer()
	before := s.Snapshot()

	for i := 0; i < MaxSteps; i++ {
		if err := s.ToggleStep(1, i); err != nil {
			t.Fatalf("ToggleStep(1, %d): %v", i, err)
		}
		if !s.Snapshot().Tracks[1].Steps[i].Active {
			t.Errorf("step %d not active after one toggle", i)
		}
		if err := s.ToggleStep(1, i); err != nil {
			t.Fatalf("ToggleStep(1, %d): %v", i, err)
		}
	}

	if after := s.Snapshot(); after.Tracks[1] != before.Tracks[1] {
		t.Error("double toggle changed the track")
	}
}

func TestRandomizeThenClearKeepsVelocityAndProbability(t *testing.T) {
	s := newTestSequencer()
	if err := s.Randomize(0); err != nil {
		t.Fatalf("Randomize: %v", err)
	}
	randomized := s.Snapshot().Tracks[0]

	active := 0
	for i, st := range randomized.Steps {
		if st.Active {
			active++
		}
		if st.Velocity < 60 || st.Velocity > 100 {
			t.Errorf("step %d velocity %d outside [60,100]", i, st.Velocity)
		}
		if st.Probability < 60 || st.Probability > 100 {
			t.Errorf("step %d probability %d outside [60,100]", i, st.Probability)
		}
	}
	if active == 0 || active == MaxSteps {
		t.Errorf("randomize activated %d of %d steps", active, MaxSteps)
	}

	if err := s.Clear(0); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	cleared := s.Snapshot().Tracks[0]
	for i, st := range cleared.Steps {
		if st.Active {
			t.Errorf("step %d still active after Clear", i)
		}
		if st.Velocity != randomized.Steps[i].Velocity || st.Probability != randomized.Steps[i].Probability {
			t.Errorf("step %d: Clear changed velocity/probability", i)
		}
	}
}

func TestRandomizeIsDeterministicWithSeed(t *testing.T) {
	a := newTestSequencer()
	b := newTestSequencer()
	_ = a.Randomize(2)
	_ = b.Randomize(2)
	if a.Snapshot().Tracks[2].Steps != b.Snapshot().Tracks[2].Steps {
		t.Error("same seed produced different patterns")
	}
}

func TestSetPatternLengthKeepsSteps(t *testing.T) {
	s := newTestSequencer()
	if err := s.SetPatternLength(32); err != nil {
		t.Fatalf("SetPatternLength(32): %v", err)
	}
	_ = s.ToggleStep(0, 20)

	if err := s.SetPatternLength(8); err != nil {
		t.Fatalf("SetPatternLength(8): %v", err)
	}
	if err := s.SetPatternLength(32); err != nil {
		t.Fatalf("SetPatternLength(32): %v", err)
	}
	if !s.Snapshot().Tracks[0].Steps[20].Active {
		t.Error("step 20 lost after shrinking and growing the pattern")
	}

	for _, n := range []int{0, 4, 12, 64, -16} {
		if err := s.SetPatternLength(n); !errors.Is(err, ErrInvalidLength) {
			t.Errorf("SetPatternLength(%d) err = %v, want ErrInvalidLength", n, err)
		}
	}
	if s.Length() != 32 {
		t.Errorf("Length = %d after invalid calls, want 32", s.Length())
	}
}

func TestVelocityClamping(t *testing.T) {
	s := newTestSequencer()
	tests := []struct {
		in   int
		want uint8
	}{
		{-5, 0},
		{0, 0},
		{64, 64},
		{127, 127},
		{200, 127},
	}
	for _, tt := range tests {
		if err := s.SetVelocity(0, 3, tt.in); err != nil {
			t.Fatalf("SetVelocity: %v", err)
		}
		if got := s.Snapshot().Tracks[0].Steps[3].Velocity; got != tt.want {
			t.Errorf("SetVelocity(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}

	if err := s.SetIntensity(0, 3, 50); err != nil {
		t.Fatalf("SetIntensity: %v", err)
	}
	if got := s.Snapshot().Tracks[0].Steps[3].Velocity; got != 64 {
		t.Errorf("SetIntensity(50) velocity = %d, want 64", got)
	}
}

func TestIntensityConversion(t *testing.T) {
	tests := []struct {
		pct int
		vel uint8
	}{
		{0, 0},
		{50, 64},
		{100, 127},
		{150, 127},
		{-10, 0},
	}
	for _, tt := range tests {
		if got := IntensityToVelocity(tt.pct); got != tt.vel {
			t.Errorf("IntensityToVelocity(%d) = %d, want %d", tt.pct, got, tt.vel)
		}
	}
	for v := 0; v <= MaxVelocity; v++ {
		pct := VelocityToIntensity(uint8(v))
		if pct < 0 || pct > 100 {
			t.Fatalf("VelocityToIntensity(%d) = %d", v, pct)
		}
		if back := IntensityToVelocity(pct); int(back)-v > 1 || v-int(back) > 1 {
			t.Errorf("velocity %d -> %d%% -> %d", v, pct, back)
		}
	}
}

func TestIndexErrors(t *testing.T) {
	s := newTestSequencer()
	if err := s.ToggleStep(99, 0); !errors.Is(err, ErrTrackRange) {
		t.Errorf("bad track err = %v", err)
	}
	if err := s.ToggleStep(0, MaxSteps); !errors.Is(err, ErrStepRange) {
		t.Errorf("bad step err = %v", err)
	}
	if err := s.ToggleStep(0, -1); !errors.Is(err, ErrStepRange) {
		t.Errorf("negative step err = %v", err)
	}
	if err := s.RemoveTrack(-1); !errors.Is(err, ErrTrackRange) {
		t.Errorf("RemoveTrack err = %v", err)
	}
}

func TestTempoAndTracks(t *testing.T) {
	s := newTestSequencer()

	s.SetBPM(500)
	if s.BPM() != MaxBPM {
		t.Errorf("BPM = %v, want %v", s.BPM(), MaxBPM)
	}
	s.SetBPM(5)
	if s.BPM() != MinBPM {
		t.Errorf("BPM = %v, want %v", s.BPM(), MinBPM)
	}

	n := len(s.Snapshot().Tracks)
	i := s.AddTrack(NewTrack("Bass", "saw"))
	if i != n {
		t.Errorf("AddTrack index = %d, want %d", i, n)
	}
	if err := s.SetTrackVolume(i, 3); err != nil {
		t.Fatal(err)
	}
	if v := s.Snapshot().Tracks[i].Volume; v != 1 {
		t.Errorf("volume = %v, want 1", v)
	}
	if err := s.RemoveTrack(0); err != nil {
		t.Fatal(err)
	}
	if got := s.Snapshot().Tracks[n-1].Name; got != "Bass" {
		t.Errorf("track after remove = %q, want Bass", got)
	}
}

func TestAudible(t *testing.T) {
	s := newTestSequencer()
	_ = s.SetMuted(0, true)
	p := s.Snapshot()
	if p.Audible(0) || !p.Audible(1) {
		t.Errorf("mute: Audible(0)=%v Audible(1)=%v", p.Audible(0), p.Audible(1))
	}

	_ = s.SetSolo(2, true)
	p = s.Snapshot()
	for i := range p.Tracks {
		if want := i == 2; p.Audible(i) != want {
			t.Errorf("solo: Audible(%d) = %v, want %v", i, p.Audible(i), want)
		}
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := newTestSequencer()
	p := s.Snapshot()
	p.Tracks[0].Steps[0].Active = true
	p.Tracks[0].Name = "changed"
	if got := s.Snapshot().Tracks[0]; got.Steps[0].Active || got.Name == "changed" {
		t.Error("mutating a snapshot changed the sequencer")
	}
}

func TestChangesArePublished(t *testing.T) {
	b := bus.New[Changed]()
	ch, unsubscribe := b.Subscribe(8)
	defer unsubscribe()

	s := newTestSequencer(WithBus(b))
	_ = s.ToggleStep(3, 0)
	s.SetBPM(100)

	want := []int{3, -1}
	for _, w := range want {
		select {
		case msg := <-ch:
			if msg.Track != w {
				t.Errorf("Changed.Track = %d, want %d", msg.Track, w)
			}
		case <-time.After(time.Second):
			t.Fatal("no change published")
		}
	}
}
