package audio_test

import (
	"math"
	"testing"
	"time"

	"github.com/codedswitch/studio/internal/audio"
	"github.com/codedswitch/studio/internal/audio/audiotest"
)

func TestStartSchedulesOnAudioClock(t *testing.T) {
	opener := &audiotest.Opener{}
	m := newManager(t, opener)
	c, _ := m.Context()
	dev := opener.Last()

	c.Start(&constVoice{level: 0.5, n: 100}, 0.01) // frame 80
	frames := dev.Pull(200)

	for i := 0; i < 80; i++ {
		if frames[i][0] != 0 {
			t.Fatalf("frame %d = %v, want silence before start", i, frames[i][0])
		}
	}
	if math.Abs(frames[80][0]-0.5) > 0.01 {
		t.Errorf("frame 80 = %v, want 0.5", frames[80][0])
	}
	if frames[180][0] != 0 {
		t.Errorf("frame 180 = %v, want silence after voice ended", frames[180][0])
	}
	if got := c.CurrentTime(); math.Abs(got-200.0/testRate) > 1e-9 {
		t.Errorf("CurrentTime = %v, want %v", got, 200.0/testRate)
	}
}

func TestStartInThePastPlaysImmediately(t *testing.T) {
	opener := &audiotest.Opener{}
	m := newManager(t, opener)
	c, _ := m.Context()
	dev := opener.Last()
	dev.Pull(1000)

	c.Start(&constVoice{level: 0.5, n: 10}, 0)
	frames := dev.Pull(5)
	if math.Abs(frames[0][0]-0.5) > 0.01 {
		t.Errorf("first frame = %v, want 0.5", frames[0][0])
	}
}

func TestSourceStopAndEnded(t *testing.T) {
	opener := &audiotest.Opener{}
	m := newManager(t, opener)
	c, _ := m.Context()
	dev := opener.Last()

	long := c.Start(&constVoice{level: 0.1, n: 10000}, 0)
	short := c.Start(&constVoice{level: 0.1, n: 10}, 0)
	ended := make(chan struct{})
	short.OnEnded(func() { close(ended) })

	if n := c.ActiveSources(); n != 2 {
		t.Fatalf("ActiveSources = %d, want 2", n)
	}

	dev.Pull(20)
	select {
	case <-ended:
	case <-time.After(time.Second):
		t.Fatal("OnEnded was not called for a voice that played out")
	}
	if short.Frames() != 10 {
		t.Errorf("short source rendered %d frames, want 10", short.Frames())
	}

	long.Stop()
	long.Stop()
	select {
	case <-long.Done():
	default:
		t.Error("Done not closed after Stop")
	}
	if n := c.ActiveSources(); n != 0 {
		t.Errorf("ActiveSources after stop = %d, want 0", n)
	}
}

func TestStopAllReleasesSustainedVoices(t *testing.T) {
	opener := &audiotest.Opener{}
	m := newManager(t, opener)
	c, _ := m.Context()
	dev := opener.Last()

	kit := audio.NewKit()
	v, err := kit.Voice("tone", testRate, audio.Params{Note: 69, Gain: 1, Length: 60})
	if err != nil {
		t.Fatalf("Voice: %v", err)
	}
	src := c.Start(v, 0)
	dev.Pull(testRate / 10)
	if !src.Playing() {
		t.Fatal("tone ended before release")
	}

	c.StopAll()
	dev.Pull(testRate * 2)
	if src.Playing() {
		t.Error("tone still playing two seconds after StopAll")
	}
}
