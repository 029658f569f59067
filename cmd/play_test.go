package cmd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codedswitch/studio/internal/audio"
	"github.com/codedswitch/studio/internal/scheduler"
)

func TestWaitBars(t *testing.T) {
	clock := func() float64 { return 0 }
	feed := func(evs ...scheduler.Event) <-chan scheduler.Event {
		ch := make(chan scheduler.Event, len(evs))
		for _, ev := range evs {
			ch <- ev
		}
		close(ch)
		return ch
	}
	step := func(n int) scheduler.Event { return scheduler.Event{Kind: scheduler.EventStep, Step: n} }

	tests := []struct {
		name    string
		events  []scheduler.Event
		bars    int
		wantErr error
	}{
		{"two bars", []scheduler.Event{step(0), step(1), step(0), step(1), step(0), step(1)}, 2, nil},
		{"stopped", []scheduler.Event{step(0), {Kind: scheduler.EventStopped}}, 4, nil},
		{"error", []scheduler.Event{{Kind: scheduler.EventError, Err: audio.ErrAutoplayBlocked}}, 1, audio.ErrAutoplayBlocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := waitBars(context.Background(), feed(tt.events...), tt.bars, clock)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("waitBars = %v, want %v", err, tt.wantErr)
			}
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := waitBars(ctx, make(chan scheduler.Event), 0, clock); err != nil {
		t.Errorf("cancelled waitBars = %v", err)
	}
}
