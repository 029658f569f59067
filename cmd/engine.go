package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/codedswitch/studio/internal/audio"
	"github.com/codedswitch/studio/internal/bus"
	"github.com/codedswitch/studio/internal/midiout"
	"github.com/codedswitch/studio/internal/pattern"
	"github.com/codedswitch/studio/internal/scheduler"
	"github.com/codedswitch/studio/internal/store"
)

// engine wires the audio manager, the kit and the buses that every
// playing command shares. There is one per process.
type engine struct {
	mgr     *audio.Manager
	kit     *audio.Kit
	steps   *bus.Bus[scheduler.Event]
	changes *bus.Bus[pattern.Changed]
	midi    *midiout.Sink
}

func newEngine() *engine {
	e := &engine{
		mgr: audio.NewManager(newOpener(),
			audio.WithSampleRate(cfg.SampleRate),
			audio.WithMasterVolume(cfg.MasterVolume),
			audio.WithLogger(logger)),
		kit:     audio.NewKit(),
		steps:   bus.New[scheduler.Event](),
		changes: bus.New[pattern.Changed](),
	}

	for name, path := range cfg.Samples {
		if err := e.loadSample(name, path); err != nil {
			logger.Warn("cannot load sample", "sound", name, "path", path, "err", err)
		}
	}

	if cfg.MIDIOut != "" {
		sink, err := midiout.Open(cfg.MIDIOut, logger)
		if err != nil {
			logger.Warn("midi output disabled", "err", err)
		} else {
			e.midi = sink
		}
	}
	return e
}

func (e *engine) loadSample(name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return e.kit.LoadSample(name, f, cfg.SampleRate)
}

func (e *engine) sequencer(p pattern.Pattern) *pattern.Sequencer {
	return pattern.NewSequencer(p, pattern.WithBus(e.changes))
}

func (e *engine) scheduler(seq *pattern.Sequencer) *scheduler.Scheduler {
	sinks := []scheduler.Sink{scheduler.NewAudioSink(e.kit)}
	if e.midi != nil {
		sinks = append(sinks, e.midi)
	}
	return scheduler.New(e.mgr, seq,
		scheduler.WithLookahead(cfg.Lookahead),
		scheduler.WithHorizon(cfg.ScheduleAhead),
		scheduler.WithSinks(sinks...),
		scheduler.WithLogger(logger),
		scheduler.WithEvents(e.steps))
}

func (e *engine) Close() {
	if e.midi != nil {
		if err := e.midi.Close(); err != nil {
			logger.Warn("closing midi output", "err", err)
		}
	}
	if err := e.mgr.Close(); err != nil {
		logger.Warn("closing audio", "err", err)
	}
	e.steps.Close()
	e.changes.Close()
}

func openLibrary() (*store.Store, error) {
	lib, err := store.Open(cfg.Library)
	if err != nil {
		return nil, fmt.Errorf("cannot open pattern library %s: %w", cfg.Library, err)
	}
	return lib, nil
}

// loadPattern resolves ref as a pattern file first and then as a library id
// or name. An empty ref gives the default kit.
func loadPattern(ctx context.Context, ref string) (pattern.Pattern, error) {
	if ref == "" {
		return pattern.DefaultKit(), nil
	}
	if _, err := os.Stat(ref); err == nil {
		return pattern.ReadFile(ref)
	}

	lib, err := openLibrary()
	if err != nil {
		return pattern.Pattern{}, err
	}
	defer lib.Close()
	p, _, err := lib.Load(ctx, ref)
	if errors.Is(err, store.ErrNotFound) {
		return pattern.Pattern{}, fmt.Errorf("%q is neither a pattern file nor a saved pattern", ref)
	}
	return p, err
}
