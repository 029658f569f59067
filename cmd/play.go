package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codedswitch/studio/internal/scheduler"
)

var (
	playBars int
	playBPM  float64
)

var playCmd = &cobra.Command{
	Use:   "play [pattern]",
	Short: "Play a pattern without the editor",
	Long: `Play a pattern file or saved pattern in a loop until interrupted or until
--bars bars have played.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().IntVarP(&playBars, "bars", "b", 0, "stop after this many bars (0 plays until interrupted)")
	playCmd.Flags().Float64Var(&playBPM, "bpm", 0, "override the pattern tempo")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	var ref string
	if len(args) > 0 {
		ref = args[0]
	}
	p, err := loadPattern(cmd.Context(), ref)
	if err != nil {
		return err
	}

	e := newEngine()
	defer e.Close()

	seq := e.sequencer(p)
	if playBPM > 0 {
		seq.SetBPM(playBPM)
	}
	sched := e.scheduler(seq)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	steps, unsubscribe := e.steps.Subscribe(64)
	defer unsubscribe()

	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	snap := seq.Snapshot()
	fmt.Fprintf(cmd.OutOrStdout(), "Playing %d tracks at %.0f BPM, %d steps. Ctrl+C to stop.\n",
		len(snap.Tracks), snap.BPM, snap.Length)

	return waitBars(ctx, steps, playBars, func() float64 {
		if c := e.mgr.Active(); c != nil {
			return c.CurrentTime()
		}
		return 0
	})
}

// waitBars returns after bars full loops of the pattern, or when ctx ends.
// A bar ends when the step 0 that follows it is about to sound; now reads
// the audio clock.
func waitBars(ctx context.Context, steps <-chan scheduler.Event, bars int, now func() float64) error {
	played := -1
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-steps:
			if !ok {
				return nil
			}
			switch {
			case ev.Kind == scheduler.EventError:
				return ev.Err
			case ev.Kind == scheduler.EventStopped:
				return nil
			case ev.Kind == scheduler.EventStep && ev.Step == 0:
				played++
				if bars > 0 && played >= bars {
					wait := time.Duration((ev.When - now()) * float64(time.Second))
					select {
					case <-ctx.Done():
					case <-time.After(wait):
					}
					return nil
				}
			}
		}
	}
}
