//go:build !js

package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/codedswitch/studio/internal/bus"
	"github.com/codedswitch/studio/internal/live"
	"github.com/codedswitch/studio/internal/tui"
)

var deviceName string

var virtualCmd = &cobra.Command{
	Use:   "virtual",
	Short: "Play the drum kit and synths from other MIDI software",
	Long: `Create a virtual MIDI input that other applications can send notes to.

Notes are played on the studio kit through the system audio output. Channel 10
plays drums by General MIDI key; channels 1-4 play sine, triangle, saw and square
voices, and the remaining channels play sine.

Example:
  studio virtual --name "Studio Kit"
`,
	RunE: runVirtual,
}

func init() {
	virtualCmd.Flags().StringVarP(&deviceName, "name", "n", "CodedSwitch Studio", "Name for the virtual MIDI device")
	rootCmd.AddCommand(virtualCmd)
}

func runVirtual(cmd *cobra.Command, args []string) error {
	if err := logToFile(); err != nil {
		return err
	}
	e := newEngine()
	defer e.Close()

	// starting this command is the user gesture that unlocks audio
	if err := e.mgr.Resume(); err != nil {
		logger.Warn("audio locked", "err", err)
	}

	events := bus.New[live.Event]()
	defer events.Close()
	synth := live.NewSynth(e.mgr, e.kit, live.WithBus(events), live.WithLogger(logger))

	port, closePort, err := openVirtualIn(deviceName, synth.Handle)
	if err != nil {
		return err
	}
	defer closePort()

	m := tui.NewLive(port, synth, e.mgr, events)
	defer m.Close()
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}

// openVirtualIn creates a virtual MIDI input named name and feeds every
// message to handle. It returns the port name and a function closing it.
func openVirtualIn(name string, handle func([]byte)) (string, func(), error) {
	driver, err := rtmididrv.New()
	if err != nil {
		return "", nil, fmt.Errorf("failed to initialize MIDI driver: %w", err)
	}
	in, err := driver.OpenVirtualIn(name)
	if err != nil {
		driver.Close()
		return "", nil, fmt.Errorf("failed to create virtual MIDI port: %w", err)
	}
	stop, err := in.Listen(func(data []byte, _ int32) { handle(data) }, drivers.ListenConfig{})
	if err != nil {
		in.Close()
		driver.Close()
		return "", nil, fmt.Errorf("failed to listen to MIDI port: %w", err)
	}
	logger.Info("listening for MIDI", "port", in.String())
	return in.String(), func() {
		stop()
		in.Close()
		driver.Close()
	}, nil
}
