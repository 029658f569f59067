package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/codedswitch/studio/internal/config"
)

var (
	configPath string
	logLevel   string
	logFile    string
	volume     float64
	midiOut    string

	cfg    config.Config
	logger = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
)

var rootCmd = &cobra.Command{
	Use:   "studio",
	Short: "A step sequencer and song player for the terminal",
	Long: `studio is the CodedSwitch Studio playback engine in a terminal.

It plays drum patterns with sample-accurate timing, edits them in a step
sequencer, keeps a library of saved patterns and plays playlists of songs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") || cfg.LogLevel == "" {
			cfg.LogLevel = logLevel
		}
		if logFile != "" {
			cfg.LogFile = logFile
		}
		if cmd.Flags().Changed("master-volume") {
			cfg.MasterVolume = volume
		}
		if cmd.Flags().Changed("midi-out") {
			cfg.MIDIOut = midiOut
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return setupLogger(os.Stderr)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")
	rootCmd.PersistentFlags().Float64Var(&volume, "master-volume", 0.8, "master volume from 0 to 1")
	rootCmd.PersistentFlags().StringVar(&midiOut, "midi-out", "", "also send notes to the MIDI output port matching this name")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogger points the logger at cfg.LogFile, or at fallback when no file
// is configured.
func setupLogger(fallback io.Writer) error {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	logger.SetLevel(level)

	out := fallback
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("cannot open log file: %w", err)
		}
		out = f
	}
	logger.SetOutput(out)
	return nil
}

// logToFile keeps full screen commands from printing over their own view.
func logToFile() error {
	if cfg.LogFile == "" {
		dir, err := config.Dir()
		if err != nil {
			logger.SetOutput(io.Discard)
			return nil
		}
		cfg.LogFile = filepath.Join(dir, "studio.log")
	}
	return setupLogger(io.Discard)
}
