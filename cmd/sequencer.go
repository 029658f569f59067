package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/codedswitch/studio/internal/pattern"
	"github.com/codedswitch/studio/internal/tui"
)

var (
	seqName   string
	seqOut    string
	seqBrowse bool
)

var sequencerCmd = &cobra.Command{
	Use:   "sequencer [pattern]",
	Short: "Edit and play a pattern in the step sequencer",
	Long: `Open the interactive step sequencer.

The pattern may be a .json, .yaml or .mid file, or the id or name of a pattern
saved in the library. Without one a default drum kit is loaded. A directory,
or --browse, opens a file browser to pick a pattern first.

Audio starts locked; press 'e' to enable it before playing.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSequencer,
}

func init() {
	sequencerCmd.Flags().StringVarP(&seqName, "name", "n", "", "save to the library under this name")
	sequencerCmd.Flags().StringVarP(&seqOut, "out", "o", "", "save to this file (.json, .yaml or .mid)")
	sequencerCmd.Flags().BoolVarP(&seqBrowse, "browse", "b", false, "pick a pattern file first")
	rootCmd.AddCommand(sequencerCmd)
}

func runSequencer(cmd *cobra.Command, args []string) error {
	if err := logToFile(); err != nil {
		return err
	}

	var ref string
	if len(args) > 0 {
		ref = args[0]
	}
	if info, err := os.Stat(ref); seqBrowse || (err == nil && info.IsDir()) {
		dir := ref
		switch {
		case dir == "":
			dir = "."
		case err == nil && !info.IsDir():
			dir = filepath.Dir(ref)
		}
		picked, err := browse(dir)
		if err != nil || picked == "" {
			return err
		}
		ref = picked
	}
	p, err := loadPattern(cmd.Context(), ref)
	if err != nil {
		return err
	}

	e := newEngine()
	defer e.Close()

	seq := e.sequencer(p)
	m := tui.New(seq, e.scheduler(seq), e.mgr,
		tui.WithLogger(logger),
		tui.WithTitle(sequencerTitle(ref)),
		tui.WithEvents(e.steps),
		tui.WithChanges(e.changes),
		tui.WithSave(saver(cmd.Context(), ref)))
	defer m.Close()

	prog := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}

func browse(dir string) (string, error) {
	b := tui.NewBrowser(dir)
	if _, err := tea.NewProgram(b, tea.WithAltScreen()).Run(); err != nil {
		return "", fmt.Errorf("error running program: %w", err)
	}
	return b.Picked(), nil
}

func sequencerTitle(ref string) string {
	switch {
	case seqName != "":
		return seqName
	case ref != "":
		return filepath.Base(ref)
	default:
		return "untitled"
	}
}

// saver picks where the save key writes: --name to the library, --out or the
// opened file to disk.
func saver(ctx context.Context, ref string) tui.SaveFunc {
	path := seqOut
	if path == "" && isPatternFile(ref) {
		path = ref
	}
	switch {
	case seqName != "":
		return func(p pattern.Pattern) (string, error) {
			lib, err := openLibrary()
			if err != nil {
				return "", err
			}
			defer lib.Close()
			id, err := lib.Save(ctx, seqName, p)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Saved %s (%s)", seqName, id[:8]), nil
		}
	case path != "":
		return func(p pattern.Pattern) (string, error) {
			if err := pattern.WriteFile(path, p); err != nil {
				return "", err
			}
			return "Saved " + path, nil
		}
	default:
		return nil
	}
}

func isPatternFile(ref string) bool {
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".json", ".yaml", ".yml", ".mid", ".midi":
		return true
	}
	return false
}
