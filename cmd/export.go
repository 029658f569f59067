package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codedswitch/studio/internal/pattern"
)

var exportCmd = &cobra.Command{
	Use:   "export <pattern> <out>",
	Short: "Convert a pattern to a MIDI, JSON or YAML file",
	Long: `Export a pattern file or saved pattern. The output format follows the file
extension: .mid/.midi for a Standard MIDI File, .yaml/.yml or .json.

Example:
  studio export groove.json groove.mid`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPattern(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := pattern.WriteFile(args[1], p); err != nil {
			return fmt.Errorf("error writing %s: %w", args[1], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d tracks, %d steps, %.0f BPM)\n", args[1], len(p.Tracks), p.Length, p.BPM)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
