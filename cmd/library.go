package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/codedswitch/studio/internal/pattern"
)

var libraryCmd = &cobra.Command{
	Use:     "library",
	Aliases: []string{"lib"},
	Short:   "Manage saved patterns",
}

var librarySaveCmd = &cobra.Command{
	Use:   "save <file> [name]",
	Short: "Save a pattern file to the library",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := pattern.ReadFile(args[0])
		if err != nil {
			return err
		}
		name := args[0]
		if len(args) > 1 {
			name = args[1]
		}
		lib, err := openLibrary()
		if err != nil {
			return err
		}
		defer lib.Close()
		id, err := lib.Save(cmd.Context(), name, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s as %s\n", name, id)
		return nil
	},
}

var libraryListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List saved patterns",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := openLibrary()
		if err != nil {
			return err
		}
		defer lib.Close()
		entries, err := lib.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No saved patterns.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tBPM\tSTEPS\tTRACKS\tUPDATED")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%.0f\t%d\t%d\t%s\n", e.ID[:8], e.Name, e.BPM, e.Length, e.Tracks, e.Updated.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var libraryShowCmd = &cobra.Command{
	Use:   "show <id|name>",
	Short: "Print a saved pattern as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := openLibrary()
		if err != nil {
			return err
		}
		defer lib.Close()
		p, _, err := lib.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		data, err := pattern.EncodeYAML(p)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var libraryRemoveCmd = &cobra.Command{
	Use:     "rm <id|name>",
	Aliases: []string{"delete"},
	Short:   "Delete a saved pattern",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := openLibrary()
		if err != nil {
			return err
		}
		defer lib.Close()
		if err := lib.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	libraryCmd.AddCommand(librarySaveCmd, libraryListCmd, libraryShowCmd, libraryRemoveCmd)
	rootCmd.AddCommand(libraryCmd)
}
