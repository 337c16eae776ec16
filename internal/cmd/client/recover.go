package client

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/rzbill/tbx/internal/eventfile"
)

// NewRecoverCommand constructs the `recover` command.
func NewRecoverCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recover PATH...",
		Short: "Truncate event files after their last intact record",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			fs := afero.NewOsFs()
			files, err := collectFiles(fs, args)
			if err != nil {
				return err
			}
			warn := color.New(color.FgYellow).SprintFunc()
			out := cmd.OutOrStdout()
			for _, path := range files {
				var rep eventfile.Report
				if dryRun {
					rep, err = eventfile.Verify(fs, path)
				} else {
					rep, err = eventfile.Repair(fs, path)
				}
				if err != nil {
					return err
				}
				if rep.OK() {
					continue
				}
				label, verb := "REPAIRED", "truncated"
				if dryRun {
					label, verb = "DAMAGED", "would truncate"
				}
				fmt.Fprintf(out, "%s %s: kept %d records, %s %d bytes\n",
					warn(label), path, rep.Records, verb, rep.Size-rep.ValidBytes)
			}
			return nil
		},
	}
	cmd.Flags().Bool("dry-run", false, "Report what would be truncated without writing")
	return cmd
}
