package client

import (
	"fmt"
	goruntime "runtime"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rzbill/tbx/internal/eventfile"
)

// NewVerifyCommand constructs the `verify` command.
func NewVerifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify PATH...",
		Short: "Check the framing and checksums of event files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parallel, _ := cmd.Flags().GetInt("parallel")
			fs := afero.NewOsFs()
			files, err := collectFiles(fs, args)
			if err != nil {
				return err
			}
			reports, err := verifyAll(cmd, fs, files, parallel)
			if err != nil {
				return err
			}

			ok := color.New(color.FgGreen).SprintFunc()
			bad := color.New(color.FgRed, color.Bold).SprintFunc()
			out := cmd.OutOrStdout()
			damaged := 0
			for _, rep := range reports {
				if rep.OK() {
					fmt.Fprintf(out, "%s %s (%d records, %d bytes)\n", ok("OK"), rep.Path, rep.Records, rep.Size)
					if rep.Undecodable > 0 {
						fmt.Fprintf(out, "   %d undecodable frames skipped; first: %v\n", rep.Undecodable, rep.FirstUndecodable)
					}
					continue
				}
				damaged++
				fmt.Fprintf(out, "%s %s: %d records valid, %d of %d bytes; %v\n",
					bad("CORRUPT"), rep.Path, rep.Records, rep.ValidBytes, rep.Size, rep.Corrupt)
			}
			if damaged > 0 {
				return fmt.Errorf("%d of %d files damaged; run `tbx recover` to truncate them", damaged, len(reports))
			}
			return nil
		},
	}
	cmd.Flags().Int("parallel", goruntime.NumCPU(), "Files verified concurrently")
	return cmd
}

func verifyAll(cmd *cobra.Command, fs afero.Fs, files []string, parallel int) ([]eventfile.Report, error) {
	reports := make([]eventfile.Report, len(files))
	g, ctx := errgroup.WithContext(cmd.Context())
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rep, err := eventfile.Verify(fs, path)
			reports[i] = rep
			return err
		})
	}
	return reports, g.Wait()
}
