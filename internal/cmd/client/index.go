package client

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/rzbill/tbx/internal/index"
	pebblestore "github.com/rzbill/tbx/internal/storage/pebble"
)

// NewIndexCommand constructs the `index` command group.
func NewIndexCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "index", Short: "Scalar index operations"}
	cmd.AddCommand(newIndexBuildCommand(), newIndexQueryCommand(), newIndexTagsCommand())
	return cmd
}

// withIndex opens the configured index for the duration of fn.
func withIndex(cmd *cobra.Command, fn func(ix *index.Index, logDir string) error) error {
	cfg, err := ResolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := commandLogger(cfg, cmd.ErrOrStderr())
	db, err := pebblestore.Open(pebblestore.Options{DataDir: cfg.IndexDir, Fsync: pebblestore.FsyncModeNever, Logger: logger})
	if err != nil {
		return fmt.Errorf("open index %s: %w", cfg.IndexDir, err)
	}
	defer db.Close()
	return fn(index.New(db, index.Options{Logger: logger}), cfg.LogDir)
}

func newIndexBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Index new records of every run under the log directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rebuild, _ := cmd.Flags().GetBool("rebuild")
			return withIndex(cmd, func(ix *index.Index, logDir string) error {
				if rebuild {
					runs, err := ix.Runs()
					if err != nil {
						return err
					}
					for _, run := range runs {
						if err := ix.Reset(run); err != nil {
							return err
						}
					}
				}
				stats, err := ix.IndexAll(cmd.Context(), afero.NewOsFs(), logDir)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, st := range stats {
					scalars := 0
					for _, f := range st.Files {
						scalars += f.Scalars
						if f.Corrupt != nil {
							fmt.Fprintf(cmd.ErrOrStderr(), "%s: stopped at %v\n", f.Path, f.Corrupt)
						}
					}
					fmt.Fprintf(out, "%s: %d files, %d new records, %d scalars\n", st.Run, len(st.Files), st.Records(), scalars)
				}
				return nil
			})
		},
	}
	cmd.Flags().Bool("rebuild", false, "Drop the index before scanning")
	return cmd
}

func newIndexQueryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Print an indexed scalar series",
		RunE: func(cmd *cobra.Command, _ []string) error {
			run, _ := cmd.Flags().GetString("run")
			tag, _ := cmd.Flags().GetString("tag")
			start, _ := cmd.Flags().GetInt64("start")
			limit, _ := cmd.Flags().GetInt("limit")
			reverse, _ := cmd.Flags().GetBool("reverse")
			format, _ := cmd.Flags().GetString("format")
			if tag == "" {
				return fmt.Errorf("--tag is required")
			}
			return withIndex(cmd, func(ix *index.Index, _ string) error {
				pts, err := ix.Scalars(run, tag, index.QueryOptions{Start: start, Limit: limit, Reverse: reverse})
				if err != nil {
					return err
				}
				if format != "text" {
					if pts == nil {
						pts = []index.Point{}
					}
					return writeStructured(cmd.OutOrStdout(), format, pts)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "STEP\tWALL_TIME\tVALUE")
				for _, p := range pts {
					fmt.Fprintf(tw, "%d\t%.3f\t%g\n", p.Step, p.WallTime, p.Value)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().String("run", ".", "Run, relative to the log directory")
	cmd.Flags().String("tag", "", "Scalar tag")
	cmd.Flags().Int64("start", 0, "First step (last step with --reverse); 0 = unbounded")
	cmd.Flags().Int("limit", 0, "Maximum points (0 = all)")
	cmd.Flags().Bool("reverse", false, "Newest steps first")
	cmd.Flags().String("format", "text", "Output format: text|json|yaml")
	return cmd
}

func newIndexTagsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List the indexed tags of a run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			run, _ := cmd.Flags().GetString("run")
			return withIndex(cmd, func(ix *index.Index, _ string) error {
				tags, err := ix.Tags(run)
				if err != nil {
					return err
				}
				for _, t := range tags {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", t.Kind, t.Tag)
				}
				return nil
			})
		},
	}
	cmd.Flags().String("run", ".", "Run, relative to the log directory")
	return cmd
}
