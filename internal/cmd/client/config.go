package client

import (
	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"
)

// NewConfigCommand constructs the `config` command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration commands"}
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, _ := cmd.Flags().GetString("format")
			cfg, err := ResolveConfig(cmd)
			if err != nil {
				return err
			}
			if format == "pp" {
				_, err := pp.Fprintln(cmd.OutOrStdout(), cfg)
				return err
			}
			return writeStructured(cmd.OutOrStdout(), format, cfg)
		},
	}
	show.Flags().String("format", "pp", "Output format: pp|json|yaml")
	cmd.AddCommand(show)
	return cmd
}
