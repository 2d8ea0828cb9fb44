package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the merged configuration",
		Long:  `Show the configuration after defaults, the config file, CHATCORE_* environment variables and flags are merged. API keys are never printed.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if a.cfg.File == "" {
				fmt.Fprintln(out, "# no config file loaded (using defaults)")
			} else {
				fmt.Fprintf(out, "# config file: %s\n", a.cfg.File)
			}
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(a.cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}
