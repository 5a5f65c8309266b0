package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/barehttp/barehttp/internal/config"
	"github.com/barehttp/barehttp/internal/errors"
)

func configCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Load the configuration the way "barehttp serve" does and print the
result as YAML, with defaults and environment overrides applied.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(path)
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return errors.New("E101").Wrap(err)
			}

			out := cmd.OutOrStdout()
			if p := cfg.Path(); p != "" {
				fmt.Fprintf(out, "# loaded from %s\n", p)
			} else {
				fmt.Fprintln(out, "# defaults (no config file found)")
			}
			_, err = out.Write(data)
			return err
		},
	}

	cmd.Flags().StringVarP(&path, "config", "c", "", "Config file (default: barehttp.yaml in the working directory)")

	return cmd
}
