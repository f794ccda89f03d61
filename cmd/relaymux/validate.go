package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	relaymux "github.com/relaymux/relaymux"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [config-file]",
		Short: "Validate a provider catalog file (JSON/YAML)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			} else {
				resolved, err := resolveConfigPath()
				if err != nil {
					return err
				}
				path = resolved
			}

			cfg, err := relaymux.LoadConfig(path)
			if err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			catalog := relaymux.BuildCatalog(cfg)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Config is valid\n")
			fmt.Fprintf(out, "  Model alias: %s\n", catalog.DefaultModel())
			fmt.Fprintf(out, "  Backends:    %d\n", catalog.Len())

			var names []string
			for _, b := range catalog.Backends() {
				names = append(names, b.UsageKey())
			}
			fmt.Fprintf(out, "  Order:       %s\n", strings.Join(names, " -> "))
			return nil
		},
	}
}
