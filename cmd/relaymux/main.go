// Package main provides the relaymux gateway entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/relaymux/relaymux/internal/version"
)

func main() {
	// Values from a local .env never override the real environment.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "relaymux",
		Short: "OpenAI-compatible aggregation gateway with failover and cooldowns",
		Long: `relaymux exposes a single OpenAI-compatible endpoint backed by an
ordered list of upstream backends. Requests walk the backend list in
catalog order; backends that answer 429 are put on cooldown and skipped
until their cooldown window passes.

Running relaymux with no subcommand starts the server.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, args)
		},
	}

	root.AddCommand(
		serveCmd(),
		validateCmd(),
		stateCmd(),
		versionCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
