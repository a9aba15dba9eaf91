// Package commands defines all Cobra CLI commands for the ragkit binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/ragkit/internal/audit"
	"github.com/54b3r/ragkit/internal/config"
	"github.com/54b3r/ragkit/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragkit",
		Short: "Hybrid BM25 and vector retrieval over local documents",
		Long: `ragkit ingests text, Markdown, PDF and XLSX files into a BM25 index and a
vector index kept under one index directory, and searches them in bm25,
vector or hybrid (reciprocal rank fusion) mode.

Retrieval quality can be measured with 'ragkit eval', which asks a chat
model whether the retrieved content answers generated questions.

Settings come from environment variables, a .env file in the working
directory, or a YAML config file (~/.ragkit/config.yaml).
See 'ragkit --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			if err := config.LoadDotEnv(""); err != nil {
				return err
			}
			// Env vars always override YAML values.
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}

			indexPath, _ := cmd.Flags().GetString("index-path")
			audit.LogCommandStart(log, cmd.CommandPath(), indexPath, path)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.ragkit/config.yaml)")

	root.AddCommand(
		NewIngestCmd(),
		NewQueryCmd(),
		NewEvalCmd(),
		NewServeCmd(),
		NewAPICmd(),
		NewVersionCmd(),
	)

	return root
}
