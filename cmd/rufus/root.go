package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	rlog "github.com/nao1215/rufus/internal/log"
)

// NewRootCmd creates the root command for rufus.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rufus",
		Short: "Goal-directed web crawler with relevance feedback",
		Long: `rufus crawls a website towards a natural-language instruction.

Links whose anchor text looks relevant are followed first, only pages whose
text passes the relevance threshold are kept, and when the kept pages score
poorly the crawl is repeated once with relaxed parameters.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("log-format", "text", "Log format: text or json")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getJSONLogFlag reports whether --log-format json was given.
func getJSONLogFlag(cmd *cobra.Command) bool {
	format, err := cmd.Flags().GetString("log-format")
	if err != nil {
		format, err = cmd.Root().PersistentFlags().GetString("log-format")
		if err != nil {
			return false
		}
	}
	return format == "json"
}

// setupLogger creates the structured logger. API keys and other secrets are
// masked before anything is written to stderr.
func setupLogger(verbose, jsonFormat bool) *slog.Logger {
	return rlog.NewLogger(os.Stderr, verbose, jsonFormat)
}
