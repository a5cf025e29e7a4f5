// Package main provides the doifind CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(exitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "doifind",
	Short: "Find and apply DOIs for a document's reference list",
	Long: `doifind extracts the reference section from a document, resolves each
citation to a DOI against PubMed and CrossRef, and writes the results
back as a patched document or a CSV report.

Run "doifind serve" for the HTTP service or "doifind resolve" for a
one-shot local run.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = Version
}
