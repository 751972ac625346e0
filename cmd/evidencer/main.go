// Package main provides the entry point for the evidencer CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "evidencer",
	Short: "Research evidence collector",
	Long:  "Evidencer turns a free-text research instruction into a deduplicated, append-only archive of evidence records gathered from web search, page extraction, published literature, preprints, videos, and local documents.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
