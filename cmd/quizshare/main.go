// Package main provides the entry point for the quizshare CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quizshare",
	Short: "Upload and share scanned quizzes on ownCloud/Nextcloud",
	Long:  "quizshare matches scanned quiz files to students from a roster, uploads them to per-student folders on an ownCloud/Nextcloud server, shares them with the students' accounts, and writes share links back to the roster.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
