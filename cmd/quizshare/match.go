package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/remi/quizshare/internal/match"
	"github.com/remi/quizshare/internal/observability"
	"github.com/remi/quizshare/internal/roster"
	"github.com/remi/quizshare/internal/selector"
)

var matchCommand = &cobra.Command{
	Use:   "match [files or directories...]",
	Short: "Preview which students the given files would match",
	Long:  "Matches the given files against the roster and prints the result without connecting to any server. Useful for checking scan file names before a run.",
	RunE:  runMatchCmd,
}

var (
	matchRoster    string
	matchDelimiter string
	matchComment   string
)

func init() {
	matchCommand.Flags().StringVarP(&matchRoster, "roster", "r", "", "Path to the student roster CSV file")
	matchCommand.Flags().StringVar(&matchDelimiter, "delimiter", "", "Roster field separator (default \":\")")
	matchCommand.Flags().StringVar(&matchComment, "comment", "", "Roster comment prefix (default \"#\")")

	rootCmd.AddCommand(matchCommand)
}

func runMatchCmd(_ *cobra.Command, args []string) error {
	if matchRoster == "" {
		return fmt.Errorf("--roster is required")
	}

	opts := roster.DefaultOptions()
	if matchDelimiter != "" {
		opts.Delimiter = rune(matchDelimiter[0])
	}
	if matchComment != "" {
		opts.Comment = matchComment
	}

	r, err := roster.Load(matchRoster, opts)
	if err != nil {
		return fmt.Errorf("loading roster failed: %w", err)
	}
	for _, rowErr := range r.Skipped {
		fmt.Fprintf(os.Stdout, "ERROR: %v\n", rowErr)
	}

	files, err := selector.Select(args)
	if err != nil {
		return err
	}

	res := match.Associate(files, r.Students)
	printer := observability.NewPrinter(os.Stdout)
	printer.PrintMatches(res.Matched)
	if len(res.Unmatched) > 0 {
		fmt.Fprintln(os.Stdout, "Unmatched file(s):")
		for _, f := range res.Unmatched {
			fmt.Fprintf(os.Stdout, " %s\n", f)
		}
	}
	fmt.Fprintf(os.Stdout, "%d/%d files matched\n", len(res.Matched), len(files))
	return nil
}
