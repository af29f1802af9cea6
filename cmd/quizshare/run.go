package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/remi/quizshare/internal/cloud"
	"github.com/remi/quizshare/internal/config"
	"github.com/remi/quizshare/internal/pipeline"
	"github.com/remi/quizshare/internal/prompt"
	"github.com/remi/quizshare/internal/roster"
)

var runCommand = &cobra.Command{
	Use:   "run [files or directories...]",
	Short: "Upload quiz files and share them with the matched students",
	Long: `Runs the full distribution sequence: load roster -> select files -> match files to students -> connect -> upload and share -> write links back to the roster.

Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values. Quiz files are taken from the positional arguments; directories are expanded one level.`,
	RunE: runDistributionCmd,
}

var (
	runConfigPath         string
	runRoster             string
	runDelimiter          string
	runComment            string
	runQuizLabel          string
	runFolderRoot         string
	runFolderSuffix       string
	runAddress            string
	runUsername           string
	runSSO                bool
	runBrowserLogin       bool
	runNoUserShares       bool
	runNoLinkShares       bool
	runShortenerEndpoint  string
	runShortenerSignature string
	runReplace            bool
	runVerbose            bool
	runDatabaseURL        string
)

func init() {
	// Config file flag (processed first)
	runCommand.Flags().StringVar(&runConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	runCommand.Flags().StringVarP(&runRoster, "roster", "r", "", "Path to the student roster CSV file")
	runCommand.Flags().StringVar(&runDelimiter, "delimiter", "", "Roster field separator (default \":\")")
	runCommand.Flags().StringVar(&runComment, "comment", "", "Roster comment prefix (default \"#\")")
	runCommand.Flags().StringVarP(&runQuizLabel, "quiz", "q", "", "Quiz name used as the prefix of uploaded file names (prompted if empty)")
	runCommand.Flags().StringVar(&runFolderRoot, "folder-root", "", "Remote root folder for student folders")
	runCommand.Flags().StringVar(&runFolderSuffix, "folder-suffix", "", "Suffix appended to each student folder name")
	runCommand.Flags().StringVarP(&runAddress, "address", "a", "", "ownCloud/Nextcloud server address")
	runCommand.Flags().StringVarP(&runUsername, "username", "u", "", "Server username")
	runCommand.Flags().BoolVar(&runSSO, "sso", false, "Log in through the server's SSO form")
	runCommand.Flags().BoolVar(&runBrowserLogin, "browser-login", false, "Log in through a headless browser (requires Chrome)")
	runCommand.Flags().BoolVar(&runNoUserShares, "no-user-shares", false, "Skip sharing folders with student accounts")
	runCommand.Flags().BoolVar(&runNoLinkShares, "no-link-shares", false, "Skip creating public share links")
	runCommand.Flags().StringVar(&runShortenerEndpoint, "shortener-endpoint", "", "YOURLS endpoint for shortening share links (optional)")
	runCommand.Flags().StringVar(&runShortenerSignature, "shortener-signature", "", "YOURLS signature token (optional, defaults to YOURLS_SIGNATURE env var)")
	runCommand.Flags().BoolVar(&runReplace, "replace", false, "Overwrite the roster instead of writing a _updated copy")
	runCommand.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print detailed progress information")

	// Database URL for run history persistence
	runCommand.Flags().StringVar(&runDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(runCommand)
}

func runDistributionCmd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// Step 1: Load config file if provided
	var cfg config.Config
	if runConfigPath != "" {
		loadedCfg, err := config.LoadConfig(runConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := loadedCfg.Validate(); err != nil {
			return err
		}

		cfg = *loadedCfg
		if runVerbose {
			_, _ = fmt.Fprintf(os.Stdout, "Loaded config from: %s\n", runConfigPath)
		}
	}

	// Step 2: Apply CLI overrides (command-line args take priority)
	// Only override if the flag was explicitly set
	if cmd.Flags().Changed("roster") {
		cfg.Roster = runRoster
	}
	if cmd.Flags().Changed("delimiter") {
		cfg.Delimiter = runDelimiter
	}
	if cmd.Flags().Changed("comment") {
		cfg.Comment = runComment
	}
	if cmd.Flags().Changed("quiz") {
		cfg.QuizLabel = runQuizLabel
	}
	if cmd.Flags().Changed("folder-root") {
		cfg.FolderRoot = runFolderRoot
	}
	if cmd.Flags().Changed("folder-suffix") {
		cfg.FolderSuffix = runFolderSuffix
	}
	if cmd.Flags().Changed("address") {
		cfg.Address = runAddress
	}
	if cmd.Flags().Changed("username") {
		cfg.Username = runUsername
	}
	if cmd.Flags().Changed("sso") {
		cfg.SSO = runSSO
	}
	if cmd.Flags().Changed("browser-login") {
		cfg.BrowserLogin = runBrowserLogin
	}
	if cmd.Flags().Changed("shortener-endpoint") {
		cfg.ShortenerEndpoint = runShortenerEndpoint
	}
	if cmd.Flags().Changed("shortener-signature") {
		cfg.ShortenerSignature = runShortenerSignature
	}
	if cmd.Flags().Changed("replace") {
		cfg.Replace = runReplace
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = runVerbose
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = runDatabaseURL
	}

	// Step 3: Apply defaults for unset values
	defaults := config.Config{
		Delimiter:  ":",
		Comment:    "#",
		FolderRoot: "Quizzes",
	}
	cfg = cfg.MergeWithDefaults(defaults)

	// Step 4: Validate required fields
	if cfg.Roster == "" {
		return fmt.Errorf("--roster is required (via flag or config)")
	}
	if cfg.Address == "" {
		return fmt.Errorf("--address is required (via flag or config)")
	}
	if cfg.Username == "" {
		return fmt.Errorf("--username is required (via flag or config)")
	}
	if cfg.SSO && cfg.BrowserLogin {
		return fmt.Errorf("--sso and --browser-login are mutually exclusive; provide only one")
	}

	// Step 5: Secrets from the environment
	password := os.Getenv("QUIZSHARE_PASSWORD")
	if cfg.ShortenerSignature == "" {
		cfg.ShortenerSignature = os.Getenv("YOURLS_SIGNATURE")
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	mode := cloud.LoginBasic
	switch {
	case cfg.SSO:
		mode = cloud.LoginSSO
	case cfg.BrowserLogin:
		mode = cloud.LoginBrowser
	}

	opts := pipeline.RunOptions{
		RosterPath:         cfg.Roster,
		RosterOptions:      rosterOptions(cfg),
		Paths:              args,
		QuizLabel:          cfg.QuizLabel,
		FolderRoot:         cfg.FolderRoot,
		FolderSuffix:       cfg.FolderSuffix,
		Address:            cfg.Address,
		Username:           cfg.Username,
		Password:           password,
		Mode:               mode,
		ShareWithUser:      !runNoUserShares,
		ShareByLink:        !runNoLinkShares,
		ShortenerEndpoint:  cfg.ShortenerEndpoint,
		ShortenerSignature: cfg.ShortenerSignature,
		Replace:            cfg.Replace,
		Verbose:            cfg.Verbose,
		DatabaseURL:        cfg.DatabaseURL,
		Prompter:           prompt.NewTerminal(),
		Out:                os.Stdout,
	}

	err := pipeline.Run(ctx, opts)
	if errors.Is(err, pipeline.ErrCancelled) || errors.Is(err, cloud.ErrAborted) {
		fmt.Fprintln(os.Stdout, "Aborted.")
		return nil
	}
	return err
}

// rosterOptions turns the flat config into roster parsing options, applying
// column header overrides on top of the stock AMC names.
func rosterOptions(cfg config.Config) roster.Options {
	opts := roster.DefaultOptions()
	if cfg.Delimiter != "" {
		opts.Delimiter = rune(cfg.Delimiter[0])
	}
	if cfg.Comment != "" {
		opts.Comment = cfg.Comment
	}
	for role, header := range cfg.Columns {
		switch role {
		case "number":
			opts.Columns.Number = header
		case "name":
			opts.Columns.Name = header
		case "surname":
			opts.Columns.Surname = header
		case "group":
			opts.Columns.Group = header
		case "email":
			opts.Columns.Email = header
		case "account":
			opts.Columns.Account = header
		case "link":
			opts.Columns.Link = header
		case "shortlink":
			opts.Columns.ShortLink = header
		}
	}
	return opts
}
