// Package pipeline provides the high-level orchestration for one
// distribution run: load roster, select files, match, connect, reconcile,
// write the roster back.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/remi/quizshare/internal/cloud"
	"github.com/remi/quizshare/internal/db"
	"github.com/remi/quizshare/internal/match"
	"github.com/remi/quizshare/internal/observability"
	"github.com/remi/quizshare/internal/prompt"
	"github.com/remi/quizshare/internal/reconcile"
	"github.com/remi/quizshare/internal/roster"
	"github.com/remi/quizshare/internal/selector"
	"github.com/remi/quizshare/internal/shortener"
)

// ErrCancelled reports that the operator declined to continue at the
// unmatched-files gate. Nothing was changed remotely when it is returned.
var ErrCancelled = errors.New("run cancelled by operator")

// RunOptions holds everything one run needs.
type RunOptions struct {
	RosterPath    string
	RosterOptions roster.Options
	Paths         []string

	QuizLabel    string
	FolderRoot   string
	FolderSuffix string

	Address  string
	Username string
	Password string
	Mode     cloud.LoginMode

	ShareWithUser bool
	ShareByLink   bool

	ShortenerEndpoint  string
	ShortenerSignature string

	Replace     bool
	Verbose     bool
	DatabaseURL string

	Prompter prompt.Prompter
	Out      io.Writer

	// Test seams; when nil the real collaborators are used.
	Remote    cloud.Remote
	Shortener reconcile.Shortener
}

// Run executes the full pipeline. Per-student remote failures produce a
// partial result and a nil error; only configuration problems, the abort
// gates, and the final roster write can fail the run.
func Run(ctx context.Context, opts RunOptions) error {
	printer := observability.NewPrinter(opts.Out)

	fmt.Fprintf(opts.Out, "Step 1/6: Loading roster from %s...\n", opts.RosterPath)
	r, err := roster.Load(opts.RosterPath, opts.RosterOptions)
	if err != nil {
		return fmt.Errorf("loading roster failed: %w", err)
	}
	for _, rowErr := range r.Skipped {
		fmt.Fprintf(opts.Out, "ERROR: %v\n", rowErr)
	}
	fmt.Fprintf(opts.Out, "%d students found in %q\n", len(r.Students), opts.RosterPath)
	if opts.Verbose {
		printer.PrintStudents(r)
	}

	fmt.Fprintf(opts.Out, "Step 2/6: Selecting files...\n")
	files, err := selector.Select(opts.Paths)
	if err != nil {
		return err
	}
	fmt.Fprintf(opts.Out, "%d files selected\n", len(files))
	if opts.Verbose {
		for _, f := range files {
			fmt.Fprintf(opts.Out, " %s\n", f)
		}
	}

	fmt.Fprintf(opts.Out, "Step 3/6: Matching files to students...\n")
	res := match.Associate(files, r.Students)
	fmt.Fprintf(opts.Out, "%d/%d files matched\n", len(res.Matched), len(files))
	if opts.Verbose {
		printer.PrintMatches(res.Matched)
	}
	if len(res.Unmatched) > 0 {
		fmt.Fprintln(opts.Out, "Unmatched file(s):")
		for _, f := range res.Unmatched {
			fmt.Fprintf(opts.Out, " %s\n", f)
		}
		cont, err := opts.Prompter.Confirm("Do you want to continue?")
		if err != nil {
			return fmt.Errorf("failed to read answer: %w", err)
		}
		if !cont {
			return ErrCancelled
		}
	}
	if len(res.Matched) == 0 {
		fmt.Fprintln(opts.Out, "Nothing to upload.")
		return nil
	}

	quizLabel := opts.QuizLabel
	if quizLabel == "" {
		quizLabel, err = opts.Prompter.Input("\nEnter quiz name: ")
		if err != nil {
			return fmt.Errorf("failed to read quiz name: %w", err)
		}
		quizLabel = strings.TrimSpace(quizLabel)
	}

	remote := opts.Remote
	if remote == nil {
		fmt.Fprintf(opts.Out, "Step 4/6: Connecting to %s...\n", opts.Address)
		auth := &cloud.Authenticator{
			Prompter: opts.Prompter,
			Mode:     opts.Mode,
			Out:      opts.Out,
		}
		client, err := auth.Connect(ctx, opts.Address, opts.Username, opts.Password)
		if err != nil {
			return err
		}
		remote = client
	} else {
		fmt.Fprintf(opts.Out, "Step 4/6: Using existing session\n")
	}

	// Run history is best-effort: a missing database never blocks uploads.
	var database *db.DB
	var runID uuid.UUID
	if opts.DatabaseURL != "" {
		database, err = db.Connect(ctx, opts.DatabaseURL)
		if err != nil {
			fmt.Fprintf(opts.Out, "Warning: failed to connect to database: %v\n", err)
			fmt.Fprintln(opts.Out, "Continuing without run history...")
			database = nil
		} else {
			defer database.Close()
			runID, err = database.CreateRun(ctx, opts.Address, quizLabel, opts.RosterPath)
			if err != nil {
				fmt.Fprintf(opts.Out, "Warning: failed to create run record: %v\n", err)
				database = nil
			}
		}
	}

	short := opts.Shortener
	if short == nil && opts.ShortenerEndpoint != "" {
		short = shortener.New(opts.ShortenerEndpoint, opts.ShortenerSignature)
	}

	fmt.Fprintf(opts.Out, "Step 5/6: Uploading and sharing...\n")
	rec := &reconcile.Reconciler{
		Remote:    remote,
		Shortener: short,
		Out:       opts.Out,
		Opts: reconcile.Options{
			FolderRoot:    opts.FolderRoot,
			FolderSuffix:  opts.FolderSuffix,
			QuizLabel:     quizLabel,
			ShareWithUser: opts.ShareWithUser,
			ShareByLink:   opts.ShareByLink,
		},
	}
	outcomes := rec.Run(ctx, res.Matched)

	failures := 0
	for _, o := range outcomes {
		if o.Failed() {
			failures++
		}
		if database != nil {
			_ = database.SaveOutcome(ctx, runID, outcomeRecord(o))
		}
	}
	if opts.Verbose {
		printer.PrintOutcomes(outcomes)
	}

	fmt.Fprintf(opts.Out, "Step 6/6: Writing roster back...\n")
	outPath, err := r.Save(opts.Replace)
	if err != nil {
		if database != nil {
			_ = database.CompleteRun(ctx, runID, "failed")
		}
		return fmt.Errorf("writing roster failed: %w", err)
	}
	fmt.Fprintf(opts.Out, "Roster written to %q\n", outPath)

	status := "completed"
	if failures > 0 {
		status = "completed_with_errors"
		fmt.Fprintf(opts.Out, "Done, with errors for %d/%d student(s).\n", failures, len(outcomes))
	} else {
		fmt.Fprintln(opts.Out, "Done!")
	}
	if database != nil {
		_ = database.CompleteRun(ctx, runID, status)
	}
	return nil
}

func outcomeRecord(o reconcile.Outcome) db.OutcomeRecord {
	var errText strings.Builder
	for i, e := range o.Errors {
		if i > 0 {
			errText.WriteString("; ")
		}
		errText.WriteString(e.Error())
	}
	return db.OutcomeRecord{
		StudentNumber: o.Student.Number,
		RemoteFolder:  o.Folder,
		Uploaded:      o.Uploaded,
		Shared:        o.Shared,
		Link:          o.Student.Link,
		ShortLink:     o.Student.ShortLink,
		ErrorText:     errText.String(),
	}
}
