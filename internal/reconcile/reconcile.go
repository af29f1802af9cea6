// Package reconcile drives remote state to the target layout for each
// matched student: folder hierarchy, uploaded quiz, user share, link share,
// short link. Every step is idempotent and a failing student never stops the
// run.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/remi/quizshare/internal/cloud"
	"github.com/remi/quizshare/internal/roster"
)

// DefaultShortenAttempts is the retry budget for the link shortening step.
const DefaultShortenAttempts = 5

// Shortener is the external link shortening collaborator. The reconciler
// owns the retry loop; implementations make a single attempt per call.
type Shortener interface {
	Shorten(ctx context.Context, longURL string) (string, error)
}

// Options configures one reconciliation pass.
type Options struct {
	FolderRoot      string // remote root for all student folders
	FolderSuffix    string // appended to each student folder name
	QuizLabel       string // prefix of the uploaded file name
	ShareWithUser   bool
	ShareByLink     bool
	ShortenAttempts int // 0 means DefaultShortenAttempts
}

// Outcome is the per-student result of a pass.
type Outcome struct {
	Student  *roster.Student
	Folder   string // remote student folder
	Uploaded bool
	Shared   bool // user share present after the pass
	Errors   []error
}

// Failed reports whether any step of this student's sequence errored.
func (o *Outcome) Failed() bool { return len(o.Errors) > 0 }

// Reconciler runs the per-student state machine against a remote server.
type Reconciler struct {
	Remote    cloud.Remote
	Shortener Shortener
	Out       io.Writer
	Opts      Options
}

// Run processes students sequentially and returns one Outcome per student,
// in input order. Remote failures are collected per student and reported;
// they never abort the pass.
func (r *Reconciler) Run(ctx context.Context, students []*roster.Student) []Outcome {
	total := len(students)
	width := len(strconv.Itoa(total))

	fmt.Fprintln(r.Out, "\nUploading files...")

	// Root folder first; later steps fail visibly on their own if this
	// could not be created.
	if err := r.Remote.CreateDirectory(ctx, r.Opts.FolderRoot); err == nil {
		fmt.Fprintf(r.Out, "Root folder created at %q\n", r.Opts.FolderRoot)
	} else if !errors.Is(err, cloud.ErrExists) {
		fmt.Fprintf(r.Out, "ERROR: root folder %q: %v\n", r.Opts.FolderRoot, err)
	}

	outcomes := make([]Outcome, 0, total)
	for i, s := range students {
		counter := fmt.Sprintf("%*d/%d", width, i+1, total)
		outcomes = append(outcomes, r.reconcileStudent(ctx, s, counter))
	}
	return outcomes
}

func (r *Reconciler) reconcileStudent(ctx context.Context, s *roster.Student, counter string) Outcome {
	groupFolder := strings.TrimSuffix(r.Opts.FolderRoot, "/") + "/"
	if s.Group != "" {
		groupFolder += s.Group + "/"
	}
	studentFolder := groupFolder +
		s.Surname + " " + s.Name + " (" + s.Number + ")" + r.Opts.FolderSuffix + "/"

	out := Outcome{Student: s, Folder: studentFolder}
	report := func(err error) {
		out.Errors = append(out.Errors, err)
		fmt.Fprintf(r.Out, "%s ERROR: %v\n", counter, err)
	}

	for _, folder := range []string{groupFolder, studentFolder} {
		err := r.Remote.CreateDirectory(ctx, folder)
		switch {
		case err == nil:
			fmt.Fprintf(r.Out, "%s Folder created at %q\n", counter, folder)
		case errors.Is(err, cloud.ErrExists):
			// idempotent
		default:
			report(fmt.Errorf("student %s: %w", s.Number, err))
		}
	}

	remotePath := studentFolder + remoteQuizName(r.Opts.QuizLabel, s)
	if err := r.Remote.UploadFile(ctx, remotePath, s.Quiz); err != nil {
		report(fmt.Errorf("student %s: file not sent to %q: %w", s.Number, remotePath, err))
	} else {
		out.Uploaded = true
		fmt.Fprintf(r.Out, "%s File sent to %q\n", counter, remotePath)
	}

	// Upload failures do not stop the share steps: the folder may well be
	// valid and hold a file from an earlier run.
	if r.Opts.ShareWithUser || r.Opts.ShareByLink {
		r.reconcileShares(ctx, s, &out, counter)
	}

	if r.Opts.ShareByLink && s.Link != "" && s.ShortLink == "" && r.Shortener != nil {
		r.shortenLink(ctx, s, &out, counter)
	}
	return out
}

// reconcileShares brings the user share and link share of the student folder
// to the target state, creating at most one new share of each kind and never
// touching existing ones.
func (r *Reconciler) reconcileShares(ctx context.Context, s *roster.Student, out *Outcome, counter string) {
	report := func(err error) {
		out.Errors = append(out.Errors, err)
		fmt.Fprintf(r.Out, "%s ERROR: %v\n", counter, err)
	}

	shares, err := r.Remote.ListShares(ctx, out.Folder)
	if err != nil {
		report(fmt.Errorf("student %s: %w", s.Number, err))
		return
	}

	if r.Opts.ShareWithUser && s.Account != "" {
		alreadyShared := false
		for _, share := range shares {
			if share.ShareWith == s.Account {
				alreadyShared = true
				break
			}
		}
		switch {
		case alreadyShared:
			out.Shared = true
		default:
			federated := strings.Contains(s.Account, "@")
			if err := r.Remote.ShareWithUser(ctx, out.Folder, s.Account, federated); err != nil {
				report(fmt.Errorf("student %s: folder %q not shared with %q: %w", s.Number, out.Folder, s.Account, err))
			} else {
				out.Shared = true
				fmt.Fprintf(r.Out, "%s Folder shared with user %q\n", counter, s.Account)
			}
		}
	}

	if !r.Opts.ShareByLink {
		return
	}

	// Link selection order: a stored link confirmed by an existing share is
	// kept as-is; with no stored link the first existing link share wins;
	// otherwise the last existing link seen stays available as a fallback.
	// Only when no information is left is a new link share requested, so a
	// pass creates at most one.
	fallback := ""
	for _, share := range shares {
		if !share.IsLink() {
			continue
		}
		if s.Link == "" {
			s.Link = share.URL
			fmt.Fprintf(r.Out, "%s Adopted existing link %q\n", counter, s.Link)
			break
		}
		if s.Link == share.URL {
			break
		}
		fallback = share.URL
	}
	if s.Link == "" && fallback != "" {
		s.Link = fallback
		fmt.Fprintf(r.Out, "%s Adopted existing link %q\n", counter, s.Link)
	}
	if s.Link == "" {
		link, err := r.Remote.ShareByLink(ctx, out.Folder)
		if err != nil {
			report(fmt.Errorf("student %s: folder %q not shared by link: %w", s.Number, out.Folder, err))
			return
		}
		s.Link = link
		fmt.Fprintf(r.Out, "%s Folder shared by link: %s\n", counter, s.Link)
	}
}

// shortenLink tries the external service up to the attempt budget, stopping
// at the first success. Exhausting the budget is reported and leaves the
// short link empty.
func (r *Reconciler) shortenLink(ctx context.Context, s *roster.Student, out *Outcome, counter string) {
	attempts := r.Opts.ShortenAttempts
	if attempts <= 0 {
		attempts = DefaultShortenAttempts
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		short, err := r.Shortener.Shorten(ctx, s.Link)
		if err == nil {
			s.ShortLink = short
			fmt.Fprintf(r.Out, "%s Short link: %s\n", counter, short)
			return
		}
		lastErr = err
	}
	out.Errors = append(out.Errors, fmt.Errorf("student %s: link not shortened after %d attempts: %w", s.Number, attempts, lastErr))
	fmt.Fprintf(r.Out, "%s ERROR: link not shortened after %d attempts: %v\n", counter, attempts, lastErr)
}

// remoteQuizName builds the uploaded file name, keeping the extension of the
// local file (text after the last dot).
func remoteQuizName(label string, s *roster.Student) string {
	return label + " - " + s.Surname + " " + s.Name + " (" + s.Number + ")" + filepath.Ext(s.Quiz)
}
