package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remi/quizshare/internal/cloud"
	"github.com/remi/quizshare/internal/prompt"
)

type fakeRemote struct {
	dirs       map[string]bool
	uploads    []string
	userShares []string
	linkShares []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{dirs: map[string]bool{}}
}

func (f *fakeRemote) CreateDirectory(_ context.Context, remotePath string) error {
	key := strings.Trim(remotePath, "/")
	if f.dirs[key] {
		return cloud.ErrExists
	}
	f.dirs[key] = true
	return nil
}

func (f *fakeRemote) UploadFile(_ context.Context, remotePath, _ string) error {
	f.uploads = append(f.uploads, strings.Trim(remotePath, "/"))
	return nil
}

func (f *fakeRemote) ListShares(context.Context, string) ([]cloud.Share, error) {
	return nil, nil
}

func (f *fakeRemote) ShareWithUser(_ context.Context, remotePath, account string, federated bool) error {
	f.userShares = append(f.userShares, strings.Trim(remotePath, "/")+"|"+account)
	_ = federated
	return nil
}

func (f *fakeRemote) ShareByLink(_ context.Context, remotePath string) (string, error) {
	f.linkShares = append(f.linkShares, strings.Trim(remotePath, "/"))
	return "https://cloud.example.com/s/" + filepath.Base(remotePath), nil
}

func writeTestRoster(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "students.csv")
	content := strings.Join([]string{
		"name:surname:group:number:owncloud",
		"Jane:Doe:2A:001:jdoe",
		"John:Roe:2A:002:jroe",
		"Ann:Poe:2B:003:apoe",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeQuizFiles(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte("pdf"), 0o644))
		paths = append(paths, p)
	}
	return paths
}

func baseOptions(rosterPath string, paths []string, remote cloud.Remote, out *bytes.Buffer) RunOptions {
	return RunOptions{
		RosterPath:    rosterPath,
		Paths:         paths,
		QuizLabel:     "Quiz 3",
		FolderRoot:    "Quizzes",
		ShareWithUser: true,
		ShareByLink:   true,
		Prompter:      &prompt.Scripted{ConfirmAnswer: true},
		Out:           out,
		Remote:        remote,
	}
}

func TestRunUploadsAndSharesMatchedStudents(t *testing.T) {
	dir := t.TempDir()
	rosterPath := writeTestRoster(t, dir)
	files := writeQuizFiles(t, dir, "photo_001.png", "scan_5_002.pdf")

	remote := newFakeRemote()
	var out bytes.Buffer
	err := Run(context.Background(), baseOptions(rosterPath, files, remote, &out))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Quizzes/2A/Doe Jane (001)/Quiz 3 - Doe Jane (001).png",
		"Quizzes/2A/Roe John (002)/Quiz 3 - Roe John (002).pdf",
	}, remote.uploads)
	assert.Equal(t, []string{
		"Quizzes/2A/Doe Jane (001)|jdoe",
		"Quizzes/2A/Roe John (002)|jroe",
	}, remote.userShares)
	// Student 003 had no file; her folder was never created.
	assert.NotContains(t, remote.dirs, "Quizzes/2B/Poe Ann (003)")

	assert.Contains(t, out.String(), "2/2 files matched")
	assert.Contains(t, out.String(), "Done!")
}

func TestRunWritesLinksBackToRoster(t *testing.T) {
	dir := t.TempDir()
	rosterPath := writeTestRoster(t, dir)
	files := writeQuizFiles(t, dir, "001.pdf")

	remote := newFakeRemote()
	var out bytes.Buffer
	err := Run(context.Background(), baseOptions(rosterPath, files, remote, &out))
	require.NoError(t, err)

	updated := filepath.Join(dir, "students_updated.csv")
	data, err := os.ReadFile(updated)
	require.NoError(t, err)
	assert.Contains(t, string(data), "https://cloud.example.com/s/Doe Jane (001)")
	// Original untouched.
	orig, err := os.ReadFile(rosterPath)
	require.NoError(t, err)
	assert.NotContains(t, string(orig), "cloud.example.com")
}

func TestRunReplaceOverwritesRoster(t *testing.T) {
	dir := t.TempDir()
	rosterPath := writeTestRoster(t, dir)
	files := writeQuizFiles(t, dir, "001.pdf")

	remote := newFakeRemote()
	var out bytes.Buffer
	opts := baseOptions(rosterPath, files, remote, &out)
	opts.Replace = true
	require.NoError(t, Run(context.Background(), opts))

	data, err := os.ReadFile(rosterPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "https://cloud.example.com/s/Doe Jane (001)")
	_, err = os.Stat(filepath.Join(dir, "students_updated.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunAbortsAtUnmatchedGate(t *testing.T) {
	dir := t.TempDir()
	rosterPath := writeTestRoster(t, dir)
	files := writeQuizFiles(t, dir, "001.pdf", "nodigits.pdf")

	remote := newFakeRemote()
	var out bytes.Buffer
	opts := baseOptions(rosterPath, files, remote, &out)
	opts.Prompter = &prompt.Scripted{ConfirmAnswer: false}

	err := Run(context.Background(), opts)
	require.ErrorIs(t, err, ErrCancelled)

	// No remote work and no roster output before the gate.
	assert.Empty(t, remote.dirs)
	assert.Empty(t, remote.uploads)
	_, statErr := os.Stat(filepath.Join(dir, "students_updated.csv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunContinuesPastUnmatchedWhenConfirmed(t *testing.T) {
	dir := t.TempDir()
	rosterPath := writeTestRoster(t, dir)
	files := writeQuizFiles(t, dir, "001.pdf", "nodigits.pdf")

	remote := newFakeRemote()
	var out bytes.Buffer
	err := Run(context.Background(), baseOptions(rosterPath, files, remote, &out))
	require.NoError(t, err)

	assert.Len(t, remote.uploads, 1)
	assert.Contains(t, out.String(), "nodigits.pdf")
}

func TestRunPromptsForQuizLabelWhenEmpty(t *testing.T) {
	dir := t.TempDir()
	rosterPath := writeTestRoster(t, dir)
	files := writeQuizFiles(t, dir, "001.pdf")

	remote := newFakeRemote()
	var out bytes.Buffer
	opts := baseOptions(rosterPath, files, remote, &out)
	opts.QuizLabel = ""
	opts.Prompter = &prompt.Scripted{ConfirmAnswer: true, InputAnswer: "Midterm"}

	require.NoError(t, Run(context.Background(), opts))
	require.Len(t, remote.uploads, 1)
	assert.Contains(t, remote.uploads[0], "Midterm - Doe Jane (001)")
}

func TestRunNothingMatched(t *testing.T) {
	dir := t.TempDir()
	rosterPath := writeTestRoster(t, dir)
	files := writeQuizFiles(t, dir, "nodigits.pdf")

	remote := newFakeRemote()
	var out bytes.Buffer
	err := Run(context.Background(), baseOptions(rosterPath, files, remote, &out))
	require.NoError(t, err)

	assert.Empty(t, remote.uploads)
	assert.Contains(t, out.String(), "Nothing to upload.")
}

func TestRunMissingRoster(t *testing.T) {
	remote := newFakeRemote()
	var out bytes.Buffer
	opts := baseOptions(filepath.Join(t.TempDir(), "absent.csv"), nil, remote, &out)
	err := Run(context.Background(), opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading roster failed")
}
