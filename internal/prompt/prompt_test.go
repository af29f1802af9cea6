package prompt

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalConfirm(t *testing.T) {
	cases := []struct {
		answer string
		want   bool
	}{
		{"y\n", true},
		{"Y\n", true},
		{"yes\n", true},
		{"YES\n", true},
		{" y \n", true},
		{"n\n", false},
		{"no\n", false},
		{"maybe\n", false},
		{"\n", false},
	}
	for _, tc := range cases {
		var out bytes.Buffer
		term := &Terminal{In: strings.NewReader(tc.answer), Out: &out}
		got, err := term.Confirm("Continue?")
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "answer %q", tc.answer)
		assert.Contains(t, out.String(), "Continue? (y/n)")
	}
}

func TestTerminalInput(t *testing.T) {
	var out bytes.Buffer
	term := &Terminal{In: strings.NewReader("Quiz 3\n"), Out: &out}
	got, err := term.Input("Enter quiz name: ")
	require.NoError(t, err)
	assert.Equal(t, "Quiz 3", got)
	assert.Equal(t, "Enter quiz name: ", out.String())
}

func TestTerminalInputWindowsLineEnding(t *testing.T) {
	term := &Terminal{In: strings.NewReader("Quiz 3\r\n"), Out: &bytes.Buffer{}}
	got, err := term.Input("")
	require.NoError(t, err)
	assert.Equal(t, "Quiz 3", got)
}

func TestTerminalInputMissingNewline(t *testing.T) {
	// A final line without a trailing newline is still accepted.
	term := &Terminal{In: strings.NewReader("secret"), Out: &bytes.Buffer{}}
	got, err := term.Input("")
	require.NoError(t, err)
	assert.Equal(t, "secret", got)
}

func TestTerminalPasswordNonTTY(t *testing.T) {
	var out bytes.Buffer
	term := &Terminal{In: strings.NewReader("s3cret\n"), Out: &out}
	got, err := term.Password("Password: ")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)
}

func TestScripted(t *testing.T) {
	s := &Scripted{ConfirmAnswer: true, InputAnswer: "Quiz 3", PasswordAnswer: "pw"}
	ok, err := s.Confirm("?")
	require.NoError(t, err)
	assert.True(t, ok)
	in, err := s.Input("?")
	require.NoError(t, err)
	assert.Equal(t, "Quiz 3", in)
	pw, err := s.Password("?")
	require.NoError(t, err)
	assert.Equal(t, "pw", pw)
}
