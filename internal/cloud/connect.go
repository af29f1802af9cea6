package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/remi/quizshare/internal/prompt"
)

// ErrAborted reports that the operator declined to retry a failed login.
var ErrAborted = errors.New("login aborted by operator")

// LoginMode selects how the session is established.
type LoginMode int

const (
	LoginBasic LoginMode = iota
	LoginSSO
	LoginBrowser
)

// Authenticator turns credentials into a connected Client, asking the
// operator for the password when one was not supplied and offering a bounded
// number of retries on failure.
type Authenticator struct {
	Prompter    prompt.Prompter
	Mode        LoginMode
	MaxAttempts int       // default 3
	Out         io.Writer // progress messages
}

// Connect establishes an authenticated session with the server. An empty
// password triggers a prompt. Each failed attempt asks the operator whether
// to retry with a fresh password; declining, or exhausting the attempt
// budget, returns ErrAborted wrapped with the last login error.
func (a *Authenticator) Connect(ctx context.Context, address, username, password string) (*Client, error) {
	attempts := a.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if password == "" {
			p, err := a.Prompter.Password("\nEnter ownCloud password: ")
			if err != nil {
				return nil, fmt.Errorf("failed to read password: %w", err)
			}
			password = p
		}

		fmt.Fprint(a.Out, "Connecting to ownCloud... ")
		client, err := a.login(ctx, address, username, password)
		if err == nil {
			fmt.Fprintln(a.Out, "Connected!")
			return client, nil
		}
		lastErr = err
		fmt.Fprintf(a.Out, "error logging in: %v\n", err)

		retry, err := a.Prompter.Confirm("Try again?")
		if err != nil {
			return nil, fmt.Errorf("failed to read answer: %w", err)
		}
		if !retry {
			return nil, fmt.Errorf("%w: %w", ErrAborted, lastErr)
		}
		password = "" // prompt again next round
	}
	return nil, fmt.Errorf("%w: %w", ErrAborted, lastErr)
}

func (a *Authenticator) login(ctx context.Context, address, username, password string) (*Client, error) {
	client, err := NewClient(address, username, password)
	if err != nil {
		return nil, err
	}
	switch a.Mode {
	case LoginSSO:
		err = client.LoginSSO(ctx)
	case LoginBrowser:
		err = client.LoginWithBrowser(ctx)
	default:
		err = client.Probe(ctx)
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}
