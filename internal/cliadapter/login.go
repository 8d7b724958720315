package cliadapter

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/ladzaretti/codex-switch/internal/vaulterrors"
)

// DefaultLoginTimeout is the time the adapter waits for the login
// subprocess to exit before killing it.
const DefaultLoginTimeout = 5 * time.Minute

// Login spawns the CLI's login subcommand, preferring the --web flavor
// and falling back to a bare login if that flag is unrecognized by the
// installed CLI version. The adapter does not parse the subprocess's
// interactive output; it only waits for exit or timeout.
func (a *Adapter) Login(ctx context.Context, timeout time.Duration) error {
	path, err := a.Locate(ctx)
	if err != nil {
		return err
	}

	if timeout <= 0 {
		timeout = DefaultLoginTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := runLogin(runCtx, path, "login", "--web"); err != nil {
		if !isUnrecognizedFlag(err) {
			return loginFailed(runCtx, err)
		}

		if err := runLogin(runCtx, path, "login"); err != nil {
			return loginFailed(runCtx, err)
		}
	}

	return nil
}

func runLogin(ctx context.Context, path string, args ...string) error {
	cmd := exec.CommandContext(ctx, path, args...)
	return cmd.Run()
}

// isUnrecognizedFlag reports whether err looks like the CLI rejected
// an unrecognized --web flag rather than failing the login itself.
// The adapter treats any non-timeout exit here as "try without --web"
// since CLIs vary in how they report an unknown flag.
func isUnrecognizedFlag(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}

func loginFailed(ctx context.Context, cause error) error {
	reason := cause.Error()
	if ctx.Err() != nil {
		reason = fmt.Sprintf("login timed out: %v", ctx.Err())
	}

	return vaulterrors.New(vaulterrors.LoginFailed, reason, cause)
}
