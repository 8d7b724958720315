// Package clierror maps the closed set of vaulterrors.Kind values the
// command facade returns into human-readable messages and process
// exit codes for the cobra CLI.
package clierror

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ladzaretti/codex-switch/internal/vaulterrors"
)

const DefaultErrorExitCode = 1

var (
	// errHandler is the function used to handle cli errors.
	errHandler = FatalErrHandler

	// errWriter is used to output cli error messages.
	errWriter io.Writer = os.Stderr

	// debugMode enables always printing the raw error alongside the message.
	debugMode bool
)

// SetErrorHandler overrides the default FatalErrHandler error handler.
func SetErrorHandler(f func(string, int)) {
	errHandler = f
}

// ResetErrorHandler restores the default error handler.
func ResetErrorHandler() {
	errHandler = FatalErrHandler
}

// SetErrWriter overrides the default error output writer.
func SetErrWriter(w io.Writer) {
	errWriter = w
}

// ResetErrWriter restores the default error output writer to os.Stderr.
func ResetErrWriter() {
	errWriter = os.Stderr
}

// DebugMode sets whether the raw error is printed alongside the
// user-facing message.
func DebugMode(enabled bool) {
	debugMode = enabled
}

// FatalErrHandler prints msg and exits with code.
func FatalErrHandler(msg string, code int) {
	printError(msg)

	//nolint:revive
	os.Exit(code)
}

// PrintErrHandler prints msg without exiting, for tests.
func PrintErrHandler(msg string, _ int) {
	printError(msg)
}

func printError(msg string) {
	if len(msg) == 0 {
		return
	}

	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}

	fmt.Fprint(errWriter, msg)
}

// ErrExit may be returned by a command to exit silently with
// DefaultErrorExitCode, printing nothing.
var ErrExit = errors.New("exit")

// Check prints a message for err derived from its vaulterrors.Kind (or
// a generic fallback for unclassified errors) and invokes the
// configured error handler. It always returns err unchanged.
func Check(err error) error {
	check(err, errHandler)
	return err
}

func check(err error, handleErr func(string, int)) {
	if err == nil {
		return
	}

	if debugMode {
		fmt.Fprintf(errWriter, "DEBUG %+v\n", err)
	}

	if errors.Is(err, ErrExit) {
		handleErr("", DefaultErrorExitCode)
		return
	}

	kind, ok := vaulterrors.Of(err)
	if !ok {
		handleErr("codex-switch: "+err.Error(), DefaultErrorExitCode)
		return
	}

	handleErr("codex-switch: "+messageForKind(kind, err), DefaultErrorExitCode)
}

func messageForKind(kind vaulterrors.Kind, err error) string {
	switch kind {
	case vaulterrors.VaultLocked:
		return "vault is locked, run 'vault unlock' first"
	case vaulterrors.BadPassword:
		return "incorrect master password"
	case vaulterrors.Throttled:
		return "too many failed unlock attempts, please wait and try again"
	case vaulterrors.CryptoFailed:
		return "a cryptographic operation failed: " + err.Error()
	case vaulterrors.NotFound:
		return "no matching record found"
	case vaulterrors.CliNotFound:
		return "no codex cli executable was found on this machine"
	case vaulterrors.LoginFailed:
		return "cli login did not complete: " + err.Error()
	case vaulterrors.SwitchFailed:
		return "account switch failed: " + err.Error()
	case vaulterrors.NoSnapshot:
		return "this history entry has no snapshot to roll back to"
	case vaulterrors.ProbeFailed:
		return "quota probe failed: " + err.Error()
	case vaulterrors.StoreError:
		return "a storage operation failed: " + err.Error()
	default:
		return err.Error()
	}
}
