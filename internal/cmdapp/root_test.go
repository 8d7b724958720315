package cmdapp_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/ladzaretti/codex-switch/genericclioptions"
	"github.com/ladzaretti/codex-switch/internal/clierror"
	"github.com/ladzaretti/codex-switch/internal/cmdapp"
)

func newTestIOStreams() (genericclioptions.IOStreams, *bytes.Buffer, *bytes.Buffer) {
	fi := genericclioptions.NewMockFileInfo("stdin", 0, 0, false, time.Time{})
	in := genericclioptions.NewTestFdReader(&bytes.Buffer{}, 0, fi)

	iostreams, _, out, errOut := genericclioptions.NewTestIOStreams(in)

	return *iostreams, out, errOut
}

// run executes the root command against args and returns stdout. The
// default error handler calls os.Exit, which would kill the test
// binary, so every test here swaps in PrintErrHandler first.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	clierror.SetErrorHandler(clierror.PrintErrHandler)
	t.Cleanup(clierror.ResetErrorHandler)

	iostreams, out, _ := newTestIOStreams()

	err := cmdapp.Execute(iostreams, args)

	return out.String(), err
}

func TestCmdapp_VaultStatusOnFreshVault(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	out, err := run(t, "vault", "status")
	if err != nil {
		t.Fatalf("vault status: %v", err)
	}

	if !strings.Contains(out, "Uninitialized") {
		t.Errorf("expected Uninitialized state, got %q", out)
	}
}

func TestCmdapp_DiagRuntimeReportsFreshDatabase(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	out, err := run(t, "diag", "runtime")
	if err != nil {
		t.Fatalf("diag runtime: %v", err)
	}

	if !strings.Contains(out, "exists: false") {
		t.Errorf("expected live file to not exist yet, got %q", out)
	}
}

func TestCmdapp_SwitchUnknownAccountFails(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	_, err := run(t, "switch", "does-not-exist")
	if err == nil {
		t.Fatal("expected an error switching to an unknown account")
	}
}
