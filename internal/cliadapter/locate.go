// Package cliadapter locates the external CLI executable, drives its
// login flow, and enumerates/terminates its running processes.
package cliadapter

import (
	"context"
	"os/exec"
	"runtime"
	"sync"

	"github.com/ladzaretti/codex-switch/internal/vaulterrors"
)

// binaryName is the executable name the adapter probes for, not
// including any OS-specific extension.
const binaryName = "codex"

// posixCandidates are probed, in order, on POSIX systems beyond a
// plain PATH lookup of binaryName.
var posixCandidates = []string{
	"/usr/local/bin/codex",
	"/opt/homebrew/bin/codex",
	"/usr/bin/codex",
}

// windowsCandidates are probed, in order, on Windows, including the
// shim names a Node-based global install leaves under the package
// manager root.
var windowsCandidates = []string{
	"codex.cmd",
	"codex.ps1",
	"codex.exe",
}

// Adapter locates and drives the external CLI binary. The located path
// is cached for the adapter's lifetime.
type Adapter struct {
	mu           sync.Mutex
	resolvedPath string
	probed       []string
}

// New constructs an Adapter with no binary located yet.
func New() *Adapter {
	return &Adapter{}
}

// Locate returns the cached binary path, probing candidates on first
// call. Each candidate is accepted only if invoking it with --version
// succeeds.
func (a *Adapter) Locate(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.resolvedPath != "" {
		return a.resolvedPath, nil
	}

	candidates := candidatePaths()
	a.probed = candidates

	for _, candidate := range candidates {
		path, err := exec.LookPath(candidate)
		if err != nil {
			continue
		}

		if probeVersion(ctx, path) {
			a.resolvedPath = path
			return path, nil
		}
	}

	return "", vaulterrors.New(vaulterrors.CliNotFound, probedPathsMessage(candidates), vaulterrors.ErrCliNotFound)
}

func candidatePaths() []string {
	if runtime.GOOS == "windows" {
		return append([]string{binaryName}, windowsCandidates...)
	}

	return append([]string{binaryName}, posixCandidates...)
}

func probeVersion(ctx context.Context, path string) bool {
	cmd := exec.CommandContext(ctx, path, "--version")
	return cmd.Run() == nil
}

func probedPathsMessage(candidates []string) string {
	msg := "no usable cli executable found among candidates:"
	for _, c := range candidates {
		msg += " " + c
	}

	return msg
}
