//go:build windows

package cliadapter

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ladzaretti/codex-switch/internal/vaulterrors"
)

// DefaultKillGrace is how long Terminate waits for a graceful exit
// before forcing termination.
const DefaultKillGrace = 2 * time.Second

// Processes enumerates running processes matching the located CLI
// binary via tasklist, since Windows has no /proc equivalent.
func (a *Adapter) Processes(ctx context.Context) ([]int, error) {
	path, err := a.Locate(ctx)
	if err != nil {
		return nil, err
	}

	base := filepath.Base(path)

	out, err := exec.CommandContext(ctx, "tasklist", "/fo", "csv", "/nh").Output()
	if err != nil {
		return nil, fmt.Errorf("tasklist: %w", err)
	}

	self := os.Getpid()

	var matches []int

	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Split(strings.Trim(line, "\r\n"), "\",\"")
		if len(fields) < 2 {
			continue
		}

		name := strings.Trim(fields[0], "\"")
		pidField := strings.Trim(fields[1], "\"")

		pid, err := strconv.Atoi(pidField)
		if err != nil || pid == self {
			continue
		}

		if strings.EqualFold(name, base) {
			matches = append(matches, pid)
		}
	}

	return matches, nil
}

// Terminate asks each process to close gracefully via taskkill, then
// forces termination of any still running after grace.
func (a *Adapter) Terminate(ctx context.Context, pids []int, grace time.Duration) error {
	if grace <= 0 {
		grace = DefaultKillGrace
	}

	var failures []int

	for _, pid := range pids {
		if err := exec.CommandContext(ctx, "taskkill", "/pid", strconv.Itoa(pid)).Run(); err != nil {
			failures = append(failures, pid)
		}
	}

	deadline := time.NewTimer(grace)
	defer deadline.Stop()

	select {
	case <-ctx.Done():
	case <-deadline.C:
	}

	for _, pid := range pids {
		_ = exec.CommandContext(ctx, "taskkill", "/f", "/pid", strconv.Itoa(pid)).Run()
	}

	if len(failures) > 0 {
		return vaulterrors.New(vaulterrors.SwitchFailed, fmt.Sprintf("failed to terminate pids: %v", failures), nil)
	}

	return nil
}
