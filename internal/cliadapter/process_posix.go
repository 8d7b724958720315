//go:build !windows

package cliadapter

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ladzaretti/codex-switch/internal/vaulterrors"
)

// DefaultKillGrace is how long Terminate waits after SIGTERM before
// escalating to SIGKILL.
const DefaultKillGrace = 2 * time.Second

// Processes returns the PIDs of running processes whose executable
// path resolves to the located CLI binary, excluding this host
// process. Entries whose executable basename matches but whose
// resolved path differs are disambiguated by checking their argument
// vector for the "login" subcommand name, matching spec.md's
// basename-collision rule. Processes whose executable link cannot be
// read are skipped.
func (a *Adapter) Processes(ctx context.Context) ([]int, error) {
	path, err := a.Locate(ctx)
	if err != nil {
		return nil, err
	}

	pids, err := procPIDs()
	if err != nil {
		return procPIDsFallback(ctx, path)
	}

	base := filepath.Base(path)
	self := os.Getpid()

	var matches []int

	for _, pid := range pids {
		if pid == self {
			continue
		}

		exe, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
		if err != nil {
			continue
		}

		switch {
		case exe == path:
			matches = append(matches, pid)
		case filepath.Base(exe) == base:
			if cmdlineContains(pid, "login") {
				matches = append(matches, pid)
			}
		}
	}

	return matches, nil
}

func procPIDs() ([]int, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}

	var pids []int

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}

		pids = append(pids, pid)
	}

	return pids, nil
}

func cmdlineContains(pid int, needle string) bool {
	raw, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil {
		return false
	}

	for _, arg := range strings.Split(string(raw), "\x00") {
		if arg == needle {
			return true
		}
	}

	return false
}

// procPIDsFallback is used on POSIX systems without a /proc
// filesystem (e.g. macOS), shelling out to ps instead.
func procPIDsFallback(ctx context.Context, path string) ([]int, error) {
	out, err := exec.CommandContext(ctx, "ps", "-axo", "pid=,comm=").Output()
	if err != nil {
		return nil, fmt.Errorf("ps fallback: %w", err)
	}

	base := filepath.Base(path)
	self := os.Getpid()

	var matches []int

	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		pid, err := strconv.Atoi(fields[0])
		if err != nil || pid == self {
			continue
		}

		if filepath.Base(fields[1]) == base {
			matches = append(matches, pid)
		}
	}

	return matches, nil
}

// Terminate sends SIGTERM to each pid, then SIGKILL to any still alive
// after grace. Only pids previously returned by Processes should be
// passed here.
func (a *Adapter) Terminate(ctx context.Context, pids []int, grace time.Duration) error {
	if grace <= 0 {
		grace = DefaultKillGrace
	}

	var failures []int

	for _, pid := range pids {
		if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
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
		if processAlive(pid) {
			if err := syscall.Kill(pid, syscall.SIGKILL); err != nil {
				failures = append(failures, pid)
			}
		}
	}

	if len(failures) > 0 {
		return vaulterrors.New(vaulterrors.SwitchFailed, fmt.Sprintf("failed to terminate pids: %v", failures), nil)
	}

	return nil
}

func processAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
