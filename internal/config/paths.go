package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const appDirName = "codex-switch"

// AppDataDir returns the per-OS application data directory spec.md §6
// names exactly: %LOCALAPPDATA%/codex-switch on Windows,
// ~/Library/Application Support/codex-switch on macOS, and
// ~/.local/share/codex-switch elsewhere.
func AppDataDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return filepath.Join(dir, appDirName), nil
		}

		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("user home dir: %w", err)
		}

		return filepath.Join(home, "AppData", "Local", appDirName), nil
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("user home dir: %w", err)
		}

		return filepath.Join(home, "Library", "Application Support", appDirName), nil
	default:
		if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
			return filepath.Join(dir, appDirName), nil
		}

		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("user home dir: %w", err)
		}

		return filepath.Join(home, ".local", "share", appDirName), nil
	}
}

// DatabasePath returns "<app-data>/codex-switch.db".
func DatabasePath() (string, error) {
	dir, err := AppDataDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, "codex-switch.db"), nil
}

// SnapshotsDir returns "<app-data>/snapshots".
func SnapshotsDir() (string, error) {
	dir, err := AppDataDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, "snapshots"), nil
}

// cliHomeDirName is the external CLI's own dot-directory under the
// user's home, holding its live auth file.
const cliHomeDirName = ".codex"

// LiveAuthFilePath returns the fixed path to the CLI's live credential
// file: "<home>/.codex/auth.json", per spec.md §6.
func LiveAuthFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("user home dir: %w", err)
	}

	return filepath.Join(home, cliHomeDirName, "auth.json"), nil
}
