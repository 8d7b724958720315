// Package config loads and resolves codex-switch's flat TOML
// configuration: a file on disk, overridden by the
// CODEX_SWITCH_CONFIG environment variable, merged against defaults
// into the single flat ResolvedConfig value every other package
// consumes.
package config

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// envConfigPathKey overrides the default config file location.
const envConfigPathKey = "CODEX_SWITCH_CONFIG"

const defaultConfigName = "config.toml"

// Defaults match spec.md §4.8 / §9 exactly.
const (
	DefaultMemKiB        = 65536
	DefaultIters         = 3
	DefaultParallel      = 1
	DefaultTimeoutMS     = 8000
	DefaultCacheTTLS     = 60
	DefaultMaxConcurrent = 4
	DefaultKillGraceMS   = 2000
)

// FileConfig is the on-disk TOML shape. Every field is a pointer or
// zero-value-omittable so an absent section falls back to defaults in
// Resolve.
//
//nolint:tagalign
type FileConfig struct {
	VaultKDF *VaultKDFConfig `toml:"vault_kdf,commented" comment:"Argon2id key derivation parameters" json:"vault_kdf,omitempty"`
	Probe    *ProbeConfig    `toml:"probe,commented" comment:"Quota prober timeouts, cache, and concurrency" json:"probe,omitempty"`
	Switch   *SwitchConfig   `toml:"switch,commented" comment:"Switch-engine behavior" json:"switch,omitempty"`
	Session  *SessionConfig  `toml:"session,commented" comment:"Session-daemon cache duration" json:"session,omitempty"`

	path string
}

// VaultKDFConfig holds Argon2id parameters.
type VaultKDFConfig struct {
	MemKiB   *int `toml:"mem_kib,commented" comment:"Argon2id memory cost in KiB (default: 65536)" json:"mem_kib,omitempty"`
	Iters    *int `toml:"iters,commented" comment:"Argon2id time cost (default: 3)" json:"iters,omitempty"`
	Parallel *int `toml:"parallel,commented" comment:"Argon2id parallelism (default: 1)" json:"parallel,omitempty"`
}

// ProbeConfig holds quota prober tuning.
type ProbeConfig struct {
	TimeoutMS     *int              `toml:"timeout_ms,commented" comment:"Per-request probe timeout in ms (default: 8000)" json:"timeout_ms,omitempty"`
	CacheTTLS     *int              `toml:"cache_ttl_s,commented" comment:"Per-account snapshot cache TTL in seconds (default: 60)" json:"cache_ttl_s,omitempty"`
	MaxConcurrent *int              `toml:"max_concurrency,commented" comment:"Cross-account probe concurrency bound (default: 4)" json:"max_concurrency,omitempty"`
	Headers       map[string]string `toml:"headers,commented" comment:"Override response header names parsed from precise probes" json:"headers,omitempty"`
}

// SwitchConfig holds switch-engine defaults.
type SwitchConfig struct {
	ForceRestartDefault *bool `toml:"force_restart_default,commented" comment:"Terminate running CLI processes by default on switch (default: false)" json:"force_restart_default,omitempty"`
	KillGraceMS         *int  `toml:"kill_grace_ms,commented" comment:"Grace period between SIGTERM and SIGKILL in ms (default: 2000); not applied by switch, which always waits 2000 ms" json:"kill_grace_ms,omitempty"`
}

// SessionConfig holds session-daemon cache duration.
type SessionConfig struct {
	Duration string `toml:"duration,commented" comment:"How long an unlocked vault session is cached (default: '15m', '0' disables)" json:"duration,omitempty"`
}

func newFileConfig() *FileConfig {
	return &FileConfig{
		VaultKDF: &VaultKDFConfig{},
		Probe:    &ProbeConfig{},
		Switch:   &SwitchConfig{},
		Session:  &SessionConfig{},
	}
}

// ResolvedConfig is the flat value spec.md §9 calls for, merged from
// file config and defaults. CLI flag overrides, where present, are
// applied by the caller before this value is consumed.
type ResolvedConfig struct {
	VaultKDF ResolvedVaultKDF
	Probe    ResolvedProbe
	Switch   ResolvedSwitch
	Session  ResolvedSession
}

type ResolvedVaultKDF struct {
	MemKiB   int
	Iters    int
	Parallel int
}

type ResolvedProbe struct {
	TimeoutMS     int
	CacheTTLS     int
	MaxConcurrent int
	Headers       map[string]string
}

type ResolvedSwitch struct {
	ForceRestartDefault bool
	KillGraceMS         int
}

type ResolvedSession struct {
	Duration string
}

// LoadFileConfig loads the config from path, or the default location
// if path is empty. A missing file at the default location is not an
// error; it resolves to an empty FileConfig.
func LoadFileConfig(path string) (*FileConfig, error) {
	defaultPath, err := defaultConfigPath()
	if err != nil {
		return nil, err
	}

	configPath := cmp.Or(path, defaultPath)

	c, err := parseFileConfig(configPath)
	if err != nil {
		if len(path) == 0 && errors.Is(err, fs.ErrNotExist) {
			return newFileConfig(), nil
		}

		return nil, err
	}

	c.path = configPath

	return c, nil
}

func defaultConfigPath() (string, error) {
	dir, err := AppDataDir()
	if err != nil {
		return "", fmt.Errorf("config: app data dir: %w", err)
	}

	path := filepath.Join(dir, defaultConfigName)
	if p, ok := os.LookupEnv(envConfigPathKey); ok && p != "" {
		path = p
	}

	return path, nil
}

func parseFileConfig(path string) (*FileConfig, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: stat file: %w", err)
	}

	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	c := newFileConfig()
	if err := toml.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("config: parse file: %w", err)
	}

	return c, nil
}

// Resolve merges c against spec.md's documented defaults into a flat
// ResolvedConfig.
func (c *FileConfig) Resolve() *ResolvedConfig {
	r := &ResolvedConfig{
		VaultKDF: ResolvedVaultKDF{MemKiB: DefaultMemKiB, Iters: DefaultIters, Parallel: DefaultParallel},
		Probe:    ResolvedProbe{TimeoutMS: DefaultTimeoutMS, CacheTTLS: DefaultCacheTTLS, MaxConcurrent: DefaultMaxConcurrent},
		Switch:   ResolvedSwitch{KillGraceMS: DefaultKillGraceMS},
		Session:  ResolvedSession{Duration: "15m"},
	}

	if c == nil {
		return r
	}

	if k := c.VaultKDF; k != nil {
		if k.MemKiB != nil {
			r.VaultKDF.MemKiB = *k.MemKiB
		}

		if k.Iters != nil {
			r.VaultKDF.Iters = *k.Iters
		}

		if k.Parallel != nil {
			r.VaultKDF.Parallel = *k.Parallel
		}
	}

	if p := c.Probe; p != nil {
		if p.TimeoutMS != nil {
			r.Probe.TimeoutMS = *p.TimeoutMS
		}

		if p.CacheTTLS != nil {
			r.Probe.CacheTTLS = *p.CacheTTLS
		}

		if p.MaxConcurrent != nil {
			r.Probe.MaxConcurrent = *p.MaxConcurrent
		}

		r.Probe.Headers = p.Headers
	}

	if s := c.Switch; s != nil {
		if s.ForceRestartDefault != nil {
			r.Switch.ForceRestartDefault = *s.ForceRestartDefault
		}

		if s.KillGraceMS != nil {
			r.Switch.KillGraceMS = *s.KillGraceMS
		}
	}

	if s := c.Session; s != nil && s.Duration != "" {
		r.Session.Duration = s.Duration
	}

	return r
}

// Path returns the file path this config was loaded from, or "" if no
// file was found and defaults were used.
func (c *FileConfig) Path() string { return c.path }
