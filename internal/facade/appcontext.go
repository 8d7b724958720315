// Package facade exposes every spec.md §4.7 command-facade operation
// as a plain Go method on Facade, built from a single AppContext that
// threads every lock and handle an instance of codex-switch needs.
package facade

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ladzaretti/codex-switch/internal/cliadapter"
	"github.com/ladzaretti/codex-switch/internal/config"
	"github.com/ladzaretti/codex-switch/internal/quotaprobe"
	"github.com/ladzaretti/codex-switch/internal/sessiond"
	"github.com/ladzaretti/codex-switch/internal/store"
	"github.com/ladzaretti/codex-switch/internal/switchengine"
	"github.com/ladzaretti/codex-switch/internal/vaultcrypto"
	"github.com/ladzaretti/codex-switch/internal/vaultmgr"
)

// AppContext is constructed once at process start and owns every
// shared handle: the store's writer/reader pair, the vault manager,
// the CLI adapter's cached binary path, the switch engine's mutex, and
// the quota prober's semaphore and cache. No package in this module
// keeps equivalent state at package scope.
type AppContext struct {
	Store    *store.Store
	Vault    *vaultmgr.Manager
	CLI      *cliadapter.Adapter
	Switch   *switchengine.Engine
	Prober   *quotaprobe.Prober
	Config   *config.ResolvedConfig
	Session  *sessiond.Client // nil if the daemon is not reachable
	DBPath   string
}

// NewAppContext wires a complete AppContext against the resolved
// configuration and the fixed filesystem locations spec.md §6 names.
// The session daemon is optional: if it is not reachable at its
// socket, Session is nil and the vault manager simply re-prompts on
// every invocation.
func NewAppContext(ctx context.Context, cfg *config.ResolvedConfig) (*AppContext, error) {
	dbPath, err := config.DatabasePath()
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create app data dir: %w", err)
	}

	s, err := store.Open(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	params := vaultcrypto.Argon2Params{
		Memory:      uint32(cfg.VaultKDF.MemKiB),
		Time:        uint32(cfg.VaultKDF.Iters),
		Parallelism: uint8(cfg.VaultKDF.Parallel),
	}

	vault, err := vaultmgr.New(ctx, s, params)
	if err != nil {
		return nil, fmt.Errorf("new vault manager: %w", err)
	}

	liveFilePath, err := config.LiveAuthFilePath()
	if err != nil {
		return nil, fmt.Errorf("resolve live auth file path: %w", err)
	}

	snapshotDir, err := config.SnapshotsDir()
	if err != nil {
		return nil, fmt.Errorf("resolve snapshot dir: %w", err)
	}

	cli := cliadapter.New()
	engine := switchengine.New(s, vault, cli, liveFilePath, snapshotDir)

	proberOpts := quotaprobe.NewOptions()
	proberOpts.RequestTimeout = time.Duration(cfg.Probe.TimeoutMS) * time.Millisecond
	proberOpts.CacheTTL = time.Duration(cfg.Probe.CacheTTLS) * time.Second
	proberOpts.MaxConcurrency = int64(cfg.Probe.MaxConcurrent)

	if len(cfg.Probe.Headers) > 0 {
		if v, ok := cfg.Probe.Headers["remaining"]; ok {
			proberOpts.Headers.Remaining = v
		}

		if v, ok := cfg.Probe.Headers["reset_at"]; ok {
			proberOpts.Headers.ResetAt = v
		}

		if v, ok := cfg.Probe.Headers["unit"]; ok {
			proberOpts.Headers.Unit = v
		}
	}

	prober := quotaprobe.New(nil, proberOpts)

	session, _ := sessiond.Dial(sessiond.DefaultSocketPath())

	return &AppContext{
		Store:   s,
		Vault:   vault,
		CLI:     cli,
		Switch:  engine,
		Prober:  prober,
		Config:  cfg,
		Session: session,
		DBPath:  dbPath,
	}, nil
}

// Close releases the store's connections.
func (c *AppContext) Close() error {
	return c.Store.Close()
}
