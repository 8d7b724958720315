package facade

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"time"

	"github.com/ladzaretti/codex-switch/internal/config"
	"github.com/ladzaretti/codex-switch/internal/store"
	"github.com/ladzaretti/codex-switch/internal/vaulterrors"
)

// Facade exposes every spec.md §4.7 command-facade operation as a
// plain Go method. Every method returns either a populated result or
// a *vaulterrors.Error; it never returns a bare error.
type Facade struct {
	app *AppContext
}

// New wraps app in a Facade.
func New(app *AppContext) *Facade {
	return &Facade{app: app}
}

// wrap gives err a default kind, unless it is already a *vaulterrors.Error
// — internal packages that can already tell a BadPassword from a
// CryptoFailed return one, and the facade must not paper over that
// with a more generic kind.
func wrap(kind vaulterrors.Kind, msg string, err error) error {
	if err == nil {
		return nil
	}

	if _, ok := vaulterrors.Of(err); ok {
		return err
	}

	return vaulterrors.New(kind, msg, err)
}

// --- Vault ---

// VaultStatusResult is the result of vault_status.
type VaultStatusResult struct {
	State        string
	AccountCount int
}

// InitVault runs init_vault: creates vault metadata under password and
// transitions the manager to Unlocked. The vault manager already
// returns a *vaulterrors.Error with the correct kind.
func (f *Facade) InitVault(ctx context.Context, password string) error {
	if err := f.app.Vault.Init(ctx, password); err != nil {
		return err
	}

	f.cacheSessionKey()

	return nil
}

// UnlockVault runs unlock_vault.
func (f *Facade) UnlockVault(ctx context.Context, password string) error {
	if err := f.app.Vault.Unlock(ctx, password); err != nil {
		return err
	}

	f.cacheSessionKey()

	return nil
}

// TryUnlockFromSession attempts unlock_vault using a key cached by the
// session daemon, skipping the master password prompt entirely. It
// reports false whenever no cached session is available or usable,
// which is the normal case and not itself an error worth surfacing.
func (f *Facade) TryUnlockFromSession(ctx context.Context) bool {
	if f.app.Session == nil {
		return false
	}

	key, err := f.app.Session.GetSession(f.app.DBPath)
	if err != nil || len(key) == 0 {
		return false
	}

	return f.app.Vault.UnlockWithKey(ctx, key) == nil
}

// LockVault runs lock_vault. It never fails.
func (f *Facade) LockVault() {
	if f.app.Session != nil {
		_ = f.app.Session.Logout(f.app.DBPath)
	}

	f.app.Vault.Lock()
}

// cacheSessionKey best-effort caches the just-derived key with the
// session daemon so the next invocation can use TryUnlockFromSession
// instead of re-prompting. A daemon that is not running, or a cache
// call that fails, is silently ignored: the worst outcome is simply
// another password prompt next time.
func (f *Facade) cacheSessionKey() {
	if f.app.Session == nil {
		return
	}

	key, ok := f.app.Vault.SessionKey()
	if !ok {
		return
	}

	duration, err := time.ParseDuration(f.app.Config.Session.Duration)
	if err != nil {
		duration = 15 * time.Minute
	}

	_ = f.app.Session.Login(f.app.DBPath, key, duration)
}

// VaultStatus runs vault_status.
func (f *Facade) VaultStatus(ctx context.Context) (VaultStatusResult, error) {
	accounts, err := f.app.Store.ListAccounts(ctx)
	if err != nil {
		return VaultStatusResult{}, wrap(vaulterrors.StoreError, "list accounts", err)
	}

	return VaultStatusResult{
		State:        f.app.Vault.State().String(),
		AccountCount: len(accounts),
	}, nil
}

// --- Accounts ---

// ImportCurrent runs import_current.
func (f *Facade) ImportCurrent(ctx context.Context, name string, tags []string) (store.Account, error) {
	a, err := f.app.Switch.ImportCurrent(ctx, name, tags)

	return a, wrap(vaulterrors.SwitchFailed, "import current", err)
}

// ImportFromFile runs import_from_file(path).
func (f *Facade) ImportFromFile(ctx context.Context, path, name string, tags []string) (store.Account, error) {
	a, err := f.app.Switch.ImportFromFile(ctx, path, name, tags)

	return a, wrap(vaulterrors.SwitchFailed, "import from file", err)
}

// ImportViaLogin runs import_via_login.
func (f *Facade) ImportViaLogin(ctx context.Context, name string, tags []string) (store.Account, error) {
	a, err := f.app.Switch.ImportViaLogin(ctx, name, tags)

	return a, wrap(vaulterrors.LoginFailed, "import via login", err)
}

// ListAccounts runs list_accounts.
func (f *Facade) ListAccounts(ctx context.Context) ([]store.Account, error) {
	accounts, err := f.app.Store.ListAccounts(ctx)

	return accounts, wrap(vaulterrors.StoreError, "list accounts", err)
}

// UpdateAccountMeta runs update_account_meta.
func (f *Facade) UpdateAccountMeta(ctx context.Context, id, name string, tags []string) error {
	return wrap(vaulterrors.StoreError, "update account meta", f.app.Store.UpdateMeta(ctx, id, name, tags))
}

// DeleteAccount runs delete_account.
func (f *Facade) DeleteAccount(ctx context.Context, id string) error {
	return wrap(vaulterrors.StoreError, "delete account", f.app.Store.DeleteAccount(ctx, id))
}

// --- Switch ---

// SwitchAccount runs switch_account(id, force_restart).
func (f *Facade) SwitchAccount(ctx context.Context, accountID string, forceRestart bool) (store.SwitchHistory, error) {
	h, err := f.app.Switch.Switch(ctx, accountID, forceRestart)

	return h, wrap(vaulterrors.SwitchFailed, "switch account", err)
}

// Rollback runs rollback(history_id).
func (f *Facade) Rollback(ctx context.Context, historyID string) (store.SwitchHistory, error) {
	h, err := f.app.Switch.Rollback(ctx, historyID)

	return h, wrap(vaulterrors.SwitchFailed, "rollback", err)
}

// ListHistory runs list_history(limit).
func (f *Facade) ListHistory(ctx context.Context, limit int) ([]store.SwitchHistory, error) {
	h, err := f.app.Store.ListHistory(ctx, limit)

	return h, wrap(vaulterrors.StoreError, "list history", err)
}

// --- Quota ---

// RefreshQuota runs refresh_quota(id?, force?). An empty id refreshes
// every account.
func (f *Facade) RefreshQuota(ctx context.Context, accountID string, force bool) ([]store.QuotaSnapshot, error) {
	if accountID != "" {
		snap, err := f.refreshOne(ctx, accountID, force)
		if err != nil {
			return nil, err
		}

		return []store.QuotaSnapshot{snap}, nil
	}

	accounts, err := f.app.Store.ListAccounts(ctx)
	if err != nil {
		return nil, wrap(vaulterrors.StoreError, "list accounts", err)
	}

	snaps := make([]store.QuotaSnapshot, 0, len(accounts))

	for _, a := range accounts {
		snap, err := f.refreshOne(ctx, a.ID, force)
		if err != nil {
			return snaps, err
		}

		snaps = append(snaps, snap)
	}

	return snaps, nil
}

func (f *Facade) refreshOne(ctx context.Context, accountID string, force bool) (store.QuotaSnapshot, error) {
	a, err := f.app.Store.AccountByID(ctx, accountID)
	if err != nil {
		return store.QuotaSnapshot{}, wrap(vaulterrors.NotFound, "account not found", err)
	}

	plaintext, err := f.app.Vault.Unwrap(a.AuthCiphertext)
	if err != nil {
		return store.QuotaSnapshot{}, wrap(vaulterrors.CryptoFailed, "unwrap account for probing", err)
	}

	snap, err := f.app.Prober.Refresh(ctx, accountID, plaintext, force)
	if err != nil {
		return snap, wrap(vaulterrors.ProbeFailed, "refresh quota", err)
	}

	if ierr := f.app.Store.InsertSnapshot(ctx, snap); ierr != nil {
		return snap, wrap(vaulterrors.StoreError, "persist quota snapshot", ierr)
	}

	return snap, nil
}

// QuotaDashboardEntry pairs an account with its most recent snapshot,
// if any.
type QuotaDashboardEntry struct {
	Account  store.Account
	Snapshot *store.QuotaSnapshot
}

// QuotaDashboard runs quota_dashboard: the latest known snapshot per
// account, without triggering new probes.
func (f *Facade) QuotaDashboard(ctx context.Context) ([]QuotaDashboardEntry, error) {
	accounts, err := f.app.Store.ListAccounts(ctx)
	if err != nil {
		return nil, wrap(vaulterrors.StoreError, "list accounts", err)
	}

	entries := make([]QuotaDashboardEntry, 0, len(accounts))

	for _, a := range accounts {
		entry := QuotaDashboardEntry{Account: a}

		snap, err := f.app.Store.LatestSnapshot(ctx, a.ID)
		switch {
		case err == nil:
			entry.Snapshot = &snap
		case errors.Is(err, sql.ErrNoRows):
			// no snapshot yet; leave Snapshot nil
		default:
			return entries, wrap(vaulterrors.StoreError, "latest snapshot", err)
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// ListSnapshots runs list_snapshots(id, limit).
func (f *Facade) ListSnapshots(ctx context.Context, accountID string, limit int) ([]store.QuotaSnapshot, error) {
	snaps, err := f.app.Store.ListSnapshots(ctx, accountID, limit)

	return snaps, wrap(vaulterrors.StoreError, "list snapshots", err)
}

// RefreshPolicy is the mutable subset of ResolvedProbe set_refresh_policy
// may adjust at runtime, without touching the on-disk config file.
type RefreshPolicy struct {
	CacheTTL       time.Duration
	MaxConcurrency int64
}

// SetRefreshPolicy runs set_refresh_policy: records the cache TTL and
// concurrency bound in the AppContext's resolved configuration. The
// running Prober keeps the TTL and semaphore it was constructed with;
// it does not read these values again.
func (f *Facade) SetRefreshPolicy(policy RefreshPolicy) {
	f.app.Config.Probe.CacheTTLS = int(policy.CacheTTL / time.Second)
	f.app.Config.Probe.MaxConcurrent = int(policy.MaxConcurrency)
}

// --- Diagnostics ---

// RuntimeDiagnostics is the result of get_runtime_diagnostics.
type RuntimeDiagnostics struct {
	DatabasePath     string
	LiveAuthFilePath string
	SnapshotsDir     string
	LiveFileExists   bool
	SchemaVersion    int
	CLIProcessCount  int
}

// GetRuntimeDiagnostics runs get_runtime_diagnostics.
func (f *Facade) GetRuntimeDiagnostics(ctx context.Context) (RuntimeDiagnostics, error) {
	liveFilePath, err := config.LiveAuthFilePath()
	if err != nil {
		return RuntimeDiagnostics{}, wrap(vaulterrors.StoreError, "resolve live auth file path", err)
	}

	snapshotsDir, err := config.SnapshotsDir()
	if err != nil {
		return RuntimeDiagnostics{}, wrap(vaulterrors.StoreError, "resolve snapshots dir", err)
	}

	exists, err := liveFileExists(liveFilePath)
	if err != nil {
		return RuntimeDiagnostics{}, wrap(vaulterrors.StoreError, "stat live auth file", err)
	}

	schemaVersion, err := f.app.Store.SchemaVersion(ctx)
	if err != nil {
		return RuntimeDiagnostics{}, wrap(vaulterrors.StoreError, "schema version", err)
	}

	// A machine without the CLI binary reports zero CLI processes.
	pids, err := f.app.CLI.Processes(ctx)
	if err != nil {
		if kind, ok := vaulterrors.Of(err); !ok || kind != vaulterrors.CliNotFound {
			return RuntimeDiagnostics{}, wrap(vaulterrors.CliNotFound, "enumerate cli processes", err)
		}
	}

	return RuntimeDiagnostics{
		DatabasePath:     f.app.DBPath,
		LiveAuthFilePath: liveFilePath,
		SnapshotsDir:     snapshotsDir,
		LiveFileExists:   exists,
		SchemaVersion:    schemaVersion,
		CLIProcessCount:  len(pids),
	}, nil
}

// CLIStatus is the result of get_cli_status.
type CLIStatus struct {
	Running       bool
	ProcessCount  int
	LastCheckedAt time.Time
}

// GetCLIStatus runs get_cli_status.
func (f *Facade) GetCLIStatus(ctx context.Context) (CLIStatus, error) {
	pids, err := f.app.CLI.Processes(ctx)
	if err != nil {
		return CLIStatus{}, wrap(vaulterrors.CliNotFound, "enumerate cli processes", err)
	}

	return CLIStatus{
		Running:       len(pids) > 0,
		ProcessCount:  len(pids),
		LastCheckedAt: timeNow(),
	}, nil
}

// timeNow is a var so tests can stub it deterministically.
//
//nolint:gochecknoglobals
var timeNow = time.Now

func liveFileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, err
}
