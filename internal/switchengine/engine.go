// Package switchengine implements the defining operation of
// codex-switch: atomically replacing the live auth file with a chosen
// account's decrypted credential, snapshotting what was there before,
// and recording the result so it can be rolled back.
package switchengine

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ladzaretti/codex-switch/internal/cliadapter"
	"github.com/ladzaretti/codex-switch/internal/store"
	"github.com/ladzaretti/codex-switch/internal/vaultcrypto"
	"github.com/ladzaretti/codex-switch/internal/vaultmgr"
	"github.com/ladzaretti/codex-switch/internal/vaulterrors"
)

// LoginPollTimeout bounds how long import-via-login waits for the live
// file's mtime to advance past its pre-login value.
const LoginPollTimeout = 60 * time.Second

const loginPollInterval = 500 * time.Millisecond

// Engine owns the live auth file, the snapshot directory, and the
// per-process mutex serializing switch/rollback operations.
type Engine struct {
	store        *store.Store
	vault        *vaultmgr.Manager
	cli          *cliadapter.Adapter
	liveFilePath string
	snapshotDir  string

	mu sync.Mutex
}

// New constructs an Engine. liveFilePath is the fixed, OS-resolved path
// to the CLI's live credential file; snapshotDir is
// "<app-data>/snapshots".
func New(s *store.Store, vault *vaultmgr.Manager, cli *cliadapter.Adapter, liveFilePath, snapshotDir string) *Engine {
	return &Engine{store: s, vault: vault, cli: cli, liveFilePath: liveFilePath, snapshotDir: snapshotDir}
}

// Switch unwraps the stored ciphertext for accountID, snapshots the
// current live file, atomically replaces it, optionally terminates
// running CLI processes, and records the result as a history row.
//
// The snapshot-through-rename region does not honor ctx cancellation,
// per spec.md's explicit non-goal there; cancellation is still checked
// before unwrap and before the optional terminate step.
func (e *Engine) Switch(ctx context.Context, accountID string, forceRestart bool) (store.SwitchHistory, error) {
	if err := ctx.Err(); err != nil {
		return store.SwitchHistory{}, err
	}

	account, err := e.store.AccountByID(ctx, accountID)
	if err != nil {
		return store.SwitchHistory{}, err
	}

	plaintext, err := e.vault.Unwrap(account.AuthCiphertext)
	if err != nil {
		return store.SwitchHistory{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	fromAccountID, _ := e.currentLiveAccountID(ctx)

	snapshotPath, err := e.snapshotLiveFile()
	if err != nil {
		return e.recordFailure(ctx, fromAccountID, accountID, nil, fmt.Errorf("snapshot live file: %w", err))
	}

	if err := atomicReplace(e.liveFilePath, plaintext); err != nil {
		return e.recordFailure(ctx, fromAccountID, accountID, snapshotPath, fmt.Errorf("atomic replace: %w", err))
	}

	if forceRestart && ctx.Err() == nil {
		if pids, err := e.cli.Processes(ctx); err == nil && len(pids) > 0 {
			_ = e.cli.Terminate(ctx, pids, 0)
		}
	}

	now := time.Now().UTC()

	hist := store.SwitchHistory{
		ID:            uuid.NewString(),
		FromAccountID: fromAccountID,
		ToAccountID:   &accountID,
		SnapshotPath:  snapshotPath,
		Result:        store.SwitchSuccess,
		CreatedAt:     now,
	}

	if err := e.commitSwitch(ctx, accountID, now, hist); err != nil {
		return store.SwitchHistory{}, vaulterrors.New(vaulterrors.StoreError, "commit switch", err)
	}

	return hist, nil
}

// Rollback restores the live file from the snapshot referenced by
// historyID and appends a rolled_back history row with from/to
// reversed relative to the original switch.
func (e *Engine) Rollback(ctx context.Context, historyID string) (store.SwitchHistory, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	row, err := e.store.HistoryByID(ctx, historyID)
	if err != nil {
		return store.SwitchHistory{}, err
	}

	if row.SnapshotPath == nil {
		return store.SwitchHistory{}, vaulterrors.New(vaulterrors.NoSnapshot, "history entry has no snapshot", vaulterrors.ErrNoSnapshot)
	}

	snapshot, err := os.ReadFile(*row.SnapshotPath)
	if err != nil {
		return store.SwitchHistory{}, vaulterrors.New(vaulterrors.SwitchFailed, "read snapshot", err)
	}

	if err := atomicReplace(e.liveFilePath, snapshot); err != nil {
		return store.SwitchHistory{}, vaulterrors.New(vaulterrors.SwitchFailed, "atomic replace from snapshot", err)
	}

	now := time.Now().UTC()

	hist := store.SwitchHistory{
		ID:            uuid.NewString(),
		FromAccountID: row.ToAccountID,
		ToAccountID:   row.FromAccountID,
		SnapshotPath:  row.SnapshotPath,
		Result:        store.SwitchRolledBack,
		CreatedAt:     now,
	}

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return store.SwitchHistory{}, vaulterrors.New(vaulterrors.StoreError, "begin rollback tx", err)
	}

	if err := e.store.InsertHistory(ctx, tx, hist); err != nil {
		_ = tx.Rollback()
		return store.SwitchHistory{}, vaulterrors.New(vaulterrors.StoreError, "insert rollback history", err)
	}

	if row.FromAccountID != nil {
		if err := e.store.TouchLastUsed(ctx, tx, *row.FromAccountID, now); err != nil {
			_ = tx.Rollback()
			return store.SwitchHistory{}, vaulterrors.New(vaulterrors.StoreError, "touch last used", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return store.SwitchHistory{}, vaulterrors.New(vaulterrors.StoreError, "commit rollback", err)
	}

	return hist, nil
}

// commitSwitch writes the history row and the last_used_at update in a
// single transaction.
func (e *Engine) commitSwitch(ctx context.Context, accountID string, when time.Time, hist store.SwitchHistory) error {
	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return err
	}

	if err := e.store.InsertHistory(ctx, tx, hist); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := e.store.TouchLastUsed(ctx, tx, accountID, when); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// recordFailure writes a failed history row outside any transaction
// spanning the already-failed filesystem operation, and returns the
// SwitchFailed error to the caller. The live file is guaranteed
// untouched by atomicReplace's own failure behavior.
func (e *Engine) recordFailure(ctx context.Context, fromAccountID *string, toAccountID string, snapshotPath *string, cause error) (store.SwitchHistory, error) {
	now := time.Now().UTC()
	msg := cause.Error()

	hist := store.SwitchHistory{
		ID:            uuid.NewString(),
		FromAccountID: fromAccountID,
		ToAccountID:   &toAccountID,
		SnapshotPath:  snapshotPath,
		Result:        store.SwitchFailed,
		ErrorMessage:  &msg,
		CreatedAt:     now,
	}

	tx, err := e.store.BeginTx(ctx)
	if err == nil {
		if err := e.store.InsertHistory(ctx, tx, hist); err == nil {
			_ = tx.Commit()
		} else {
			_ = tx.Rollback()
		}
	}

	return store.SwitchHistory{}, vaulterrors.New(vaulterrors.SwitchFailed, msg, cause)
}

// currentLiveAccountID best-effort matches the live file's current
// content fingerprint against a known account, for the from_account_id
// column. A miss (unknown or absent live file) is not an error.
func (e *Engine) currentLiveAccountID(ctx context.Context) (*string, error) {
	data, err := os.ReadFile(e.liveFilePath)
	if err != nil {
		return nil, nil //nolint:nilerr
	}

	fp, err := vaultcrypto.Fingerprint(data)
	if err != nil {
		return nil, nil //nolint:nilerr
	}

	accounts, err := e.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	for _, a := range accounts {
		if a.AuthFingerprint == fp {
			id := a.ID
			return &id, nil
		}
	}

	return nil, nil
}

// snapshotLiveFile copies the current live file byte-for-byte into the
// snapshot directory, returning nil if the live file does not exist.
func (e *Engine) snapshotLiveFile() (*string, error) {
	data, err := os.ReadFile(e.liveFilePath)
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(e.snapshotDir, 0o700); err != nil {
		return nil, err
	}

	suffix, err := vaultcrypto.RandBytes(3)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("%s-%s.json", time.Now().UTC().Format("20060102T150405Z"), hex.EncodeToString(suffix))
	path := filepath.Join(e.snapshotDir, name)

	if err := atomicReplace(path, data); err != nil {
		return nil, err
	}

	return &path, nil
}

// atomicReplace writes data to a temp file in target's directory,
// fsyncs it, closes it, then renames it over target. On any failure
// before the rename, target is left untouched.
func atomicReplace(target string, data []byte) error {
	dir := filepath.Dir(target)

	tmp, err := os.CreateTemp(dir, ".codex-switch-*.tmp")
	if err != nil {
		return err
	}

	cleanupTmp := true

	defer func() {
		if cleanupTmp {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return err
	}

	cleanupTmp = false

	return nil
}
