package switchengine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ladzaretti/codex-switch/internal/store"
	"github.com/ladzaretti/codex-switch/internal/vaultcrypto"
	"github.com/ladzaretti/codex-switch/internal/vaulterrors"
)

// ImportCurrent registers the CLI's current live credential file as a
// new account, under name (or an auto-generated "Account-<fingerprint[:8]>"
// name if name is empty).
func (e *Engine) ImportCurrent(ctx context.Context, name string, tags []string) (store.Account, error) {
	data, err := os.ReadFile(e.liveFilePath)
	if err != nil {
		return store.Account{}, vaulterrors.New(vaulterrors.NotFound, "read live credential file", err)
	}

	return e.importPlaintext(ctx, name, tags, data)
}

// ImportFromFile registers the credential file at path as a new
// account, leaving path untouched.
func (e *Engine) ImportFromFile(ctx context.Context, path, name string, tags []string) (store.Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return store.Account{}, vaulterrors.New(vaulterrors.NotFound, "read credential file", err)
	}

	return e.importPlaintext(ctx, name, tags, data)
}

// ImportViaLogin drives an interactive CLI login, then waits for the
// live file's mtime to advance past its pre-login value (or for the
// file to newly appear), and registers the resulting credential as a
// new account. It fails with LoginFailed if the live file never
// changes within LoginPollTimeout.
func (e *Engine) ImportViaLogin(ctx context.Context, name string, tags []string) (store.Account, error) {
	before, hadBefore := statMTime(e.liveFilePath)

	if err := e.cli.Login(ctx, 0); err != nil {
		return store.Account{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, LoginPollTimeout)
	defer cancel()

	ticker := time.NewTicker(loginPollInterval)
	defer ticker.Stop()

	for {
		after, hasAfter := statMTime(e.liveFilePath)
		if hasAfter && (!hadBefore || after.After(before)) {
			break
		}

		select {
		case <-ctx.Done():
			return store.Account{}, vaulterrors.New(vaulterrors.LoginFailed,
				"live credential file did not change after login", ctx.Err())
		case <-ticker.C:
		}
	}

	data, err := os.ReadFile(e.liveFilePath)
	if err != nil {
		return store.Account{}, vaulterrors.New(vaulterrors.LoginFailed, "read live credential file after login", err)
	}

	return e.importPlaintext(ctx, name, tags, data)
}

func statMTime(path string) (time.Time, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}

	return info.ModTime(), true
}

func (e *Engine) importPlaintext(ctx context.Context, name string, tags []string, plaintext []byte) (store.Account, error) {
	fp, err := vaultcrypto.Fingerprint(plaintext)
	if err != nil {
		return store.Account{}, vaulterrors.New(vaulterrors.CryptoFailed, "fingerprint credential", err)
	}

	if name == "" {
		name = fmt.Sprintf("Account-%s", fp[:8])
	}

	ciphertext, err := e.vault.Wrap(plaintext)
	if err != nil {
		return store.Account{}, err
	}

	now := time.Now().UTC()

	acc := store.Account{
		ID:              uuid.NewString(),
		Name:            name,
		Tags:            tags,
		AuthCiphertext:  ciphertext,
		AuthFingerprint: fp,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := e.store.InsertAccount(ctx, acc); err != nil {
		return store.Account{}, err
	}

	return acc, nil
}
