package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const insertVaultMeta = `
	INSERT INTO
		vault_meta (id, kdf_salt, kdf_params, verifier_ciphertext, created_at, updated_at)
	VALUES
		(0, ?, ?, ?, ?, ?)
`

// InitVaultMeta writes the single vault_meta row. Called exactly once,
// by init(password); a second call fails on the table's primary key
// check constraint. The vault manager rejects a repeated init with
// ErrAlreadyInitialized by its own state check before reaching this.
func (s *Store) InitVaultMeta(ctx context.Context, m VaultMeta) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, insertVaultMeta, m.KDFSalt, m.KDFParams, m.VerifierCiphertext, m.CreatedAt, m.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert vault meta: %w", err)
		}

		return nil
	})
}

const selectVaultMeta = `
	SELECT
		kdf_salt, kdf_params, verifier_ciphertext, created_at, updated_at
	FROM
		vault_meta
	WHERE
		id = 0
`

// VaultMeta returns the single vault_meta row, or sql.ErrNoRows if the
// vault has never been initialized.
func (s *Store) VaultMeta(ctx context.Context) (VaultMeta, error) {
	var m VaultMeta

	row := s.read.QueryRowContext(ctx, selectVaultMeta)
	if err := row.Scan(&m.KDFSalt, &m.KDFParams, &m.VerifierCiphertext, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return VaultMeta{}, err
	}

	return m, nil
}

// HasVaultMeta reports whether the vault has been initialized.
func (s *Store) HasVaultMeta(ctx context.Context) (bool, error) {
	_, err := s.VaultMeta(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}

const updateVaultMetaParams = `
	UPDATE vault_meta
	SET kdf_params = ?, updated_at = ?
	WHERE id = 0
`

// UpdateKDFParams records a KDF parameter rotation and stamps
// vault_meta.updated_at. Runtime diagnostics do not report it.
func (s *Store) UpdateKDFParams(ctx context.Context, kdfParams string, updatedAt time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, updateVaultMetaParams, kdfParams, updatedAt)
		if err != nil {
			return fmt.Errorf("update vault meta params: %w", err)
		}

		return nil
	})
}
