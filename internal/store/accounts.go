package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ladzaretti/codex-switch/internal/vaulterrors"
)

const insertAccount = `
	INSERT INTO
		accounts (id, name, tags, auth_ciphertext, auth_fingerprint, created_at, updated_at)
	VALUES
		(?, ?, ?, ?, ?, ?, ?)
`

// InsertAccount inserts a new account row inside its own transaction.
func (s *Store) InsertAccount(ctx context.Context, a Account) error {
	tags, err := json.Marshal(a.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, insertAccount,
			a.ID, a.Name, string(tags), a.AuthCiphertext, a.AuthFingerprint, a.CreatedAt, a.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert account: %w", err)
		}

		return nil
	})
}

const selectAccountByID = `
	SELECT
		id, name, tags, auth_ciphertext, auth_fingerprint, created_at, updated_at, last_used_at
	FROM
		accounts
	WHERE
		id = ?
`

type scannable interface {
	Scan(dest ...any) error
}

func scanAccount(row scannable) (Account, error) {
	var (
		a        Account
		tagsJSON string
	)

	if err := row.Scan(&a.ID, &a.Name, &tagsJSON, &a.AuthCiphertext, &a.AuthFingerprint, &a.CreatedAt, &a.UpdatedAt, &a.LastUsedAt); err != nil {
		return Account{}, err
	}

	if err := json.Unmarshal([]byte(tagsJSON), &a.Tags); err != nil {
		return Account{}, fmt.Errorf("unmarshal tags: %w", err)
	}

	return a, nil
}

// AccountByID returns a single account, or a NotFound kind error if it
// does not exist.
func (s *Store) AccountByID(ctx context.Context, id string) (Account, error) {
	row := s.read.QueryRowContext(ctx, selectAccountByID, id)

	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, vaulterrors.New(vaulterrors.NotFound, "account not found", vaulterrors.ErrAccountNotFound)
	}

	if err != nil {
		return Account{}, fmt.Errorf("scan account: %w", err)
	}

	return a, nil
}

const selectAllAccounts = `
	SELECT
		id, name, tags, auth_ciphertext, auth_fingerprint, created_at, updated_at, last_used_at
	FROM
		accounts
	ORDER BY
		created_at ASC
`

// ListAccounts returns every account, oldest first.
func (s *Store) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := s.read.QueryContext(ctx, selectAllAccounts)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account

	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}

		accounts = append(accounts, a)
	}

	return accounts, rows.Err()
}

const updateAccountMetaQuery = `
	UPDATE accounts
	SET name = ?, tags = ?, updated_at = ?
	WHERE id = ?
`

// UpdateMeta updates an account's name and tag set.
func (s *Store) UpdateMeta(ctx context.Context, id, name string, tags []string) error {
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, updateAccountMetaQuery, name, string(tagsJSON), time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("update account meta: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}

		if n == 0 {
			return vaulterrors.New(vaulterrors.NotFound, "account not found", vaulterrors.ErrAccountNotFound)
		}

		return nil
	})
}

const touchLastUsed = `
	UPDATE accounts
	SET last_used_at = ?
	WHERE id = ?
`

// TouchLastUsed stamps an account's last_used_at within an
// already-open transaction, so the switch engine can commit it atomically
// alongside the history row it writes for the same switch.
func (s *Store) TouchLastUsed(ctx context.Context, tx *sql.Tx, id string, when time.Time) error {
	_, err := tx.ExecContext(ctx, touchLastUsed, when, id)
	if err != nil {
		return fmt.Errorf("touch last used: %w", err)
	}

	return nil
}

const deleteAccount = `DELETE FROM accounts WHERE id = ?`

// DeleteAccount removes an account. Switch history rows referencing it
// as from_account_id are preserved with the reference set null; rows
// referencing it as to_account_id block the delete (foreign key
// restrict).
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, deleteAccount, id)
		if err != nil {
			return fmt.Errorf("delete account: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}

		if n == 0 {
			return vaulterrors.New(vaulterrors.NotFound, "account not found", vaulterrors.ErrAccountNotFound)
		}

		return nil
	})
}
