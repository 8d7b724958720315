package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ladzaretti/codex-switch/internal/vaulterrors"
)

const insertHistory = `
	INSERT INTO
		switch_history (id, from_account_id, to_account_id, snapshot_path, result, error_message, created_at)
	VALUES
		(?, ?, ?, ?, ?, ?, ?)
`

// InsertHistory appends a history row within the caller's transaction,
// letting the switch engine commit the history write atomically
// alongside the account's last_used_at update.
func (s *Store) InsertHistory(ctx context.Context, tx *sql.Tx, h SwitchHistory) error {
	_, err := tx.ExecContext(ctx, insertHistory,
		h.ID, h.FromAccountID, h.ToAccountID, h.SnapshotPath, h.Result, h.ErrorMessage, h.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}

	return nil
}

// BeginTx starts a new write transaction for callers (the switch
// engine) that need to span multiple store calls atomically.
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	return tx, nil
}

const selectHistoryByID = `
	SELECT
		id, from_account_id, to_account_id, snapshot_path, result, error_message, created_at
	FROM
		switch_history
	WHERE
		id = ?
`

func scanHistory(row scannable) (SwitchHistory, error) {
	var h SwitchHistory

	if err := row.Scan(&h.ID, &h.FromAccountID, &h.ToAccountID, &h.SnapshotPath, &h.Result, &h.ErrorMessage, &h.CreatedAt); err != nil {
		return SwitchHistory{}, err
	}

	return h, nil
}

// HistoryByID returns a single history row.
func (s *Store) HistoryByID(ctx context.Context, id string) (SwitchHistory, error) {
	row := s.read.QueryRowContext(ctx, selectHistoryByID, id)

	h, err := scanHistory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SwitchHistory{}, vaulterrors.New(vaulterrors.NotFound, "history entry not found", vaulterrors.ErrHistoryNotFound)
	}

	if err != nil {
		return SwitchHistory{}, fmt.Errorf("scan history: %w", err)
	}

	return h, nil
}

const selectHistoryList = `
	SELECT
		id, from_account_id, to_account_id, snapshot_path, result, error_message, created_at
	FROM
		switch_history
	ORDER BY
		created_at DESC
	LIMIT ?
`

// ListHistory returns the most recent history rows, newest first,
// bounded by limit.
func (s *Store) ListHistory(ctx context.Context, limit int) ([]SwitchHistory, error) {
	rows, err := s.read.QueryContext(ctx, selectHistoryList, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var history []SwitchHistory

	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}

		history = append(history, h)
	}

	return history, rows.Err()
}
