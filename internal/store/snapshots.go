package store

import (
	"context"
	"database/sql"
	"fmt"
)

const insertSnapshot = `
	INSERT INTO
		quota_snapshots (id, account_id, created_at, mode, remaining_value, remaining_unit, quota_state, reset_at, source, confidence, reason)
	VALUES
		(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// InsertSnapshot appends a quota snapshot row. Each probe result is its
// own transaction, independent of any other snapshot write.
func (s *Store) InsertSnapshot(ctx context.Context, q QuotaSnapshot) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, insertSnapshot,
			q.ID, q.AccountID, q.CreatedAt, q.Mode, q.RemainingValue, q.RemainingUnit,
			q.QuotaState, q.ResetAt, q.Source, q.Confidence, q.Reason)
		if err != nil {
			return fmt.Errorf("insert quota snapshot: %w", err)
		}

		return nil
	})
}

func scanSnapshot(row scannable) (QuotaSnapshot, error) {
	var q QuotaSnapshot

	if err := row.Scan(&q.ID, &q.AccountID, &q.CreatedAt, &q.Mode, &q.RemainingValue, &q.RemainingUnit,
		&q.QuotaState, &q.ResetAt, &q.Source, &q.Confidence, &q.Reason); err != nil {
		return QuotaSnapshot{}, err
	}

	return q, nil
}

const selectLatestSnapshot = `
	SELECT
		id, account_id, created_at, mode, remaining_value, remaining_unit, quota_state, reset_at, source, confidence, reason
	FROM
		quota_snapshots
	WHERE
		account_id = ?
	ORDER BY
		created_at DESC
	LIMIT 1
`

// LatestSnapshot returns the most recent snapshot for an account, or
// sql.ErrNoRows if none exists yet — callers (the quota
// dashboard) treat that as "no snapshot yet".
func (s *Store) LatestSnapshot(ctx context.Context, accountID string) (QuotaSnapshot, error) {
	row := s.read.QueryRowContext(ctx, selectLatestSnapshot, accountID)

	q, err := scanSnapshot(row)
	if err != nil {
		return QuotaSnapshot{}, err
	}

	return q, nil
}

const selectSnapshotList = `
	SELECT
		id, account_id, created_at, mode, remaining_value, remaining_unit, quota_state, reset_at, source, confidence, reason
	FROM
		quota_snapshots
	WHERE
		account_id = ?
	ORDER BY
		created_at DESC
	LIMIT ?
`

// ListSnapshots returns the most recent snapshots for an account,
// newest first, bounded by limit.
func (s *Store) ListSnapshots(ctx context.Context, accountID string, limit int) ([]QuotaSnapshot, error) {
	rows, err := s.read.QueryContext(ctx, selectSnapshotList, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []QuotaSnapshot

	for rows.Next() {
		q, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}

		snapshots = append(snapshots, q)
	}

	return snapshots, rows.Err()
}
