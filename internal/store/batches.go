package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/adurand/parcops/internal/model"
)

// UpsertBatchTx records a received batch, adding to its unit count if the
// reference already exists. Runs inside the reception transaction.
func UpsertBatchTx(ctx context.Context, tx *sql.Tx, ref, operator string, units int) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO batches (ref, operator, received_at, unit_count, status)
		 VALUES (?, ?, CURRENT_TIMESTAMP, ?, ?)
		 ON CONFLICT (ref) DO UPDATE SET unit_count = unit_count + ?, received_at = CURRENT_TIMESTAMP`,
		ref, operator, units, model.BatchStatusReceived, units,
	)
	if err != nil {
		return fmt.Errorf("upserting batch: %w", err)
	}
	return nil
}

// GetBatch returns a batch by reference.
func GetBatch(ctx context.Context, db *sql.DB, ref string) (*model.Batch, error) {
	b := &model.Batch{}
	err := db.QueryRowContext(ctx,
		`SELECT ref, operator, received_at, unit_count, status, created_at
		 FROM batches WHERE ref = ?`, ref,
	).Scan(&b.Ref, &b.Operator, &b.ReceivedAt, &b.UnitCount, &b.Status, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting batch: %w", err)
	}
	return b, nil
}

// ListBatches returns all batches, newest first.
func ListBatches(ctx context.Context, db *sql.DB) ([]model.Batch, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT ref, operator, received_at, unit_count, status, created_at
		 FROM batches ORDER BY created_at DESC, ref`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}
	defer rows.Close()

	var batches []model.Batch
	for rows.Next() {
		var b model.Batch
		if err := rows.Scan(&b.Ref, &b.Operator, &b.ReceivedAt, &b.UnitCount, &b.Status, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning batch: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// CountRows returns the number of rows in one of the fixed reference tables.
func CountRows(ctx context.Context, db *sql.DB, table string) (int, error) {
	switch table {
	case "sites", "batches", "users", "concentrators":
	default:
		return 0, fmt.Errorf("%w: cannot count table %q", model.ErrInvalidArgument, table)
	}

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	return n, nil
}
