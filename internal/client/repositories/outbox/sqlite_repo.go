package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/lotkeeper/internal/client/models"
	"github.com/dmitrijs2005/lotkeeper/internal/common"
	"github.com/dmitrijs2005/lotkeeper/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Enqueue stores e. Missing ID, Timestamp and RecordID are filled in.
func (r *SQLiteRepository) Enqueue(ctx context.Context, e *models.OutboxEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.RecordID == "" {
		var head struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(e.Data, &head); err != nil || head.ID == "" {
			return fmt.Errorf("%w: outbox entry for %s without record id", common.ErrInvalidRecord, e.Table)
		}
		e.RecordID = head.ID
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pending_sync (id, type, table_name, record_id, data, timestamp, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, string(e.Type), e.Table, e.RecordID, string(e.Data), dbx.FormatTime(e.Timestamp), e.Synced)
	if err != nil {
		return fmt.Errorf("%w: enqueue %s %s: %w", common.ErrLocalWrite, e.Type, e.Table, err)
	}
	return nil
}

func (r *SQLiteRepository) GetPending(ctx context.Context) ([]models.OutboxEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, table_name, record_id, data, timestamp, synced
		FROM pending_sync WHERE synced = 0 ORDER BY timestamp, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to read outbox: %w", err)
	}
	defer rows.Close()

	var result []models.OutboxEntry
	for rows.Next() {
		var (
			e        models.OutboxEntry
			op, data string
			ts       string
		)
		if err := rows.Scan(&e.ID, &op, &e.Table, &e.RecordID, &data, &ts, &e.Synced); err != nil {
			return nil, fmt.Errorf("failed to scan outbox entry: %w", err)
		}
		e.Type = models.Operation(op)
		e.Data = json.RawMessage(data)
		if e.Timestamp, err = dbx.ParseTime(ts); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE pending_sync SET synced = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("%w: mark outbox %s: %w", common.ErrLocalWrite, id, err)
	}
	return nil
}

func (r *SQLiteRepository) PurgeSynced(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pending_sync WHERE synced = 1`)
	if err != nil {
		return 0, fmt.Errorf("%w: purge outbox: %w", common.ErrLocalWrite, err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) HasPending(ctx context.Context, table, recordID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM pending_sync WHERE synced = 0 AND table_name = ? AND record_id = ?`,
		table, recordID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check outbox: %w", err)
	}
	return n > 0, nil
}

// DiscardPending drops the unsynced entries of one record, used when the
// remote version of a conflicting record is accepted.
func (r *SQLiteRepository) DiscardPending(ctx context.Context, table, recordID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM pending_sync WHERE synced = 0 AND table_name = ? AND record_id = ?`,
		table, recordID)
	if err != nil {
		return 0, fmt.Errorf("%w: discard outbox entries: %w", common.ErrLocalWrite, err)
	}
	return res.RowsAffected()
}

// Count returns the number of unsynced entries.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_sync WHERE synced = 0`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count outbox: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pending_sync`); err != nil {
		return fmt.Errorf("%w: clear outbox: %w", common.ErrLocalWrite, err)
	}
	return nil
}
