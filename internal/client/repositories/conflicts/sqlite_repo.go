package conflicts

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

func (r *SQLiteRepository) Add(ctx context.Context, c *models.ConflictRecord) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conflicts (id, table_name, record_id, local_data, cloud_data, timestamp, resolved)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Table, c.RecordID, string(c.LocalData), string(c.CloudData), dbx.FormatTime(c.Timestamp), c.Resolved)
	if err != nil {
		return fmt.Errorf("%w: add conflict %s %s: %w", common.ErrLocalWrite, c.Table, c.RecordID, err)
	}
	return nil
}

func (r *SQLiteRepository) ListUnresolved(ctx context.Context) ([]models.ConflictRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, table_name, record_id, local_data, cloud_data, timestamp, resolved
		FROM conflicts WHERE resolved = 0 ORDER BY timestamp`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	defer rows.Close()

	var result []models.ConflictRecord
	for rows.Next() {
		var (
			c                models.ConflictRecord
			local, cloud, ts string
		)
		if err := rows.Scan(&c.ID, &c.Table, &c.RecordID, &local, &cloud, &ts, &c.Resolved); err != nil {
			return nil, fmt.Errorf("failed to scan conflict: %w", err)
		}
		c.LocalData = json.RawMessage(local)
		c.CloudData = json.RawMessage(cloud)
		if c.Timestamp, err = dbx.ParseTime(ts); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) Resolve(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE conflicts SET resolved = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: resolve conflict %s: %w", common.ErrLocalWrite, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("conflict %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM conflicts`); err != nil {
		return fmt.Errorf("%w: clear conflicts: %w", common.ErrLocalWrite, err)
	}
	return nil
}
