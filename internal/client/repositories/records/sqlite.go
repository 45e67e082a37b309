package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

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

func checkPartition(p models.Partition) error {
	for _, known := range models.RecordPartitions {
		if known.Table == p.Table {
			return nil
		}
	}
	return fmt.Errorf("unknown partition %q", p.Table)
}

type envelope struct {
	id        string
	parentID  string
	updatedAt string
}

func inspect(p models.Partition, data json.RawMessage) (envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return envelope{}, fmt.Errorf("%w: %w", common.ErrInvalidRecord, err)
	}

	var e envelope
	if err := stringField(fields, "id", &e.id); err != nil || e.id == "" {
		return envelope{}, fmt.Errorf("%w: missing id", common.ErrInvalidRecord)
	}
	if p.Parent != "" {
		_ = stringField(fields, p.Parent, &e.parentID)
	}

	var updated string
	if err := stringField(fields, "updated_at", &updated); err == nil && updated != "" {
		if ts, err := dbx.ParseTime(updated); err == nil {
			e.updatedAt = dbx.FormatTime(ts)
		}
	}
	return e, nil
}

func stringField(fields map[string]json.RawMessage, key string, dst *string) error {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func (r *SQLiteRepository) Upsert(ctx context.Context, p models.Partition, data json.RawMessage) error {
	if err := checkPartition(p); err != nil {
		return err
	}
	e, err := inspect(p, data)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, parent_id, updated_at, data) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET parent_id = excluded.parent_id,
			updated_at = excluded.updated_at,
			data = excluded.data`, p.Table)

	if _, err := r.db.ExecContext(ctx, query, e.id, e.parentID, e.updatedAt, string(data)); err != nil {
		return fmt.Errorf("%w: upsert %s %s: %w", common.ErrLocalWrite, p.Table, e.id, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, p models.Partition, id string) (json.RawMessage, error) {
	if err := checkPartition(p); err != nil {
		return nil, err
	}

	var data string
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT data FROM %s WHERE id = ?`, p.Table), id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", p.Table, id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", p.Table, id, err)
	}
	return json.RawMessage(data), nil
}

func (r *SQLiteRepository) QueryByIndex(ctx context.Context, p models.Partition, index string, value any) ([]json.RawMessage, error) {
	if err := checkPartition(p); err != nil {
		return nil, err
	}
	if !p.HasIndex(index) {
		return nil, fmt.Errorf("%w: %s on %s", common.ErrUnknownIndex, index, p.Table)
	}

	var query string
	if index == models.IndexParent {
		query = fmt.Sprintf(`SELECT data FROM %s WHERE parent_id = ? ORDER BY id`, p.Table)
	} else {
		query = fmt.Sprintf(`SELECT data FROM %s WHERE json_extract(data, '$.%s') = ? ORDER BY id`, p.Table, index)
	}
	return r.query(ctx, query, value)
}

func (r *SQLiteRepository) List(ctx context.Context, p models.Partition) ([]json.RawMessage, error) {
	if err := checkPartition(p); err != nil {
		return nil, err
	}
	return r.query(ctx, fmt.Sprintf(`SELECT data FROM %s ORDER BY id`, p.Table))
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]json.RawMessage, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var result []json.RawMessage
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		result = append(result, json.RawMessage(data))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, p models.Partition, id string) error {
	if err := checkPartition(p); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, p.Table), id); err != nil {
		return fmt.Errorf("%w: delete %s %s: %w", common.ErrLocalWrite, p.Table, id, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context, p models.Partition) error {
	if err := checkPartition(p); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, p.Table)); err != nil {
		return fmt.Errorf("%w: clear %s: %w", common.ErrLocalWrite, p.Table, err)
	}
	return nil
}
