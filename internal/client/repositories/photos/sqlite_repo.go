package photos

import (
	"context"
	"database/sql"
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

const selectColumns = `SELECT id, lot_id, file_path, file_name, is_primary, synced, created_at, updated_at FROM photos`

func (r *SQLiteRepository) Upsert(ctx context.Context, p *models.Photo) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO photos (id, lot_id, file_path, file_name, is_primary, synced, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			lot_id = excluded.lot_id,
			file_path = excluded.file_path,
			file_name = excluded.file_name,
			is_primary = excluded.is_primary,
			synced = excluded.synced,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, p.ID, p.LotID, p.FilePath, p.FileName, p.IsPrimary, p.Synced,
		dbx.FormatTime(p.CreatedAt), dbx.FormatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("%w: upsert photo %s: %w", common.ErrLocalWrite, p.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPhoto(s scanner) (*models.Photo, error) {
	var (
		p                models.Photo
		created, updated string
	)
	if err := s.Scan(&p.ID, &p.LotID, &p.FilePath, &p.FileName, &p.IsPrimary, &p.Synced, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if p.CreatedAt, err = dbx.ParseTime(created); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = dbx.ParseTime(updated); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Photo, error) {
	p, err := scanPhoto(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("photo %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get photo %s: %w", id, err)
	}
	return p, nil
}

func (r *SQLiteRepository) ListByLot(ctx context.Context, lotID string) ([]models.Photo, error) {
	return r.list(ctx, selectColumns+` WHERE lot_id = ? ORDER BY created_at, id`, lotID)
}

func (r *SQLiteRepository) ListUnsynced(ctx context.Context) ([]models.Photo, error) {
	return r.list(ctx, selectColumns+` WHERE synced = 0 ORDER BY created_at, id`)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.Photo, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	var result []models.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate photos: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, synced bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE photos SET synced = ? WHERE id = ?`, synced, id)
	if err != nil {
		return fmt.Errorf("%w: mark photo %s: %w", common.ErrLocalWrite, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("photo %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, id); err != nil {
		return fmt.Errorf("%w: delete photo %s: %w", common.ErrLocalWrite, id, err)
	}
	return nil
}

func (r *SQLiteRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM photos`)
	if err != nil {
		return nil, fmt.Errorf("failed to list photo ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan photo id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM photos`); err != nil {
		return fmt.Errorf("%w: clear photos: %w", common.ErrLocalWrite, err)
	}
	return nil
}
