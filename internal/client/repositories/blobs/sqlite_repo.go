package blobs

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/dmitrijs2005/lotkeeper/internal/common"
	"github.com/dmitrijs2005/lotkeeper/internal/dbx"
)

// ErrChecksumMismatch is returned by Get when stored bytes do not match the
// checksum recorded on Put.
var ErrChecksumMismatch = errors.New("blob checksum mismatch")

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Checksum returns the hex BLAKE2b-256 digest of data.
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (r *SQLiteRepository) Put(ctx context.Context, id string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO photo_blobs (id, data, checksum, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, checksum = excluded.checksum
	`, id, data, Checksum(data), dbx.FormatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("%w: put blob %s: %w", common.ErrLocalWrite, id, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) ([]byte, error) {
	var (
		data []byte
		sum  string
	)
	err := r.db.QueryRowContext(ctx, `SELECT data, checksum FROM photo_blobs WHERE id = ?`, id).Scan(&data, &sum)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blob %s: %w", id, err)
	}
	if Checksum(data) != sum {
		return nil, fmt.Errorf("blob %s: %w", id, ErrChecksumMismatch)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM photo_blobs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("%w: delete blob %s: %w", common.ErrLocalWrite, id, err)
	}
	return nil
}

func (r *SQLiteRepository) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM photo_blobs WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check blob %s: %w", id, err)
	}
	return true, nil
}

func (r *SQLiteRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM photo_blobs`)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan blob id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM photo_blobs`); err != nil {
		return fmt.Errorf("%w: clear blobs: %w", common.ErrLocalWrite, err)
	}
	return nil
}
