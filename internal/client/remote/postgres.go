package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/lotkeeper/internal/client/models"
	"github.com/dmitrijs2005/lotkeeper/internal/common"
	"github.com/dmitrijs2005/lotkeeper/internal/dbx"
)

// PostgresStore implements Store over database/sql with the pgx driver.
// Rows are written and read as JSON with jsonb_populate_record / to_jsonb,
// so one code path serves every table.
type PostgresStore struct {
	db dbx.DBTX
}

func NewPostgresStore(db dbx.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres opens a pgx-backed *sql.DB. The connection is established
// lazily, so an unreachable server is not an error here.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote store: %w", err)
	}
	return db, nil
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *PostgresStore) Now(ctx context.Context) (time.Time, error) {
	var now time.Time
	if err := s.db.QueryRowContext(ctx, `SELECT now()`).Scan(&now); err != nil {
		return time.Time{}, mapError(err)
	}
	return now.UTC(), nil
}

func insertQuery(table string, cols []string) string {
	t := ident(table)

	names := make([]string, len(cols))
	values := make([]string, len(cols))
	var sets []string
	for i, c := range cols {
		names[i] = ident(c)
		switch c {
		case "updated_at":
			values[i] = "now()"
		case "created_at":
			values[i] = "COALESCE(r.created_at, now())"
		default:
			values[i] = "r." + ident(c)
		}
		if c != "id" && c != "created_at" {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", ident(c), ident(c)))
		}
	}

	return fmt.Sprintf(`INSERT INTO %s (%s) SELECT %s FROM jsonb_populate_record(NULL::%s, $1::jsonb) AS r ON CONFLICT (id) DO UPDATE SET %s`,
		t, strings.Join(names, ", "), strings.Join(values, ", "), t, strings.Join(sets, ", "))
}

func updateQuery(table string, cols []string) string {
	t := ident(table)

	var sets []string
	for _, c := range cols {
		switch c {
		case "id", "created_at":
		case "updated_at":
			sets = append(sets, ident(c)+" = now()")
		default:
			sets = append(sets, fmt.Sprintf("%s = r.%s", ident(c), ident(c)))
		}
	}

	return fmt.Sprintf(`UPDATE %s SET %s FROM jsonb_populate_record(NULL::%s, $1::jsonb) AS r WHERE %s.id = r.id`,
		t, strings.Join(sets, ", "), t, t)
}

func (s *PostgresStore) Insert(ctx context.Context, table string, data json.RawMessage) error {
	cols, err := tableColumns(table)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, insertQuery(table, cols), string(data)); err != nil {
		return fmt.Errorf("insert %s: %w", table, mapError(err))
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, table string, data json.RawMessage) error {
	cols, err := tableColumns(table)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, updateQuery(table, cols), string(data))
	if err != nil {
		return fmt.Errorf("update %s: %w", table, mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update %s: %w", table, common.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, table, id string) error {
	if _, err := tableColumns(table); err != nil {
		return err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, ident(table))
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", table, id, mapError(err))
	}
	return nil
}

func (s *PostgresStore) Fetch(ctx context.Context, q Query) ([]json.RawMessage, error) {
	if _, err := tableColumns(q.Table); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if !q.Since.IsZero() {
		args = append(args, q.Since.UTC())
		where = append(where, fmt.Sprintf("t.updated_at > $%d", len(args)))
	}
	for _, f := range q.Filters {
		if err := checkColumn(q.Table, f.Column); err != nil {
			return nil, err
		}
		if len(f.Values) == 0 {
			return nil, nil
		}
		marks := make([]string, len(f.Values))
		for i, v := range f.Values {
			args = append(args, v)
			marks[i] = fmt.Sprintf("$%d", len(args))
		}
		where = append(where, fmt.Sprintf("t.%s IN (%s)", ident(f.Column), strings.Join(marks, ", ")))
	}

	query := fmt.Sprintf(`SELECT to_jsonb(t) FROM %s AS t`, ident(q.Table))
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY t.updated_at, t.id"

	return s.queryJSON(ctx, query, args...)
}

func (s *PostgresStore) queryJSON(ctx context.Context, query string, args ...any) ([]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", mapError(err))
	}
	defer rows.Close()

	var result []json.RawMessage
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, json.RawMessage(data))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", mapError(err))
	}
	return result, nil
}

func (s *PostgresStore) MaxLotNumber(ctx context.Context, saleID string) (int64, bool, error) {
	var n sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(lot_number) FROM lot WHERE sale_id = $1`, saleID).Scan(&n)
	if err != nil {
		return 0, false, fmt.Errorf("max lot number: %w", mapError(err))
	}
	return n.Int64, n.Valid, nil
}

func (s *PostgresStore) TemporaryLots(ctx context.Context, saleID string) ([]models.Lot, error) {
	rows, err := s.queryJSON(ctx,
		`SELECT to_jsonb(t) FROM lot AS t WHERE t.sale_id = $1 AND t.lot_number < 0 ORDER BY t.created_at, t.id`, saleID)
	if err != nil {
		return nil, err
	}

	lots := make([]models.Lot, 0, len(rows))
	for _, row := range rows {
		var l models.Lot
		if err := json.Unmarshal(row, &l); err != nil {
			return nil, fmt.Errorf("failed to decode lot: %w", err)
		}
		lots = append(lots, l)
	}
	return lots, nil
}

func (s *PostgresStore) LotNumberExists(ctx context.Context, saleID string, number int64, excludeID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM lot WHERE sale_id = $1 AND lot_number = $2 AND id <> $3)`,
		saleID, number, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lot number lookup: %w", mapError(err))
	}
	return exists, nil
}

func (s *PostgresStore) SetLotNumber(ctx context.Context, lotID string, number int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE lot SET lot_number = $1, updated_at = now() WHERE id = $2`, number, lotID)
	if err != nil {
		return fmt.Errorf("set lot number: %w", mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("lot %s: %w", lotID, common.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) SalesWithTemporaryLots(ctx context.Context, companyID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT l.sale_id FROM lot AS l
		JOIN sale AS s ON s.id = l.sale_id
		WHERE s.company_id = $1 AND l.lot_number < 0
		ORDER BY l.sale_id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("sales with temporary lots: %w", mapError(err))
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return ids, nil
}
