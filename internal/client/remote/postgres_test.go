package remote

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/lotkeeper/internal/common"
)

func newStoreWithMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresStore(db), mock, db
}

func TestPing(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT 1$`).WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	require.NoError(t, s.Ping(context.Background()))

	mock.ExpectQuery(`^SELECT 1$`).WillReturnError(context.DeadlineExceeded)
	require.ErrorIs(t, s.Ping(context.Background()), common.ErrUnavailable)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNow_UsesServerClock(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	server := time.Date(2025, 6, 1, 9, 30, 0, 0, time.FixedZone("EEST", 3*3600))
	mock.ExpectQuery(`^SELECT now\(\)$`).WillReturnRows(sqlmock.NewRows([]string{"now"}).AddRow(server))
	now, err := s.Now(context.Background())
	require.NoError(t, err)
	assert.True(t, server.Equal(now))
	assert.Equal(t, time.UTC, now.Location())

	mock.ExpectQuery(`^SELECT now\(\)$`).WillReturnError(context.DeadlineExceeded)
	_, err = s.Now(context.Background())
	require.ErrorIs(t, err, common.ErrUnavailable)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_Upserts(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT INTO "lot" \("id", "sale_id", .*"updated_at"\) SELECT r\."id", .*now\(\) FROM jsonb_populate_record\(NULL::"lot", \$1::jsonb\) AS r ON CONFLICT \(id\) DO UPDATE SET .*"lot_number" = EXCLUDED\."lot_number"`
	mock.ExpectExec(q).
		WithArgs(`{"id":"l1","sale_id":"s1","lot_number":4}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Insert(context.Background(), "lot", []byte(`{"id":"l1","sale_id":"s1","lot_number":4}`))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_UnknownTable(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	err := s.Insert(context.Background(), "users; DROP TABLE lot", []byte(`{"id":"x"}`))
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_MissingRowIsNotFound(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE "sale" SET .*"updated_at" = now\(\) FROM jsonb_populate_record\(NULL::"sale", \$1::jsonb\) AS r WHERE "sale"\.id = r\.id$`
	mock.ExpectExec(q).WithArgs(`{"id":"s2"}`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q).WithArgs(`{"id":"s1"}`).WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Update(context.Background(), "sale", []byte(`{"id":"s2"}`))
	require.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, s.Update(context.Background(), "sale", []byte(`{"id":"s1"}`)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^DELETE FROM "photo" WHERE id = \$1$`).WithArgs("p1").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, s.Delete(context.Background(), "photo", "p1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetch_DeltaWithFilter(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	q := `^SELECT to_jsonb\(t\) FROM "lot" AS t WHERE t\.updated_at > \$1 AND t\."sale_id" IN \(\$2, \$3\) ORDER BY t\.updated_at, t\.id$`
	mock.ExpectQuery(q).
		WithArgs(since, "s1", "s2").
		WillReturnRows(sqlmock.NewRows([]string{"to_jsonb"}).
			AddRow([]byte(`{"id":"l1"}`)).
			AddRow([]byte(`{"id":"l2"}`)))

	rows, err := s.Fetch(context.Background(), Query{
		Table:   "lot",
		Since:   since,
		Filters: []Filter{{Column: "sale_id", Values: []any{"s1", "s2"}}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.JSONEq(t, `{"id":"l2"}`, string(rows[1]))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetch_FullAndEmptyFilter(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT to_jsonb\(t\) FROM "company" AS t ORDER BY t\.updated_at, t\.id$`).
		WillReturnRows(sqlmock.NewRows([]string{"to_jsonb"}).AddRow([]byte(`{"id":"c1"}`)))

	rows, err := s.Fetch(context.Background(), Query{Table: "company"})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rows, err = s.Fetch(context.Background(), Query{Table: "lot", Filters: []Filter{{Column: "sale_id"}}})
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = s.Fetch(context.Background(), Query{Table: "lot", Filters: []Filter{{Column: "secret", Values: []any{1}}}})
	require.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMaxLotNumber(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	q := `^SELECT MAX\(lot_number\) FROM lot WHERE sale_id = \$1$`
	mock.ExpectQuery(q).WithArgs("s1").WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(int64(5)))
	mock.ExpectQuery(q).WithArgs("s2").WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	n, ok, err := s.MaxLotNumber(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 5, n)

	_, ok, err = s.MaxLotNumber(context.Background(), "s2")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTemporaryLots_Decoded(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT to_jsonb\(t\) FROM lot AS t WHERE t\.sale_id = \$1 AND t\.lot_number < 0 ORDER BY t\.created_at, t\.id$`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"to_jsonb"}).
			AddRow([]byte(`{"id":"a","sale_id":"s1","lot_number":-1000000,"created_at":"2024-05-01T10:00:00+00:00"}`)).
			AddRow([]byte(`{"id":"b","sale_id":"s1","lot_number":-1000001,"created_at":"2024-05-01T10:01:00+00:00"}`)))

	lots, err := s.TemporaryLots(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.Equal(t, "a", lots[0].ID)
	assert.EqualValues(t, -1000001, lots[1].LotNumber)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLotNumberExists(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT EXISTS \(SELECT 1 FROM lot WHERE sale_id = \$1 AND lot_number = \$2 AND id <> \$3\)$`).
		WithArgs("s1", int64(3), "l9").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := s.LotNumberExists(context.Background(), "s1", 3, "l9")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetLotNumber(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	q := `^UPDATE lot SET lot_number = \$1, updated_at = now\(\) WHERE id = \$2$`
	mock.ExpectExec(q).WithArgs(int64(1), "l1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(int64(2), "gone").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q).WithArgs(int64(3), "l3").WillReturnError(errors.New("syntax"))

	require.NoError(t, s.SetLotNumber(context.Background(), "l1", 1))
	require.ErrorIs(t, s.SetLotNumber(context.Background(), "gone", 2), common.ErrNotFound)

	err := s.SetLotNumber(context.Background(), "l3", 3)
	require.Error(t, err)
	require.NotErrorIs(t, err, common.ErrUnavailable)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSalesWithTemporaryLots(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^\s*SELECT DISTINCT l\.sale_id FROM lot AS l.*WHERE s\.company_id = \$1 AND l\.lot_number < 0`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"sale_id"}).AddRow("s1").AddRow("s3"))

	ids, err := s.SalesWithTemporaryLots(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s3"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}
