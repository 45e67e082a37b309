package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/lotkeeper/internal/client/models"
	"github.com/dmitrijs2005/lotkeeper/internal/client/store"
	"github.com/dmitrijs2005/lotkeeper/internal/common"
	"github.com/dmitrijs2005/lotkeeper/internal/logging"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	s, err := store.Open(context.Background(), store.MemoryPath, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s.DB
}

func entry(op models.Operation, table, id string, at time.Time) *models.OutboxEntry {
	return &models.OutboxEntry{
		Type:      op,
		Table:     table,
		Data:      json.RawMessage(`{"id":"` + id + `"}`),
		Timestamp: at,
	}
}

func TestEnqueue_FillsDefaults(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	e := &models.OutboxEntry{Type: models.OpCreate, Table: "lot", Data: json.RawMessage(`{"id":"l1","title":"x"}`)}
	require.NoError(t, r.Enqueue(ctx, e))

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "l1", e.RecordID)
	assert.False(t, e.Timestamp.IsZero())
}

func TestEnqueue_RejectsDataWithoutID(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	e := &models.OutboxEntry{Type: models.OpCreate, Table: "lot", Data: json.RawMessage(`{}`)}
	require.ErrorIs(t, r.Enqueue(context.Background(), e), common.ErrInvalidRecord)
}

func TestGetPending_OrderedByTimestamp(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, r.Enqueue(ctx, entry(models.OpUpdate, "sale", "s2", base.Add(2*time.Second))))
	require.NoError(t, r.Enqueue(ctx, entry(models.OpCreate, "sale", "s1", base.Add(time.Second))))
	require.NoError(t, r.Enqueue(ctx, entry(models.OpDelete, "sale", "s3", base.Add(3*time.Second))))

	pending, err := r.GetPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "s1", pending[0].RecordID)
	assert.Equal(t, models.OpCreate, pending[0].Type)
	assert.Equal(t, "s2", pending[1].RecordID)
	assert.Equal(t, "s3", pending[2].RecordID)
	assert.JSONEq(t, `{"id":"s1"}`, string(pending[0].Data))
	assert.True(t, base.Add(time.Second).Equal(pending[0].Timestamp))
}

func TestMarkSyncedAndPurge(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	a := entry(models.OpCreate, "lot", "l1", time.Now())
	b := entry(models.OpCreate, "lot", "l2", time.Now())
	require.NoError(t, r.Enqueue(ctx, a))
	require.NoError(t, r.Enqueue(ctx, b))
	require.NoError(t, r.MarkSynced(ctx, a.ID))

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	purged, err := r.PurgeSynced(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)

	pending, err := r.GetPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)
}

func TestHasPending(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	e := entry(models.OpUpdate, "lot", "l1", time.Now())
	require.NoError(t, r.Enqueue(ctx, e))

	ok, err := r.HasPending(ctx, "lot", "l1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.HasPending(ctx, "sale", "l1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.MarkSynced(ctx, e.ID))
	ok, err = r.HasPending(ctx, "lot", "l1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDiscardPending(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, r.Enqueue(ctx, entry(models.OpCreate, "lot", "l1", now)))
	require.NoError(t, r.Enqueue(ctx, entry(models.OpUpdate, "lot", "l1", now.Add(time.Second))))
	require.NoError(t, r.Enqueue(ctx, entry(models.OpUpdate, "lot", "l2", now)))

	n, err := r.DiscardPending(ctx, "lot", "l1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	pending, err := r.GetPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "l2", pending[0].RecordID)
}

func TestClear(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Enqueue(ctx, entry(models.OpCreate, "lot", "l1", time.Now())))
	require.NoError(t, r.Clear(ctx))

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
