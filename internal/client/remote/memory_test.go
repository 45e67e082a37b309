package remote

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/lotkeeper/internal/client/models"
	"github.com/dmitrijs2005/lotkeeper/internal/common"
)

func TestMemoryStore_InsertIsUpsert(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.Insert(ctx, "sale", json.RawMessage(`{"id":"s1","company_id":"c1","name":"A"}`)))
	require.NoError(t, m.Insert(ctx, "sale", json.RawMessage(`{"id":"s1","company_id":"c1","name":"B","bogus":1}`)))

	assert.Equal(t, 1, m.Len("sale"))
	var s map[string]any
	require.NoError(t, json.Unmarshal(m.Row("sale", "s1"), &s))
	assert.Equal(t, "B", s["name"])
	assert.NotContains(t, s, "bogus")
	assert.NotEmpty(t, s["updated_at"])
}

func TestMemoryStore_UpdateMissing(t *testing.T) {
	m := NewMemoryStore()
	err := m.Update(context.Background(), "sale", json.RawMessage(`{"id":"nope"}`))
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestMemoryStore_FetchDelta(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	m.SetClock(func() time.Time { return t0 })
	require.NoError(t, m.Insert(ctx, "lot", json.RawMessage(`{"id":"old","sale_id":"s1","lot_number":1}`)))
	m.SetClock(func() time.Time { return t0.Add(time.Hour) })
	require.NoError(t, m.Insert(ctx, "lot", json.RawMessage(`{"id":"new","sale_id":"s1","lot_number":2}`)))
	require.NoError(t, m.Insert(ctx, "lot", json.RawMessage(`{"id":"other","sale_id":"s2","lot_number":2}`)))

	rows, err := m.Fetch(ctx, Query{
		Table:   "lot",
		Since:   t0,
		Filters: []Filter{{Column: "sale_id", Values: []any{"s1"}}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Contains(t, string(rows[0]), `"new"`)

	rows, err = m.Fetch(ctx, Query{Table: "lot", Filters: []Filter{{Column: "lot_number", Values: []any{int64(2)}}}})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestMemoryStore_LotNumbers(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.Seed("sale", models.Sale{ID: "s1", CompanyID: "c1"}, models.Sale{ID: "s2", CompanyID: "c2"}))
	require.NoError(t, m.Seed("lot",
		models.Lot{ID: "a", SaleID: "s1", LotNumber: 1, CreatedAt: base},
		models.Lot{ID: "b", SaleID: "s1", LotNumber: 5, CreatedAt: base},
		models.Lot{ID: "t2", SaleID: "s1", LotNumber: -1_000_001, CreatedAt: base.Add(2 * time.Minute)},
		models.Lot{ID: "t1", SaleID: "s1", LotNumber: -1_000_000, CreatedAt: base.Add(time.Minute)},
		models.Lot{ID: "x", SaleID: "s2", LotNumber: -1, CreatedAt: base},
	))

	n, ok, err := m.MaxLotNumber(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 5, n)

	_, ok, err = m.MaxLotNumber(ctx, "empty")
	require.NoError(t, err)
	assert.False(t, ok)

	tmp, err := m.TemporaryLots(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, tmp, 2)
	assert.Equal(t, "t1", tmp[0].ID)
	assert.Equal(t, "t2", tmp[1].ID)

	exists, err := m.LotNumberExists(ctx, "s1", 5, "")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = m.LotNumberExists(ctx, "s1", 5, "b")
	require.NoError(t, err)
	assert.False(t, exists)

	sales, err := m.SalesWithTemporaryLots(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, sales)

	require.NoError(t, m.SetLotNumber(ctx, "t1", 6))
	require.ErrorIs(t, m.SetLotNumber(ctx, "nope", 7), common.ErrNotFound)
	tmp, err = m.TemporaryLots(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, tmp, 1)
}

func TestMemory_Offline(t *testing.T) {
	m := NewMemoryStore()
	m.SetOffline(true)
	require.ErrorIs(t, m.Ping(context.Background()), common.ErrUnavailable)
	_, err := m.Now(context.Background())
	require.ErrorIs(t, err, common.ErrUnavailable)

	o := NewMemoryObjects()
	o.SetOffline(true)
	require.ErrorIs(t, o.Put(context.Background(), "k", nil, ""), common.ErrUnavailable)
}

func TestMemoryObjects(t *testing.T) {
	o := NewMemoryObjects()
	ctx := context.Background()

	require.NoError(t, o.Put(ctx, "l1/a.jpg", []byte{1, 2}, "image/jpeg"))
	assert.True(t, o.Has("l1/a.jpg"))

	got, err := o.Get(ctx, "l1/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, got)

	require.NoError(t, o.Delete(ctx, "l1/a.jpg"))
	_, err = o.Get(ctx, "l1/a.jpg")
	require.ErrorIs(t, err, common.ErrNotFound)
}
