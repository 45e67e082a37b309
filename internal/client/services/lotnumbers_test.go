package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/lotkeeper/internal/client/models"
	"github.com/dmitrijs2005/lotkeeper/internal/client/repositories/records"
)

func remoteLot(t *testing.T, h *harness, id string) models.Lot {
	t.Helper()
	raw := h.remote.Row("lot", id)
	require.NotNil(t, raw, "lot %s missing remotely", id)
	var l models.Lot
	require.NoError(t, json.Unmarshal(raw, &l))
	return l
}

func TestNextLotNumber_OfflineNumbersDecrease(t *testing.T) {
	h := newHarness(t)
	svc := NewLotNumberService(h.deps)
	ctx := context.Background()

	var got []int64
	for range 3 {
		n, err := svc.NextLotNumber(ctx, "s1", false)
		require.NoError(t, err)
		got = append(got, n)
	}

	assert.Equal(t, []int64{-1_000_000, -1_000_001, -1_000_002}, got)
	for _, n := range got {
		assert.True(t, models.IsTemporaryLotNumber(n))
	}
}

func TestNextLotNumber_OnlineContinuesAfterRemoteMax(t *testing.T) {
	h := newHarness(t)
	svc := NewLotNumberService(h.deps)
	ctx := context.Background()

	require.NoError(t, h.remote.Seed("lot",
		models.Lot{ID: "a", SaleID: "s1", LotNumber: 1},
		models.Lot{ID: "b", SaleID: "s1", LotNumber: 2},
		models.Lot{ID: "c", SaleID: "s1", LotNumber: 5},
		models.Lot{ID: "d", SaleID: "s1", LotNumber: -3},
		models.Lot{ID: "e", SaleID: "s2", LotNumber: 40},
	))

	n, err := svc.NextLotNumber(ctx, "s1", true)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
}

func TestNextLotNumber_OnlineStartsAtOne(t *testing.T) {
	h := newHarness(t)
	svc := NewLotNumberService(h.deps)
	ctx := context.Background()

	n, err := svc.NextLotNumber(ctx, "empty", true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, h.remote.Seed("lot", models.Lot{ID: "t", SaleID: "only-temp", LotNumber: -1_000_000}))
	n, err = svc.NextLotNumber(ctx, "only-temp", true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestNextLotNumber_RemoteFailureFallsBackToTemporary(t *testing.T) {
	h := newHarness(t)
	svc := NewLotNumberService(h.deps)
	h.remote.SetOffline(true)

	n, err := svc.NextLotNumber(context.Background(), "s1", true)
	require.NoError(t, err)
	assert.Equal(t, models.TemporaryLotNumberSeed, n)
}

func TestReassignTemporaryNumbers_CreationOrder(t *testing.T) {
	h := newHarness(t)
	svc := NewLotNumberService(h.deps)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	// numbers are deliberately out of creation order
	require.NoError(t, h.remote.Seed("lot",
		models.Lot{ID: "B", SaleID: "s1", LotNumber: -1_000_002, CreatedAt: base.Add(time.Minute)},
		models.Lot{ID: "A", SaleID: "s1", LotNumber: -1_000_000, CreatedAt: base},
		models.Lot{ID: "C", SaleID: "s1", LotNumber: -1_000_001, CreatedAt: base.Add(2 * time.Minute)},
	))
	recs := h.deps.Repos.Records(h.deps.DB)
	require.NoError(t, records.Put(ctx, recs, models.Lots,
		models.Lot{ID: "A", SaleID: "s1", LotNumber: -1_000_000, Title: "local title", CreatedAt: base}))

	res := svc.ReassignTemporaryNumbers(ctx, "s1")
	require.True(t, res.Success, res.Errors)
	assert.Equal(t, 3, res.Processed)

	want := map[string]int64{"A": 1, "B": 2, "C": 3}
	for id, n := range want {
		assert.Equal(t, n, remoteLot(t, h, id).LotNumber, "remote %s", id)

		local, err := records.GetAs[models.Lot](ctx, recs, models.Lots, id)
		require.NoError(t, err)
		assert.Equal(t, n, local.LotNumber, "local %s", id)
	}

	local, err := records.GetAs[models.Lot](ctx, recs, models.Lots, "A")
	require.NoError(t, err)
	assert.Equal(t, "local title", local.Title)
}

func TestReassignTemporaryNumbers_ContinuesAfterPermanent(t *testing.T) {
	h := newHarness(t)
	svc := NewLotNumberService(h.deps)
	ctx := context.Background()

	require.NoError(t, h.remote.Seed("lot",
		models.Lot{ID: "p", SaleID: "s1", LotNumber: 7},
		models.Lot{ID: "t", SaleID: "s1", LotNumber: -1_000_000},
	))

	res := svc.ReassignTemporaryNumbers(ctx, "s1")
	require.True(t, res.Success, res.Errors)
	assert.Equal(t, int64(8), remoteLot(t, h, "t").LotNumber)
}

func TestReassignTemporaryNumbers_Unavailable(t *testing.T) {
	h := newHarness(t)
	svc := NewLotNumberService(h.deps)
	h.remote.SetOffline(true)

	res := svc.ReassignTemporaryNumbers(context.Background(), "s1")
	assert.False(t, res.Success)
	assert.Len(t, res.Errors, 1)
}

func TestIsLotNumberUnique(t *testing.T) {
	h := newHarness(t)
	svc := NewLotNumberService(h.deps)
	ctx := context.Background()

	require.NoError(t, h.remote.Seed("lot", models.Lot{ID: "l1", SaleID: "s1", LotNumber: 3}))

	ok, err := svc.IsLotNumberUnique(ctx, "s1", 3, "")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.IsLotNumberUnique(ctx, "s1", 3, "l1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.IsLotNumberUnique(ctx, "s1", 4, "")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsLotNumberUnique_OfflineUsesLocalCopy(t *testing.T) {
	h := newHarness(t)
	svc := NewLotNumberService(h.deps)
	ctx := context.Background()

	recs := h.deps.Repos.Records(h.deps.DB)
	require.NoError(t, records.Put(ctx, recs, models.Lots, models.Lot{ID: "l1", SaleID: "s1", LotNumber: 3}))
	require.NoError(t, records.Put(ctx, recs, models.Lots, models.Lot{ID: "l2", SaleID: "s2", LotNumber: 4}))
	h.remote.SetOffline(true)

	ok, err := svc.IsLotNumberUnique(ctx, "s1", 3, "")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.IsLotNumberUnique(ctx, "s1", 4, "")
	require.NoError(t, err)
	assert.True(t, ok)
}
