package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/lotkeeper/internal/client/models"
	"github.com/dmitrijs2005/lotkeeper/internal/common"
)

func TestCatalogSave_CreateThenUpdate(t *testing.T) {
	h := newHarness(t)
	svc := newServices(h, "c1").catalog
	ctx := context.Background()

	sale := models.Sale{ID: "s1", CompanyID: "c1", Name: "Spring", Status: models.SaleUpcoming}
	require.NoError(t, svc.Save(ctx, models.Sales, sale))
	sale.Name = "Spring Fair"
	require.NoError(t, svc.Save(ctx, models.Sales, sale))

	pending, err := h.deps.Repos.Outbox(h.deps.DB).GetPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, models.OpCreate, pending[0].Type)
	assert.Equal(t, models.OpUpdate, pending[1].Type)
	assert.Equal(t, "sale", pending[1].Table)

	var sent models.Sale
	require.NoError(t, json.Unmarshal(pending[1].Data, &sent))
	assert.Equal(t, "Spring Fair", sent.Name)
	assert.False(t, sent.UpdatedAt.IsZero())
	assert.False(t, sent.CreatedAt.IsZero())

	sales, err := svc.Sales(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "Spring Fair", sales[0].Name)

	n, err := svc.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCatalogSave_Rejects(t *testing.T) {
	h := newHarness(t)
	svc := newServices(h, "").catalog
	ctx := context.Background()

	err := svc.Save(ctx, models.Sales, models.Sale{Name: "no id"})
	require.ErrorIs(t, err, common.ErrInvalidRecord)

	err = svc.Save(ctx, models.Photos, models.Photo{ID: "p1"})
	require.ErrorIs(t, err, common.ErrInvalidRecord)

	err = svc.Delete(ctx, models.Photos, "p1")
	require.ErrorIs(t, err, common.ErrInvalidRecord)
}

func TestCatalogDelete(t *testing.T) {
	h := newHarness(t)
	svc := newServices(h, "c1").catalog
	ctx := context.Background()

	err := svc.Delete(ctx, models.Contacts, "missing")
	require.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, svc.Save(ctx, models.Contacts, models.Contact{ID: "k1", CompanyID: "c1", Name: "Ann"}))
	require.NoError(t, svc.Delete(ctx, models.Contacts, "k1"))

	contacts, err := svc.Contacts(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, contacts)

	pending, err := h.deps.Repos.Outbox(h.deps.DB).GetPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, models.OpDelete, pending[1].Type)
	assert.Equal(t, "k1", pending[1].RecordID)
}

func TestCatalogCreateLot_Numbering(t *testing.T) {
	h := newHarness(t)
	svc := newServices(h, "c1").catalog
	ctx := context.Background()

	require.NoError(t, h.remote.Seed("lot", models.Lot{ID: "l0", SaleID: "s1", LotNumber: 9}))

	online := &models.Lot{SaleID: "s1", Title: "Clock"}
	require.NoError(t, svc.CreateLot(ctx, online))
	assert.NotEmpty(t, online.ID)
	assert.Equal(t, int64(10), online.LotNumber)

	h.goOffline()
	first := &models.Lot{SaleID: "s1", Title: "Chair"}
	second := &models.Lot{SaleID: "s1", Title: "Table"}
	require.NoError(t, svc.CreateLot(ctx, first))
	require.NoError(t, svc.CreateLot(ctx, second))
	assert.Equal(t, models.TemporaryLotNumberSeed, first.LotNumber)
	assert.Equal(t, models.TemporaryLotNumberSeed-1, second.LotNumber)

	explicit := &models.Lot{SaleID: "s1", LotNumber: 3, Title: "Lamp"}
	require.NoError(t, svc.CreateLot(ctx, explicit))
	assert.Equal(t, int64(3), explicit.LotNumber)

	lots, err := svc.Lots(ctx, "s1")
	require.NoError(t, err)
	var titles []string
	for _, l := range lots {
		titles = append(titles, l.Title)
	}
	assert.Equal(t, []string{"Lamp", "Clock", "Chair", "Table"}, titles)

	err = svc.CreateLot(ctx, &models.Lot{Title: "orphan"})
	require.ErrorIs(t, err, common.ErrInvalidRecord)
}

func TestCatalogResolveConflict(t *testing.T) {
	h := newHarness(t)
	svc := newServices(h, "c1").catalog
	ctx := context.Background()

	err := svc.ResolveConflict(ctx, "nope", true)
	require.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, svc.Save(ctx, models.Sales, models.Sale{ID: "s1", CompanyID: "c1", Name: "mine"}))
	c := &models.ConflictRecord{
		Table:     "sale",
		RecordID:  "s1",
		LocalData: json.RawMessage(`{"id":"s1","company_id":"c1","name":"mine"}`),
		CloudData: json.RawMessage(`{"id":"s1","company_id":"c1","name":"theirs"}`),
	}
	require.NoError(t, h.deps.Repos.Conflicts(h.deps.DB).Add(ctx, c))

	require.NoError(t, svc.ResolveConflict(ctx, c.ID, true))

	sales, err := svc.Sales(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "mine", sales[0].Name)
	n, err := svc.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	err = svc.ResolveConflict(ctx, c.ID, true)
	require.ErrorIs(t, err, common.ErrNotFound)
}
