package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/lotkeeper/internal/client/models"
	"github.com/dmitrijs2005/lotkeeper/internal/client/repositories/records"
	"github.com/dmitrijs2005/lotkeeper/internal/common"
	"github.com/dmitrijs2005/lotkeeper/internal/dbx"
	"github.com/dmitrijs2005/lotkeeper/internal/logging"
)

// CatalogService is what the UI talks to: it reads from the local store and
// turns every change into a local write plus an outbox entry, so it works the
// same online and offline. Photos go through PhotoService.
type CatalogService interface {
	// Save creates or updates a record of p. The record is any value that
	// marshals to a JSON object with an "id".
	Save(ctx context.Context, p models.Partition, record any) error
	// Delete removes a local record and queues the remote delete.
	Delete(ctx context.Context, p models.Partition, id string) error
	// CreateLot fills in the id and, when zero, the lot number.
	CreateLot(ctx context.Context, lot *models.Lot) error

	Company(ctx context.Context, id string) (*models.Company, error)
	Sales(ctx context.Context, companyID string) ([]models.Sale, error)
	// Lots returns permanent numbers ascending, then temporary ones in
	// the order they were handed out.
	Lots(ctx context.Context, saleID string) ([]models.Lot, error)
	Lot(ctx context.Context, id string) (*models.Lot, error)
	Photos(ctx context.Context, lotID string) ([]models.Photo, error)
	Contacts(ctx context.Context, companyID string) ([]models.Contact, error)
	Documents(ctx context.Context, companyID string) ([]models.Document, error)
	Categories(ctx context.Context, companyID string) ([]models.Category, error)

	PendingCount(ctx context.Context) (int, error)
	Conflicts(ctx context.Context) ([]models.ConflictRecord, error)
	// ResolveConflict closes a conflict. keepLocal leaves the local copy to
	// be pushed; otherwise the remote copy replaces it and the pending
	// local changes of the record are dropped.
	ResolveConflict(ctx context.Context, id string, keepLocal bool) error
}

type catalogService struct {
	deps   Deps
	logger logging.Logger
	lots   LotNumberService
}

func NewCatalogService(deps Deps, lots LotNumberService) CatalogService {
	return &catalogService{deps: deps, logger: deps.Logger.With("component", "catalog"), lots: lots}
}

func (s *catalogService) Save(ctx context.Context, p models.Partition, record any) error {
	if p.Table == models.Photos.Table {
		return fmt.Errorf("%w: photos are saved through the photo service", common.ErrInvalidRecord)
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidRecord, err)
	}
	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidRecord, err)
	}
	id, _ := fields["id"].(string)
	if id == "" {
		return fmt.Errorf("%w: missing id", common.ErrInvalidRecord)
	}

	now := s.deps.now()
	op := models.OpUpdate
	err = dbx.WithTx(ctx, s.deps.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		recs := s.deps.Repos.Records(tx)

		existing, err := recs.Get(ctx, p, id)
		switch {
		case errors.Is(err, common.ErrNotFound):
			op = models.OpCreate
		case err != nil:
			return err
		}
		if ts, _ := fields["created_at"].(string); ts == "" || ts == zeroTime {
			fields["created_at"] = createdAt(existing, now)
		}
		fields["updated_at"] = now

		data, err := json.Marshal(fields)
		if err != nil {
			return err
		}
		if err := recs.Upsert(ctx, p, data); err != nil {
			return err
		}
		return s.deps.Repos.Outbox(tx).Enqueue(ctx, &models.OutboxEntry{
			Type:      op,
			Table:     p.Remote,
			RecordID:  id,
			Data:      data,
			Timestamp: now,
		})
	})
	if err != nil {
		return fmt.Errorf("save %s %s: %w", p.Remote, id, err)
	}

	s.logger.Debug(ctx, "record queued", "table", p.Remote, "id", id, "op", op)
	return nil
}

const zeroTime = "0001-01-01T00:00:00Z"

// createdAt keeps the creation time of an existing record.
func createdAt(existing json.RawMessage, now time.Time) any {
	var ref struct {
		CreatedAt string `json:"created_at"`
	}
	if len(existing) > 0 && json.Unmarshal(existing, &ref) == nil && ref.CreatedAt != "" && ref.CreatedAt != zeroTime {
		return ref.CreatedAt
	}
	return now
}

func (s *catalogService) Delete(ctx context.Context, p models.Partition, id string) error {
	if p.Table == models.Photos.Table {
		return fmt.Errorf("%w: photos are deleted through the photo service", common.ErrInvalidRecord)
	}

	err := dbx.WithTx(ctx, s.deps.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		recs := s.deps.Repos.Records(tx)
		if _, err := recs.Get(ctx, p, id); err != nil {
			return err
		}
		if err := recs.Delete(ctx, p, id); err != nil {
			return err
		}

		data, err := json.Marshal(map[string]string{"id": id})
		if err != nil {
			return err
		}
		return s.deps.Repos.Outbox(tx).Enqueue(ctx, &models.OutboxEntry{
			Type:      models.OpDelete,
			Table:     p.Remote,
			RecordID:  id,
			Data:      data,
			Timestamp: s.deps.now(),
		})
	})
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", p.Remote, id, err)
	}
	return nil
}

func (s *catalogService) CreateLot(ctx context.Context, lot *models.Lot) error {
	if lot.SaleID == "" {
		return fmt.Errorf("%w: lot needs a sale", common.ErrInvalidRecord)
	}
	if lot.ID == "" {
		lot.ID = uuid.NewString()
	}
	if lot.LotNumber == 0 {
		n, err := s.lots.NextLotNumber(ctx, lot.SaleID, s.deps.online())
		if err != nil {
			return err
		}
		lot.LotNumber = n
	}
	if lot.CreatedAt.IsZero() {
		lot.CreatedAt = s.deps.now()
	}
	lot.UpdatedAt = s.deps.now()

	return s.Save(ctx, models.Lots, lot)
}

func (s *catalogService) recs() records.Repository {
	return s.deps.Repos.Records(s.deps.DB)
}

func (s *catalogService) Company(ctx context.Context, id string) (*models.Company, error) {
	return records.GetAs[models.Company](ctx, s.recs(), models.Companies, id)
}

// byCompany lists all records of p when companyID is empty.
func byCompany[T any](ctx context.Context, r records.Repository, p models.Partition, companyID string) ([]T, error) {
	if companyID == "" {
		return records.ListAs[T](ctx, r, p)
	}
	return records.QueryAs[T](ctx, r, p, models.IndexParent, companyID)
}

func (s *catalogService) Sales(ctx context.Context, companyID string) ([]models.Sale, error) {
	sales, err := byCompany[models.Sale](ctx, s.recs(), models.Sales, companyID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(sales, func(i, j int) bool { return sales[i].Name < sales[j].Name })
	return sales, nil
}

func (s *catalogService) Lots(ctx context.Context, saleID string) ([]models.Lot, error) {
	lots, err := records.QueryAs[models.Lot](ctx, s.recs(), models.Lots, models.IndexParent, saleID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(lots, func(i, j int) bool {
		a, b := lots[i].LotNumber, lots[j].LotNumber
		ta, tb := models.IsTemporaryLotNumber(a), models.IsTemporaryLotNumber(b)
		switch {
		case ta != tb:
			return !ta
		case ta:
			return a > b
		default:
			return a < b
		}
	})
	return lots, nil
}

func (s *catalogService) Lot(ctx context.Context, id string) (*models.Lot, error) {
	return records.GetAs[models.Lot](ctx, s.recs(), models.Lots, id)
}

func (s *catalogService) Photos(ctx context.Context, lotID string) ([]models.Photo, error) {
	return s.deps.Repos.Photos(s.deps.DB).ListByLot(ctx, lotID)
}

func (s *catalogService) Contacts(ctx context.Context, companyID string) ([]models.Contact, error) {
	return byCompany[models.Contact](ctx, s.recs(), models.Contacts, companyID)
}

func (s *catalogService) Documents(ctx context.Context, companyID string) ([]models.Document, error) {
	return byCompany[models.Document](ctx, s.recs(), models.Documents, companyID)
}

func (s *catalogService) Categories(ctx context.Context, companyID string) ([]models.Category, error) {
	return byCompany[models.Category](ctx, s.recs(), models.Categories, companyID)
}

func (s *catalogService) PendingCount(ctx context.Context) (int, error) {
	return s.deps.Repos.Outbox(s.deps.DB).Count(ctx)
}

func (s *catalogService) Conflicts(ctx context.Context) ([]models.ConflictRecord, error) {
	return s.deps.Repos.Conflicts(s.deps.DB).ListUnresolved(ctx)
}

func (s *catalogService) ResolveConflict(ctx context.Context, id string, keepLocal bool) error {
	err := dbx.WithTx(ctx, s.deps.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		list, err := s.deps.Repos.Conflicts(tx).ListUnresolved(ctx)
		if err != nil {
			return err
		}
		var c *models.ConflictRecord
		for i := range list {
			if list[i].ID == id {
				c = &list[i]
				break
			}
		}
		if c == nil {
			return fmt.Errorf("conflict %s: %w", id, common.ErrNotFound)
		}

		if !keepLocal {
			if err := s.acceptCloud(ctx, tx, c); err != nil {
				return err
			}
		}
		return s.deps.Repos.Conflicts(tx).Resolve(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "conflict resolved", "id", id, "keep_local", keepLocal)
	return nil
}

func (s *catalogService) acceptCloud(ctx context.Context, tx dbx.DBTX, c *models.ConflictRecord) error {
	p, ok := models.PartitionByRemote(c.Table)
	if !ok {
		return fmt.Errorf("%w: table %q", common.ErrInvalidRecord, c.Table)
	}

	if p.Table == models.Photos.Table {
		var photo models.Photo
		if err := json.Unmarshal(c.CloudData, &photo); err != nil {
			return fmt.Errorf("%w: %w", common.ErrInvalidRecord, err)
		}
		photo.Synced = true
		if err := s.deps.Repos.Photos(tx).Upsert(ctx, &photo); err != nil {
			return err
		}
	} else if err := s.deps.Repos.Records(tx).Upsert(ctx, p, c.CloudData); err != nil {
		return err
	}

	_, err := s.deps.Repos.Outbox(tx).DiscardPending(ctx, c.Table, c.RecordID)
	return err
}
