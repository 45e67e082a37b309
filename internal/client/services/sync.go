package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/lotkeeper/internal/client/models"
	"github.com/dmitrijs2005/lotkeeper/internal/client/remote"
	"github.com/dmitrijs2005/lotkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/lotkeeper/internal/client/repositories/records"
	"github.com/dmitrijs2005/lotkeeper/internal/common"
	"github.com/dmitrijs2005/lotkeeper/internal/dbx"
	"github.com/dmitrijs2005/lotkeeper/internal/logging"
	"github.com/dmitrijs2005/lotkeeper/internal/notify"
)

const bootstrapStages = 4

// cursorOverlap is re-read on every pull. Rows stamped by remote transactions
// that committed after the previous pull read the clock can be older than the
// cursor; refetching them is harmless since stores are upserts.
const cursorOverlap = 5 * time.Second

// CacheWiper empties every cached table while keeping pending mutations.
type CacheWiper interface {
	WipeCache(ctx context.Context) error
}

// SyncService moves data between the local store and the remote store.
// At most one of Bootstrap, PerformSync and FullResetSync runs at a time;
// a call made while another is running returns nil without doing anything.
type SyncService interface {
	// Bootstrap fetches the company's active sales, their lots and photo
	// metadata in the foreground, then schedules everything else. A
	// non-empty companyID becomes the scope of later pulls.
	Bootstrap(ctx context.Context, companyID string) error
	// PerformSync pushes pending mutations, reconciles temporary lot
	// numbers and pulls remote changes since the last sync.
	PerformSync(ctx context.Context) error
	// Reconnect runs whenever the remote store becomes reachable. A cache
	// that was never synced gets the priority bootstrap, anything else a
	// PerformSync.
	Reconnect(ctx context.Context) error
	// Push applies pending outbox entries in timestamp order.
	Push(ctx context.Context) common.BatchResult
	// Pull fetches rows changed since the last sync.
	Pull(ctx context.Context) error
	// FullResetSync drops the cache and downloads everything again. It
	// refuses to run while photos exist only on this device.
	FullResetSync(ctx context.Context) error
	// SubscribeProgress registers fn for bootstrap progress and returns
	// the function that unregisters it.
	SubscribeProgress(fn func(models.SyncProgress)) func()
	InProgress() bool
}

type syncService struct {
	deps      Deps
	logger    logging.Logger
	cache     CacheWiper
	photos    PhotoService
	lots      LotNumberService
	companyID atomic.Pointer[string]

	running  atomic.Bool
	progress *notify.Subject[models.SyncProgress]
}

// NewSyncService scopes every fetch to companyID. An empty companyID syncs
// every company the remote store returns.
func NewSyncService(deps Deps, cache CacheWiper, photos PhotoService, lots LotNumberService, companyID string) SyncService {
	logger := deps.Logger.With("component", "sync")
	s := &syncService{
		deps:     deps,
		logger:   logger,
		cache:    cache,
		photos:   photos,
		lots:     lots,
		progress: notify.NewSubject[models.SyncProgress](logger),
	}
	s.companyID.Store(&companyID)
	return s
}

func (s *syncService) company() string {
	return *s.companyID.Load()
}

func (s *syncService) InProgress() bool {
	return s.running.Load()
}

func (s *syncService) SubscribeProgress(fn func(models.SyncProgress)) func() {
	token := s.progress.Register(fn)
	return func() { s.progress.Unregister(token) }
}

func (s *syncService) exclusive(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Info(ctx, "sync already in progress", "requested", name)
		return nil
	}
	defer s.running.Store(false)

	ctx = logging.ContextWith(ctx, "op", name)
	started := time.Now()
	err := fn(ctx)
	if err != nil {
		s.logger.Warn(ctx, name+" finished with errors", "error", err, "elapsed", time.Since(started))
		return err
	}
	s.logger.Info(ctx, name+" finished", "elapsed", time.Since(started))
	return nil
}

func (s *syncService) publish(ctx context.Context, stage string, current int) {
	p := models.SyncProgress{Stage: stage, Current: current, Total: bootstrapStages}
	s.logger.Debug(ctx, "bootstrap progress", "stage", stage, "current", current, "total", bootstrapStages)
	s.progress.Publish(ctx, p)
}

func (s *syncService) Bootstrap(ctx context.Context, companyID string) error {
	return s.exclusive(ctx, "bootstrap", func(ctx context.Context) error {
		if companyID != "" {
			s.companyID.Store(&companyID)
		}
		start, err := s.deps.Remote.Now(ctx)
		if err != nil {
			return fmt.Errorf("bootstrap: read remote clock: %w", err)
		}

		rows, err := s.deps.Remote.Fetch(ctx, remote.Query{Table: models.Companies.Remote, Filters: s.companyFilter("id")})
		if err != nil {
			return fmt.Errorf("bootstrap company: %w", err)
		}
		if _, err := s.storeRecords(ctx, models.Companies, rows, time.Time{}); err != nil {
			return err
		}
		s.publish(ctx, "company", 1)

		statuses := make([]any, 0, len(models.ActiveSaleStatuses))
		for _, st := range models.ActiveSaleStatuses {
			statuses = append(statuses, string(st))
		}
		filters := append(s.companyFilter("company_id"), remote.Filter{Column: "status", Values: statuses})
		rows, err = s.deps.Remote.Fetch(ctx, remote.Query{Table: models.Sales.Remote, Filters: filters})
		if err != nil {
			return fmt.Errorf("bootstrap sales: %w", err)
		}
		if _, err := s.storeRecords(ctx, models.Sales, rows, time.Time{}); err != nil {
			return err
		}
		activeSales := recordIDs(rows)
		s.publish(ctx, "sales", 2)

		activeLots, err := s.fetchChildren(ctx, models.Lots, activeSales)
		if err != nil {
			return fmt.Errorf("bootstrap lots: %w", err)
		}
		s.publish(ctx, "lots", 3)

		if _, err := s.fetchPhotos(ctx, activeLots); err != nil {
			return fmt.Errorf("bootstrap photos: %w", err)
		}
		s.publish(ctx, "photos", 4)

		s.deps.Queue.Submit("download active photos", func(ctx context.Context) error {
			var errs []error
			for _, id := range activeLots {
				errs = append(errs, s.photos.DownloadBlobsForLot(ctx, id))
			}
			return errors.Join(errs...)
		})
		s.deps.Queue.Submit("secondary sync", func(ctx context.Context) error {
			return s.secondarySync(ctx, activeSales, start)
		})
		s.deps.Queue.Submit("push outbox", func(ctx context.Context) error {
			return s.Push(ctx).Err()
		})

		s.logger.Info(ctx, "priority data ready", "sales", len(activeSales), "lots", len(activeLots))
		return nil
	})
}

// secondarySync fetches everything the priority bootstrap skipped and, when
// it succeeds, moves the cursor to the moment the bootstrap started.
func (s *syncService) secondarySync(ctx context.Context, activeSales []string, start time.Time) error {
	rows, err := s.deps.Remote.Fetch(ctx, remote.Query{Table: models.Sales.Remote, Filters: s.companyFilter("company_id")})
	if err != nil {
		return fmt.Errorf("secondary sales: %w", err)
	}
	if _, err := s.storeRecords(ctx, models.Sales, rows, time.Time{}); err != nil {
		return err
	}

	var otherSales []string
	for _, id := range recordIDs(rows) {
		if !slices.Contains(activeSales, id) {
			otherSales = append(otherSales, id)
		}
	}

	otherLots, err := s.fetchChildren(ctx, models.Lots, otherSales)
	if err != nil {
		return fmt.Errorf("secondary lots: %w", err)
	}
	if _, err := s.fetchPhotos(ctx, otherLots); err != nil {
		return fmt.Errorf("secondary photos: %w", err)
	}

	for _, p := range []models.Partition{models.Contacts, models.Documents, models.Categories} {
		rows, err := s.deps.Remote.Fetch(ctx, remote.Query{Table: p.Remote, Filters: s.companyFilter("company_id")})
		if err != nil {
			return fmt.Errorf("secondary %s: %w", p.Remote, err)
		}
		if _, err := s.storeRecords(ctx, p, rows, time.Time{}); err != nil {
			return err
		}
	}

	meta := s.deps.Repos.Metadata(s.deps.DB)
	cursor, err := metadata.LastSyncTime(ctx, meta)
	if err != nil {
		return err
	}
	if cursor.Before(start) {
		return metadata.SetLastSyncTime(ctx, meta, start)
	}
	return nil
}

// fetchChildren stores the rows of p owned by parentIDs and returns their ids.
func (s *syncService) fetchChildren(ctx context.Context, p models.Partition, parentIDs []string) ([]string, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	rows, err := s.deps.Remote.Fetch(ctx, remote.Query{
		Table:   p.Remote,
		Filters: []remote.Filter{{Column: p.Parent, Values: toAny(parentIDs)}},
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.storeRecords(ctx, p, rows, time.Time{}); err != nil {
		return nil, err
	}
	return recordIDs(rows), nil
}

// fetchPhotos stores the photo metadata of lotIDs and returns the photos
// whose bytes are not stored locally.
func (s *syncService) fetchPhotos(ctx context.Context, lotIDs []string) ([]models.Photo, error) {
	if len(lotIDs) == 0 {
		return nil, nil
	}
	rows, err := s.deps.Remote.Fetch(ctx, remote.Query{
		Table:   models.Photos.Remote,
		Filters: []remote.Filter{{Column: models.Photos.Parent, Values: toAny(lotIDs)}},
	})
	if err != nil {
		return nil, err
	}
	return s.storePhotos(ctx, rows, time.Time{})
}

func (s *syncService) Push(ctx context.Context) common.BatchResult {
	res := common.NewBatchResult()

	ob := s.deps.Repos.Outbox(s.deps.DB)
	pending, err := ob.GetPending(ctx)
	if err != nil {
		res.Fail("read outbox: %v", err)
		return res
	}

	for _, e := range pending {
		if err := s.apply(ctx, e); err != nil {
			s.logger.Warn(ctx, "push failed", "entry", e.ID, "table", e.Table, "op", e.Type, "error", err)
			res.Fail("%s %s %s: %v", e.Type, e.Table, e.RecordID, err)
			continue
		}
		if err := ob.MarkSynced(ctx, e.ID); err != nil {
			res.Fail("mark %s synced: %v", e.ID, err)
			continue
		}
		res.Done()
	}

	purged, err := ob.PurgeSynced(ctx)
	if err != nil {
		res.Fail("purge outbox: %v", err)
	}

	if len(pending) > 0 {
		s.logger.Info(ctx, "outbox pushed", "pending", len(pending), "processed", res.Processed,
			"failed", len(res.Errors), "purged", purged)
	}
	return res
}

func (s *syncService) apply(ctx context.Context, e models.OutboxEntry) error {
	if e.Table == models.Photos.Remote {
		switch e.Type {
		case models.OpCreate:
			// photo metadata travels with its upload, see PhotoService.SyncUnsynced
			return nil
		case models.OpUpdate:
			err := s.deps.Remote.Update(ctx, e.Table, e.Data)
			if errors.Is(err, common.ErrNotFound) {
				// not uploaded yet, the upload carries the latest metadata
				return nil
			}
			return err
		case models.OpDelete:
			var ref struct {
				FilePath string `json:"file_path"`
			}
			if err := json.Unmarshal(e.Data, &ref); err != nil {
				return err
			}
			return s.photos.DeleteRemote(ctx, e.RecordID, ref.FilePath)
		}
	}

	switch e.Type {
	case models.OpCreate:
		return s.deps.Remote.Insert(ctx, e.Table, e.Data)
	case models.OpUpdate:
		return s.deps.Remote.Update(ctx, e.Table, e.Data)
	case models.OpDelete:
		return s.deps.Remote.Delete(ctx, e.Table, e.RecordID)
	}
	return fmt.Errorf("unknown operation %q", e.Type)
}

func (s *syncService) Pull(ctx context.Context) error {
	since, err := metadata.LastSyncTime(ctx, s.deps.Repos.Metadata(s.deps.DB))
	if err != nil {
		return err
	}
	return s.pullSince(ctx, since)
}

func (s *syncService) pullSince(ctx context.Context, since time.Time) error {
	start, err := s.deps.Remote.Now(ctx)
	if err != nil {
		return fmt.Errorf("pull: read remote clock: %w", err)
	}
	seen := since
	if !since.IsZero() {
		since = since.Add(-cursorOverlap)
	}

	var missing []models.Photo
	for _, p := range models.PullOrder {
		filters, ok, err := s.scope(ctx, p)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		rows, err := s.deps.Remote.Fetch(ctx, remote.Query{Table: p.Remote, Since: since, Filters: filters})
		if err != nil {
			return fmt.Errorf("pull %s: %w", p.Remote, err)
		}

		if p.Table == models.Photos.Table {
			m, err := s.storePhotos(ctx, rows, seen)
			if err != nil {
				return err
			}
			missing = append(missing, m...)
		} else if _, err := s.storeRecords(ctx, p, rows, seen); err != nil {
			return err
		}

		if len(rows) > 0 {
			s.logger.Debug(ctx, "pulled", "table", p.Remote, "rows", len(rows))
		}
	}

	if err := metadata.SetLastSyncTime(ctx, s.deps.Repos.Metadata(s.deps.DB), start); err != nil {
		return err
	}

	if len(missing) > 0 {
		s.deps.Queue.Submit("download missing photos", func(ctx context.Context) error {
			var errs []error
			for _, p := range missing {
				errs = append(errs, s.photos.DownloadBlob(ctx, p))
			}
			return errors.Join(errs...)
		})
	}
	return nil
}

// scope returns the filters that keep a pull inside the synced company.
// ok is false when the partition has nothing to fetch.
func (s *syncService) scope(ctx context.Context, p models.Partition) ([]remote.Filter, bool, error) {
	if s.company() == "" {
		return nil, true, nil
	}

	switch p.Table {
	case models.Companies.Table:
		return s.companyFilter("id"), true, nil
	case models.Lots.Table:
		sales, err := s.localSaleIDs(ctx)
		if err != nil || len(sales) == 0 {
			return nil, false, err
		}
		return []remote.Filter{{Column: p.Parent, Values: toAny(sales)}}, true, nil
	case models.Photos.Table:
		lots, err := s.localLotIDs(ctx)
		if err != nil || len(lots) == 0 {
			return nil, false, err
		}
		return []remote.Filter{{Column: p.Parent, Values: toAny(lots)}}, true, nil
	default:
		return s.companyFilter("company_id"), true, nil
	}
}

func (s *syncService) companyFilter(column string) []remote.Filter {
	company := s.company()
	if company == "" {
		return nil
	}
	return []remote.Filter{{Column: column, Values: []any{company}}}
}

func (s *syncService) localSaleIDs(ctx context.Context) ([]string, error) {
	sales, err := records.QueryAs[models.Sale](ctx, s.deps.Repos.Records(s.deps.DB), models.Sales, models.IndexParent, s.company())
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(sales))
	for _, sale := range sales {
		ids = append(ids, sale.ID)
	}
	return ids, nil
}

func (s *syncService) localLotIDs(ctx context.Context) ([]string, error) {
	sales, err := s.localSaleIDs(ctx)
	if err != nil {
		return nil, err
	}
	recs := s.deps.Repos.Records(s.deps.DB)
	var ids []string
	for _, saleID := range sales {
		lots, err := records.QueryAs[models.Lot](ctx, recs, models.Lots, models.IndexParent, saleID)
		if err != nil {
			return nil, err
		}
		for _, l := range lots {
			ids = append(ids, l.ID)
		}
	}
	return ids, nil
}

// storeRecords writes pulled rows in one transaction. A row whose record has
// a pending local mutation is not applied; it is kept as a conflict instead,
// unless it is stamped at or before seen. Such a row was pulled before the
// local edit was made and the edit wins.
func (s *syncService) storeRecords(ctx context.Context, p models.Partition, rows []json.RawMessage, seen time.Time) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	stored := 0
	err := dbx.WithTx(ctx, s.deps.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		recs := s.deps.Repos.Records(tx)
		ob := s.deps.Repos.Outbox(tx)

		for _, row := range rows {
			id, updated, err := rowRef(row)
			if err != nil {
				s.logger.Warn(ctx, "skipping malformed remote row", "table", p.Remote, "error", err)
				continue
			}

			pending, err := ob.HasPending(ctx, p.Remote, id)
			if err != nil {
				return err
			}
			if pending && alreadySeen(updated, seen) {
				continue
			}
			if pending {
				local, err := recs.Get(ctx, p, id)
				if err != nil && !errors.Is(err, common.ErrNotFound) {
					return err
				}
				if err := s.recordConflict(ctx, tx, p.Remote, id, local, row); err != nil {
					return err
				}
				continue
			}

			if err := recs.Upsert(ctx, p, row); err != nil {
				return err
			}
			stored++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store %s: %w", p.Remote, err)
	}
	return stored, nil
}

// storePhotos writes pulled photo metadata as synced. Local metadata that has
// not been uploaded yet is kept; a diverging remote version becomes a conflict
// unless it was already pulled, see storeRecords.
func (s *syncService) storePhotos(ctx context.Context, rows []json.RawMessage, seen time.Time) ([]models.Photo, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	var missing []models.Photo
	err := dbx.WithTx(ctx, s.deps.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.deps.Repos.Photos(tx)
		ob := s.deps.Repos.Outbox(tx)
		blobs := s.deps.Repos.Blobs(tx)

		for _, row := range rows {
			var p models.Photo
			if err := json.Unmarshal(row, &p); err != nil || p.ID == "" {
				s.logger.Warn(ctx, "skipping malformed remote row", "table", models.Photos.Remote, "error", err)
				continue
			}

			pending, err := ob.HasPending(ctx, models.Photos.Remote, p.ID)
			if err != nil {
				return err
			}
			if pending && alreadySeen(p.UpdatedAt, seen) {
				continue
			}
			if pending {
				if err := s.recordConflict(ctx, tx, models.Photos.Remote, p.ID, nil, row); err != nil {
					return err
				}
				continue
			}

			local, err := repo.Get(ctx, p.ID)
			switch {
			case errors.Is(err, common.ErrNotFound):
			case err != nil:
				return err
			case !local.Synced:
				if photoDiffers(*local, p) && !alreadySeen(p.UpdatedAt, seen) {
					localData, err := json.Marshal(local)
					if err != nil {
						return err
					}
					if err := s.recordConflict(ctx, tx, models.Photos.Remote, p.ID, localData, row); err != nil {
						return err
					}
				}
				continue
			}

			p.Synced = true
			if err := repo.Upsert(ctx, &p); err != nil {
				return err
			}

			ok, err := blobs.Exists(ctx, p.ID)
			if err != nil {
				return err
			}
			if !ok {
				missing = append(missing, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", models.Photos.Remote, err)
	}
	return missing, nil
}

func photoDiffers(a, b models.Photo) bool {
	return a.LotID != b.LotID || a.IsPrimary != b.IsPrimary || a.FilePath != b.FilePath || a.FileName != b.FileName
}

func (s *syncService) recordConflict(ctx context.Context, tx dbx.DBTX, table, id string, local, cloud json.RawMessage) error {
	if len(local) == 0 {
		local = json.RawMessage("null")
	}
	s.logger.Warn(ctx, "remote change conflicts with pending local change", "table", table, "id", id)
	return s.deps.Repos.Conflicts(tx).Add(ctx, &models.ConflictRecord{
		Table:     table,
		RecordID:  id,
		LocalData: local,
		CloudData: cloud,
	})
}

func (s *syncService) Reconnect(ctx context.Context) error {
	cursor, err := metadata.LastSyncTime(ctx, s.deps.Repos.Metadata(s.deps.DB))
	if err != nil {
		return err
	}
	if cursor.IsZero() {
		return s.Bootstrap(ctx, s.company())
	}
	return s.PerformSync(ctx)
}

func (s *syncService) PerformSync(ctx context.Context) error {
	return s.exclusive(ctx, "sync", func(ctx context.Context) error {
		if err := s.deps.Remote.Ping(ctx); err != nil {
			return fmt.Errorf("remote store unreachable: %w", err)
		}

		pushErr := s.Push(ctx).Err()
		s.deps.Queue.Submit("upload unsynced photos", s.photos.SyncUnsynced)
		reconcileErr := s.reconcile(ctx)
		pullErr := s.Pull(ctx)

		if _, err := s.photos.PruneOrphanBlobs(ctx); err != nil {
			s.logger.Warn(ctx, "orphan blob cleanup failed", "error", err)
		}

		return errors.Join(pushErr, reconcileErr, pullErr)
	})
}

// reconcile replaces temporary lot numbers in every sale that still has them.
func (s *syncService) reconcile(ctx context.Context) error {
	var sales []string
	if company := s.company(); company != "" {
		var err error
		sales, err = s.deps.Remote.SalesWithTemporaryLots(ctx, company)
		if err != nil {
			return fmt.Errorf("sales with temporary lots: %w", err)
		}
	} else {
		list, err := records.ListAs[models.Sale](ctx, s.deps.Repos.Records(s.deps.DB), models.Sales)
		if err != nil {
			return err
		}
		for _, sale := range list {
			sales = append(sales, sale.ID)
		}
	}

	var errs []error
	for _, id := range sales {
		errs = append(errs, s.lots.ReassignTemporaryNumbers(ctx, id).Err())
	}
	return errors.Join(errs...)
}

func (s *syncService) FullResetSync(ctx context.Context) error {
	return s.exclusive(ctx, "full reset", func(ctx context.Context) error {
		// unsynced photos live only in the cache tables
		if err := s.photos.SyncUnsynced(ctx); err != nil {
			return fmt.Errorf("upload photos before reset: %w", err)
		}
		unsynced, err := s.deps.Repos.Photos(s.deps.DB).ListUnsynced(ctx)
		if err != nil {
			return err
		}
		if len(unsynced) > 0 {
			return fmt.Errorf("%w: %d photos are not uploaded yet", common.ErrUnavailable, len(unsynced))
		}

		if err := s.cache.WipeCache(ctx); err != nil {
			return fmt.Errorf("wipe cache: %w", err)
		}
		if err := s.pullSince(ctx, time.Time{}); err != nil {
			return err
		}
		return s.reconcile(ctx)
	})
}

func rowRef(row json.RawMessage) (string, time.Time, error) {
	var ref struct {
		ID        string    `json:"id"`
		UpdatedAt time.Time `json:"updated_at"`
	}
	if err := json.Unmarshal(row, &ref); err != nil {
		return "", time.Time{}, err
	}
	if ref.ID == "" {
		return "", time.Time{}, fmt.Errorf("%w: missing id", common.ErrInvalidRecord)
	}
	return ref.ID, ref.UpdatedAt, nil
}

// alreadySeen reports whether a row stamped at updated was returned by the
// pull that set the cursor seen.
func alreadySeen(updated, seen time.Time) bool {
	return !seen.IsZero() && !updated.After(seen)
}

func recordIDs(rows []json.RawMessage) []string {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if id, _, err := rowRef(row); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func toAny(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
