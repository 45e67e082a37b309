package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dmitrijs2005/lotkeeper/internal/client/models"
	"github.com/dmitrijs2005/lotkeeper/internal/client/remote"
	"github.com/dmitrijs2005/lotkeeper/internal/common"
	"github.com/dmitrijs2005/lotkeeper/internal/dbx"
	"github.com/dmitrijs2005/lotkeeper/internal/logging"
)

const (
	displayCacheSize = 64
	displayCacheTTL  = 5 * time.Minute
)

// SavePhotoInput is a photo captured by the consumer. Data is either raw
// image bytes or a data URL ("data:image/jpeg;base64,...").
type SavePhotoInput struct {
	LotID     string
	FileName  string
	Data      []byte
	IsPrimary bool
}

// DisplayHandle is an in-memory view of a photo's bytes. Callers must call
// Release when the photo is no longer shown.
type DisplayHandle struct {
	PhotoID     string
	ContentType string

	mu   sync.Mutex
	data []byte
}

// Bytes returns the image bytes, or nil after Release.
func (h *DisplayHandle) Bytes() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.data
}

func (h *DisplayHandle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data = nil
}

// PhotoService stores photo metadata locally first and moves the bytes to
// object storage in the background.
type PhotoService interface {
	// SaveFast writes the metadata synchronously and schedules blob storage
	// and upload. Background failures are only logged.
	SaveFast(ctx context.Context, in SavePhotoInput) (*models.Photo, error)
	UploadBlob(ctx context.Context, data []byte, path string) (string, error)
	SaveMetadataRemote(ctx context.Context, p *models.Photo) error
	// SetPrimary makes photoID the only primary photo of the lot.
	SetPrimary(ctx context.Context, lotID, photoID string) error
	DownloadBlobsForLot(ctx context.Context, lotID string) error
	// DownloadBlob fetches the bytes of one photo into the local store.
	DownloadBlob(ctx context.Context, p models.Photo) error
	// DisplayHandle returns (nil, nil) when no blob is stored locally.
	DisplayHandle(ctx context.Context, photoID string) (*DisplayHandle, error)
	Delete(ctx context.Context, photoID string) error
	// DeleteRemote removes the object and then the remote metadata row.
	DeleteRemote(ctx context.Context, photoID, filePath string) error
	SyncUnsynced(ctx context.Context) error
	PruneOrphanBlobs(ctx context.Context) (int, error)
}

type photoService struct {
	deps   Deps
	logger logging.Logger
	cache  *expirable.LRU[string, []byte]
}

func NewPhotoService(deps Deps) PhotoService {
	return &photoService{
		deps:   deps,
		logger: deps.Logger.With("component", "photos"),
		cache:  expirable.NewLRU[string, []byte](displayCacheSize, nil, displayCacheTTL),
	}
}

// decodePhotoData accepts raw bytes or a base64 data URL.
func decodePhotoData(raw []byte) ([]byte, error) {
	if !bytes.HasPrefix(raw, []byte("data:")) {
		return raw, nil
	}
	_, payload, ok := bytes.Cut(raw, []byte(";base64,"))
	if !ok {
		return nil, fmt.Errorf("%w: data URL is not base64", common.ErrInvalidRecord)
	}
	data := make([]byte, base64.StdEncoding.DecodedLen(len(payload)))
	n, err := base64.StdEncoding.Decode(data, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidRecord, err)
	}
	return data[:n], nil
}

func (s *photoService) SaveFast(ctx context.Context, in SavePhotoInput) (*models.Photo, error) {
	if in.LotID == "" || in.FileName == "" {
		return nil, fmt.Errorf("%w: photo needs lot and file name", common.ErrInvalidRecord)
	}

	now := s.deps.now()
	p := &models.Photo{
		ID:        uuid.NewString(),
		LotID:     in.LotID,
		FileName:  in.FileName,
		FilePath:  models.PhotoObjectKey(in.LotID, in.FileName),
		IsPrimary: in.IsPrimary,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := dbx.WithTx(ctx, s.deps.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.deps.Repos.Photos(tx)
		if p.IsPrimary {
			siblings, err := repo.ListByLot(ctx, p.LotID)
			if err != nil {
				return err
			}
			for _, sib := range siblings {
				if !sib.IsPrimary {
					continue
				}
				sib.IsPrimary = false
				sib.Synced = false
				sib.UpdatedAt = now
				if err := repo.Upsert(ctx, &sib); err != nil {
					return err
				}
			}
		}
		return repo.Upsert(ctx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("save photo metadata: %w", err)
	}

	raw := bytes.Clone(in.Data)
	saved := *p
	s.deps.Queue.Submit("store photo "+p.ID, func(ctx context.Context) error {
		return s.storeAndUpload(ctx, saved, raw)
	})

	return p, nil
}

func (s *photoService) storeAndUpload(ctx context.Context, p models.Photo, raw []byte) error {
	data, err := decodePhotoData(raw)
	if err != nil {
		return err
	}
	if err := s.deps.Repos.Blobs(s.deps.DB).Put(ctx, p.ID, data); err != nil {
		return err
	}
	if !s.deps.online() {
		return nil
	}

	s.deps.Queue.Submit("upload photo "+p.ID, func(ctx context.Context) error {
		return s.upload(ctx, &p, data)
	})
	return nil
}

func (s *photoService) upload(ctx context.Context, p *models.Photo, data []byte) error {
	if _, err := s.UploadBlob(ctx, data, p.FilePath); err != nil {
		return err
	}
	return s.SaveMetadataRemote(ctx, p)
}

func (s *photoService) UploadBlob(ctx context.Context, data []byte, path string) (string, error) {
	contentType := http.DetectContentType(data)
	err := s.deps.withRetry(ctx, func(ctx context.Context) error {
		return s.deps.Objects.Put(ctx, path, data, contentType)
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	return path, nil
}

func (s *photoService) SaveMetadataRemote(ctx context.Context, p *models.Photo) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	err = s.deps.withRetry(ctx, func(ctx context.Context) error {
		return s.deps.Remote.Insert(ctx, models.Photos.Remote, data)
	})
	if err != nil {
		return fmt.Errorf("save photo %s remotely: %w", p.ID, err)
	}

	if err := s.deps.Repos.Photos(s.deps.DB).MarkSynced(ctx, p.ID, true); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// deleted locally while uploading; the outbox delete follows
			return nil
		}
		return err
	}
	p.Synced = true
	return nil
}

func (s *photoService) SetPrimary(ctx context.Context, lotID, photoID string) error {
	now := s.deps.now()
	err := dbx.WithTx(ctx, s.deps.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.deps.Repos.Photos(tx)
		list, err := repo.ListByLot(ctx, lotID)
		if err != nil {
			return err
		}

		found := false
		for _, p := range list {
			if p.ID == photoID {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("photo %s of lot %s: %w", photoID, lotID, common.ErrNotFound)
		}

		for _, p := range list {
			p.IsPrimary = p.ID == photoID
			p.Synced = false
			p.UpdatedAt = now
			if err := repo.Upsert(ctx, &p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.deps.online() {
		s.deps.Queue.Submit("sync photo metadata", s.SyncUnsynced)
	}
	return nil
}

func (s *photoService) DownloadBlobsForLot(ctx context.Context, lotID string) error {
	rows, err := s.deps.Remote.Fetch(ctx, remote.Query{
		Table:   models.Photos.Remote,
		Filters: []remote.Filter{{Column: "lot_id", Values: []any{lotID}}},
	})
	if err != nil {
		return fmt.Errorf("photos of lot %s: %w", lotID, err)
	}

	var errs []error
	for _, row := range rows {
		var p models.Photo
		if err := json.Unmarshal(row, &p); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.DownloadBlob(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *photoService) DownloadBlob(ctx context.Context, p models.Photo) error {
	var data []byte
	err := s.deps.withRetry(ctx, func(ctx context.Context) error {
		var err error
		data, err = s.deps.Objects.Get(ctx, p.FilePath)
		return err
	})
	if err != nil {
		return fmt.Errorf("download photo %s: %w", p.ID, err)
	}

	return dbx.WithTx(ctx, s.deps.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.deps.Repos.Blobs(tx).Put(ctx, p.ID, data); err != nil {
			return err
		}

		repo := s.deps.Repos.Photos(tx)
		local, err := repo.Get(ctx, p.ID)
		switch {
		case errors.Is(err, common.ErrNotFound):
			p.Synced = true
			return repo.Upsert(ctx, &p)
		case err != nil:
			return err
		case local.Synced:
			p.Synced = true
			return repo.Upsert(ctx, &p)
		}
		// unsynced local metadata wins until it is pushed
		return nil
	})
}

func (s *photoService) DisplayHandle(ctx context.Context, photoID string) (*DisplayHandle, error) {
	data, ok := s.cache.Get(photoID)
	if !ok {
		var err error
		data, err = s.deps.Repos.Blobs(s.deps.DB).Get(ctx, photoID)
		if err != nil {
			return nil, err
		}
		if data == nil {
			return nil, nil
		}
		s.cache.Add(photoID, data)
	}

	return &DisplayHandle{
		PhotoID:     photoID,
		ContentType: http.DetectContentType(data),
		data:        data,
	}, nil
}

func (s *photoService) Delete(ctx context.Context, photoID string) error {
	err := dbx.WithTx(ctx, s.deps.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.deps.Repos.Photos(tx)
		p, err := repo.Get(ctx, photoID)
		if err != nil {
			return err
		}

		if err := repo.Delete(ctx, photoID); err != nil {
			return err
		}
		if err := s.deps.Repos.Blobs(tx).Delete(ctx, photoID); err != nil {
			return err
		}

		data, err := json.Marshal(map[string]string{"id": p.ID, "lot_id": p.LotID, "file_path": p.FilePath})
		if err != nil {
			return err
		}
		return s.deps.Repos.Outbox(tx).Enqueue(ctx, &models.OutboxEntry{
			Type:      models.OpDelete,
			Table:     models.Photos.Remote,
			RecordID:  p.ID,
			Data:      data,
			Timestamp: s.deps.now(),
		})
	})
	if err != nil {
		return err
	}

	s.cache.Remove(photoID)
	return nil
}

func (s *photoService) DeleteRemote(ctx context.Context, photoID, filePath string) error {
	if filePath != "" {
		err := s.deps.withRetry(ctx, func(ctx context.Context) error {
			return s.deps.Objects.Delete(ctx, filePath)
		})
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("delete object %s: %w", filePath, err)
		}
	}
	return s.deps.Remote.Delete(ctx, models.Photos.Remote, photoID)
}

func (s *photoService) SyncUnsynced(ctx context.Context) error {
	if !s.deps.online() {
		return nil
	}

	list, err := s.deps.Repos.Photos(s.deps.DB).ListUnsynced(ctx)
	if err != nil {
		return err
	}

	var errs []error
	pushed, waiting := 0, 0
	for _, p := range list {
		ready, err := s.ensureObject(ctx, p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ready {
			waiting++
			continue
		}
		if err := s.SaveMetadataRemote(ctx, &p); err != nil {
			errs = append(errs, err)
			continue
		}
		pushed++
	}

	if len(list) > 0 {
		s.logger.Info(ctx, "unsynced photos pushed", "count", pushed, "waiting", waiting, "errors", len(errs))
	}
	return errors.Join(errs...)
}

// ensureObject makes sure the object of p is in storage before its metadata
// is pushed. A photo whose bytes are neither stored locally nor uploaded yet
// is not ready: SaveFast is still decoding it and a later pass picks it up.
func (s *photoService) ensureObject(ctx context.Context, p models.Photo) (bool, error) {
	blobs := s.deps.Repos.Blobs(s.deps.DB)
	data, err := blobs.Get(ctx, p.ID)
	if err != nil {
		return false, err
	}
	if data != nil {
		if _, err := s.UploadBlob(ctx, data, p.FilePath); err != nil {
			return false, err
		}
		return true, nil
	}

	var remoteData []byte
	err = s.deps.withRetry(ctx, func(ctx context.Context) error {
		var err error
		remoteData, err = s.deps.Objects.Get(ctx, p.FilePath)
		return err
	})
	if errors.Is(err, common.ErrNotFound) {
		s.logger.Debug(ctx, "photo bytes not stored yet", "photo", p.ID)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check object %s: %w", p.FilePath, err)
	}
	if err := blobs.Put(ctx, p.ID, remoteData); err != nil {
		return false, err
	}
	return true, nil
}

func (s *photoService) PruneOrphanBlobs(ctx context.Context) (int, error) {
	photoIDs, err := s.deps.Repos.Photos(s.deps.DB).ListIDs(ctx)
	if err != nil {
		return 0, err
	}
	known := make(map[string]struct{}, len(photoIDs))
	for _, id := range photoIDs {
		known[id] = struct{}{}
	}

	blobRepo := s.deps.Repos.Blobs(s.deps.DB)
	blobIDs, err := blobRepo.ListIDs(ctx)
	if err != nil {
		return 0, err
	}

	pruned := 0
	for _, id := range blobIDs {
		if _, ok := known[id]; ok {
			continue
		}
		if err := blobRepo.Delete(ctx, id); err != nil {
			return pruned, err
		}
		s.cache.Remove(id)
		pruned++
	}

	if pruned > 0 {
		s.logger.Info(ctx, "orphan blobs pruned", "count", pruned)
	}
	return pruned, nil
}
