package photos

import (
	"context"

	"github.com/dmitrijs2005/lotkeeper/internal/client/models"
)

// Repository stores photo metadata. Bytes live in the blobs repository under
// the same id.
type Repository interface {
	Upsert(ctx context.Context, p *models.Photo) error
	// Get returns common.ErrNotFound when the photo is absent.
	Get(ctx context.Context, id string) (*models.Photo, error)
	// ListByLot returns the photos of a lot, oldest first.
	ListByLot(ctx context.Context, lotID string) ([]models.Photo, error)
	ListUnsynced(ctx context.Context) ([]models.Photo, error)
	MarkSynced(ctx context.Context, id string, synced bool) error
	Delete(ctx context.Context, id string) error
	ListIDs(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}
