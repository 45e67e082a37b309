package conflicts

import (
	"context"

	"github.com/dmitrijs2005/lotkeeper/internal/client/models"
)

type Repository interface {
	Add(ctx context.Context, c *models.ConflictRecord) error
	ListUnresolved(ctx context.Context) ([]models.ConflictRecord, error)
	// Resolve marks the conflict resolved; an unknown id is common.ErrNotFound.
	Resolve(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}
