package outbox

import (
	"context"

	"github.com/dmitrijs2005/lotkeeper/internal/client/models"
)

// Repository is the durable log of local mutations awaiting push.
type Repository interface {
	Enqueue(ctx context.Context, e *models.OutboxEntry) error
	// GetPending returns unsynced entries ordered by timestamp.
	GetPending(ctx context.Context) ([]models.OutboxEntry, error)
	MarkSynced(ctx context.Context, id string) error
	// PurgeSynced deletes synced entries and reports how many were removed.
	PurgeSynced(ctx context.Context) (int64, error)
	// HasPending reports whether an unsynced entry targets the record.
	HasPending(ctx context.Context, table, recordID string) (bool, error)
	DiscardPending(ctx context.Context, table, recordID string) (int64, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}
