package records

import (
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/lotkeeper/internal/client/models"
)

// Repository stores JSON records in per-partition tables.
// All writes are idempotent: writing the same id again overwrites the row.
type Repository interface {
	// Upsert inserts or replaces the record whose "id" key is inside data.
	Upsert(ctx context.Context, p models.Partition, data json.RawMessage) error

	// Get returns the record or common.ErrNotFound.
	Get(ctx context.Context, p models.Partition, id string) (json.RawMessage, error)

	// QueryByIndex returns records whose index equals value. The index is
	// models.IndexParent or one of p.Indexes.
	QueryByIndex(ctx context.Context, p models.Partition, index string, value any) ([]json.RawMessage, error)

	// List returns every record of the partition.
	List(ctx context.Context, p models.Partition) ([]json.RawMessage, error)

	// Delete removes the record. Deleting a missing id is not an error.
	Delete(ctx context.Context, p models.Partition, id string) error

	// Clear removes every record of the partition.
	Clear(ctx context.Context, p models.Partition) error
}
