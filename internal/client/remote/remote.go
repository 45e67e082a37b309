// Package remote talks to the authoritative side of lotkeeper: a PostgreSQL
// row store holding the catalogue tables and an S3-compatible bucket holding
// photo bytes.
//
// Both are reached through small interfaces so the sync services can run
// against in-process fakes (MemoryStore, MemoryObjects) in tests and in the
// CLI demo mode.
package remote

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/lotkeeper/internal/client/models"
)

// Filter restricts a fetch to rows whose Column is one of Values.
type Filter struct {
	Column string
	Values []any
}

// Query selects rows of one remote table.
type Query struct {
	Table string
	// Since, when non-zero, keeps only rows with updated_at > Since.
	Since   time.Time
	Filters []Filter
}

// Store is the remote row store. Records travel as JSON objects keyed by
// column name; unknown keys are ignored.
type Store interface {
	Ping(ctx context.Context) error
	// Now returns the clock that stamps updated_at, so sync cursors do not
	// depend on the client clock.
	Now(ctx context.Context) (time.Time, error)

	// Insert creates the row or replaces an existing row with the same id.
	Insert(ctx context.Context, table string, data json.RawMessage) error
	// Update changes an existing row; a missing row is common.ErrNotFound.
	Update(ctx context.Context, table string, data json.RawMessage) error
	// Delete removes the row. Deleting a missing row succeeds.
	Delete(ctx context.Context, table, id string) error
	Fetch(ctx context.Context, q Query) ([]json.RawMessage, error)

	// MaxLotNumber returns the highest lot number of the sale; ok is false
	// when the sale has no lots.
	MaxLotNumber(ctx context.Context, saleID string) (n int64, ok bool, err error)
	// TemporaryLots returns lots of the sale with a negative number, oldest first.
	TemporaryLots(ctx context.Context, saleID string) ([]models.Lot, error)
	LotNumberExists(ctx context.Context, saleID string, number int64, excludeID string) (bool, error)
	SetLotNumber(ctx context.Context, lotID string, number int64) error
	// SalesWithTemporaryLots returns ids of the company's sales that still
	// hold temporary lot numbers.
	SalesWithTemporaryLots(ctx context.Context, companyID string) ([]string, error)
}

// ObjectStorage stores photo bytes under {lotId}/{fileName} keys.
type ObjectStorage interface {
	// Put writes data at key, overwriting any previous object.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get returns common.ErrNotFound for a missing key.
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
