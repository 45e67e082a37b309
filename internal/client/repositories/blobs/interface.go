package blobs

import "context"

// Repository stores photo bytes keyed by photo id.
type Repository interface {
	Put(ctx context.Context, id string, data []byte) error
	// Get returns (nil, nil) when no blob is stored for id.
	Get(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
	ListIDs(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}
