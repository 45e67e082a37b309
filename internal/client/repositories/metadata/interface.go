package metadata

import (
	"context"
)

// Repository is a small key/value partition for sync bookkeeping.
// Get reports ok=false for a missing key.
type Repository interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	// Delete removes the given keys; missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}
