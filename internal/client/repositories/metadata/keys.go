package metadata

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/lotkeeper/internal/client/models"
)

const (
	// KeyLastSyncTime holds the pull cursor.
	KeyLastSyncTime = "lastSyncTime"
	// KeyTempLotCounter holds the last temporary lot number handed out.
	KeyTempLotCounter = "tempLotCounter"
)

// LastSyncTime returns the pull cursor, or the zero time when no pull has
// completed yet.
func LastSyncTime(ctx context.Context, r Repository) (time.Time, error) {
	v, ok, err := r.Get(ctx, KeyLastSyncTime)
	if err != nil || !ok {
		return time.Time{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed %s %q: %w", KeyLastSyncTime, v, err)
	}
	return ts, nil
}

// ResetLastSyncTime makes the next pull fetch everything.
func ResetLastSyncTime(ctx context.Context, r Repository) error {
	return r.Delete(ctx, KeyLastSyncTime)
}

func SetLastSyncTime(ctx context.Context, r Repository, ts time.Time) error {
	return r.Set(ctx, KeyLastSyncTime, ts.UTC().Format(time.RFC3339Nano))
}

// NextTemporaryLotNumber hands out the next temporary lot number. The first
// call returns models.TemporaryLotNumberSeed, later calls decrease by one.
func NextTemporaryLotNumber(ctx context.Context, r Repository) (int64, error) {
	next := models.TemporaryLotNumberSeed

	v, ok, err := r.Get(ctx, KeyTempLotCounter)
	if err != nil {
		return 0, err
	}
	if ok {
		last, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("malformed %s %q: %w", KeyTempLotCounter, v, err)
		}
		next = min(last-1, models.TemporaryLotNumberSeed)
	}

	if err := r.Set(ctx, KeyTempLotCounter, strconv.FormatInt(next, 10)); err != nil {
		return 0, err
	}
	return next, nil
}
