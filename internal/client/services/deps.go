package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/lotkeeper/internal/client/remote"
	"github.com/dmitrijs2005/lotkeeper/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/lotkeeper/internal/common"
	"github.com/dmitrijs2005/lotkeeper/internal/logging"
	"github.com/dmitrijs2005/lotkeeper/internal/tasks"
)

// Deps are the collaborators shared by the client services.
type Deps struct {
	DB      *sql.DB
	Repos   repomanager.RepositoryManager
	Remote  remote.Store
	Objects remote.ObjectStorage
	Queue   *tasks.Queue
	// Online reports the current connectivity status.
	Online func() bool
	Logger logging.Logger
	// RetryBase is the first backoff step of remote transfers.
	RetryBase time.Duration
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d Deps) online() bool {
	return d.Online != nil && d.Online()
}

const (
	defaultRetryBase = 200 * time.Millisecond
	transferRetries  = 2
)

// withRetry runs op up to three times, backing off exponentially, as long as
// it fails with common.ErrUnavailable.
func (d Deps) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	base := d.RetryBase
	if base <= 0 {
		base = defaultRetryBase
	}
	b := retry.WithMaxRetries(transferRetries, retry.NewExponential(base))

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := op(ctx)
		if errors.Is(err, common.ErrUnavailable) {
			return retry.RetryableError(err)
		}
		return err
	})
}
