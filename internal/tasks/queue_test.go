package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/lotkeeper/internal/logging"
)

func TestSubmit_RunsAndWaits(t *testing.T) {
	q := NewQueue(2, logging.NewNop())
	defer q.Close()

	var n atomic.Int32
	for i := 0; i < 10; i++ {
		require.True(t, q.Submit("inc", func(ctx context.Context) error {
			n.Add(1)
			return nil
		}))
	}
	q.Wait()

	assert.EqualValues(t, 10, n.Load())
	assert.Zero(t, q.Pending())
	assert.Empty(t, q.Failed())
}

func TestSubmit_BoundsConcurrency(t *testing.T) {
	q := NewQueue(2, logging.NewNop())
	defer q.Close()

	var running, peak atomic.Int32
	for i := 0; i < 8; i++ {
		q.Submit("slow", func(ctx context.Context) error {
			cur := running.Add(1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return nil
		})
	}
	q.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestFailures_ErrorAndPanicRecorded(t *testing.T) {
	q := NewQueue(1, logging.NewNop())
	defer q.Close()

	q.Submit("fails", func(ctx context.Context) error { return errors.New("boom") })
	q.Submit("panics", func(ctx context.Context) error { panic("bad") })
	q.Wait()

	failed := q.Failed()
	require.Len(t, failed, 2)
	names := []string{failed[0].Name, failed[1].Name}
	assert.ElementsMatch(t, []string{"fails", "panics"}, names)
}

func TestSubmit_NestedTasksAreAwaited(t *testing.T) {
	q := NewQueue(2, logging.NewNop())
	defer q.Close()

	var done atomic.Bool
	q.Submit("outer", func(ctx context.Context) error {
		q.Submit("inner", func(ctx context.Context) error {
			time.Sleep(5 * time.Millisecond)
			done.Store(true)
			return nil
		})
		return nil
	})
	q.Wait()

	assert.True(t, done.Load())
}

func TestClose_CancelsAndRejects(t *testing.T) {
	q := NewQueue(1, logging.NewNop())

	started := make(chan struct{})
	q.Submit("blocker", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started
	q.Close()

	assert.False(t, q.Submit("late", func(ctx context.Context) error { return nil }))
	assert.Zero(t, q.Pending())
}
