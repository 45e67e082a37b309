// Package connectivity tracks whether the remote store is reachable and
// drives synchronization from connectivity changes.
//
// On an offline→online transition the Monitor notifies subscribers, starts
// the periodic sync timer and queues one immediate sync. On online→offline it
// notifies subscribers and stops the timer. Timer start and stop are
// idempotent, so repeated status reports never stack timers.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/lotkeeper/internal/logging"
	"github.com/dmitrijs2005/lotkeeper/internal/notify"
	"github.com/dmitrijs2005/lotkeeper/internal/tasks"
)

const probeTimeout = 3 * time.Second

// Pinger checks the remote store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SyncFunc performs one sync pass.
type SyncFunc func(ctx context.Context) error

type Monitor struct {
	pinger       Pinger
	queue        *tasks.Queue
	subject      *notify.Subject[bool]
	syncInterval time.Duration
	logger       logging.Logger

	mu        sync.Mutex
	online    bool
	sync      SyncFunc
	stopTimer chan struct{}
	starts    int
}

func NewMonitor(pinger Pinger, queue *tasks.Queue, syncInterval time.Duration, logger logging.Logger) *Monitor {
	return &Monitor{
		pinger:       pinger,
		queue:        queue,
		subject:      notify.NewSubject[bool](logger),
		syncInterval: syncInterval,
		logger:       logger.With("component", "connectivity"),
	}
}

// SetSyncFunc installs the sync pass run on reconnect and on every timer tick.
func (m *Monitor) SetSyncFunc(fn SyncFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sync = fn
}

func (m *Monitor) Status() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers fn for status changes. The returned function
// unregisters it.
func (m *Monitor) Subscribe(fn func(online bool)) (unsubscribe func()) {
	tok := m.subject.Register(fn)
	return func() { m.subject.Unregister(tok) }
}

func (m *Monitor) SetOnline(ctx context.Context, online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()

	if !changed {
		return
	}

	if online {
		m.logger.Info(ctx, "connectivity restored")
	} else {
		m.logger.Info(ctx, "connectivity lost")
	}
	m.subject.Publish(ctx, online)

	if online {
		m.startTimer()
		m.triggerSync("sync on reconnect")
	} else {
		m.stopTimerIfRunning()
	}
}

func (m *Monitor) triggerSync(name string) {
	m.mu.Lock()
	fn := m.sync
	m.mu.Unlock()

	if fn == nil {
		return
	}
	m.queue.Submit(name, func(ctx context.Context) error { return fn(ctx) })
}

func (m *Monitor) startTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopTimer != nil || m.syncInterval <= 0 {
		return
	}
	stop := make(chan struct{})
	m.stopTimer = stop
	m.starts++

	go func() {
		ticker := time.NewTicker(m.syncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.triggerSync("periodic sync")
			}
		}
	}()
}

func (m *Monitor) stopTimerIfRunning() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopTimer == nil {
		return
	}
	close(m.stopTimer)
	m.stopTimer = nil
}

// Stop halts the periodic sync timer.
func (m *Monitor) Stop() {
	m.stopTimerIfRunning()
}

// TimerRunning reports whether the periodic sync timer is active.
func (m *Monitor) TimerRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopTimer != nil
}

// Probe pings the remote store once and updates the status.
func (m *Monitor) Probe(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	err := m.pinger.Ping(pctx)
	if err != nil {
		m.logger.Debug(ctx, "remote probe failed", "error", err)
	}
	if ctx.Err() != nil {
		return m.Status()
	}
	m.SetOnline(ctx, err == nil)
	return err == nil
}

// Run probes the remote store every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	m.Probe(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer m.stopTimerIfRunning()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}
