package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/lotkeeper/internal/client/config"
	"github.com/dmitrijs2005/lotkeeper/internal/client/connectivity"
	"github.com/dmitrijs2005/lotkeeper/internal/client/models"
	"github.com/dmitrijs2005/lotkeeper/internal/client/remote"
	"github.com/dmitrijs2005/lotkeeper/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/lotkeeper/internal/client/services"
	"github.com/dmitrijs2005/lotkeeper/internal/client/store"
	"github.com/dmitrijs2005/lotkeeper/internal/logging"
	"github.com/dmitrijs2005/lotkeeper/internal/tasks"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// App owns every component of a running client. There are no package level
// singletons: tests build as many Apps as they need.
type App struct {
	config  *config.Config
	logger  logging.Logger
	store   *store.Store
	queue   *tasks.Queue
	monitor *connectivity.Monitor
	catalog services.CatalogService
	photos  services.PhotoService
	sync    services.SyncService

	reader    *bufio.Reader
	out       io.Writer
	closers   []io.Closer
	closeOnce sync.Once
	closeErr  error

	// sale is the sale used by lots and addlot when no id is given.
	sale string
}

// NewApp builds the logger, opens the local store and the remotes, then wires
// the services. With c.Demo the remotes are in-memory and pre-seeded.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, logCloser := logging.New(logging.Options{File: c.LogFile, Level: c.LogLevel})

	st, err := store.Open(ctx, c.LocalStorePath, logger)
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("open local store: %w", err)
	}

	rs, objs, remoteCloser, err := openRemotes(ctx, c, logger)
	if err != nil {
		_ = st.Close()
		_ = logCloser.Close()
		return nil, err
	}

	a := newApp(c, logger, st, rs, objs)
	a.closers = append(a.closers, remoteCloser, logCloser)
	return a, nil
}

func newApp(c *config.Config, logger logging.Logger, st *store.Store, rs remote.Store, objs remote.ObjectStorage) *App {
	queue := tasks.NewQueue(c.Workers, logger)
	monitor := connectivity.NewMonitor(rs, queue, c.SyncInterval, logger)

	deps := services.Deps{
		DB:      st.DB,
		Repos:   repomanager.NewSQLiteRepositoryManager(),
		Remote:  rs,
		Objects: objs,
		Queue:   queue,
		Online:  monitor.Status,
		Logger:  logger,
	}
	photos := services.NewPhotoService(deps)
	lots := services.NewLotNumberService(deps)
	syncSvc := services.NewSyncService(deps, st, photos, lots, c.CompanyID)
	monitor.SetSyncFunc(syncSvc.Reconnect)

	return &App{
		config:  c,
		logger:  logger,
		store:   st,
		queue:   queue,
		monitor: monitor,
		catalog: services.NewCatalogService(deps, lots),
		photos:  photos,
		sync:    syncSvc,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}
}

func openRemotes(ctx context.Context, c *config.Config, logger logging.Logger) (remote.Store, remote.ObjectStorage, io.Closer, error) {
	if c.Demo {
		ms, objs := remote.NewMemoryStore(), remote.NewMemoryObjects()
		if c.CompanyID == "" {
			c.CompanyID = demoCompanyID
		}
		if err := seedDemo(ctx, ms, objs); err != nil {
			return nil, nil, nil, fmt.Errorf("seed demo data: %w", err)
		}
		logger.Info(ctx, "running against in-memory remotes")
		return ms, objs, nil, nil
	}

	db, err := remote.OpenPostgres(c.RemoteDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open remote store: %w", err)
	}
	// the client must start offline, so a failed migration is not fatal
	if err := remote.Migrate(ctx, db); err != nil {
		logger.Warn(ctx, "remote migrations not applied", "error", err)
	}

	objs, err := remote.NewS3Storage(ctx, remote.S3Config{
		Endpoint:  c.S3Endpoint,
		Region:    c.S3Region,
		AccessKey: c.S3AccessKey,
		SecretKey: c.S3SecretKey,
		Bucket:    c.S3Bucket,
	})
	if err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}
	return remote.NewPostgresStore(db), objs, db, nil
}

func (a *App) mode() Mode {
	if a.monitor.Status() {
		return ModeOnline
	}
	return ModeOffline
}

func (a *App) getStatus() string {
	s := string(a.mode())
	if a.sync.InProgress() {
		s += " syncing"
	}
	if a.sale != "" {
		s += " sale=" + shortID(a.sale)
	}
	return fmt.Sprintf("(%s)", s)
}

// Run starts the connectivity probe loop and blocks in the REPL until the
// user quits or ctx is done.
func (a *App) Run(ctx context.Context) {
	defer a.Close()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unsubscribeProgress := a.sync.SubscribeProgress(func(p models.SyncProgress) {
		fmt.Fprintf(a.out, "bootstrap %d/%d: %s\n", p.Current, p.Total, p.Stage)
	})
	defer unsubscribeProgress()
	unsubscribeMode := a.monitor.Subscribe(func(online bool) {
		mode := ModeOffline
		if online {
			mode = ModeOnline
		}
		fmt.Fprintf(a.out, "\nSwitched to %s mode\n", mode)
	})
	defer unsubscribeMode()

	go a.monitor.Run(ctx, a.config.OnlineCheckInterval)

	fmt.Fprintln(a.out, "Welcome to lotkeeper (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader)
}

// Close stops background work and releases the store, the remote
// connection and the log file.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.monitor.Stop()
		a.queue.Close()

		errs := []error{a.store.Close()}
		for _, c := range a.closers {
			if c != nil {
				errs = append(errs, c.Close())
			}
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}
