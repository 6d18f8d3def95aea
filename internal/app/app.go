// Package app builds and holds the long-lived services behind the CLI commands.
package app

import (
	"context"
	"fmt"

	pubsubclient "cloud.google.com/go/pubsub"
	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-range-crawler/internal/api"
	"github.com/JakeFAU/catalog-range-crawler/internal/clock/system"
	"github.com/JakeFAU/catalog-range-crawler/internal/config"
	"github.com/JakeFAU/catalog-range-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-range-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/catalog-range-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/catalog-range-crawler/internal/hash/sha256"
	"github.com/JakeFAU/catalog-range-crawler/internal/id/uuid"
	"github.com/JakeFAU/catalog-range-crawler/internal/policy/ratelimit"
	kafkapublisher "github.com/JakeFAU/catalog-range-crawler/internal/publisher/kafka"
	memorypublisher "github.com/JakeFAU/catalog-range-crawler/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/catalog-range-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/catalog-range-crawler/internal/storage/gcs"
	"github.com/JakeFAU/catalog-range-crawler/internal/storage/local"
	memorystorage "github.com/JakeFAU/catalog-range-crawler/internal/storage/memory"
	"github.com/JakeFAU/catalog-range-crawler/internal/storage/postgres"
	redisstore "github.com/JakeFAU/catalog-range-crawler/internal/storage/redis"
	"github.com/JakeFAU/catalog-range-crawler/internal/storage/serial"
	"github.com/JakeFAU/catalog-range-crawler/internal/storage/sqlite"
)

// App holds the services shared by the crawl and status commands.
type App struct {
	cfg          config.Config
	logger       *zap.Logger
	store        crawler.Store
	archive      crawler.BlobStore
	publisher    crawler.Publisher
	orchestrator *crawler.Orchestrator
	closers      []func() error
}

// Status summarizes what the store already holds.
type Status struct {
	KnownIDs  int
	MaxID     int64
	HasMax    bool
	NextLower int64
}

// Option customizes New.
type Option func(*options)

type options struct {
	transport crawler.Transport
	sleeper   crawler.Sleeper
}

// WithTransport replaces the colly transport.
func WithTransport(t crawler.Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithSleeper replaces the retry backoff sleep.
func WithSleeper(s crawler.Sleeper) Option {
	return func(o *options) {
		o.sleeper = s
	}
}

// New wires every service from cfg. It fails fast when a backend cannot be
// reached, releasing whatever was already opened.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg, logger: logger}
	if err := a.init(ctx, o); err != nil {
		if cerr := a.Close(); cerr != nil {
			logger.Warn("cleanup after failed init", zap.Error(cerr))
		}
		return nil, err
	}
	logger.Info("application services initialized",
		zap.String("store", cfg.Store.Driver),
		zap.String("archive", driverOrNone(cfg.Archive.Driver)),
		zap.String("publish", driverOrNone(cfg.Publish.Driver)),
	)
	return a, nil
}

func (a *App) init(ctx context.Context, o options) error {
	var err error
	if a.store, err = a.buildStore(ctx); err != nil {
		return err
	}
	if a.archive, err = a.buildArchive(ctx); err != nil {
		return err
	}
	if a.publisher, err = a.buildPublisher(ctx); err != nil {
		return err
	}

	transport := o.transport
	if transport == nil {
		transport = collyfetcher.New(collyfetcher.Config{
			UserAgent:     a.cfg.HTTP.UserAgent,
			RespectRobots: a.cfg.HTTP.RespectRobots,
			Timeout:       a.cfg.HTTP.Timeout,
		})
	}
	fetcher, err := crawler.NewRetryingFetcher(
		a.cfg.Source.BaseURL,
		transport,
		a.cfg.RetryPolicy(),
		crawler.WithLimiter(ratelimit.New(ratelimit.Config{
			RPS:   a.cfg.HTTP.RequestsPerSecond,
			Burst: a.cfg.HTTP.Burst,
		})),
		crawler.WithSleeper(o.sleeper),
		crawler.WithFetchLogger(a.logger.Named("fetch")),
	)
	if err != nil {
		return fmt.Errorf("init fetcher: %w", err)
	}

	extractor, err := extract.New(a.cfg.Selectors())
	if err != nil {
		return fmt.Errorf("init extractor: %w", err)
	}

	a.orchestrator, err = crawler.NewOrchestrator(crawler.Dependencies{
		Fetcher:   fetcher,
		Extractor: extractor,
		Store:     a.store,
		Archive:   a.archive,
		Publisher: a.publisher,
		Hasher:    sha256.New(),
		Clock:     system.New(),
		IDs:       uuid.New(),
	}, crawler.OrchestratorConfig{
		ProgressInterval: a.cfg.Crawler.ProgressInterval,
		ContentType:      a.cfg.Archive.ContentType,
		ArchivePrefix:    a.cfg.Archive.Prefix,
		Topic:            a.cfg.Publish.Topic,
	}, a.logger.Named("crawler"))
	if err != nil {
		return fmt.Errorf("init orchestrator: %w", err)
	}
	return nil
}

func (a *App) buildStore(ctx context.Context) (crawler.Store, error) {
	sc := a.cfg.Store
	switch sc.Driver {
	case config.StoreMemory:
		a.logger.Info("using in-memory record store; records are lost on exit")
		return memorystorage.NewRecordStore(), nil
	case config.StoreSQLite:
		db, err := sqlite.Open(ctx, sqlite.Config{Path: sc.SQLite.Path, Table: sc.Table})
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		// SQLite takes one writer at a time.
		s, err := serial.New(db, sc.SQLite.QueueDepth)
		if err != nil {
			return nil, fmt.Errorf("init serial store: %w", err)
		}
		a.closers = append(a.closers, func() error {
			s.Close()
			return nil
		})
		a.logger.Info("using sqlite record store", zap.String("path", sc.SQLite.Path))
		return s, nil
	case config.StorePostgres:
		pg, err := postgres.New(ctx, postgres.Config{
			DSN:      sc.Postgres.DSN,
			Table:    sc.Table,
			MaxConns: sc.Postgres.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		a.closers = append(a.closers, func() error {
			pg.Close()
			return nil
		})
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		a.logger.Info("using postgres record store", zap.String("table", sc.Table))
		return pg, nil
	case config.StoreRedis:
		rs, err := redisstore.New(redisstore.Config{Addr: sc.Redis.Addr, Prefix: sc.Redis.Prefix})
		if err != nil {
			return nil, fmt.Errorf("init redis store: %w", err)
		}
		a.closers = append(a.closers, rs.Close)
		a.logger.Info("using redis record store", zap.String("addr", sc.Redis.Addr))
		return rs, nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", sc.Driver)
	}
}

func (a *App) buildArchive(ctx context.Context) (crawler.BlobStore, error) {
	ac := a.cfg.Archive
	switch ac.Driver {
	case "", config.DriverNone:
		return nil, nil
	case config.DriverMemory:
		return memorystorage.NewBlobStore(), nil
	case config.ArchiveLocal:
		bs, err := local.New(local.Config{BaseDir: ac.Local.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("init local archive: %w", err)
		}
		return bs, nil
	case config.ArchiveGCS:
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		bs, err := gcs.New(client, gcs.Config{Bucket: ac.GCS.Bucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs archive: %w", err)
		}
		return bs, nil
	default:
		return nil, fmt.Errorf("unknown archive driver: %s", ac.Driver)
	}
}

func (a *App) buildPublisher(ctx context.Context) (crawler.Publisher, error) {
	pc := a.cfg.Publish
	switch pc.Driver {
	case "", config.DriverNone:
		return nil, nil
	case config.DriverMemory:
		return memorypublisher.New(), nil
	case config.PublishKafka:
		p, err := kafkapublisher.New(kafkapublisher.Config{Brokers: pc.Kafka.Brokers})
		if err != nil {
			return nil, fmt.Errorf("init kafka publisher: %w", err)
		}
		a.closers = append(a.closers, p.Close)
		return p, nil
	case config.PublishPubSub:
		client, err := pubsubclient.NewClient(ctx, pc.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("create pubsub client: %w", err)
		}
		p, err := pubsubpublisher.New(client)
		if err != nil {
			return nil, multierr.Append(err, client.Close())
		}
		a.closers = append(a.closers, p.Close)
		return p, nil
	default:
		return nil, fmt.Errorf("unknown publish driver: %s", pc.Driver)
	}
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Store returns the configured record store.
func (a *App) Store() crawler.Store {
	return a.store
}

// Archive returns the configured blob store, or nil when archiving is off.
func (a *App) Archive() crawler.BlobStore {
	return a.archive
}

// Publisher returns the configured publisher, or nil when publishing is off.
func (a *App) Publisher() crawler.Publisher {
	return a.publisher
}

// Crawl runs one crawl over rc. When metrics.addr is set the ops server runs
// for the duration of the crawl. The error is the orchestrator's multierr of
// worker failures, unwrapped.
func (a *App) Crawl(ctx context.Context, rc crawler.RunConfig) (crawler.RunReport, error) {
	if addr := a.cfg.Metrics.Addr; addr != "" {
		srvCtx, stop := context.WithCancel(ctx)
		defer stop()
		srv := api.NewServer(a.orchestrator, a.logger)
		go func() {
			if err := srv.ListenAndServe(srvCtx, addr); err != nil {
				a.logger.Warn("ops server stopped", zap.Error(err))
			}
		}()
	}
	return a.orchestrator.Run(ctx, rc)
}

// Status reports the known-id count and the lower bound an automatic run would use.
func (a *App) Status(ctx context.Context) (Status, error) {
	known, err := crawler.LoadKnownIDs(ctx, a.store)
	if err != nil {
		return Status{}, err
	}
	st := Status{KnownIDs: known.Len(), NextLower: known.LowerBound()}
	st.MaxID, st.HasMax = known.Max()
	return st, nil
}

// Close releases backends in reverse order of creation.
func (a *App) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	a.closers = nil
	return err
}

func driverOrNone(d string) string {
	if d == "" {
		return config.DriverNone
	}
	return d
}
