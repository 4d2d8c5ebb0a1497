// Package server wires configuration into a running crawler: stores, fetch
// pipeline, workers, dispatcher and the HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/JakeFAU/hansard-crawler/internal/admission"
	memoryledger "github.com/JakeFAU/hansard-crawler/internal/admission/memory"
	redisledger "github.com/JakeFAU/hansard-crawler/internal/admission/redis"
	"github.com/JakeFAU/hansard-crawler/internal/api"
	"github.com/JakeFAU/hansard-crawler/internal/cache"
	"github.com/JakeFAU/hansard-crawler/internal/clock/system"
	"github.com/JakeFAU/hansard-crawler/internal/config"
	"github.com/JakeFAU/hansard-crawler/internal/delivery"
	"github.com/JakeFAU/hansard-crawler/internal/dispatcher"
	"github.com/JakeFAU/hansard-crawler/internal/fetch"
	collyfetcher "github.com/JakeFAU/hansard-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/hansard-crawler/internal/hansard"
	"github.com/JakeFAU/hansard-crawler/internal/hash/sha256"
	"github.com/JakeFAU/hansard-crawler/internal/id/uuid"
	"github.com/JakeFAU/hansard-crawler/internal/logging"
	"github.com/JakeFAU/hansard-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/hansard-crawler/internal/policy/simple"
	memorypublisher "github.com/JakeFAU/hansard-crawler/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/hansard-crawler/internal/publisher/pubsub"
	queueMemory "github.com/JakeFAU/hansard-crawler/internal/queue/memory"
	gcsstorage "github.com/JakeFAU/hansard-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/hansard-crawler/internal/storage/local"
	memoryStorage "github.com/JakeFAU/hansard-crawler/internal/storage/memory"
	mongostore "github.com/JakeFAU/hansard-crawler/internal/storage/mongo"
	pgstore "github.com/JakeFAU/hansard-crawler/internal/storage/postgres"
	redisstore "github.com/JakeFAU/hansard-crawler/internal/storage/redis"
	"github.com/JakeFAU/hansard-crawler/internal/traversal"
	"github.com/JakeFAU/hansard-crawler/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	apiServer *api.Server
	dispatch  *dispatcher.Dispatcher
	queue     *queueMemory.Queue
	jobs      hansard.JobStore
	delivery  *delivery.Service
	runner    *worker.Worker
	ids       hansard.IDGenerator
	clock     hansard.Clock

	pool         *pgxpool.Pool
	mongoClient  *mongo.Client
	redisClient  *goredis.Client
	pubsubClient *pubsub.Client
	pubsubTopic  *gcppublisher.Publisher
	storage      *storage.Client

	readyChecks map[string]api.ReadyCheck
}

// NewApp creates an App shell for cfg.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("creating application",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.String("admission_backend", cfg.Admission.Backend),
		zap.String("jobs_backend", cfg.Jobs.Backend),
		zap.String("storage_backend", cfg.Storage.Backend),
	)
	return &App{
		cfg:         cfg,
		logger:      logger,
		ids:         uuid.NewUUIDGenerator(),
		clock:       system.New(),
		readyChecks: map[string]api.ReadyCheck{},
	}, nil
}

// Handler exposes the HTTP API.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the workers and the HTTP server and blocks until the context is
// canceled or a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		a.logger.Info("dispatcher started", zap.Int("workers", a.cfg.Crawler.Concurrency))
		a.dispatch.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	a.queue.Close()
	<-dispatchDone

	return a.Close(shutdownCtx)
}

// Scrape runs one request in the foreground on a dedicated worker and returns
// the finished job together with the rendered report.
func (a *App) Scrape(ctx context.Context, req hansard.ScrapeRequest) (hansard.Job, []byte, error) {
	jobID, err := a.ids.NewID()
	if err != nil {
		return hansard.Job{}, nil, fmt.Errorf("job id: %w", err)
	}
	now := a.clock.Now()
	if err := a.jobs.CreateJob(ctx, hansard.Job{
		ID:        jobID,
		Status:    hansard.JobStatusQueued,
		Request:   req,
		Submitted: now,
	}); err != nil {
		return hansard.Job{}, nil, fmt.Errorf("create job: %w", err)
	}

	job, err := a.runner.Process(ctx, hansard.QueueItem{JobID: jobID, Request: req, Submitted: now.UnixNano()})
	if err != nil {
		return job, nil, err
	}

	rc, err := a.delivery.OpenReport(ctx, job)
	if err != nil {
		return job, nil, fmt.Errorf("open report: %w", err)
	}
	defer rc.Close() //nolint:errcheck // read-only
	body, err := io.ReadAll(rc)
	if err != nil {
		return job, nil, fmt.Errorf("read report: %w", err)
	}
	return job, body, nil
}

// Close gracefully shuts down the application.
func (a *App) Close(ctx context.Context) error {
	if a.queue != nil {
		a.queue.Close()
	}
	a.closeInfrastructure(ctx)
	a.logger.Info("shutdown complete")
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	return nil
}

//nolint:gocognit // Shutdown logic is linear but extensive, ignoring complexity check
func (a *App) closeInfrastructure(ctx context.Context) {
	if a.pubsubTopic != nil {
		a.pubsubTopic.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.mongoClient != nil {
		if err := a.mongoClient.Disconnect(ctx); err != nil {
			a.logger.Warn("mongo disconnect failed", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("redis client close failed", zap.Error(err))
		}
	}
}

// Build creates the application's dependencies. On error every connection
// opened so far is released.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.NewWithFile(cfg.Logging.Development, logging.FileSink{
		Path:       cfg.Logging.File.Path,
		MaxSizeMB:  cfg.Logging.File.MaxSizeMB,
		MaxBackups: cfg.Logging.File.MaxBackups,
		MaxAgeDays: cfg.Logging.File.MaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app init failed: %w", err)
	}
	if err := app.build(ctx); err != nil {
		app.closeInfrastructure(context.WithoutCancel(ctx))
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context) error {
	a.logger.Info("building application dependencies")

	blobs, err := setupStorage(ctx, a)
	if err != nil {
		return err
	}
	documents, err := setupDocuments(ctx, a)
	if err != nil {
		return err
	}
	pageCache, err := cache.New(documents, a.logger.Named("cache"))
	if err != nil {
		return fmt.Errorf("cache init failed: %w", err)
	}
	a.delivery, err = delivery.New(blobs, a.clock, delivery.Config{Prefix: a.cfg.Storage.Prefix}, a.logger.Named("delivery"))
	if err != nil {
		return fmt.Errorf("delivery init failed: %w", err)
	}

	fetchSvc, err := fetch.NewService(
		pageCache,
		collyfetcher.New(collyfetcher.Config{
			UserAgent:     a.cfg.Crawler.UserAgent,
			RespectRobots: a.cfg.Crawler.RespectRobots,
			Timeout:       a.cfg.FetchTimeout(),
			MaxBodySize:   int(a.cfg.HTTP.MaxBodyBytes),
		}),
		a.delivery,
		fetch.Config{Attempts: a.cfg.HTTP.MaxRetries, Delay: a.cfg.RetryDelay()},
		a.logger.Named("fetch"),
		fetch.WithPolicy(setupPolicy(a)),
		fetch.WithClock(a.clock),
	)
	if err != nil {
		return fmt.Errorf("fetch service init failed: %w", err)
	}
	a.logger.Info("using colly fetcher",
		zap.String("user_agent", a.cfg.Crawler.UserAgent),
		zap.Bool("respect_robots", a.cfg.Crawler.RespectRobots),
		zap.Int("max_retries", a.cfg.HTTP.MaxRetries),
		zap.Duration("retry_delay", a.cfg.RetryDelay()),
	)

	engine, err := traversal.New(hansard.NewSource(a.cfg.Source.BaseURL), fetchSvc, a.logger.Named("traversal"))
	if err != nil {
		return fmt.Errorf("traversal init failed: %w", err)
	}

	ledger, err := setupLedger(ctx, a)
	if err != nil {
		return err
	}
	pending, err := admission.New(ledger, a.logger.Named("admission"))
	if err != nil {
		return fmt.Errorf("admission init failed: %w", err)
	}

	a.jobs, err = setupJobStore(ctx, a)
	if err != nil {
		return err
	}
	publisher, err := setupPublisher(ctx, a)
	if err != nil {
		return err
	}

	a.queue = queueMemory.NewQueue(a.cfg.Crawler.QueueDepth)
	deps := worker.Deps{
		Queue:     a.queue,
		Admission: pending,
		Traverser: engine,
		Jobs:      a.jobs,
		Delivery:  a.delivery,
		Publisher: publisher,
		Hasher:    sha256.New(),
		Clock:     a.clock,
	}
	a.runner = worker.New(deps, a.logger.Named("worker").With(zap.String("mode", "foreground")))
	a.dispatch, err = setupDispatcher(a, deps, pending)
	if err != nil {
		return err
	}

	a.apiServer = api.NewServer(api.Deps{
		Submitter: a.dispatch,
		Jobs:      a.jobs,
		Pending:   pending,
		People:    engine,
		Reports:   a.delivery,
		Mailbox:   a.delivery,
	}, api.Options{
		AuthEnabled:    a.cfg.Auth.Enabled,
		APIKey:         a.cfg.Auth.APIKey,
		RequestTimeout: a.cfg.FetchTimeout() * time.Duration(a.cfg.HTTP.MaxRetries+1),
		ReadyChecks:    a.readyChecks,
	}, a.logger.Named("api"))
	return nil
}

func setupStorage(ctx context.Context, app *App) (hansard.BlobStore, error) {
	switch app.cfg.Storage.Backend {
	case config.BackendGCS:
		app.logger.Info("using GCS storage backend", zap.String("bucket", app.cfg.Storage.Bucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.storage = client
		blobs, err := gcsstorage.New(client, gcsstorage.Config{Bucket: app.cfg.Storage.Bucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		return blobs, nil
	case config.BackendLocal:
		app.logger.Info("using local storage backend", zap.String("path", app.cfg.Storage.Local.BaseDir))
		blobs, err := localstorage.New(localstorage.Config{BaseDir: app.cfg.Storage.Local.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		return blobs, nil
	default:
		app.logger.Info("using in-memory storage backend")
		return memoryStorage.NewBlobStore(), nil
	}
}

func setupPool(ctx context.Context, app *App) (*pgxpool.Pool, error) {
	if app.pool != nil {
		return app.pool, nil
	}
	pool, err := pgstore.NewPool(ctx, pgstore.PoolConfig{
		DSN:             app.cfg.Database.DSN,
		MaxConns:        app.cfg.Database.MaxConns,
		MinConns:        app.cfg.Database.MinConns,
		MaxConnLifetime: time.Duration(app.cfg.Database.MaxConnLifetimeMinutes) * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres pool init failed: %w", err)
	}
	app.pool = pool
	app.readyChecks["postgres"] = pool.Ping
	return pool, nil
}

func setupRedis(ctx context.Context, app *App) (*goredis.Client, error) {
	if app.redisClient != nil {
		return app.redisClient, nil
	}
	client, err := redisstore.NewClient(ctx, redisstore.Options{
		Addr:     app.cfg.Redis.Addr,
		Password: app.cfg.Redis.Password,
		DB:       app.cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("redis client init failed: %w", err)
	}
	app.redisClient = client
	app.readyChecks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	return client, nil
}

func setupDocuments(ctx context.Context, app *App) (hansard.DocumentStore, error) {
	switch app.cfg.Cache.Backend {
	case config.BackendPostgres:
		pool, err := setupPool(ctx, app)
		if err != nil {
			return nil, err
		}
		store, err := pgstore.NewDocumentStore(pool, app.cfg.Cache.Table)
		if err != nil {
			return nil, fmt.Errorf("postgres document store init failed: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("postgres document schema failed: %w", err)
		}
		app.logger.Info("using postgres document cache", zap.String("table", app.cfg.Cache.Table))
		return store, nil
	case config.BackendMongo:
		client, err := mongostore.Connect(ctx, app.cfg.Mongo.URI)
		if err != nil {
			return nil, fmt.Errorf("mongo connect failed: %w", err)
		}
		app.mongoClient = client
		app.readyChecks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
		coll := client.Database(app.cfg.Mongo.Database).Collection(app.cfg.Cache.Collection)
		store, err := mongostore.NewDocumentStore(coll)
		if err != nil {
			return nil, fmt.Errorf("mongo document store init failed: %w", err)
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("mongo document indexes failed: %w", err)
		}
		app.logger.Info("using mongo document cache",
			zap.String("database", app.cfg.Mongo.Database),
			zap.String("collection", app.cfg.Cache.Collection),
		)
		return store, nil
	case config.BackendRedis:
		client, err := setupRedis(ctx, app)
		if err != nil {
			return nil, err
		}
		store, err := redisstore.NewDocumentStore(client, app.cfg.Cache.Prefix)
		if err != nil {
			return nil, fmt.Errorf("redis document store init failed: %w", err)
		}
		app.logger.Info("using redis document cache", zap.String("prefix", app.cfg.Cache.Prefix))
		return store, nil
	default:
		app.logger.Warn("using in-memory document cache, pages are refetched after restart")
		return memoryStorage.NewDocumentStore(), nil
	}
}

func setupLedger(ctx context.Context, app *App) (hansard.Ledger, error) {
	if app.cfg.Admission.Backend != config.BackendRedis {
		app.logger.Info("using in-memory admission ledger")
		return memoryledger.NewLedger(), nil
	}
	client, err := setupRedis(ctx, app)
	if err != nil {
		return nil, err
	}
	ledger, err := redisledger.NewLedger(client, app.cfg.Admission.Key)
	if err != nil {
		return nil, fmt.Errorf("redis ledger init failed: %w", err)
	}
	app.logger.Info("using redis admission ledger", zap.String("key", app.cfg.Admission.Key))
	return ledger, nil
}

func setupJobStore(ctx context.Context, app *App) (hansard.JobStore, error) {
	if app.cfg.Jobs.Backend != config.BackendPostgres {
		app.logger.Info("using in-memory job store")
		return memoryStorage.NewJobStore(), nil
	}
	pool, err := setupPool(ctx, app)
	if err != nil {
		return nil, err
	}
	store, err := pgstore.NewJobStore(pool, app.cfg.Jobs.Table)
	if err != nil {
		return nil, fmt.Errorf("postgres job store init failed: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("postgres job schema failed: %w", err)
	}
	app.logger.Info("using postgres job store", zap.String("table", app.cfg.Jobs.Table))
	return store, nil
}

func setupPublisher(ctx context.Context, app *App) (hansard.Publisher, error) {
	if app.cfg.PubSub.TopicName == "" || app.cfg.PubSub.ProjectID == "" {
		app.logger.Warn("No Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	var err error
	app.pubsubClient, err = pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.pubsubTopic = gcppublisher.New(app.pubsubClient.Topic(app.cfg.PubSub.TopicName))
	app.logger.Info(
		"Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return app.pubsubTopic, nil
}

func setupPolicy(app *App) hansard.Policy {
	if !app.cfg.RateLimit.Enabled {
		app.logger.Info("rate limiter disabled, using simple policy")
		return simple.New()
	}
	app.logger.Info("rate limiter enabled",
		zap.Float64("rps", app.cfg.RateLimit.RPS),
		zap.Int("burst", app.cfg.RateLimit.Burst),
	)
	return ratelimit.New(ratelimit.Config{
		DefaultRPS:   app.cfg.RateLimit.RPS,
		DefaultBurst: app.cfg.RateLimit.Burst,
	})
}

func setupDispatcher(app *App, deps worker.Deps, pending *admission.Queue) (*dispatcher.Dispatcher, error) {
	workers := make([]*worker.Worker, 0, app.cfg.Crawler.Concurrency)
	for i := 0; i < app.cfg.Crawler.Concurrency; i++ {
		workers = append(workers, worker.New(deps, app.logger.Named("worker").With(zap.Int("index", i))))
	}
	d, err := dispatcher.New(dispatcher.Deps{
		Queue:     app.queue,
		Admission: pending,
		Jobs:      deps.Jobs,
		IDs:       app.ids,
		Clock:     app.clock,
		Notifier:  deps.Delivery,
	}, workers, app.logger.Named("dispatcher"))
	if err != nil {
		return nil, fmt.Errorf("dispatcher init failed: %w", err)
	}
	return d, nil
}
