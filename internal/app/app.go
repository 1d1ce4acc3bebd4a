package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/gallery/internal/catalog"
	"github.com/MrSnakeDoc/gallery/internal/config"
	"github.com/MrSnakeDoc/gallery/internal/events"
	"github.com/MrSnakeDoc/gallery/internal/gallery"
	"github.com/MrSnakeDoc/gallery/internal/httpserver"
	"github.com/MrSnakeDoc/gallery/internal/httpserver/deps"
	"github.com/MrSnakeDoc/gallery/internal/logger"
	"github.com/MrSnakeDoc/gallery/internal/messaging"
	"github.com/MrSnakeDoc/gallery/internal/metrics"
	"github.com/MrSnakeDoc/gallery/internal/publisher"
	"github.com/MrSnakeDoc/gallery/internal/redis"
	"github.com/MrSnakeDoc/gallery/internal/scheduler"
	"github.com/MrSnakeDoc/gallery/internal/store"
	"github.com/MrSnakeDoc/gallery/internal/store/memory"
	redisstore "github.com/MrSnakeDoc/gallery/internal/store/redis"
	"github.com/MrSnakeDoc/gallery/internal/store/sqlite"
	"github.com/MrSnakeDoc/gallery/internal/utils"
	"github.com/MrSnakeDoc/gallery/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	store       store.Store
	redisClient *goredis.Client
	catalog     *catalog.Index
	hub         *events.Hub
	reloader    *scheduler.CatalogReloader
	dropWatcher *scheduler.DropWatcher
	producer    *messaging.Producer
	consumer    *messaging.Consumer
}

// New wires the service from the environment. Any dependency that cannot be
// reached at startup is fatal.
func New() (*App, error) {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	a := &App{cfg: cfg, logger: loggerClient}

	// Initialize storage early - fail fast if unavailable
	if err := a.openStore(); err != nil {
		return nil, err
	}

	g, err := gallery.New(cfg.BaseURL,
		gallery.WithFeedID(cfg.FeedID),
		gallery.WithFeedTitle(cfg.FeedTitle))
	if err != nil {
		a.closeStore()
		return nil, err
	}

	m := metrics.New()
	pub := publisher.New(g, a.store, loggerClient.Named("publisher"), publisher.Options{
		FeedName:    cfg.FeedName,
		MaxAttempts: cfg.PublishAttempts,
		Backoff:     cfg.PublishBackoff,
		Recorder:    m,
	})

	a.catalog = catalog.NewIndex()
	a.hub = events.NewHub(loggerClient.Named("events"))

	// Create manual reload trigger channel
	reloadTrigger := make(chan struct{}, 1)
	a.reloader = scheduler.NewCatalogReloader(pub, a.catalog, m, loggerClient.Named("catalog"), cfg.ReloadInterval, reloadTrigger)

	pub.Subscribe(a.hub)
	pub.Subscribe(a.reloader)

	if cfg.DropDir != "" {
		a.dropWatcher = scheduler.NewDropWatcher(cfg.DropDir, pub, loggerClient.Named("drop"), cfg.DropDebounce)
	}

	var producer deps.Enqueuer
	if cfg.NSQDAddr != "" {
		if err := a.openQueue(pub); err != nil {
			a.closeStore()
			return nil, err
		}
		producer = a.producer
	}

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:          loggerClient,
		StartTime:       time.Now(),
		Version:         version.Version,
		Commit:          version.Commit,
		BuildDate:       version.BuildDate,
		GoVersion:       version.GoVersion,
		TimeNow:         time.Now,
		AllowedHosts:    cfg.AllowedHosts,
		AllowedCIDRS:    cfg.AllowedCIDRS,
		TrustProxy:      cfg.TrustProxy,
		CORSOrigins:     cfg.CORSOrigins,
		RequestTimeout:  cfg.RequestTimeout,
		StorageBackend:  cfg.StorageBackend,
		Store:           a.store,
		Publisher:       pub,
		Catalog:         a.catalog,
		Producer:        producer,
		Events:          a.hub,
		Metrics:         m,
		ReloadTrigger:   reloadTrigger,
		UploadTokenHash: cfg.UploadTokenHash,
		MaxUploadBytes:  cfg.MaxUploadBytes,
		UploadBurst:     cfg.UploadBurst,
		UploadPerMin:    cfg.UploadPerMin,
	}

	a.server = httpserver.New(cfg, loggerClient, d)
	return a, nil
}

func (a *App) openStore() error {
	cfg := a.cfg
	switch cfg.StorageBackend {
	case config.BackendRedis:
		a.logger.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		client, err := redis.New(context.Background(), redis.OptionsFromConfig(cfg), a.logger.Named("redis"))
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.redisClient = client
		a.store = redisstore.NewStore(client)
	case config.BackendSQLite:
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open sqlite store: %w", err)
		}
		a.store = s
	default:
		a.logger.Warn("using in-memory store, published packages are lost on restart")
		a.store = memory.New()
	}
	a.logger.Info("store initialized successfully", logger.String("backend", cfg.StorageBackend))
	return nil
}

func (a *App) openQueue(pub *publisher.Publisher) error {
	cfg := a.cfg
	log := a.logger.Named("nsq").With(logger.String("topic", cfg.NSQTopic))
	producer, err := messaging.NewProducer(messaging.ProducerConfig{Host: cfg.NSQDAddr, Topic: cfg.NSQTopic}, log)
	if err != nil {
		return err
	}
	a.producer = producer

	if !cfg.NSQConsumers {
		return nil
	}
	consumer, err := messaging.NewConsumer(messaging.ConsumerConfig{
		NSQLookup: cfg.NSQLookupd,
		NSQD:      cfg.NSQDAddr,
		Topic:     cfg.NSQTopic,
		Channel:   cfg.NSQChannel,
		Workers:   cfg.NSQWorkers,
		Attempts:  uint16(cfg.NSQAttempts),
		Timeout:   cfg.NSQTimeout,
	}, pub, log)
	if err != nil {
		producer.Stop()
		return err
	}
	a.consumer = consumer
	return nil
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Gallery v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.start(ctx); err != nil {
		a.shutdown()
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	a.shutdown()
	if runErr != nil {
		return runErr
	}
	a.logger.Info("✅ Gallery stopped cleanly")
	return nil
}

// start runs the background workers. The catalog is loaded before the server
// accepts requests.
func (a *App) start(ctx context.Context) error {
	// Start catalog reloader (loads the feed and starts periodic refresh)
	if err := a.reloader.Start(ctx); err != nil {
		return fmt.Errorf("failed to start catalog reloader: %w", err)
	}
	a.logger.Info("catalog reloader started",
		logger.Duration("interval", a.cfg.ReloadInterval))

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			return fmt.Errorf("failed to start publish consumer: %w", err)
		}
		a.logger.Info("publish consumer started",
			logger.String("topic", a.cfg.NSQTopic),
			logger.String("channel", a.cfg.NSQChannel))
	}

	if a.dropWatcher != nil {
		if err := a.dropWatcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start drop folder watcher: %w", err)
		}
	}
	return nil
}

// shutdown stops intake first, then drains workers, then closes storage.
func (a *App) shutdown() {
	if a.dropWatcher != nil {
		a.dropWatcher.Stop()
	}

	// Websocket connections are hijacked and not closed by Shutdown.
	a.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		a.logger.Warn("failed to stop server", logger.Error(err))
	}

	if a.consumer != nil {
		a.consumer.Stop()
	}
	if a.producer != nil {
		a.producer.Stop()
	}

	a.reloader.Stop()
	utils.MustClose(a.catalog, "catalog", a.logger)
	a.closeStore()
	_ = a.logger.Sync()
}

func (a *App) closeStore() {
	utils.MustClose(a.store, "store", a.logger)
	if a.redisClient != nil {
		// The redis store does not own the client.
		utils.MustClose(a.redisClient, "redis", a.logger)
	}
}
