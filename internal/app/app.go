// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/malirobot/musiclinks/internal/api"
	"github.com/malirobot/musiclinks/internal/archive"
	archgcs "github.com/malirobot/musiclinks/internal/archive/gcs"
	archlocal "github.com/malirobot/musiclinks/internal/archive/local"
	archmem "github.com/malirobot/musiclinks/internal/archive/memory"
	"github.com/malirobot/musiclinks/internal/catalog"
	clocksys "github.com/malirobot/musiclinks/internal/clock/system"
	"github.com/malirobot/musiclinks/internal/config"
	"github.com/malirobot/musiclinks/internal/logging"
	"github.com/malirobot/musiclinks/internal/progress"
	"github.com/malirobot/musiclinks/internal/progress/sinks"
	"github.com/malirobot/musiclinks/internal/publisher"
	pubsubpub "github.com/malirobot/musiclinks/internal/publisher/pubsub"
	"github.com/malirobot/musiclinks/internal/ratelimit"
	"github.com/malirobot/musiclinks/internal/store"
	storemem "github.com/malirobot/musiclinks/internal/store/memory"
	storepg "github.com/malirobot/musiclinks/internal/store/postgres"
	"github.com/malirobot/musiclinks/internal/traversal"

	promclient "github.com/prometheus/client_golang/prometheus"
)

// App holds all the shared, long-lived services for the application.
// It is initialized once at startup and passed to the commands that need it.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	graph     store.Store
	catalog   *catalog.ResilientClient
	hub       *progress.Hub
	publisher publisher.Publisher
	artists   *traversal.ArtistProcessor
	runs      *api.RunService
	server    *api.Server

	gcsClient    *storage.Client
	pubsubClient *pubsub.Client
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Graph exposes the configured collaboration graph store.
func (a *App) Graph() store.Store { return a.graph }

// Catalog exposes the rate-limited retrying catalog client.
func (a *App) Catalog() *catalog.ResilientClient { return a.catalog }

// Artists exposes the artist processor for one-off catalog lookups.
func (a *App) Artists() *traversal.ArtistProcessor { return a.artists }

// Runs exposes the traversal run registry.
func (a *App) Runs() *api.RunService { return a.runs }

// Server exposes the HTTP API server.
func (a *App) Server() *api.Server { return a.server }

// ManagerOptions returns the options every traversal manager should carry:
// progress emission plus run-completion publishing when a topic is set.
func (a *App) ManagerOptions() []traversal.ManagerOption {
	opts := []traversal.ManagerOption{traversal.WithEmitter(a.hub)}
	if a.publisher != nil && a.cfg.PubSub.TopicName != "" {
		opts = append(opts, traversal.WithPublisher(a.publisher, a.cfg.PubSub.TopicName))
	}
	return opts
}

// NewApp creates and initializes a new App from the loaded configuration.
// It is the central point for service initialization and fails fast if any
// critical service cannot be built.
func NewApp(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	a := &App{cfg: cfg, logger: logger}
	logger.Info("Initializing application services")

	if err := a.initArchiveAndCatalog(ctx); err != nil {
		return nil, err
	}
	if err := a.initGraph(ctx); err != nil {
		return nil, err
	}
	if err := a.initProgress(); err != nil {
		return nil, err
	}
	if err := a.initPublisher(ctx); err != nil {
		return nil, err
	}

	clock := clocksys.New()
	a.artists = traversal.NewArtistProcessor(a.catalog, a.graph, clock, logger)

	factory := func(tc traversal.Config) (*traversal.Manager, error) {
		return traversal.NewManager(tc, a.catalog, a.graph, clock, logger, a.ManagerOptions()...)
	}
	a.runs = api.NewRunService(factory, clock, logger)
	a.server = api.NewServer(a.runs, a.artists, a.catalog, cfg.Traversal, logger)

	logger.Info("Application services initialized",
		zap.String("database", cfg.Database.Provider),
		zap.String("archive", cfg.Archive.Provider),
		zap.Bool("pubsub", a.publisher != nil))
	return a, nil
}

func (a *App) initArchiveAndCatalog(ctx context.Context) error {
	var archiver archive.Store
	switch a.cfg.Archive.Provider {
	case "":
		// No archiver: raw payloads are not retained.
	case "memory":
		archiver = archmem.New()
	case "local":
		s, err := archlocal.New(archlocal.Config{BaseDir: a.cfg.Archive.BaseDir})
		if err != nil {
			return fmt.Errorf("init local archive: %w", err)
		}
		archiver = s
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init gcs client: %w", err)
		}
		a.gcsClient = client
		s, err := archgcs.New(client, archgcs.Config{Bucket: a.cfg.Archive.GCSBucket})
		if err != nil {
			return fmt.Errorf("init gcs archive: %w", err)
		}
		archiver = s
	default:
		return fmt.Errorf("unknown archive provider %q", a.cfg.Archive.Provider)
	}

	base, err := catalog.NewClient(catalog.Config{
		BaseURL:     a.cfg.Catalog.BaseURL,
		Token:       a.cfg.Catalog.Token,
		UserAgent:   a.cfg.Catalog.UserAgent,
		HTTPTimeout: a.cfg.Catalog.HTTPTimeout(),
	}, archiver, a.logger)
	if err != nil {
		return fmt.Errorf("init catalog client: %w", err)
	}

	limiter := ratelimit.New(ratelimit.Config{RequestsPerMinute: a.cfg.Catalog.RequestsPerMinute})
	initial, max := a.cfg.Catalog.Backoff()
	retry := catalog.RetryConfig{
		MaxAttempts:    a.cfg.Catalog.MaxRetries,
		InitialBackoff: initial,
		Multiplier:     2,
		MaxBackoff:     max,
	}
	resilient, err := catalog.NewResilientClient(base, limiter, retry, a.logger)
	if err != nil {
		return fmt.Errorf("init resilient client: %w", err)
	}
	a.catalog = resilient
	return nil
}

func (a *App) initGraph(ctx context.Context) error {
	switch a.cfg.Database.Provider {
	case "memory":
		a.graph = storemem.New()
	case "postgres":
		a.logger.Info("Connecting to PostgreSQL")
		s, err := storepg.New(ctx, storepg.Config{
			DSN:      a.cfg.Database.DSN,
			MaxConns: a.cfg.Database.MaxConns,
			MinConns: a.cfg.Database.MinConns,
		})
		if err != nil {
			return fmt.Errorf("init postgres store: %w", err)
		}
		a.graph = s
	default:
		return fmt.Errorf("unknown database provider %q", a.cfg.Database.Provider)
	}
	return nil
}

func (a *App) initProgress() error {
	promSink, err := sinks.NewPrometheusSink(promclient.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("init prometheus sink: %w", err)
	}
	a.hub = progress.NewHub(
		progress.Config{Logger: a.logger},
		sinks.NewLogSink(a.logger),
		promSink,
	)
	return nil
}

func (a *App) initPublisher(ctx context.Context) error {
	if a.cfg.PubSub.TopicName == "" {
		return nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("init pubsub client: %w", err)
	}
	a.pubsubClient = client
	a.publisher = pubsubpub.New(client)
	a.logger.Info("Run notifications enabled",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName))
	return nil
}

// Close gracefully shuts down all services in the container.
func (a *App) Close() {
	a.logger.Info("Shutting down application services")
	if a.hub != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("Error closing progress hub", zap.Error(err))
		}
	}
	if a.graph != nil {
		a.graph.Close()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("Error closing pubsub client", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("Error closing storage client", zap.Error(err))
		}
	}
	// Best effort; stderr sync failures are expected on some platforms.
	_ = a.logger.Sync()
}
