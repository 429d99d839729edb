package di

import (
	"context"
	"log"
	"net/http"

	"github.com/boomsapp/boomsd/internal/config"
	"github.com/boomsapp/boomsd/internal/core/pipeline"
	"github.com/boomsapp/boomsd/internal/events"
	"github.com/boomsapp/boomsd/internal/events/journal"
	"github.com/boomsapp/boomsd/internal/interactions"
	"github.com/boomsapp/boomsd/internal/payments"
	"github.com/boomsapp/boomsd/internal/server"
	"github.com/boomsapp/boomsd/internal/storage/relationaldb/sqlite"
	"github.com/boomsapp/boomsd/internal/webhook"
)

// Provider registers every daemon service in the container. Services
// are built lazily; asking for the HTTP server pulls the whole graph
// up.
type Provider struct {
	container *Container
	config    *config.Config
	logger    *log.Logger
}

// NewProvider creates a provider over the container.
func NewProvider(container *Container, cfg *config.Config, logger *log.Logger) *Provider {
	if logger == nil {
		logger = log.Default()
	}
	return &Provider{container: container, config: cfg, logger: logger}
}

// RegisterAll registers all service builders.
func (p *Provider) RegisterAll() error {
	p.container.Register(ServiceConfig, p.config)

	p.registerStorage()
	p.registerEvents()
	p.registerCore()
	p.registerHTTP()

	return nil
}

func (p *Provider) registerStorage() {
	p.container.RegisterBuilder(ServiceDatabase, func(c *Container) (interface{}, error) {
		db, err := sqlite.New(p.config.Database.Build())
		if err != nil {
			return nil, err
		}
		if err := db.Open(context.Background()); err != nil {
			return nil, err
		}
		return db, nil
	})

	p.container.RegisterBuilder(ServiceJournal, func(c *Container) (interface{}, error) {
		if p.config.Events.JournalPath == "" {
			// No journal: broadcasts are live-only, replay is disabled.
			return (*journal.Journal)(nil), nil
		}
		return journal.Open(p.config.Events.JournalPath)
	})
}

func (p *Provider) registerEvents() {
	p.container.RegisterBuilder(ServiceHub, func(c *Container) (interface{}, error) {
		return events.NewHub(), nil
	})

	p.container.RegisterBuilder(ServiceBroadcaster, func(c *Container) (interface{}, error) {
		hub, err := c.Get(ServiceHub)
		if err != nil {
			return nil, err
		}
		j, err := c.Get(ServiceJournal)
		if err != nil {
			return nil, err
		}
		return events.NewBroadcaster(hub.(*events.Hub), j.(*journal.Journal), p.logger), nil
	})

	p.container.RegisterBuilder(ServiceWebSocket, func(c *Container) (interface{}, error) {
		hub, err := c.Get(ServiceHub)
		if err != nil {
			return nil, err
		}
		j, err := c.Get(ServiceJournal)
		if err != nil {
			return nil, err
		}
		auth, err := p.Auth()
		if err != nil {
			return nil, err
		}
		authenticate := func(r *http.Request) (int64, bool, error) {
			claims, err := auth.FromRequest(r)
			if err != nil {
				return 0, false, err
			}
			return claims.UserID, claims.Admin, nil
		}
		return events.NewWebSocketServer(hub.(*events.Hub), j.(*journal.Journal),
			authenticate, p.logger), nil
	})
}

func (p *Provider) registerCore() {
	p.container.RegisterBuilder(ServiceRunner, func(c *Container) (interface{}, error) {
		db, err := p.Database()
		if err != nil {
			return nil, err
		}
		sink, err := c.Get(ServiceBroadcaster)
		if err != nil {
			return nil, err
		}
		return pipeline.NewRunner(db,
			pipeline.WithSink(sink.(*events.Broadcaster)),
			pipeline.WithLogger(p.logger),
		), nil
	})

	p.container.RegisterBuilder(ServiceRecorder, func(c *Container) (interface{}, error) {
		db, err := p.Database()
		if err != nil {
			return nil, err
		}
		sink, err := c.Get(ServiceBroadcaster)
		if err != nil {
			return nil, err
		}
		return interactions.NewRecorder(db,
			interactions.WithSink(sink.(*events.Broadcaster)),
			interactions.WithLogger(p.logger),
		)
	})

	p.container.RegisterBuilder(ServiceRegistry, func(c *Container) (interface{}, error) {
		return payments.NewRegistry(p.config.ProviderConfig(), nil), nil
	})

	p.container.RegisterBuilder(ServiceReconciler, func(c *Container) (interface{}, error) {
		runner, err := p.Runner()
		if err != nil {
			return nil, err
		}
		registry, err := c.Get(ServiceRegistry)
		if err != nil {
			return nil, err
		}
		return webhook.NewReconciler(runner, registry.(*payments.Registry), p.logger)
	})

	p.container.RegisterBuilder(ServiceAuth, func(c *Container) (interface{}, error) {
		return server.NewAuth(p.config.Auth.SecretKey, p.config.Auth.TokenTTL()), nil
	})
}

func (p *Provider) registerHTTP() {
	p.container.RegisterBuilder(ServiceHTTPServer, func(c *Container) (interface{}, error) {
		db, err := p.Database()
		if err != nil {
			return nil, err
		}
		runner, err := p.Runner()
		if err != nil {
			return nil, err
		}
		recorder, err := c.Get(ServiceRecorder)
		if err != nil {
			return nil, err
		}
		reconciler, err := c.Get(ServiceReconciler)
		if err != nil {
			return nil, err
		}
		registry, err := c.Get(ServiceRegistry)
		if err != nil {
			return nil, err
		}
		auth, err := p.Auth()
		if err != nil {
			return nil, err
		}
		ws, err := c.Get(ServiceWebSocket)
		if err != nil {
			return nil, err
		}

		return server.NewServer(server.Deps{
			DB:          db,
			Runner:      runner,
			Recorder:    recorder.(*interactions.Recorder),
			Reconciler:  reconciler.(*webhook.Reconciler),
			Providers:   registry.(*payments.Registry),
			Auth:        auth,
			Events:      ws.(*events.WebSocketServer),
			Environment: p.config.Environment,
			Logger:      p.logger,
		}), nil
	})
}

// Database returns the open store.
func (p *Provider) Database() (*sqlite.Database, error) {
	db, err := p.container.Get(ServiceDatabase)
	if err != nil {
		return nil, err
	}
	return db.(*sqlite.Database), nil
}

// Runner returns the pipeline runner.
func (p *Provider) Runner() (*pipeline.Runner, error) {
	runner, err := p.container.Get(ServiceRunner)
	if err != nil {
		return nil, err
	}
	return runner.(*pipeline.Runner), nil
}

// Auth returns the token authority.
func (p *Provider) Auth() (*server.Auth, error) {
	auth, err := p.container.Get(ServiceAuth)
	if err != nil {
		return nil, err
	}
	return auth.(*server.Auth), nil
}

// HTTPServer returns the wired HTTP front.
func (p *Provider) HTTPServer() (*server.Server, error) {
	srv, err := p.container.Get(ServiceHTTPServer)
	if err != nil {
		return nil, err
	}
	return srv.(*server.Server), nil
}

// Close releases the held resources in reverse dependency order.
func (p *Provider) Close(ctx context.Context) error {
	var first error

	if p.container.Built(ServiceJournal) {
		if j, err := p.container.Get(ServiceJournal); err == nil {
			if jj := j.(*journal.Journal); jj != nil {
				if err := jj.Close(); err != nil && first == nil {
					first = err
				}
			}
		}
	}
	if p.container.Built(ServiceDatabase) {
		if db, err := p.Database(); err == nil {
			if err := db.Close(ctx); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
