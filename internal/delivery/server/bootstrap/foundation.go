// Package bootstrap wires configuration, observability, storage and the
// conversation service for the server and the CLI.
package bootstrap

import (
	"context"
	"fmt"

	"agentchat/internal/app/conversation"
	"agentchat/internal/app/historycache"
	"agentchat/internal/domain/chat"
	"agentchat/internal/infra/agentclient"
	"agentchat/internal/infra/storage/memory"
	"agentchat/internal/infra/storage/postgres"
	"agentchat/internal/observability"
	"agentchat/internal/shared/config"
	"agentchat/internal/shared/logging"
	id "agentchat/internal/shared/utils/id"
)

// UserStore reads and registers user_data rows.
type UserStore interface {
	chat.UserStore
	Upsert(ctx context.Context, user chat.UserData) error
}

// Stores groups the persistence backends of one storage driver.
type Stores struct {
	Messages chat.MessageStore
	Agents   chat.AgentStore
	Users    UserStore
}

// OpenStores opens the configured driver. For postgres the schema is
// created when missing. The returned cleanup releases connections.
func OpenStores(ctx context.Context, cfg config.StorageConfig) (Stores, func(), error) {
	switch cfg.Driver {
	case config.StorageMemory, "":
		return Stores{
			Messages: memory.NewMessageStore(),
			Agents:   memory.NewAgentStore(),
			Users:    memory.NewUserStore(),
		}, func() {}, nil
	case config.StoragePostgres:
		pool, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return Stores{}, nil, err
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return Stores{}, nil, err
		}
		stores := postgres.NewStores(pool)
		return Stores{
			Messages: stores.Messages,
			Agents:   stores.Agents,
			Users:    stores.Users,
		}, pool.Close, nil
	default:
		return Stores{}, nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// Foundation holds the shared infrastructure of every entry point. Create
// it with BootstrapFoundation and defer Cleanup.
type Foundation struct {
	Config  config.Config
	Logger  logging.Logger
	Metrics *observability.MetricsCollector
	Tracer  *observability.TracerProvider
	Stores  Stores
	Service *conversation.Service

	cleanups []func()
}

// BootstrapFoundation initializes logging, metrics, tracing, storage and the
// conversation service. Metrics and tracing failures degrade to disabled
// instruments; storage failures are fatal.
func BootstrapFoundation(ctx context.Context, cfg config.Config) (*Foundation, error) {
	logging.SetDefault(observability.NewLogger(cfg.Log.Observability()))
	logger := logging.NewComponentLogger("Bootstrap")
	f := &Foundation{Config: cfg, Logger: logger}

	metrics, err := observability.NewMetricsCollector(cfg.Metrics)
	if err != nil {
		logger.Warn("Metrics disabled: %v", err)
		metrics = &observability.MetricsCollector{}
	}
	f.Metrics = metrics
	f.addCleanup(func() {
		if err := metrics.Shutdown(context.Background()); err != nil {
			logger.Warn("Failed to shut down metrics: %v", err)
		}
	})

	tracer, err := observability.NewTracerProvider(cfg.Tracing)
	if err != nil {
		logger.Warn("Tracing disabled: %v", err)
		tracer = observability.NewNoopTracerProvider()
	}
	f.Tracer = tracer
	f.addCleanup(func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			logger.Warn("Failed to flush traces: %v", err)
		}
	})

	stores, closeStores, err := OpenStores(ctx, cfg.Storage)
	if err != nil {
		f.Cleanup()
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Driver, err)
	}
	f.Stores = stores
	f.addCleanup(closeStores)

	caller := agentclient.New(cfg.Agent.Timeout,
		agentclient.WithLogger(logging.NewComponentLogger("AgentClient")),
		agentclient.WithMetrics(metrics),
		agentclient.WithTracer(tracer),
		agentclient.WithMaxResponseBytes(cfg.Agent.MaxResponseBytes),
	)
	cache := historycache.NewLRU(historycache.Config{MaxSize: cfg.Cache.Size, TTL: cfg.Cache.TTL})

	f.Service = conversation.NewService(stores.Messages, stores.Agents, stores.Users, caller,
		conversation.WithCache(cache),
		conversation.WithIDGenerator(id.NewGenerator(idStrategy(cfg.IDs.Strategy))),
		conversation.WithMetrics(metrics),
		conversation.WithTracer(tracer),
	)
	logger.Info("Foundation ready: storage=%s cache_ttl=%s agent_timeout=%s", cfg.Storage.Driver, cfg.Cache.TTL, cfg.Agent.Timeout)
	return f, nil
}

func idStrategy(name string) id.Strategy {
	if name == config.IDStrategyUUIDv7 {
		return id.StrategyUUIDv7
	}
	return id.StrategyKSUID
}

// Cleanup releases all resources in reverse order.
func (f *Foundation) Cleanup() {
	for i := len(f.cleanups) - 1; i >= 0; i-- {
		f.cleanups[i]()
	}
	f.cleanups = nil
}

func (f *Foundation) addCleanup(fn func()) {
	f.cleanups = append(f.cleanups, fn)
}
