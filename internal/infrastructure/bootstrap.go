package infrastructure

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"mailmart/internal/config"
	"mailmart/internal/model"
	"mailmart/internal/repository"
	"mailmart/internal/repository/memory"
	"mailmart/internal/service"
	transportGRPC "mailmart/internal/transport/grpc"
	transportHTTP "mailmart/internal/transport/http"
	transportNATS "mailmart/internal/transport/nats"
	"mailmart/internal/worker"
)

const sweepLeaseKey = "mailmart:sweep:lease"

// Core is the wired domain without any listeners. cmd/api wraps it in an
// App, cmd/marketctl uses it for one-off sweeps.
type Core struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    service.Store
	Services *service.Services
	Sweeper  *worker.SweepScheduler

	nc *nats.Conn
}

// cachedStore serves the Category collaborator from Redis.
type cachedStore struct {
	service.Store
	cache *repository.CategoryCache
}

func (s cachedStore) Category(ctx context.Context, id string) (model.Category, error) {
	return s.cache.Category(ctx, id)
}

func (s cachedStore) Categories(ctx context.Context) ([]model.Category, error) {
	return s.cache.Categories(ctx)
}

func (s cachedStore) UpsertCategory(ctx context.Context, c model.Category) (model.Category, error) {
	return s.cache.UpsertCategory(ctx, c)
}

// Open connects the configured backends and wires the services.
// Returns the Core, a cleanup function, or an error.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...worker.SchedulerOption) (*Core, func(), error) {
	var cleanupFns []func()
	fail := func(err error) (*Core, func(), error) {
		runCleanup(cleanupFns)()
		return nil, nil, err
	}

	core := &Core{Config: cfg, Logger: logger}

	// 1. Store
	switch cfg.StoreProvider {
	case "postgres":
		db, err := connectPostgres(ctx, cfg.DSN())
		if err != nil {
			return fail(err)
		}
		cleanupFns = append(cleanupFns, db.Close)
		core.Store = repository.New(db)
	case "memory":
		logger.Warn("using in-memory store, state is lost on exit")
		core.Store = memory.New()
	default:
		return fail(fmt.Errorf("unknown store provider %q", cfg.StoreProvider))
	}

	// 2. Redis: category cache and the cross-replica sweep lease
	var lease worker.Lease
	if cfg.RedisEnabled() {
		rdb, err := connectRedis(ctx, cfg.RedisAddr())
		if err != nil {
			return fail(err)
		}
		cleanupFns = append(cleanupFns, func() { _ = rdb.Close() })
		core.Store = cachedStore{
			Store: core.Store,
			cache: repository.NewCategoryCache(core.Store, rdb, cfg.CategoryCacheTTL, logger),
		}
		lease = repository.NewRedisLease(rdb, sweepLeaseKey, cfg.SweepLeaseTTL)
	} else {
		lease = &worker.LocalLease{}
	}

	// 3. Notification sink
	var notifier service.Notifier
	switch cfg.BusProvider {
	case "nats":
		nc, err := connectNats(cfg.NatsAddr())
		if err != nil {
			return fail(err)
		}
		cleanupFns = append(cleanupFns, nc.Close)
		core.nc = nc
		notifier = transportNATS.NewNotifier(transportNATS.NewBus(nc))
	default:
		notifier = service.NewStoreNotifier(core.Store)
	}

	// 4. Services and scheduler
	core.Services = service.New(core.Store, notifier, service.Config{
		VerificationWindow: cfg.VerificationWindow,
		DisputeWindow:      cfg.DisputeWindow,
		MaxQuantity:        service.DefaultConfig().MaxQuantity,
		SweepBatchSize:     cfg.SweepBatchSize,
	}, service.WithLogger(logger))

	schedCfg := worker.DefaultSchedulerConfig()
	schedCfg.Interval = cfg.SweepInterval
	schedCfg.InitialDelay = cfg.SweepInitialDelay
	if cfg.SweepLeaseTTL > 0 && cfg.SweepLeaseTTL < schedCfg.RunTimeout {
		schedCfg.RunTimeout = cfg.SweepLeaseTTL
	}
	opts = append([]worker.SchedulerOption{worker.WithSchedulerLogger(logger)}, opts...)
	core.Sweeper = worker.NewSweepScheduler(core.Services.Sweeper, lease, schedCfg, opts...)

	return core, runCleanup(cleanupFns), nil
}

// Bootstrap initialises all dependencies from config and wires up the application.
// Returns the App, a cleanup function, or an error.
func Bootstrap(ctx context.Context) (*App, func(), error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}
	logger := NewLogger(cfg.LogLevel, cfg.LogFormat)

	var servers []Server
	var schedOpts []worker.SchedulerOption
	if addr, grpcErr := cfg.GRPCAddr(); grpcErr == nil {
		health := transportGRPC.NewServer(addr)
		schedOpts = append(schedOpts, worker.WithObserver(health))
		servers = append(servers, health)
	}

	core, cleanup, err := Open(ctx, cfg, logger, schedOpts...)
	if err != nil {
		return nil, nil, err
	}

	if core.nc != nil {
		servers = append(servers,
			worker.NewNotificationWorker(core.Store, core.nc, logger),
			transportNATS.NewHandler(core.Sweeper, core.nc),
		)
	}

	handler := transportHTTP.NewHandler(core.Services, core.Sweeper, cfg.GatewayToken, cfg.AdminToken, logger)
	servers = append(servers,
		transportHTTP.NewServer(cfg.ApiAddr(), handler),
		core.Sweeper,
	)

	logger.Info("mailmart configured",
		"store", cfg.StoreProvider,
		"bus", cfg.BusProvider,
		"redis", cfg.RedisEnabled(),
		"api_addr", cfg.ApiAddr(),
	)
	return NewApp(servers, logger), cleanup, nil
}

// runCleanup returns a single function that calls all cleanup functions in reverse order.
func runCleanup(fns []func()) func() {
	return func() {
		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
	}
}
