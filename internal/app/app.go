package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/apt/middleware"
	"github.com/appetiteclub/reconciler/internal/catalog"
	"github.com/appetiteclub/reconciler/internal/config"
	"github.com/appetiteclub/reconciler/internal/docstore"
	"github.com/appetiteclub/reconciler/internal/metrics"
	"github.com/appetiteclub/reconciler/internal/mongo"
	"github.com/appetiteclub/reconciler/internal/order"
	"github.com/appetiteclub/reconciler/internal/reconciler"
	"github.com/appetiteclub/reconciler/pkg"
	"github.com/appetiteclub/reconciler/pkg/event"
)

const (
	AppName    = "reconciler"
	AppVersion = "0.1.0"

	consumerName = "order-reconciler"
)

// App encapsulates the reconciler service application
type App struct {
	aptConfig *apt.Config
	config    config.Config
	logger    apt.Logger
	micro     *apt.Micro
}

func New(aptConfig *apt.Config, cfg config.Config, logger apt.Logger) *App {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &App{
		aptConfig: aptConfig,
		config:    cfg,
		logger:    logger,
	}
}

// Initialize sets up all dependencies and components
func (a *App) Initialize(ctx context.Context) error {
	var lifecycles []interface{}

	feed, err := OpenFeed(ctx, a.config.Feed, a.logger)
	if err != nil {
		return err
	}
	lifecycles = append(lifecycles, apt.LifecycleHooks{OnStop: feed.Close})

	store, err := OpenStore(ctx, a.config, docstore.NewPublishingNotifier(feed.Publisher, event.OrderChangesTopic), a.logger)
	if err != nil {
		_ = feed.Close(ctx)
		return err
	}
	lifecycles = append(lifecycles, apt.LifecycleHooks{OnStop: store.Close})

	if a.config.Seeding.Demo {
		if err := SeedCatalog(ctx, store, a.config.Seeding.CatalogFile, a.logger); err != nil {
			a.logger.Errorf("Demo seeding failed (non-fatal): %v", err)
		}
	}

	sink, err := OpenSink(a.config, a.logger)
	if err != nil {
		return err
	}
	if sink != nil {
		lifecycles = append(lifecycles, apt.LifecycleHooks{
			OnStop: func(context.Context) error { return sink.Close() },
		})
	}

	var menu catalog.MenuSource = catalog.NewReader(store, a.logger)
	if ttl := a.config.Catalog.CacheTTL; ttl > 0 {
		cache := catalog.NewCache(menu, ttl, a.logger)
		lifecycles = append(lifecycles, cache)
		menu = cache
	}

	registry := metrics.NewRegistry()
	deps := reconciler.Deps{
		Store:    store,
		Menu:     menu,
		Settler:  reconciler.NewDelaySettler(a.config.Reconcile.SettleDelay),
		Observer: registry,
	}
	if sink != nil {
		deps.Publisher = sink
	}
	rec := reconciler.New(deps, reconciler.Options{
		ConditionalWrites: a.config.Reconcile.ConditionalWrites,
		StrictOptions:     a.config.Reconcile.StrictOptions,
	}, a.logger)

	changeSub := reconciler.NewChangeSubscriber(feed.Subscriber, rec, event.OrderChangesTopic, a.logger)
	lifecycles = append(lifecycles, changeSub)

	orders := order.NewDocumentRepo(store, a.logger)
	if a.config.Reconcile.SweepOnStart {
		lifecycles = append(lifecycles, reconciler.NewSweeper(orders, rec, a.config.Reconcile.SweepWorkers, a.logger))
	}

	orderHandler := order.NewHandler(orders, order.NewSteps(orders, a.logger), a.logger)
	catalogHandler := catalog.NewHandler(menu, a.logger)

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      a.logger,
		DisableCORS: true,
	})
	stack = append(stack, middleware.InternalOnly())

	options := []apt.Option{
		apt.WithConfig(a.aptConfig),
		apt.WithLogger(a.logger),
		apt.WithHTTPMiddleware(stack...),
		apt.WithHTTPServerModules("web.port", orderHandler, catalogHandler, registry),
		apt.WithLifecycle(lifecycles...),
		apt.WithHealthChecks(AppName),
	}

	a.micro = apt.NewMicro(options...)
	return nil
}

// Run starts the application
func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("Starting %s(%s)", AppName, AppVersion)
	if err := a.micro.Run(ctx); err != nil {
		return err
	}
	a.logger.Infof("%s(%s) stopped", AppName, AppVersion)
	return nil
}

// Store is an opened document store backend together with its shutdown.
type Store struct {
	docstore.ConditionalStore
	close func(ctx context.Context) error
}

func (s *Store) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// OpenStore opens the configured backend. Every committed write is passed to
// notifier.
func OpenStore(ctx context.Context, cfg config.Config, notifier docstore.Notifier, logger apt.Logger) (*Store, error) {
	switch cfg.Store.Backend {
	case config.StoreMemory:
		logger.Info("using in-memory document store")
		return &Store{ConditionalStore: docstore.NewMemoryStore(notifier)}, nil

	case config.StorePebble:
		ps, err := docstore.OpenPebbleStore(cfg.Store.PebbleDir, notifier)
		if err != nil {
			return nil, err
		}
		logger.Info("using pebble document store", "dir", cfg.Store.PebbleDir)
		return &Store{ConditionalStore: ps, close: ps.Stop}, nil

	case config.StoreMongo:
		client, err := mongo.Connect(ctx, cfg.Store, logger)
		if err != nil {
			return nil, err
		}
		ds := mongo.NewDocumentStore(client.Database(), notifier, logger)
		return &Store{ConditionalStore: ds, close: client.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
}

// Feed is the change feed transport: the store publishes through Publisher
// and the reconciler consumes through Subscriber.
type Feed struct {
	Publisher  events.Publisher
	Subscriber events.Subscriber
	closers    []func() error
}

func (f *Feed) Close(ctx context.Context) error {
	var first error
	for _, c := range f.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func OpenFeed(ctx context.Context, cfg config.FeedConfig, logger apt.Logger) (*Feed, error) {
	switch cfg.Transport {
	case config.TransportKafka:
		pub := pkg.NewKafkaPublisher(cfg.KafkaBrokers, PartitionKey)
		sub := pkg.NewKafkaSubscriber(pkg.KafkaSubscriberConfig{
			Brokers:    cfg.KafkaBrokers,
			GroupID:    cfg.KafkaGroup,
			MaxDeliver: cfg.StreamMaxDeliver,
			RetryDelay: time.Second,
		}, logger)
		logger.Info("change feed on kafka", "brokers", cfg.KafkaBrokers, "group", cfg.KafkaGroup)
		return &Feed{Publisher: pub, Subscriber: sub, closers: []func() error{sub.Close, pub.Close}}, nil

	case config.TransportNATS:
		if cfg.StreamEnabled {
			stream, err := pkg.NewNATSStream(ctx, pkg.NATSStreamConfig{
				URL:          cfg.NATSURL,
				StreamName:   "ORDER_CHANGES",
				Topic:        event.OrderChangesTopic,
				ConsumerName: consumerName,
				MaxAge:       24 * time.Hour,
				MaxDeliver:   cfg.StreamMaxDeliver,
				RetryDelay:   time.Second,
				Logger:       logger,
			})
			if err != nil {
				return nil, err
			}
			logger.Info("NATS stream initialized for the change feed")
			return &Feed{Publisher: stream, Subscriber: stream, closers: []func() error{stream.Close}}, nil
		}

		pub, err := pkg.NewNATSPublisher(cfg.NATSURL, consumerName+"-feed", logger)
		if err != nil {
			return nil, err
		}
		sub, err := pkg.NewNATSSubscriber(cfg.NATSURL, consumerName, logger)
		if err != nil {
			_ = pub.Close()
			return nil, err
		}
		return &Feed{Publisher: pub, Subscriber: sub, closers: []func() error{sub.Close, pub.Close}}, nil

	default:
		return nil, fmt.Errorf("unsupported feed transport %q", cfg.Transport)
	}
}

// Sink publishes settled-order events.
type Sink interface {
	events.Publisher
	Close() error
}

// OpenSink returns nil when events are disabled.
func OpenSink(cfg config.Config, logger apt.Logger) (Sink, error) {
	switch cfg.Events.Sink {
	case config.SinkNone:
		logger.Info("settled order events disabled")
		return nil, nil
	case config.TransportKafka:
		return pkg.NewKafkaPublisher(cfg.Feed.KafkaBrokers, PartitionKey), nil
	case config.TransportNATS:
		pub, err := pkg.NewNATSPublisher(cfg.Feed.NATSURL, consumerName+"-events", logger)
		if err != nil {
			return nil, err
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("unsupported events sink %q", cfg.Events.Sink)
	}
}

// PartitionKey keys change notifications by document path and settled
// events by order path so that messages about one order stay ordered.
func PartitionKey(topic string, msg []byte) []byte {
	switch topic {
	case event.OrderChangesTopic:
		change, err := docstore.DecodeChange(msg)
		if err != nil {
			return nil
		}
		return []byte(change.Path())
	case event.OrderSettlementsTopic:
		var evt event.OrderSettledEvent
		if err := json.Unmarshal(msg, &evt); err != nil {
			return nil
		}
		return []byte(evt.Path)
	default:
		return nil
	}
}

// SeedCatalog writes the menu from a catalog file into the store.
func SeedCatalog(ctx context.Context, store *Store, file string, logger apt.Logger) error {
	menu, err := catalog.LoadFile(file)
	if err != nil {
		return err
	}
	if ds, ok := store.ConditionalStore.(*mongo.DocumentStore); ok {
		return mongo.ApplyCatalogSeeds(ctx, ds.Database(), store, menu, logger)
	}
	return catalog.Save(ctx, store, menu)
}
