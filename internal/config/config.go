// Package config reads every setting the service needs once, at startup, into
// an explicit struct that is passed down to the components.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	StoreMongo  = "mongo"
	StorePebble = "pebble"
	StoreMemory = "memory"

	TransportNATS  = "nats"
	TransportKafka = "kafka"
	SinkNone       = "none"
)

// Source is the part of *apt.Config the loader reads from.
type Source interface {
	GetStringOrDef(key, def string) string
}

type Config struct {
	LogLevel string

	Store  StoreConfig
	Feed   FeedConfig
	Events EventsConfig

	Reconcile ReconcileConfig
	Catalog   CatalogConfig
	Seeding   SeedingConfig
}

type StoreConfig struct {
	Backend   string
	MongoURL  string
	MongoName string
	PebbleDir string
}

type FeedConfig struct {
	Transport        string
	NATSURL          string
	StreamEnabled    bool
	StreamMaxDeliver int
	KafkaBrokers     []string
	KafkaGroup       string
}

type EventsConfig struct {
	Sink string
}

type ReconcileConfig struct {
	SettleDelay       time.Duration
	ConditionalWrites bool
	StrictOptions     bool
	SweepOnStart      bool
	SweepWorkers      int
}

type CatalogConfig struct {
	CacheTTL time.Duration
}

type SeedingConfig struct {
	Demo        bool
	CatalogFile string
}

// Load reads and validates the configuration.
func Load(src Source) (Config, error) {
	r := reader{src: src}

	cfg := Config{
		LogLevel: r.str("log.level", "info"),
		Store: StoreConfig{
			Backend:   r.oneOf("store.backend", StoreMongo, StoreMongo, StorePebble, StoreMemory),
			MongoURL:  r.str("db.mongo.url", "mongodb://localhost:27017"),
			MongoName: r.str("db.mongo.name", "appetite_orders"),
			PebbleDir: r.str("db.pebble.dir", "./data/docstore"),
		},
		Feed: FeedConfig{
			Transport:        r.oneOf("feed.transport", TransportNATS, TransportNATS, TransportKafka),
			NATSURL:          r.str("nats.url", "nats://localhost:4222"),
			StreamEnabled:    r.boolean("nats.stream.enabled", true),
			StreamMaxDeliver: r.integer("nats.stream.max_deliver", 10),
			KafkaBrokers:     r.list("kafka.brokers", "localhost:9092"),
			KafkaGroup:       r.str("kafka.group", "order-reconciler"),
		},
		Events: EventsConfig{
			Sink: r.oneOf("events.sink", TransportNATS, TransportNATS, TransportKafka, SinkNone),
		},
		Reconcile: ReconcileConfig{
			SettleDelay:       r.duration("reconcile.settle_delay", 5*time.Second),
			ConditionalWrites: r.boolean("reconcile.conditional_writes", true),
			StrictOptions:     r.boolean("reconcile.strict_options", true),
			SweepOnStart:      r.boolean("reconcile.sweep_on_start", false),
			SweepWorkers:      r.integer("reconcile.sweep_workers", 4),
		},
		Catalog: CatalogConfig{
			CacheTTL: r.duration("catalog.cache_ttl", 0),
		},
		Seeding: SeedingConfig{
			Demo:        r.boolean("seeding.demo", false),
			CatalogFile: r.str("seeding.catalog", "./config/catalog.yaml"),
		},
	}

	if r.err != nil {
		return Config{}, r.err
	}
	if cfg.Reconcile.SweepWorkers <= 0 {
		return Config{}, fmt.Errorf("reconcile.sweep_workers must be positive, got %d", cfg.Reconcile.SweepWorkers)
	}
	if cfg.Reconcile.SettleDelay < 0 {
		return Config{}, fmt.Errorf("reconcile.settle_delay must not be negative")
	}
	return cfg, nil
}

// reader keeps the first parse error so Load can read every key in one go.
type reader struct {
	src Source
	err error
}

func (r *reader) str(key, def string) string {
	return strings.TrimSpace(r.src.GetStringOrDef(key, def))
}

func (r *reader) oneOf(key, def string, allowed ...string) string {
	v := strings.ToLower(r.str(key, def))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	r.fail(fmt.Errorf("%s: unsupported value %q (want one of %s)", key, v, strings.Join(allowed, ", ")))
	return def
}

func (r *reader) boolean(key string, def bool) bool {
	v := r.str(key, strconv.FormatBool(def))
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}

func (r *reader) integer(key string, def int) int {
	v := r.str(key, strconv.Itoa(def))
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, def.String())
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}

func (r *reader) list(key, def string) []string {
	var out []string
	for _, item := range strings.Split(r.str(key, def), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		r.fail(fmt.Errorf("%s: empty list", key))
	}
	return out
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}
