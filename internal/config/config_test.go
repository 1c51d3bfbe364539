package config

import (
	"reflect"
	"testing"
	"time"
)

type mapSource map[string]string

func (m mapSource) GetStringOrDef(key, def string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(mapSource{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Store.Backend != StoreMongo {
		t.Errorf("Store.Backend = %q, want %q", cfg.Store.Backend, StoreMongo)
	}
	if cfg.Feed.Transport != TransportNATS || !cfg.Feed.StreamEnabled || cfg.Feed.StreamMaxDeliver != 10 {
		t.Errorf("Feed = %+v", cfg.Feed)
	}
	if !reflect.DeepEqual(cfg.Feed.KafkaBrokers, []string{"localhost:9092"}) {
		t.Errorf("Feed.KafkaBrokers = %v", cfg.Feed.KafkaBrokers)
	}
	want := ReconcileConfig{
		SettleDelay:       5 * time.Second,
		ConditionalWrites: true,
		StrictOptions:     true,
		SweepOnStart:      false,
		SweepWorkers:      4,
	}
	if cfg.Reconcile != want {
		t.Errorf("Reconcile = %+v, want %+v", cfg.Reconcile, want)
	}
	if cfg.Catalog.CacheTTL != 0 {
		t.Errorf("Catalog.CacheTTL = %v, want 0", cfg.Catalog.CacheTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(mapSource{
		"store.backend":                "Pebble",
		"feed.transport":               "kafka",
		"kafka.brokers":                "k1:9092, k2:9092,",
		"events.sink":                  "none",
		"reconcile.settle_delay":       "250ms",
		"reconcile.conditional_writes": "false",
		"reconcile.strict_options":     "false",
		"reconcile.sweep_workers":      "8",
		"catalog.cache_ttl":            "30s",
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Store.Backend != StorePebble {
		t.Errorf("Store.Backend = %q, want %q", cfg.Store.Backend, StorePebble)
	}
	if !reflect.DeepEqual(cfg.Feed.KafkaBrokers, []string{"k1:9092", "k2:9092"}) {
		t.Errorf("Feed.KafkaBrokers = %v", cfg.Feed.KafkaBrokers)
	}
	if cfg.Events.Sink != SinkNone {
		t.Errorf("Events.Sink = %q, want %q", cfg.Events.Sink, SinkNone)
	}
	if cfg.Reconcile.SettleDelay != 250*time.Millisecond || cfg.Reconcile.ConditionalWrites || cfg.Reconcile.StrictOptions {
		t.Errorf("Reconcile = %+v", cfg.Reconcile)
	}
	if cfg.Reconcile.SweepWorkers != 8 {
		t.Errorf("Reconcile.SweepWorkers = %d, want 8", cfg.Reconcile.SweepWorkers)
	}
	if cfg.Catalog.CacheTTL != 30*time.Second {
		t.Errorf("Catalog.CacheTTL = %v, want 30s", cfg.Catalog.CacheTTL)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		src  mapSource
	}{
		{name: "unknownBackend", src: mapSource{"store.backend": "sqlite"}},
		{name: "unknownTransport", src: mapSource{"feed.transport": "http"}},
		{name: "badDuration", src: mapSource{"reconcile.settle_delay": "soon"}},
		{name: "negativeDelay", src: mapSource{"reconcile.settle_delay": "-1s"}},
		{name: "badBool", src: mapSource{"reconcile.strict_options": "maybe"}},
		{name: "badInt", src: mapSource{"nats.stream.max_deliver": "ten"}},
		{name: "zeroWorkers", src: mapSource{"reconcile.sweep_workers": "0"}},
		{name: "noBrokers", src: mapSource{"kafka.brokers": " , "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.src); err == nil {
				t.Error("Load() should fail")
			}
		})
	}
}
