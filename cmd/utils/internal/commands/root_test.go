package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/appetiteclub/reconciler/internal/config"
	"github.com/appetiteclub/reconciler/internal/docstore"
	"github.com/appetiteclub/reconciler/internal/order"
)

const testCatalog = `dishes:
  - name: Burger
    price: 5
    ingredients:
      - name: Toppings
        max: 2
        names: [Cheese, Bacon]
        charge: 1
`

func testConfig(dir string) func() (config.Config, error) {
	return func() (config.Config, error) {
		return config.Config{
			LogLevel: "error",
			Store:    config.StoreConfig{Backend: config.StorePebble, PebbleDir: dir},
			Events:   config.EventsConfig{Sink: config.SinkNone},
			Reconcile: config.ReconcileConfig{
				ConditionalWrites: true,
				StrictOptions:     true,
				SweepWorkers:      2,
			},
		}, nil
	}
}

func execute(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(opts)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, &RootOptions{LoadConfig: testConfig(t.TempDir())}, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, appName+" version ") {
		t.Errorf("version output = %q", out)
	}
}

func TestSeedPricesAndSweep(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(file, []byte(testCatalog), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	opts := &RootOptions{LoadConfig: testConfig(dir)}

	if _, err := execute(t, opts, "seed-demo", "--catalog", file); err != nil {
		t.Fatalf("seed-demo error = %v", err)
	}

	out, err := execute(t, opts, "prices")
	if err != nil {
		t.Fatalf("prices error = %v", err)
	}
	for _, want := range []string{"Bacon", "1.00", "Burger", "5.00", "Cheese"} {
		if !strings.Contains(out, want) {
			t.Errorf("prices output %q missing %q", out, want)
		}
	}

	ctx := context.Background()
	store, _, _, err := opts.openStore(ctx)
	if err != nil {
		t.Fatalf("openStore() error = %v", err)
	}
	err = store.Set(ctx, order.PathFor("o1"), map[string]any{
		"user":  "u1",
		"items": []any{map[string]any{"item": "Burger", "Toppings": []any{"Cheese"}}},
	})
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	out, err = execute(t, opts, "sweep", "--workers", "1")
	if err != nil {
		t.Fatalf("sweep error = %v", err)
	}
	if !strings.Contains(out, "orders: 1") || !strings.Contains(out, "updated: 1") {
		t.Errorf("sweep output = %q", out)
	}

	store, _, _, err = opts.openStore(ctx)
	if err != nil {
		t.Fatalf("openStore() error = %v", err)
	}
	defer store.Close(ctx)
	doc, err := store.Get(ctx, order.PathFor("o1"))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	want := map[string]any{
		"user":       "u1",
		"done":       false,
		"token":      "",
		"totalPrice": 6.0,
		"items":      []any{map[string]any{"item": "Burger", "Toppings": []any{"Cheese"}}},
	}
	if !docstore.Equal(doc.Data, want) {
		t.Errorf("stored order = %v, want %v", doc.Data, want)
	}
}

func TestUnknownBackend(t *testing.T) {
	opts := &RootOptions{LoadConfig: testConfig(t.TempDir())}
	if _, err := execute(t, opts, "--backend", "sqlite", "prices"); err == nil {
		t.Error("prices should fail on an unknown backend")
	}
}
