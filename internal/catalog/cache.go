package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
)

// MenuSource is anything that can produce the current menu.
type MenuSource interface {
	LoadMenu(ctx context.Context) (Menu, error)
}

// Cache keeps the last loaded menu for ttl. A failed refresh never falls back
// to an expired menu.
type Cache struct {
	mu       sync.RWMutex
	menu     Menu
	loadedAt time.Time
	loaded   bool
	ttl      time.Duration
	source   MenuSource
	now      func() time.Time
	logger   apt.Logger
}

func NewCache(source MenuSource, ttl time.Duration, logger apt.Logger) *Cache {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Cache{
		ttl:    ttl,
		source: source,
		now:    time.Now,
		logger: logger,
	}
}

// Start warms the cache; a failure is logged and retried on first use.
func (c *Cache) Start(ctx context.Context) error {
	if _, err := c.Refresh(ctx); err != nil {
		c.logger.Info("catalog cache warmup failed", "error", err)
	}
	return nil
}

func (c *Cache) LoadMenu(ctx context.Context) (Menu, error) {
	if menu, ok := c.Get(); ok {
		return menu, nil
	}
	return c.Refresh(ctx)
}

func (c *Cache) LoadPriceSheet(ctx context.Context) (PriceSheet, error) {
	menu, err := c.LoadMenu(ctx)
	if err != nil {
		return nil, err
	}
	return menu.PriceSheet(), nil
}

// Get returns the cached menu while it is fresh.
func (c *Cache) Get() (Menu, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded || c.now().Sub(c.loadedAt) >= c.ttl {
		return Menu{}, false
	}
	return c.menu, true
}

func (c *Cache) Refresh(ctx context.Context) (Menu, error) {
	if c.source == nil {
		return Menu{}, fmt.Errorf("catalog cache uninitialized")
	}
	menu, err := c.source.LoadMenu(ctx)
	if err != nil {
		return Menu{}, fmt.Errorf("failed to refresh catalog: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.menu = menu
	c.loadedAt = c.now()
	c.loaded = true
	c.logger.Debug("catalog cache refreshed", "dishes", len(menu.Dishes))
	return menu, nil
}
