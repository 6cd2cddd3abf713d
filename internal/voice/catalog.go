package voice

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Catalog caches the platform voice list and announces when it becomes usable.
type Catalog struct {
	lister Lister
	logger *slog.Logger

	sf singleflight.Group

	mu      sync.RWMutex
	voices  []Voice
	onReady []func([]Voice)
}

// NewCatalog wraps a platform lister.
func NewCatalog(lister Lister, logger *slog.Logger) *Catalog {
	return &Catalog{lister: lister, logger: logger}
}

// Voices returns the last loaded voice list.
func (c *Catalog) Voices() []Voice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Voice(nil), c.voices...)
}

// OnReady registers fn to run after every refresh that yields a non-empty list.
func (c *Catalog) OnReady(fn func([]Voice)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.onReady = append(c.onReady, fn)
	c.mu.Unlock()
}

// Refresh queries the platform. Concurrent callers share one query.
func (c *Catalog) Refresh(ctx context.Context) ([]Voice, error) {
	if c.lister == nil {
		return nil, nil
	}

	v, err, _ := c.sf.Do("voices", func() (any, error) {
		voices, err := c.lister.Voices(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.voices = append([]Voice(nil), voices...)
		callbacks := slices.Clone(c.onReady)
		c.mu.Unlock()

		if c.logger != nil {
			c.logger.Debug("voice catalog refreshed", "count", len(voices))
		}
		if len(voices) > 0 {
			for _, fn := range callbacks {
				fn(append([]Voice(nil), voices...))
			}
		}
		return voices, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Voice), nil
}

// Watch refreshes until the platform reports at least one voice or ctx ends.
func (c *Catalog) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	for {
		voices, err := c.Refresh(ctx)
		if err != nil && c.logger != nil {
			c.logger.Debug("voice catalog refresh failed", "error", err.Error())
		}
		if len(voices) > 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
