package cache

import (
	"context"
	"errors"
	"time"
)

// Start keeps the PNG encoding in step with the painter until ctx is
// cancelled. Encoding happens at most once per WarmInterval and only when a
// newer frame has been painted.
func (c *FrameCache) Start(ctx context.Context) {
	ticker := time.NewTicker(c.config.WarmInterval)
	defer ticker.Stop()

	c.logger.Info("frame cache warmer started",
		"warm_interval_ms", c.config.WarmInterval.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("frame cache warmer stopped")
			return
		case <-ticker.C:
			c.warm()
		}
	}
}

// warm re-encodes PNG if the painter has moved past the cached frame.
func (c *FrameCache) warm() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[PNG]; ok && e.Seq == c.src.Seq() {
		return
	}
	start := time.Now()
	e, err := c.encodeLocked(PNG)
	switch {
	case errors.Is(err, ErrNoFrame):
		return
	case err != nil:
		c.logger.Warn("frame warm failed", "error", err)
		return
	}
	c.logger.Debug("frame warmed",
		"seq", e.Seq,
		"bytes", len(e.Data),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
