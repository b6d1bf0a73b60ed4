package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/arynyklas/HDRFilmsBot/internal/metrics"
	"github.com/arynyklas/HDRFilmsBot/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ShortInfoCacheName labels the short-info cache in metrics and sweeps
const ShortInfoCacheName = "short_info"

// InfoFetcher fetches the description and voice-overs of a title page
type InfoFetcher interface {
	GetInfoAndTranslators(ctx context.Context, url string) (*models.ItemInfo, error)
}

// ShortInfoCache memoizes title lookups by the last segment of their URL
type ShortInfoCache struct {
	ttl     *TTL[string, *models.ItemInfo]
	fetcher InfoFetcher
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *logrus.Logger
}

// NewShortInfoCache creates a cache keeping title info for ttl
func NewShortInfoCache(fetcher InfoFetcher, ttl time.Duration, m *metrics.Metrics, logger *logrus.Logger) *ShortInfoCache {
	return &ShortInfoCache{
		ttl:     NewTTL[string, *models.ItemInfo](ttl),
		fetcher: fetcher,
		metrics: m,
		logger:  logger,
	}
}

// Lookup returns the cached info for url or fetches it, sharing one
// upstream call between concurrent callers. Failures are not cached.
func (c *ShortInfoCache) Lookup(ctx context.Context, url string) (*models.ItemInfo, error) {
	key := models.InfoKey(url)

	if info, ok := c.ttl.Get(key); ok {
		c.metrics.CacheLookups.WithLabelValues(ShortInfoCacheName, "hit").Inc()
		return info, nil
	}
	c.metrics.CacheLookups.WithLabelValues(ShortInfoCacheName, "miss").Inc()

	info, shared, err := share(ctx, &c.group, key, func(ctx context.Context) (*models.ItemInfo, error) {
		if info, ok := c.ttl.Get(key); ok {
			return info, nil
		}

		info, err := c.fetcher.GetInfoAndTranslators(ctx, url)
		if err != nil {
			c.metrics.UpstreamCalls.WithLabelValues(ShortInfoCacheName, "error").Inc()
			return nil, err
		}
		c.metrics.UpstreamCalls.WithLabelValues(ShortInfoCacheName, "ok").Inc()

		c.ttl.Set(key, info)
		return info, nil
	})
	if err != nil {
		return nil, fmt.Errorf("short info %s: %w", key, err)
	}

	c.logger.WithFields(logrus.Fields{
		"key":         key,
		"shared":      shared,
		"translators": len(info.Translators),
	}).Debug("Short info fetched")

	return info, nil
}

// SweepExpired implements Expirer
func (c *ShortInfoCache) SweepExpired() int {
	return c.ttl.SweepExpired()
}

// Len implements Expirer
func (c *ShortInfoCache) Len() int {
	return c.ttl.Len()
}
