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

// ResolutionCacheName labels the resolution cache in metrics and sweeps
const ResolutionCacheName = "rezka_data"

// Resolver fetches direct URLs from the upstream API
type Resolver interface {
	GetDirectURLs(ctx context.Context, req models.ResolveRequest) (*models.DirectURLs, error)
}

// ResolutionCache memoizes upstream lookups with at most one in-flight fetch per key
type ResolutionCache struct {
	ttl      *TTL[string, *models.ResolvedContent]
	resolver Resolver
	group    singleflight.Group
	metrics  *metrics.Metrics
	logger   *logrus.Logger
}

// NewResolutionCache creates a cache keeping results for ttl
func NewResolutionCache(resolver Resolver, ttl time.Duration, m *metrics.Metrics, logger *logrus.Logger) *ResolutionCache {
	return &ResolutionCache{
		ttl:      NewTTL[string, *models.ResolvedContent](ttl),
		resolver: resolver,
		metrics:  m,
		logger:   logger,
	}
}

// Resolve returns the cached content for req or fetches it. Concurrent
// callers for the same missing key share one upstream call. Errors are
// returned to all of them and never cached. A caller whose ctx ends stops
// waiting without cancelling the shared call.
func (c *ResolutionCache) Resolve(ctx context.Context, req models.ResolveRequest) (*models.ResolvedContent, error) {
	key := req.Key()

	if content, ok := c.ttl.Get(key); ok {
		c.metrics.CacheLookups.WithLabelValues(ResolutionCacheName, "hit").Inc()
		c.logger.WithField("key", key).Debug("Resolution cache hit")
		return content, nil
	}
	c.metrics.CacheLookups.WithLabelValues(ResolutionCacheName, "miss").Inc()

	content, shared, err := share(ctx, &c.group, key, func(ctx context.Context) (*models.ResolvedContent, error) {
		// A fetch that finished between our Get and the flight already stored the value
		if content, ok := c.ttl.Get(key); ok {
			return content, nil
		}

		resp, err := c.resolver.GetDirectURLs(ctx, req)
		if err != nil {
			c.metrics.UpstreamCalls.WithLabelValues(ResolutionCacheName, "error").Inc()
			return nil, err
		}
		c.metrics.UpstreamCalls.WithLabelValues(ResolutionCacheName, "ok").Inc()

		content := models.NewResolvedContent(req, resp)
		c.ttl.Set(key, content)
		return content, nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", key, err)
	}

	if shared {
		c.logger.WithField("key", key).Debug("Shared in-flight resolution")
	}

	return content, nil
}

// Invalidate drops the cached result for req so the next Resolve refetches
func (c *ResolutionCache) Invalidate(req models.ResolveRequest) {
	c.ttl.Remove(req.Key())
}

// SweepExpired implements Expirer
func (c *ResolutionCache) SweepExpired() int {
	return c.ttl.SweepExpired()
}

// Len implements Expirer
func (c *ResolutionCache) Len() int {
	return c.ttl.Len()
}
