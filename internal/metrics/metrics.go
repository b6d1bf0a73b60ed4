package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hdrfilmsbot"

// Metrics holds the prometheus collectors shared by the workers
type Metrics struct {
	CacheLookups    *prometheus.CounterVec // cache, result=hit|miss
	UpstreamCalls   *prometheus.CounterVec // cache, result=ok|error
	Downloads       *prometheus.CounterVec // result=completed|unavailable|failed
	Deliveries      *prometheus.CounterVec // kind, result=ok|error
	SeriesUpdates   prometheus.Counter
	TrackCycleTime  prometheus.Histogram
	CacheEvictions  *prometheus.CounterVec // cache
	DownloadedBytes prometheus.Counter
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Upstream cache lookups by cache and result.",
		}, []string{"cache", "result"}),
		UpstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_calls_total",
			Help:      "Upstream API calls made on cache misses by cache and result.",
		}, []string{"cache", "result"}),
		Downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_downloads_total",
			Help:      "Download queue items handled by outcome.",
		}, []string{"result"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Outbound chat deliveries by kind and result.",
		}, []string{"kind", "result"}),
		SeriesUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "series_updates_total",
			Help:      "Tracked series rows that produced an update notification.",
		}),
		TrackCycleTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "track_cycle_duration_seconds",
			Help:      "Duration of a full series tracking cycle.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		CacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Entries removed by the expiry sweep.",
		}, []string{"cache"}),
		DownloadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloaded_bytes_total",
			Help:      "Bytes selected for download.",
		}),
	}

	reg.MustRegister(
		m.CacheLookups,
		m.UpstreamCalls,
		m.Downloads,
		m.Deliveries,
		m.SeriesUpdates,
		m.TrackCycleTime,
		m.CacheEvictions,
		m.DownloadedBytes,
	)

	return m
}

// Delivery records the outcome of one outbound message
func (m *Metrics) Delivery(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Deliveries.WithLabelValues(kind, result).Inc()
}
