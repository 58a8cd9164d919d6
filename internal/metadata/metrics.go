package metadata

import "github.com/prometheus/client_golang/prometheus"

var (
	// fetchTotal counts upstream extractions by outcome ("ok" or a Kind).
	fetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "enricher",
			Name:      "metadata_fetch_total",
			Help:      "Upstream website metadata fetches by outcome.",
		},
		[]string{"outcome"},
	)

	// fetchDuration records upstream fetch+parse latency in seconds.
	fetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "enricher",
			Name:      "metadata_fetch_duration_seconds",
			Help:      "Duration of upstream website metadata extraction.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// cacheLookups counts cache lookups by result (hit|miss).
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "enricher",
			Name:      "metadata_cache_lookups_total",
			Help:      "Metadata cache lookups by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(fetchTotal, fetchDuration, cacheLookups)
}

// ObserveCacheLookup records a cache hit or miss.
func ObserveCacheLookup(hit bool) {
	if hit {
		cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	cacheLookups.WithLabelValues("miss").Inc()
}
