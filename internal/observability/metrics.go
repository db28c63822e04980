package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheLookups counts feed cache lookups by view and outcome (hit_local, hit_redis, miss).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewfeed_cache_lookups_total",
		Help: "Feed cache lookups by view and outcome",
	}, []string{"view", "outcome"})

	// CacheFailures counts cache reads or writes that failed and fell back to computing.
	CacheFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewfeed_cache_failures_total",
		Help: "Cache backend or decode failures by view and stage",
	}, []string{"view", "stage"})

	// PrewarmJobs counts pre-warm jobs by result (scheduled, deduplicated, dropped, done, failed).
	PrewarmJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewfeed_prewarm_jobs_total",
		Help: "Feedback cache pre-warm jobs by result",
	}, []string{"result"})

	// FeedComputeSeconds records how long a cache miss took to recompute a view.
	FeedComputeSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reviewfeed_feed_compute_seconds",
		Help:    "Time spent recomputing a feed view on cache miss",
		Buckets: prometheus.DefBuckets,
	}, []string{"view"})
)
