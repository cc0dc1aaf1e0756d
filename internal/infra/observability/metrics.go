package observability

import (
	"time"

	"github.com/boddenberg/wallet-activity-bfa/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	fetchDuration     *prometheus.HistogramVec
	externalErrors    *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	deduped           *prometheus.CounterVec
	transitions       *prometheus.CounterVec
	supersededDropped *prometheus.CounterVec
	malformedRecords  *prometheus.CounterVec
	requestsTotal     *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		fetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bfa_fetch_duration_seconds",
				Help:    "Duration of data source fetches by endpoint.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_external_errors_total",
				Help: "Total failed data source fetches.",
			},
			[]string{"endpoint"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		deduped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_fetch_deduplicated_total",
				Help: "Fetches that joined an identical in-flight request.",
			},
			[]string{"endpoint"},
		),
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_query_transitions_total",
				Help: "Query state transitions by target state.",
			},
			[]string{"state"},
		),
		supersededDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_superseded_responses_total",
				Help: "Responses discarded because a newer fetch for the same query was started.",
			},
			[]string{"endpoint"},
		),
		malformedRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_malformed_records_total",
				Help: "Records normalized with fallbacks, by issue.",
			},
			[]string{"issue"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_fetches_total",
				Help: "Total data source fetches by outcome.",
			},
			[]string{"status"},
		),
	}
}

// TrackGauge registers a gauge read from fn at every scrape.
func (m *Metrics) TrackGauge(name, help string, fn func() float64) {
	promauto.With(m.Registry).NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn)
}

// RecordFetch records one data source fetch and its outcome.
func (m *Metrics) RecordFetch(endpoint string, d time.Duration, err error) {
	m.fetchDuration.WithLabelValues(endpoint).Observe(d.Seconds())
	if err != nil {
		m.externalErrors.WithLabelValues(endpoint).Inc()
		m.requestsTotal.WithLabelValues("error").Inc()
		return
	}
	m.requestsTotal.WithLabelValues("success").Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrDeduped counts a caller that shared an in-flight fetch.
func (m *Metrics) IncrDeduped(endpoint string) {
	m.deduped.WithLabelValues(endpoint).Inc()
}

// IncrTransition counts a query moving into state.
func (m *Metrics) IncrTransition(state string) {
	m.transitions.WithLabelValues(state).Inc()
}

// IncrSuperseded counts a response dropped for being stale.
func (m *Metrics) IncrSuperseded(endpoint string) {
	m.supersededDropped.WithLabelValues(endpoint).Inc()
}

// IncrMalformed counts one normalization issue.
func (m *Metrics) IncrMalformed(issue string) {
	m.malformedRecords.WithLabelValues(issue).Inc()
}

// transitionStates are reported in the snapshot even when zero.
var transitionStates = []string{"idle", "loading", "success", "error"}

// GetPipelineSnapshot returns a snapshot of the fetch pipeline suitable for
// the GET /v1/metrics/pipeline endpoint.
func (m *Metrics) GetPipelineSnapshot() *domain.PipelineMetrics {
	// Note: Prometheus counters expose cumulative values.
	successes := getCounterValue(m.requestsTotal, "success")
	errs := getCounterValue(m.requestsTotal, "error")
	total := successes + errs
	hits := sumCounterVec(m.cacheHits)
	misses := sumCounterVec(m.cacheMisses)

	errorRate := float64(0)
	if total > 0 {
		errorRate = errs / total
	}
	cacheHitRate := float64(0)
	if hits+misses > 0 {
		cacheHitRate = hits / (hits + misses)
	}

	transitions := make(map[string]int64, len(transitionStates))
	for _, s := range transitionStates {
		transitions[s] = int64(getCounterValue(m.transitions, s))
	}

	return &domain.PipelineMetrics{
		Fetches:           int64(total),
		FetchErrors:       int64(errs),
		ErrorRate:         errorRate,
		AvgFetchLatencyMs: histogramMeanMs(m.Registry, "bfa_fetch_duration_seconds"),
		CacheHitRate:      cacheHitRate,
		DedupedRequests:   int64(sumCounterVec(m.deduped)),
		SupersededDropped: int64(sumCounterVec(m.supersededDropped)),
		MalformedRecords:  int64(sumCounterVec(m.malformedRecords)),
		Transitions:       transitions,
		Period:            "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// sumCounterVec adds up every label combination of cv.
func sumCounterVec(cv *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	var total float64
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil {
			continue
		}
		if m.Counter != nil {
			total += m.Counter.GetValue()
		}
	}
	return total
}

// histogramMeanMs averages a histogram family across all its series.
func histogramMeanMs(reg *prometheus.Registry, name string) float64 {
	families, err := reg.Gather()
	if err != nil {
		return 0
	}
	var sum float64
	var count uint64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			if h := m.GetHistogram(); h != nil {
				sum += h.GetSampleSum()
				count += h.GetSampleCount()
			}
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count) * 1000
}
