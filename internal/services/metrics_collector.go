package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// EngineMetrics exposes recommendation pipeline and profile update metrics.
// A nil *EngineMetrics is valid and records nothing.
type EngineMetrics struct {
	recommendationRequests *prometheus.CounterVec
	recommendationLatency  prometheus.Histogram
	stageItems             *prometheus.GaugeVec
	coldStarts             prometheus.Counter
	profileUpdates         *prometheus.CounterVec
	cacheLookups           *prometheus.CounterVec
	enrichmentFailures     prometheus.Counter
}

// NewEngineMetrics creates the engine metrics and registers them with reg.
// Collectors that are already registered are reused.
func NewEngineMetrics(reg prometheus.Registerer, logger *logrus.Logger) *EngineMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &EngineMetrics{
		recommendationRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "psyrec_recommendation_requests_total",
			Help: "Total number of recommendation requests by outcome",
		}, []string{"outcome"}),

		recommendationLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "psyrec_recommendation_latency_seconds",
			Help:    "Recommendation pipeline latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),

		stageItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "psyrec_pipeline_stage_items",
			Help: "Number of items leaving each pipeline stage in the last request",
		}, []string{"stage"}),

		coldStarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "psyrec_cold_start_total",
			Help: "Recommendation requests served by the popularity fallback",
		}),

		profileUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "psyrec_profile_updates_total",
			Help: "Evidence events applied to profiles by kind",
		}, []string{"kind"}),

		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "psyrec_cache_lookups_total",
			Help: "Cache lookups by cache and result",
		}, []string{"cache", "result"}),

		enrichmentFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "psyrec_enrichment_failures_total",
			Help: "Attribute lookups that failed during catalog enrichment",
		}),
	}

	m.recommendationRequests = register(reg, logger, m.recommendationRequests)
	m.recommendationLatency = register(reg, logger, m.recommendationLatency)
	m.stageItems = register(reg, logger, m.stageItems)
	m.coldStarts = register(reg, logger, m.coldStarts)
	m.profileUpdates = register(reg, logger, m.profileUpdates)
	m.cacheLookups = register(reg, logger, m.cacheLookups)
	m.enrichmentFailures = register(reg, logger, m.enrichmentFailures)

	return m
}

// register registers c, returning the existing collector when one with the
// same descriptor is already registered.
func register[T prometheus.Collector](reg prometheus.Registerer, logger *logrus.Logger, c T) T {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
			return c
		}
		if logger != nil {
			logger.WithError(err).Warn("Failed to register metric")
		}
	}
	return c
}

// ObserveRecommendation records one pipeline run.
func (m *EngineMetrics) ObserveRecommendation(start time.Time, coldStart bool, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.recommendationRequests.WithLabelValues(outcome).Inc()
	m.recommendationLatency.Observe(time.Since(start).Seconds())
	if coldStart {
		m.coldStarts.Inc()
	}
}

// SetStageItems records how many items left a stage.
func (m *EngineMetrics) SetStageItems(stage string, n int) {
	if m == nil {
		return
	}
	m.stageItems.WithLabelValues(stage).Set(float64(n))
}

func (m *EngineMetrics) IncProfileUpdate(kind string) {
	if m == nil {
		return
	}
	m.profileUpdates.WithLabelValues(kind).Inc()
}

// ObserveCache records a lookup against the named cache.
func (m *EngineMetrics) ObserveCache(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

func (m *EngineMetrics) IncEnrichmentFailure() {
	if m == nil {
		return
	}
	m.enrichmentFailures.Inc()
}
