package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watchsense_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"stage"},
	)

	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchsense_analyses_total",
			Help: "Total number of analysis requests processed",
		},
		[]string{"status"},
	)

	RetrievedReviewsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "watchsense_retrieved_reviews_count",
			Help:    "Number of reviews retrieved per analysis",
			Buckets: []float64{0, 5, 10, 20, 40, 60},
		},
	)

	FaithfulnessScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "watchsense_faithfulness_score",
			Help:    "Verified claim faithfulness per analysis",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchsense_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchsense_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchsense_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	ReviewsIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "watchsense_reviews_indexed_total",
			Help: "Total reviews embedded and indexed",
		},
	)

	SuggestionFeedback = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchsense_suggestion_feedback_total",
			Help: "Total suggestion feedback events",
		},
		[]string{"decision"},
	)
)

func Init() {
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(AnalysesTotal)
	prometheus.MustRegister(RetrievedReviewsCount)
	prometheus.MustRegister(FaithfulnessScore)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(ReviewsIndexed)
	prometheus.MustRegister(SuggestionFeedback)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
