package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdoc_turns_total",
			Help: "Conversational turns by outcome",
		},
		[]string{"outcome"},
	)

	TurnPhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatdoc_turn_phase_duration_seconds",
			Help:    "Duration of each turn phase",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"phase"},
	)

	StreamFragments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatdoc_stream_fragments_total",
			Help: "Streamed answer fragments delivered",
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdoc_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdoc_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdoc_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	DiscoveryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdoc_url_discovery_total",
			Help: "Search-based URL discovery calls by result",
		},
		[]string{"result"},
	)

	SuggestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdoc_suggestions_total",
			Help: "Suggestion fetches by result",
		},
		[]string{"result"},
	)

	FeedbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdoc_feedback_total",
			Help: "Feedback toggles by value",
		},
		[]string{"feedback"},
	)

	ContextURLsFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdoc_context_urls_fetched_total",
			Help: "Context URL fetches by retrieval status",
		},
		[]string{"status"},
	)
)

func Init() {
	prometheus.MustRegister(TurnsTotal)
	prometheus.MustRegister(TurnPhaseDuration)
	prometheus.MustRegister(StreamFragments)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(DiscoveryTotal)
	prometheus.MustRegister(SuggestionsTotal)
	prometheus.MustRegister(FeedbackTotal)
	prometheus.MustRegister(ContextURLsFetched)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
