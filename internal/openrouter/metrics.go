package openrouter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forge_llm_requests_total",
			Help: "Total number of LLM API requests",
		},
		[]string{"model", "status"},
	)

	llmRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forge_llm_request_duration_seconds",
			Help:    "LLM API request duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"model"},
	)

	llmTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forge_llm_tokens_total",
			Help: "Total number of tokens consumed by LLM requests",
		},
		[]string{"model", "type"},
	)
)

// RecordLLMRequest records metrics for a single chat-completion attempt.
func RecordLLMRequest(model string, durationSeconds float64, success bool, promptTokens, completionTokens int) {
	status := "success"
	if !success {
		status = "error"
	}
	llmRequestsTotal.WithLabelValues(model, status).Inc()
	llmRequestDuration.WithLabelValues(model).Observe(durationSeconds)
	if promptTokens > 0 {
		llmTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		llmTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}
