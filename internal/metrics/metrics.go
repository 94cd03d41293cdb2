// Package metrics exposes Prometheus instrumentation for voxbot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PipelineRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxbot_pipeline_requests_total",
			Help: "Pipeline requests by flow and outcome",
		},
		[]string{"flow", "outcome"},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "voxbot_pipeline_duration_seconds",
			Help: "End-to-end pipeline flow duration in seconds",
		},
		[]string{"flow"},
	)

	ProviderFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxbot_provider_failures_total",
			Help: "Failed external provider calls by provider and operation",
		},
		[]string{"provider", "op"},
	)

	KnowledgeSearches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voxbot_knowledge_searches_total",
			Help: "Total knowledge store searches",
		},
	)

	ActiveVoiceSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "voxbot_active_voice_sessions",
			Help: "Users currently in the voice-selection flow",
		},
	)

	ArtifactsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voxbot_artifacts_swept_total",
			Help: "Orphaned temp audio artifacts removed by the janitor",
		},
	)
)
