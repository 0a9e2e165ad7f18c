package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 决策路径的业务指标，通过 /metrics 暴露给 Prometheus。
var (
	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agrilink_requests_submitted_total",
		Help: "Claim requests successfully submitted, by owner partition type.",
	}, []string{"owner_type"})

	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agrilink_decisions_total",
		Help: "Resolved claim requests, by owner partition type and outcome.",
	}, []string{"owner_type", "outcome"})

	contentionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agrilink_decision_contention_total",
		Help: "Decision commits aborted because the optimistic snapshot went stale.",
	}, []string{"owner_type"})

	insufficientStockTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agrilink_insufficient_stock_total",
		Help: "Accept attempts refused because stock could not cover the request.",
	}, []string{"owner_type"})

	decisionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agrilink_decision_duration_seconds",
		Help:    "Latency of accept/reject decisions, commit included.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)
