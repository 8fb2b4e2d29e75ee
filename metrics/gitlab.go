package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	CollectionTime = prometheus.NewSummary(prometheus.SummaryOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsCollectorSubsystem,
		Name:      "collect_seconds",
		Help:      "Time spent to collect metrics from Gitlab",
	})

	GitlabOperationCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsCollectorSubsystem,
		Name:      "api_operation_total",
		Help:      "Total number of gitlab API operation attempts",
	}, []string{"operation"})

	GitlabOperationFailedCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsCollectorSubsystem,
		Name:      "api_operation_failed_total",
		Help:      "Total number of failed gitlab API operation attempts",
	}, []string{"operation"})
)
