package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	allocationRunsTotal   *prometheus.CounterVec
	samplesComputedTotal  *prometheus.CounterVec
	autoAgreementsTotal   *prometheus.CounterVec
	gradesPublishedTotal  *prometheus.CounterVec
	publishFailuresTotal  *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the
// marking workflow.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marking_api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marking_api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marking_api_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		allocationRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marking_allocation_runs_total",
			Help: "Total number of allocation strategy runs.",
		}, []string{"strategy", "stage"})

		samplesComputedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marking_samples_computed_total",
			Help: "Total number of sampling rule evaluations.",
		}, []string{"stage"})

		autoAgreementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marking_auto_agreements_total",
			Help: "Total number of automatically agreed final grades.",
		}, []string{"strategy"})

		gradesPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marking_grades_published_total",
			Help: "Total number of grades written to the gradebook.",
		}, []string{"republish"})

		publishFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marking_publish_failures_total",
			Help: "Total number of failed gradebook writes.",
		}, []string{"reason"})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			allocationRunsTotal, samplesComputedTotal, autoAgreementsTotal,
			gradesPublishedTotal, publishFailuresTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// AllocationRuns exposes the counter for allocation strategy runs.
func AllocationRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return allocationRunsTotal
}

// SamplesComputed exposes the counter for sampling evaluations.
func SamplesComputed() *prometheus.CounterVec {
	RegisterMetrics()
	return samplesComputedTotal
}

// AutoAgreements exposes the counter for automatic final grades.
func AutoAgreements() *prometheus.CounterVec {
	RegisterMetrics()
	return autoAgreementsTotal
}

// GradesPublished exposes the counter for gradebook writes.
func GradesPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return gradesPublishedTotal
}

// PublishFailures exposes the counter for failed gradebook writes.
func PublishFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return publishFailuresTotal
}
