// Package metrics exposes the Prometheus collectors of the billing service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// billingRuns counts engine runs by outcome.
	// Labels: outcome (empty, nothing-to-allocate, allocated)
	billingRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "immo_billing_runs_total",
			Help: "Total number of service charge calculations",
		},
		[]string{"outcome"},
	)

	billingIssues = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "immo_billing_issues_total",
			Help: "Configuration problems found while apportioning costs",
		},
		[]string{"kind"},
	)

	// statementsPersisted counts per-statement saves.
	// Labels: result (saved, failed)
	statementsPersisted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "immo_statements_persisted_total",
			Help: "Billing statements written to the store",
		},
		[]string{"result"},
	)

	syncPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "immo_sync_messages_published_total",
			Help: "Statement sync messages handed to the broker",
		},
		[]string{"result"},
	)

	statementsSynced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "immo_statements_synced_total",
			Help: "Statements mirrored to the spreadsheet",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "immo_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "immo_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(billingRuns)
	prometheus.MustRegister(billingIssues)
	prometheus.MustRegister(statementsPersisted)
	prometheus.MustRegister(syncPublished)
	prometheus.MustRegister(statementsSynced)
	prometheus.MustRegister(httpRequests)
	prometheus.MustRegister(httpDuration)
}

// RecordBillingRun records one calculation and the issue kinds it raised.
func RecordBillingRun(outcome string, issueKinds []string) {
	billingRuns.WithLabelValues(outcome).Inc()
	for _, k := range issueKinds {
		billingIssues.WithLabelValues(k).Inc()
	}
}

func RecordPersist(saved, failed int) {
	statementsPersisted.WithLabelValues("saved").Add(float64(saved))
	statementsPersisted.WithLabelValues("failed").Add(float64(failed))
}

func RecordPublish(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	syncPublished.WithLabelValues(result).Inc()
}

func RecordSynced(n int) {
	statementsSynced.Add(float64(n))
}

func RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
