// Package metrics holds the Prometheus collectors shared by the HTTP adapter
// and the application services. It is standalone so that app does not import
// the HTTP layer.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quizfest_http_requests_total",
		Help: "HTTP requests by method, route pattern and status",
	}, []string{"method", "route", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quizfest_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	RateLimitRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quizfest_ratelimit_rejections_total",
		Help: "Requests rejected by a rate-limit policy",
	}, []string{"route"})

	// AuthEvents counts audited admin actions. outcome is success or failure.
	AuthEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quizfest_admin_events_total",
		Help: "Audited admin actions by action and outcome",
	}, []string{"action", "outcome"})

	ExportedRecords = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quizfest_exported_records_total",
		Help: "Registration records released through the export endpoint",
	})

	Registrations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quizfest_registrations_total",
		Help: "Registrations accepted",
	})

	NotifierFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quizfest_notifier_failures_total",
		Help: "Best-effort notification failures by notifier",
	}, []string{"notifier"})
)

// Register registers every collector on reg (or the default registerer if nil).
// Collectors that are already registered are ignored.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		HTTPRequests, HTTPDuration, RateLimitRejections, AuthEvents,
		ExportedRecords, Registrations, NotifierFailures,
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}
