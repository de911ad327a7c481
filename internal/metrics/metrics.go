// Package metrics defines the prometheus counters of the ingestion pipeline.
// They register on the default registry, which fiberprometheus serves at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResponsesAccepted counts persisted submissions.
	ResponsesAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "formsdb",
		Name:      "responses_accepted_total",
		Help:      "Form responses persisted.",
	})

	// ResponsesRejected counts submissions refused, by reason.
	ResponsesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "formsdb",
		Name:      "responses_rejected_total",
		Help:      "Form submissions rejected before persistence.",
	}, []string{"reason"})

	// UnknownFieldsSkipped counts answers dropped because their field id is not on the form.
	UnknownFieldsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "formsdb",
		Name:      "unknown_fields_skipped_total",
		Help:      "Submitted answers ignored because the field id is unknown or inactive.",
	})

	// PermissionCacheLookups counts permission cache results ("hit", "miss", "error").
	PermissionCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "formsdb",
		Name:      "permission_cache_lookups_total",
		Help:      "Permission cache lookups by result.",
	}, []string{"result"})
)
