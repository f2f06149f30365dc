package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReportsBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Name: "breakwatch_reports_built_total",
		Help: "Break reports generated successfully.",
	})
	ReportFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "breakwatch_report_failures_total",
		Help: "Break report requests that failed.",
	})
	EventsNormalized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "breakwatch_events_normalized_total",
		Help: "Raw vendor events normalized.",
	})
	EventsMalformed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "breakwatch_events_malformed_total",
		Help: "Raw vendor events dropped as unparsable.",
	})
	EventsUnpaired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "breakwatch_events_unpaired_total",
		Help: "Out events dropped for lack of a matching in event.",
	})
	ViolationsFlagged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "breakwatch_violations_flagged_total",
		Help: "Anti-passback violations surfaced in reports.",
	})
	VendorRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breakwatch_vendor_requests_total",
		Help: "Calls made to the vendor access-control API.",
	}, []string{"endpoint", "outcome"})
	ReportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "breakwatch_report_build_seconds",
		Help:    "Wall time spent building a break report.",
		Buckets: prometheus.DefBuckets,
	})
)
