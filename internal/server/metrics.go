package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus metrics exported by the API server.
type Metrics struct {
	// RequestsTotal counts handled requests by method, route pattern and status.
	RequestsTotal *prometheus.CounterVec

	// RequestDuration observes request latency in seconds by method and route.
	RequestDuration *prometheus.HistogramVec

	// EntriesParsed counts BibTeX entries returned by parse and import requests.
	EntriesParsed prometheus.Counter

	// EntriesSkipped counts malformed BibTeX entries skipped while parsing.
	EntriesSkipped prometheus.Counter

	// ParseFailures counts parse requests that failed, by kind (malformed, timeout).
	ParseFailures *prometheus.CounterVec

	// EntriesExported counts BibTeX entries written by export requests.
	EntriesExported prometheus.Counter

	// ScansTotal counts directory scans.
	ScansTotal prometheus.Counter

	// PapersDiscovered counts new papers found by scans.
	PapersDiscovered prometheus.Counter

	// RegistryLookups counts DOI registry lookups by outcome.
	RegistryLookups *prometheus.CounterVec
}

// NewMetrics creates and registers the server metrics with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled",
		}, []string{"method", "route", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		EntriesParsed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bibtex",
			Name:      "entries_parsed_total",
			Help:      "Total number of BibTeX entries parsed",
		}),

		EntriesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bibtex",
			Name:      "entries_skipped_total",
			Help:      "Total number of malformed BibTeX entries skipped",
		}),

		ParseFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bibtex",
			Name:      "parse_failures_total",
			Help:      "Total number of failed BibTeX parses by kind",
		}, []string{"kind"}),

		EntriesExported: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bibtex",
			Name:      "entries_exported_total",
			Help:      "Total number of BibTeX entries exported",
		}),

		ScansTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "library",
			Name:      "scans_total",
			Help:      "Total number of papers directory scans",
		}),

		PapersDiscovered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "library",
			Name:      "papers_discovered_total",
			Help:      "Total number of new papers found by scans",
		}),

		RegistryLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "lookups_total",
			Help:      "Total number of DOI registry lookups by outcome",
		}, []string{"outcome"}),
	}
}
