// Package services implements the business logic of the eligibility gating
// engine. This file registers the domain-level Prometheus collectors shared
// by the services: cache effectiveness per namespace and broadcast delivery
// outcomes.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// cacheLookups counts resolver cache lookups by namespace and result
	// (hit/miss). Low-cardinality by construction.
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eligibility_cache_lookups_total",
			Help: "Resolver cache lookups by namespace and result.",
		},
		[]string{"namespace", "result"},
	)

	// broadcastSends counts per-recipient broadcast deliveries by outcome.
	broadcastSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_sends_total",
			Help: "Broadcast deliveries by outcome (ok/failed).",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(cacheLookups, broadcastSends)
}
