// Package metrics holds the prometheus instruments for the application.
// Everything is registered on the default registry and exposed by the
// server at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BoardRequests counts calls to the board API by final outcome:
	// "ok", "fatal" (non-retriable failure), "exhausted" (retries used up).
	BoardRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "giftdesk_board_requests_total",
		Help: "Board API requests by final outcome.",
	}, []string{"outcome"})

	// BoardRetries counts individual retry attempts, regardless of outcome.
	BoardRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "giftdesk_board_retries_total",
		Help: "Retry attempts against the board API.",
	})

	// ClaimSubmissions counts claim submissions by result: "committed",
	// "duplicate", "out_of_stock", "rolled_back", "failed".
	ClaimSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "giftdesk_claim_submissions_total",
		Help: "Claim submissions by result.",
	}, []string{"result"})

	// CompensationFailures counts compensating increments that themselves
	// failed, leaving inventory short by one unit. Alert on this.
	CompensationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "giftdesk_compensation_failures_total",
		Help: "Compensating stock increments that failed.",
	})
)
