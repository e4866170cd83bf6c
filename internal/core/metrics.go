// AngelaMos | 2026
// metrics.go

package core

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LifecycleTransitions counts engine operations by operation name and
	// outcome (applied, already_inactive, informational, rejected, failed).
	LifecycleTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bibliotech_lifecycle_transitions_total",
		Help: "Lifecycle engine operations by operation and outcome",
	}, []string{"operation", "outcome"})

	CascadedCancellations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bibliotech_reservations_cascade_cancelled_total",
		Help: "Reservations cancelled because their document became available",
	})

	ExpiredOnAccess = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bibliotech_loans_expired_on_access_total",
		Help: "Digital loans transitioned to expired when accessed past due",
	})

	ChatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bibliotech_chat_requests_total",
		Help: "Chat pass-through requests by result",
	}, []string{"result"})

	ChatDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bibliotech_chat_duration_seconds",
		Help:    "Chat completion round-trip duration",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
	})
)

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
