package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus instruments for the service. Best-effort side
// effects (feed-post emission, profile refresh) report their failures here
// instead of failing the primary operation.
type Metrics struct {
	AttemptsRecorded      *prometheus.CounterVec
	AttemptFailures       prometheus.Counter
	ProfileUpdateFailures prometheus.Counter
	FeedPostFailures      prometheus.Counter
	FeedEventsPublished   prometheus.Counter
	WSConnections         prometheus.Gauge
}

// New registers the instruments on reg. Pass a fresh registry in tests to
// avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AttemptsRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bridgebites",
				Name:      "attempts_recorded_total",
				Help:      "Attempts recorded, labeled by outcome",
			},
			[]string{"result"}, // correct, incorrect, zero_points
		),
		AttemptFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bridgebites",
			Name:      "attempt_failures_total",
			Help:      "Attempt rows that could not be persisted",
		}),
		ProfileUpdateFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bridgebites",
			Name:      "profile_update_failures_total",
			Help:      "Profile stat updates that failed after a durable attempt",
		}),
		FeedPostFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bridgebites",
			Name:      "feed_post_failures_total",
			Help:      "Best-effort feed posts that were dropped",
		}),
		FeedEventsPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bridgebites",
			Name:      "feed_events_published_total",
			Help:      "Feed insert notifications published",
		}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "bridgebites",
			Name:      "ws_connections",
			Help:      "Open websocket connections",
		}),
	}
}
