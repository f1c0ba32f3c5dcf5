package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the pipeline's Prometheus metrics behind one registry.
type Collector struct {
	reg *prometheus.Registry

	FixesAccepted prometheus.Counter
	FixesRejected *prometheus.CounterVec // reason label: LOW_ACCURACY|IMPOSSIBLE_SPEED|...

	TripsStarted   prometheus.Counter
	TripsCompleted prometheus.Counter
	TripsCancelled *prometheus.CounterVec // reason label: too_short|drift|wrong_type|split
	TripsPromoted  prometheus.Counter     // segments promoted to trips

	SyncRuns    prometheus.Counter
	SyncUploads *prometheus.CounterVec // outcome label: synced|duplicate|rejected|network_failed
}

// NewCollector creates and registers the pipeline metrics.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		FixesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "greentrack_fixes_accepted_total",
			Help: "Total GPS fixes accepted by the ingestion filter.",
		}),
		FixesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greentrack_fixes_rejected_total",
			Help: "Total GPS fixes rejected by the ingestion filter.",
		}, []string{"reason"}),
		TripsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "greentrack_trips_started_total",
			Help: "Total trips started by movement detection.",
		}),
		TripsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "greentrack_trips_completed_total",
			Help: "Total trips that reached completed status.",
		}),
		TripsCancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greentrack_trips_cancelled_total",
			Help: "Total trips cancelled, by reason.",
		}, []string{"reason"}),
		TripsPromoted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "greentrack_trips_promoted_total",
			Help: "Total segments promoted to independent trips.",
		}),
		SyncRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "greentrack_sync_runs_total",
			Help: "Total sync passes started.",
		}),
		SyncUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greentrack_sync_uploads_total",
			Help: "Total trip uploads by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		c.FixesAccepted, c.FixesRejected,
		c.TripsStarted, c.TripsCompleted, c.TripsCancelled, c.TripsPromoted,
		c.SyncRuns, c.SyncUploads,
	)

	return c
}

// Handler exposes the registry for mounting on the API router.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
