package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TransitionsTotal counts workflow transitions by target status.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reporting_workflow_transitions_total",
		Help: "Indicator value workflow transitions applied, by target status.",
	}, []string{"status"})

	// TransitionsSkipped counts bulk-transition rows skipped because they
	// no longer matched the precondition state.
	TransitionsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reporting_workflow_transitions_skipped_total",
		Help: "Rows skipped during bulk transitions for not matching the precondition.",
	}, []string{"status"})

	// ConsolidationRebuilds counts consolidated-cache rebuilds by trigger.
	ConsolidationRebuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reporting_consolidation_rebuilds_total",
		Help: "Consolidated indicator value cache rebuilds, by trigger (lazy or explicit).",
	}, []string{"trigger"})

	// ValueEdits counts value inserts and guarded updates.
	ValueEdits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reporting_value_edits_total",
		Help: "Indicator value inserts and edits accepted by the store.",
	})
)

// Handler exposes the prometheus registry on a gin route.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
