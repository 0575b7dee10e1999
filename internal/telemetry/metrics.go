package telemetry

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// StepsTotal counts finished step invocations by operation and outcome
	// (completed, skipped, deferred, failed).
	StepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_steps_total",
		Help: "Step invocations by operation and outcome.",
	}, []string{"operation", "status"})

	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "folio_step_duration_seconds",
		Help:    "Wall time of a single step invocation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	BundlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "folio_bundles_total",
		Help: "Archive bundles written during finalization.",
	})
)

var exposeOnce sync.Once

// Expose serves /metrics in the background. Only the first call binds a
// port; later calls are no-ops.
func Expose(port int) {
	exposeOnce.Do(func() {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			_ = http.ListenAndServe(fmt.Sprintf(":%d", port), nil)
		}()
	})
}
