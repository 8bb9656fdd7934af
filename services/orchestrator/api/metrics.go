package api

import (
	"net/http"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "load_orchestrator"

// promMetrics mirrors the run events into Prometheus collectors held by a private registry
type promMetrics struct {
	registry         *prometheus.Registry
	state            prometheus.Gauge
	currentUsers     prometheus.Gauge
	rps              prometheus.Gauge
	p95              prometheus.Gauge
	p99              prometheus.Gauge
	errorRate        prometheus.Gauge
	degradationIndex prometheus.Gauge
	decisions        *prometheus.CounterVec
	runs             *prometheus.CounterVec
}

func newGauge(name string, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      name,
		Help:      help,
	})
}

func newPromMetrics() *promMetrics {
	pm := &promMetrics{
		registry:         prometheus.NewRegistry(),
		state:            newGauge("state", "Orchestrator state: 0 INIT, 1 RUNNING, 2 FINISHED"),
		currentUsers:     newGauge("current_users", "User count applied to the load generator"),
		rps:              newGauge("rps", "Requests per second of the latest sample"),
		p95:              newGauge("p95_ms", "95th percentile latency of the latest sample in milliseconds"),
		p99:              newGauge("p99_ms", "99th percentile latency of the latest sample in milliseconds"),
		errorRate:        newGauge("error_rate_percent", "Error rate of the latest sample"),
		degradationIndex: newGauge("degradation_index", "Composite degradation index of the latest sample"),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "decisions_total",
			Help:      "Number of decisions taken, by decision",
		}, []string{"decision"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "runs_total",
			Help:      "Number of finished runs, by stop reason",
		}, []string{"reason"}),
	}

	pm.registry.MustRegister(
		pm.state,
		pm.currentUsers,
		pm.rps,
		pm.p95,
		pm.p99,
		pm.errorRate,
		pm.degradationIndex,
		pm.decisions,
		pm.runs,
	)

	return pm
}

func (pm *promMetrics) observe(event common.Event) {
	switch payload := event.Payload.(type) {
	case common.AnalyzedMetrics:
		pm.rps.Set(payload.Raw.RPS)
		pm.p95.Set(payload.Raw.P95)
		pm.p99.Set(payload.Raw.P99)
		pm.errorRate.Set(payload.Raw.ErrorRate)
		pm.degradationIndex.Set(payload.DegradationIndex)
	case common.Step:
		pm.decisions.WithLabelValues(payload.Verdict.Decision.String()).Inc()
	case common.RunStatus:
		pm.state.Set(float64(payload.State))
		pm.currentUsers.Set(float64(payload.CurrentUsers))
	case *common.TestResult:
		pm.runs.WithLabelValues(payload.StopReason.String()).Inc()
	}
}

func (pm *promMetrics) handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
}
