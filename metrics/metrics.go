// Package metrics exposes Prometheus collectors for FileMesh runs. The
// collectors are fed by engine callbacks, so instrumentation stays outside the
// orchestration core.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/filemesh/core"
	"github.com/hupe1980/filemesh/engine"
)

const namespace = "filemesh"

// Collector holds the run, step and routing metrics.
type Collector struct {
	runs          *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	activeRuns    prometheus.Gauge
	nodeVisits    *prometheus.CounterVec
	nodeDuration  *prometheus.HistogramVec
	routeDecision *prometheus.CounterVec
	gatherer      prometheus.Gatherer
}

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh private registry.
func New(reg *prometheus.Registry) (*Collector, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	c := &Collector{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed runs by status code and error kind.",
		}, []string{"status", "kind"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"status"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Runs currently executing.",
		}),
		nodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_visits_total",
			Help:      "Node executions by node name.",
		}, []string{"node"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Duration of node executions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"node"}),
		routeDecision: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_decisions_total",
			Help:      "Supervisor routing decisions by target.",
		}, []string{"next"}),
		gatherer: reg,
	}

	for _, col := range []prometheus.Collector{c.runs, c.runDuration, c.activeRuns, c.nodeVisits, c.nodeDuration, c.routeDecision} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Callbacks returns the engine callbacks feeding the collectors.
func (c *Collector) Callbacks() []engine.Callback {
	return []engine.Callback{
		engine.NewFunctionCallback(engine.CallbackRunStart, func(context.Context, *engine.CallbackContext) error {
			c.activeRuns.Inc()
			return nil
		}),
		engine.NewFunctionCallback(engine.CallbackStep, func(_ context.Context, cc *engine.CallbackContext) error {
			c.ObserveStep(*cc.Entry)
			return nil
		}),
		engine.NewFunctionCallback(engine.CallbackRunEnd, func(_ context.Context, cc *engine.CallbackContext) error {
			c.ObserveRun(cc.Result)
			return nil
		}),
	}
}

// ObserveStep records one node execution.
func (c *Collector) ObserveStep(e core.TraceEntry) {
	c.nodeVisits.WithLabelValues(e.Node).Inc()
	c.nodeDuration.WithLabelValues(e.Node).Observe(e.Duration.Seconds())

	if e.Node == core.SupervisorNode && e.State.Next.IsSet() {
		c.routeDecision.WithLabelValues(e.State.Next.String()).Inc()
	}
}

// ObserveRun records a finished run. Runs rejected before they started (bad
// input, saturation) have an empty trace and never incremented activeRuns.
func (c *Collector) ObserveRun(r *engine.Result) {
	status := strconv.Itoa(r.Status)
	kind := "none"
	if r.Err != nil {
		kind = core.KindOf(r.Err).String()
	}

	c.runs.WithLabelValues(status, kind).Inc()
	c.runDuration.WithLabelValues(status).Observe(r.Duration.Seconds())

	if started(r) {
		c.activeRuns.Dec()
	}
}

func started(r *engine.Result) bool {
	if len(r.Trace) > 0 {
		return true
	}
	k := core.KindOf(r.Err)
	return r.Err == nil || (k != core.KindInvalidInput && k != core.KindUnavailable)
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
