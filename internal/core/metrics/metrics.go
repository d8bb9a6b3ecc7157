// Package metrics exposes rule engine activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/solatis/sweetbre/internal/rules"
)

const namespace = "sweetbre"

// Collector tracks rule engine runs.
//
// Metrics:
//   - sweetbre_runs_total: runs by ruleset and outcome
//   - sweetbre_run_duration_seconds: run duration by ruleset
//   - sweetbre_rules_evaluated_total: rules whose guard was evaluated
//   - sweetbre_rules_fired_total: rules whose body ran
//   - sweetbre_rule_errors_total: errors raised by rules, by error kind
//   - sweetbre_project_reloads_total: project reloads by result
type Collector struct {
	registry *prometheus.Registry

	runsTotal      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	rulesEvaluated *prometheus.CounterVec
	rulesFired     *prometheus.CounterVec
	ruleErrors     *prometheus.CounterVec
	reloads        *prometheus.CounterVec
}

// NewCollector creates and registers the engine metrics with registry.
// A nil registry gets a fresh one carrying the Go and process collectors.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	c := &Collector{
		registry: registry,
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of ruleset runs",
			},
			[]string{"ruleset", "outcome"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of ruleset runs in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
			},
			[]string{"ruleset"},
		),
		rulesEvaluated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rules_evaluated_total",
				Help:      "Total number of rules whose guard was evaluated",
			},
			[]string{"ruleset"},
		),
		rulesFired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rules_fired_total",
				Help:      "Total number of rules whose body ran",
			},
			[]string{"ruleset"},
		),
		ruleErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rule_errors_total",
				Help:      "Total number of errors raised by rules",
			},
			[]string{"ruleset", "kind"},
		),
		reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "project_reloads_total",
				Help:      "Total number of project reload attempts",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		c.runsTotal,
		c.runDuration,
		c.rulesEvaluated,
		c.rulesFired,
		c.ruleErrors,
		c.reloads,
	)
	return c
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// RecordRun records one completed or aborted run.
func (c *Collector) RecordRun(res *rules.Result) {
	c.runsTotal.WithLabelValues(res.Ruleset, res.Outcome()).Inc()
	c.runDuration.WithLabelValues(res.Ruleset).Observe(res.Duration.Seconds())
	c.rulesEvaluated.WithLabelValues(res.Ruleset).Add(float64(res.RulesEvaluated))
	c.rulesFired.WithLabelValues(res.Ruleset).Add(float64(res.RulesFired))
	for _, err := range res.Errors {
		c.ruleErrors.WithLabelValues(res.Ruleset, rules.ErrorKind(err)).Inc()
	}
	if res.Outcome() == rules.OutcomeAborted {
		c.ruleErrors.WithLabelValues(res.Ruleset, rules.ErrorKind(res.Err)).Inc()
	}
}

// RecordReload records a project reload attempt.
func (c *Collector) RecordReload(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	c.reloads.WithLabelValues(result).Inc()
}

// Handler returns the HTTP handler for the metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
