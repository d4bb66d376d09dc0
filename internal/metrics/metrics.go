// Package metrics exposes the prometheus counters the orchestrator and
// executor loops need: approvals, quorum promotions, executed commands,
// and per-loop failures, registered the way
// observability/metrics.go registers its own module counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every counter this engine exports.
type Registry struct {
	ApprovalsTotal    *prometheus.CounterVec
	PromotionsTotal   *prometheus.CounterVec
	CommandsExecuted  *prometheus.CounterVec
	LoopFailuresTotal *prometheus.CounterVec
}

// New builds and registers a fresh Registry against the given prometheus
// registerer. Pass prometheus.DefaultRegisterer for process-wide metrics.
func New(reg prometheus.Registerer) *Registry {
	m := &Registry{
		ApprovalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dwagent",
			Name:      "approvals_total",
			Help:      "Approval decisions recorded, segmented by document and decision.",
		}, []string{"doc_id", "decision"}),
		PromotionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dwagent",
			Name:      "promotions_total",
			Help:      "Commands that crossed quorum and were promoted to APPROVED or REJECTED.",
		}, []string{"doc_id", "status"}),
		CommandsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dwagent",
			Name:      "commands_executed_total",
			Help:      "Commands that reached a terminal EXECUTED state, segmented by document.",
		}, []string{"doc_id"}),
		LoopFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dwagent",
			Name:      "loop_failures_total",
			Help:      "Tick orchestrator loop failures, segmented by loop name.",
		}, []string{"loop"}),
	}
	reg.MustRegister(m.ApprovalsTotal, m.PromotionsTotal, m.CommandsExecuted, m.LoopFailuresTotal)
	return m
}

// Handler returns the HTTP handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
