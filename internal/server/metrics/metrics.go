// Package metrics exposes Prometheus counters for authentication events.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder receives auth events from the service layer.
type Recorder interface {
	// Observe counts one operation with its outcome.
	Observe(op, outcome string)
	// TokenReuse counts a detected refresh token replay.
	TokenReuse()
}

// Prometheus is a Recorder backed by its own registry.
type Prometheus struct {
	registry *prometheus.Registry
	events   *prometheus.CounterVec
	reuse    prometheus.Counter
}

func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	p := &Prometheus{
		registry: reg,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blindauth",
			Name:      "auth_operations_total",
			Help:      "Authentication operations by name and outcome.",
		}, []string{"op", "outcome"}),
		reuse: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blindauth",
			Name:      "refresh_token_reuse_total",
			Help:      "Replays of already rotated refresh tokens.",
		}),
	}
	reg.MustRegister(p.events, p.reuse)
	return p
}

func (p *Prometheus) Observe(op, outcome string) {
	p.events.WithLabelValues(op, outcome).Inc()
}

func (p *Prometheus) TokenReuse() {
	p.reuse.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Nop discards everything.
type Nop struct{}

func (Nop) Observe(string, string) {}
func (Nop) TokenReuse()            {}
